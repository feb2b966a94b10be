// Package requestid tags every request with an ID that appears in the
// X-Request-ID response header, the access log and the server span.
package requestid

import (
	"context"
	"net/http"
	"regexp"

	"github.com/google/uuid"
)

// Header carries the request ID in both directions.
const Header = "X-Request-ID"

type ctxKey struct{}

// wellFormed limits client-supplied IDs to characters that cannot forge log
// lines or response headers.
var wellFormed = regexp.MustCompile(`^[A-Za-z0-9._-]{1,128}$`)

// FromContext returns the request ID, or "" outside Middleware.
func FromContext(ctx context.Context) string {
	id, _ := ctx.Value(ctxKey{}).(string)
	return id
}

// WithRequestID stores id in ctx.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

// Middleware reuses a well-formed inbound X-Request-ID and otherwise mints a
// UUID v4. The inbound header is rewritten so downstream code sees the same ID.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(Header)
		if !wellFormed.MatchString(id) {
			id = uuid.NewString()
			r.Header.Set(Header, id)
		}
		w.Header().Set(Header, id)
		next.ServeHTTP(w, r.WithContext(WithRequestID(r.Context(), id)))
	})
}
