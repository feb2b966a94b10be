package http

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"runtime/debug"
	"time"

	"food-diary/internal/handler/http/auth"
	"food-diary/internal/handler/http/requestid"
	"food-diary/internal/handler/http/respond"
	"food-diary/internal/handler/http/responsewriter"
)

// Chain applies middlewares so that the first one listed is the outermost.
func Chain(h http.Handler, mws ...func(http.Handler) http.Handler) http.Handler {
	for i := len(mws) - 1; i >= 0; i-- {
		h = mws[i](h)
	}
	return h
}

// Logging returns middleware that logs each request once it completes.
// Loggers built by logging.New add the request and trace IDs from the context.
//
// The query string and the Authorization header are never logged: tokens
// and user-entered search terms stay out of log storage.
func Logging(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			wrapped := responsewriter.Wrap(w)

			// Handlers further down add the user to this holder.
			holder := &userHolder{}
			next.ServeHTTP(wrapped, r.WithContext(withUserHolder(r.Context(), holder)))

			duration := time.Since(start)
			attrs := []any{
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.String("remote_addr", r.RemoteAddr),
				slog.Int("status", wrapped.Status()),
				slog.Int("bytes", wrapped.Bytes()),
				slog.Duration("duration", duration),
			}
			if holder.user != "" {
				attrs = append(attrs, slog.String("user_id", holder.user))
			}

			level := slog.LevelInfo
			if wrapped.Status() >= http.StatusInternalServerError {
				level = slog.LevelError
			}
			logger.Log(r.Context(), level, "request completed", attrs...)
		})
	}
}

// RecordUser copies the authenticated user into the Logging holder.
// Mount it inside auth.Verifier.Middleware.
func RecordUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if user, ok := auth.UserIDFrom(r.Context()); ok {
			if h := userHolderFrom(r.Context()); h != nil {
				h.user = user
			}
		}
		next.ServeHTTP(w, r)
	})
}

// Recover returns middleware that catches panics, logs them with the stack,
// and answers 500 without leaking the panic value.
func Recover(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					if rec == http.ErrAbortHandler {
						panic(rec)
					}
					respond.SafeError(w, http.StatusInternalServerError, errors.New("internal error"))
					// Recover runs outside requestid.Middleware; the ID is only on the response.
					logger.ErrorContext(r.Context(), "panic recovered",
						slog.String("request_id", w.Header().Get(requestid.Header)),
						slog.String("method", r.Method),
						slog.String("path", r.URL.Path),
						slog.Any("panic", rec),
						slog.String("stack", string(debug.Stack())),
					)
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// LimitRequestBody returns middleware that caps request bodies at maxBytes.
func LimitRequestBody(maxBytes int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
			next.ServeHTTP(w, r)
		})
	}
}

type userHolderKey struct{}

// userHolder lets an inner middleware report the authenticated user to
// Logging, which only sees the outer request.
type userHolder struct {
	user string
}

func withUserHolder(ctx context.Context, h *userHolder) context.Context {
	return context.WithValue(ctx, userHolderKey{}, h)
}

func userHolderFrom(ctx context.Context) *userHolder {
	h, _ := ctx.Value(userHolderKey{}).(*userHolder)
	return h
}
