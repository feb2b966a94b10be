package gate

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"food-diary/pkg/ratelimit"
)

type rejectionBody struct {
	Error      string `json:"error"`
	Message    string `json:"message"`
	RetryAfter int64  `json:"retry_after,omitempty"`
}

var rejectionMessages = map[Reason]string{
	ReasonOriginInvalid:  "request origin is not allowed",
	ReasonRateLimited:    "too many requests, slow down",
	ReasonTokenMalformed: "authorization token is malformed",
}

// Status maps a rejection reason to its HTTP status code.
func Status(reason Reason) int {
	switch reason {
	case ReasonOriginInvalid:
		return http.StatusForbidden
	case ReasonRateLimited:
		return http.StatusTooManyRequests
	case ReasonTokenMalformed:
		return http.StatusUnauthorized
	default:
		return http.StatusForbidden
	}
}

// Middleware evaluates every request and only calls next when it is accepted.
// Security headers must already be applied by an outer middleware so they
// reach rejections too.
func (g *Gate) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		res := g.Evaluate(r.Context(), r)
		SetRateLimitHeaders(w, res.Decision)

		if res.Accepted {
			next.ServeHTTP(w, r)
			return
		}

		g.logger.WarnContext(r.Context(), "request rejected by gate",
			slog.String("reason", string(res.Reason)),
			slog.String("stage", string(res.Stage)),
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.String("remote_addr", r.RemoteAddr),
			slog.String("user_agent", r.UserAgent()),
		)
		WriteRejection(w, res)
	})
}

// SetRateLimitHeaders writes the X-RateLimit-* headers for d. Nil is a no-op.
func SetRateLimitHeaders(w http.ResponseWriter, d *ratelimit.Decision) {
	if d == nil {
		return
	}
	w.Header().Set("X-RateLimit-Limit", strconv.Itoa(d.Limit))
	w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(d.Remaining))
	w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(d.ResetAtUnix(), 10))
}

// WriteRejection writes the JSON rejection for res. Handlers that apply their
// own limits, such as uploads, reuse it so every 429 looks the same.
func WriteRejection(w http.ResponseWriter, res Result) {
	body := rejectionBody{
		Error:   string(res.Reason),
		Message: rejectionMessages[res.Reason],
	}

	switch res.Reason {
	case ReasonRateLimited:
		retry := int64(1)
		if res.Decision != nil && res.Decision.RetryAfterSeconds() > 0 {
			retry = res.Decision.RetryAfterSeconds()
		}
		body.RetryAfter = retry
		w.Header().Set("Retry-After", strconv.FormatInt(retry, 10))
	case ReasonTokenMalformed:
		w.Header().Set("WWW-Authenticate", `Bearer error="invalid_token"`)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(Status(res.Reason))
	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.Error("gate: failed to encode rejection", slog.Any("error", err))
	}
}
