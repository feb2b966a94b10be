package http

import (
	"errors"
	"net/http"
	"strings"

	"food-diary/internal/handler/http/respond"
)

// InputLimits bounds the raw request before any handler parses it.
type InputLimits struct {
	MaxAuthorizationBytes int
	MaxPathBytes          int
	MaxBodyBytes          int64
}

// DefaultInputLimits allows an 8KB Authorization header, a 2KB path and a
// body large enough for a 10 MiB photo plus multipart framing.
func DefaultInputLimits() InputLimits {
	return InputLimits{
		MaxAuthorizationBytes: 8 << 10,
		MaxPathBytes:          2 << 10,
		MaxBodyBytes:          11 << 20,
	}
}

// InputValidation returns middleware that rejects oversized headers and
// paths, paths carrying control characters, and caps the body size.
func InputValidation(limits InputLimits) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if len(r.Header.Get("Authorization")) > limits.MaxAuthorizationBytes {
				respond.SafeError(w, http.StatusBadRequest, errors.New("authorization header too large"))
				return
			}

			if len(r.URL.Path) > limits.MaxPathBytes {
				respond.SafeError(w, http.StatusRequestURITooLong, errors.New("URI too long"))
				return
			}

			if strings.ContainsFunc(r.URL.Path, isControl) {
				respond.SafeError(w, http.StatusBadRequest, errors.New("invalid path"))
				return
			}

			r.Body = http.MaxBytesReader(w, r.Body, limits.MaxBodyBytes)
			next.ServeHTTP(w, r)
		})
	}
}

func isControl(r rune) bool {
	return r < 0x20 || r == 0x7f
}
