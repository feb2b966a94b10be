package middleware

import (
	"log/slog"
	"net/http"
	"strconv"
	"strings"
)

// OriginValidator decides whether a cross-origin request may read the response.
// origin.AllowList satisfies it, so CORS and the security gate share one list.
type OriginValidator interface {
	IsAllowed(origin string) bool
	GetAllowedOrigins() []string
}

// CORSConfig holds the configuration for CORS middleware.
type CORSConfig struct {
	// AllowedMethods is sent on preflight responses.
	AllowedMethods []string

	// AllowedHeaders is sent on preflight responses.
	// Must include Authorization for bearer tokens.
	AllowedHeaders []string

	// ExposedHeaders lets browser code read the rate limit headers.
	ExposedHeaders []string

	// AllowCredentials indicates whether credentials are supported.
	AllowCredentials bool

	// MaxAge is how long preflight results can be cached, in seconds.
	MaxAge int

	Validator OriginValidator
	Logger    *slog.Logger
}

// DefaultCORSConfig returns the policy used by the API for the given origins.
func DefaultCORSConfig(validator OriginValidator, logger *slog.Logger) CORSConfig {
	return CORSConfig{
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"Content-Type", "Authorization", "X-Request-ID"},
		ExposedHeaders:   []string{"X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset", "Retry-After", "X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           600,
		Validator:        validator,
		Logger:           logger,
	}
}

// CORS returns an HTTP middleware that handles CORS for cross-origin requests.
//
// Behavior:
//   - No Origin header: passed through untouched
//   - Origin not allowed: passed through without CORS headers, so the browser
//     blocks the response and the security gate rejects the request
//   - Allowed preflight: 204 with the preflight headers, next is not called
//   - Allowed actual request: Allow-Origin echoed back, next is called
func CORS(config CORSConfig) func(http.Handler) http.Handler {
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	methods := strings.Join(config.AllowedMethods, ", ")
	headers := strings.Join(config.AllowedHeaders, ", ")
	exposed := strings.Join(config.ExposedHeaders, ", ")
	maxAge := strconv.Itoa(config.MaxAge)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			if origin == "" {
				next.ServeHTTP(w, r)
				return
			}

			// Responses differ per Origin; caches must key on it.
			w.Header().Add("Vary", "Origin")

			if config.Validator == nil || !config.Validator.IsAllowed(origin) {
				logger.Warn("CORS: origin not allowed",
					slog.String("origin", origin),
					slog.String("path", r.URL.Path),
					slog.String("method", r.Method))
				next.ServeHTTP(w, r)
				return
			}

			w.Header().Set("Access-Control-Allow-Origin", origin)
			if config.AllowCredentials {
				w.Header().Set("Access-Control-Allow-Credentials", "true")
			}

			if r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != "" {
				w.Header().Set("Access-Control-Allow-Methods", methods)
				w.Header().Set("Access-Control-Allow-Headers", headers)
				w.Header().Set("Access-Control-Max-Age", maxAge)
				logger.Debug("CORS: preflight request",
					slog.String("origin", origin),
					slog.String("requested_method", r.Header.Get("Access-Control-Request-Method")))
				w.WriteHeader(http.StatusNoContent)
				return
			}

			if exposed != "" {
				w.Header().Set("Access-Control-Expose-Headers", exposed)
			}
			next.ServeHTTP(w, r)
		})
	}
}
