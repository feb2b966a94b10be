// Package auth verifies bearer tokens after the security gate has accepted
// their shape, and exposes the authenticated user to handlers.
package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"food-diary/internal/handler/http/respond"
	"food-diary/pkg/security/token"
)

type ctxKey string

const ctxUser ctxKey = "user"

var (
	ErrMissingToken = errors.New("bearer token required")
	ErrInvalidToken = errors.New("invalid token")
	ErrNoSubject    = errors.New("invalid sub claim")
)

// Verifier checks HS256 tokens issued for this application.
type Verifier struct {
	secret []byte
	issuer string
	leeway time.Duration
	now    func() time.Time
}

// NewVerifier returns a Verifier for secret. issuer may be empty to accept any issuer.
func NewVerifier(secret []byte, issuer string) (*Verifier, error) {
	if len(secret) < 32 {
		return nil, errors.New("auth: secret must be at least 32 bytes")
	}
	return &Verifier{
		secret: secret,
		issuer: issuer,
		leeway: 30 * time.Second,
		now:    time.Now,
	}, nil
}

// Verify validates tokenString and returns its subject (the user id).
func (v *Verifier) Verify(tokenString string) (string, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(v.leeway),
		jwt.WithTimeFunc(v.now),
	}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}

	claims := &jwt.RegisteredClaims{}
	tok, err := jwt.ParseWithClaims(tokenString, claims, func(*jwt.Token) (interface{}, error) {
		return v.secret, nil
	}, opts...)
	if err != nil || !tok.Valid {
		return "", fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if claims.Subject == "" {
		return "", ErrNoSubject
	}
	return claims.Subject, nil
}

// Middleware rejects requests without a verifiable token with 401 and stores
// the subject for UserIDFrom.
func (v *Verifier) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, ok := token.FromAuthorization(r.Header.Get("Authorization"))
		if !ok {
			w.Header().Set("WWW-Authenticate", `Bearer`)
			respond.SafeError(w, http.StatusUnauthorized, fmt.Errorf("unauthorized: %w", ErrMissingToken))
			return
		}

		user, err := v.Verify(raw)
		if err != nil {
			w.Header().Set("WWW-Authenticate", `Bearer error="invalid_token"`)
			respond.SafeError(w, http.StatusUnauthorized, errors.New("unauthorized: invalid token"))
			return
		}

		next.ServeHTTP(w, r.WithContext(WithUserID(r.Context(), user)))
	})
}

// WithUserID stores the authenticated user id in ctx.
func WithUserID(ctx context.Context, user string) context.Context {
	return context.WithValue(ctx, ctxUser, user)
}

// UserIDFrom returns the user id stored by Middleware.
func UserIDFrom(ctx context.Context) (string, bool) {
	user, ok := ctx.Value(ctxUser).(string)
	return user, ok && user != ""
}
