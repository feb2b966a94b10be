// Package token performs a cheap structural check on bearer tokens before
// they are handed to the identity provider. It says nothing about signature
// validity, expiry or claims.
package token

import (
	"regexp"
	"strings"
)

var (
	// Three dot-separated base64url segments; the last may be empty for
	// issuers that emit unsigned tokens.
	shapePattern = regexp.MustCompile(`^[A-Za-z0-9_-]+\.[A-Za-z0-9_-]+\.[A-Za-z0-9_-]*$`)

	signedShapePattern = regexp.MustCompile(`^[A-Za-z0-9_-]+\.[A-Za-z0-9_-]+\.[A-Za-z0-9_-]+$`)
)

// HasValidShape reports whether s looks like a compact JWS/JWT.
func HasValidShape(s string) bool {
	return shapePattern.MatchString(s)
}

// Validator applies the shape check with an issuer-specific policy.
type Validator struct {
	// RequireSignature rejects tokens whose third segment is empty.
	RequireSignature bool
}

// Valid reports whether s passes the configured shape policy.
func (v Validator) Valid(s string) bool {
	if v.RequireSignature {
		return signedShapePattern.MatchString(s)
	}
	return HasValidShape(s)
}

// FromAuthorization extracts the credential from an "Authorization: Bearer
// <token>" header value. The scheme is case-insensitive. The boolean is false
// when the header is empty, uses another scheme, or carries no token.
func FromAuthorization(header string) (string, bool) {
	const prefix = "bearer "
	header = strings.TrimSpace(header)
	if len(header) < len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return "", false
	}
	tok := strings.TrimSpace(header[len(prefix):])
	if tok == "" {
		return "", false
	}
	return tok, true
}
