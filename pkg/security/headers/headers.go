// Package headers assembles the security response headers attached to every
// food-diary response, successful or not.
package headers

import (
	"fmt"
	"net/http"

	"food-diary/pkg/security/csp"
)

// Header is one response header.
type Header struct {
	Name  string
	Value string
}

// HeaderSet is an ordered list of headers. It is a value type; Apply never
// mutates it.
type HeaderSet []Header

// Get returns the value for name, or "" when absent.
func (s HeaderSet) Get(name string) string {
	for _, h := range s {
		if http.CanonicalHeaderKey(h.Name) == http.CanonicalHeaderKey(name) {
			return h.Value
		}
	}
	return ""
}

// Apply sets every header on h, replacing existing values.
func (s HeaderSet) Apply(h http.Header) {
	for _, hdr := range s {
		h.Set(hdr.Name, hdr.Value)
	}
}

const (
	xssProtection      = "1; mode=block"
	contentTypeOptions = "nosniff"
	frameOptions       = "DENY"
	hsts               = "max-age=31536000; includeSubDomains; preload"
	referrerPolicy     = "strict-origin-when-cross-origin"
	permissionsPolicy  = "camera=(), microphone=(), geolocation=()"
)

// Builder produces the security header set for a process configuration.
type Builder struct {
	policy csp.Policy
}

// NewBuilder validates policy and returns a Builder for it.
func NewBuilder(policy csp.Policy) (*Builder, error) {
	if err := policy.Validate(); err != nil {
		return nil, fmt.Errorf("content security policy: %w", err)
	}
	return &Builder{policy: policy}, nil
}

// Build returns the header set. The result depends only on the configured
// policy, so callers may build once and reuse it.
func (b *Builder) Build() HeaderSet {
	return HeaderSet{
		{Name: "X-XSS-Protection", Value: xssProtection},
		{Name: "X-Content-Type-Options", Value: contentTypeOptions},
		{Name: "X-Frame-Options", Value: frameOptions},
		{Name: "Strict-Transport-Security", Value: hsts},
		{Name: b.policy.HeaderName(), Value: b.policy.String()},
		{Name: "Referrer-Policy", Value: referrerPolicy},
		{Name: "Permissions-Policy", Value: permissionsPolicy},
	}
}

// Middleware sets the header set before calling next, so error responses
// written by any later handler carry it too.
func Middleware(set HeaderSet) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			set.Apply(w.Header())
			next.ServeHTTP(w, r)
		})
	}
}
