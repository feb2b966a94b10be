// Package origin decides whether a request's Origin (or, failing that, its
// Referer) belongs to the configured allow-list.
//
// Matching is exact or scheme/host aware. There is deliberately no substring
// match: "https://myapp.com.attacker.net" must never pass "*.myapp.com".
package origin

import (
	"net/url"
	"strings"
)

// Wildcard matches any origin.
const Wildcard = "*"

// AllowList holds normalised allow-list patterns:
//   - "*" matches any origin
//   - "https://app.example.com" matches that origin exactly
//   - "*.example.com" matches http(s)://example.com and any subdomain of it
//
// An AllowList is read-only after construction and safe for concurrent use.
type AllowList []string

// NewAllowList normalises patterns: trims space, lowercases, drops trailing
// slashes and empty entries.
func NewAllowList(patterns []string) AllowList {
	out := make(AllowList, 0, len(patterns))
	for _, p := range patterns {
		p = normalize(p)
		if p == "" {
			continue
		}
		out = append(out, p)
	}
	return out
}

// IsAllowed reports whether the request may proceed.
//
// An empty header value means the header was absent. The Origin header wins;
// otherwise the scheme and host of the Referer are used. When neither is
// present the request is allowed only if bypass is set, which is reserved
// for internal callers.
func IsAllowed(originHeader, refererHeader string, allow AllowList, bypass bool) bool {
	effective := strings.TrimSpace(originHeader)
	if effective == "" {
		effective = OriginOf(refererHeader)
	}
	if effective == "" {
		if strings.TrimSpace(refererHeader) != "" {
			// Referer present but unparseable: fail closed.
			return false
		}
		return bypass
	}
	return allow.IsAllowed(effective)
}

// IsAllowed reports whether origin matches any pattern in the list.
func (a AllowList) IsAllowed(origin string) bool {
	origin = normalize(origin)
	if origin == "" {
		return false
	}

	for _, pattern := range a {
		switch {
		case pattern == Wildcard:
			return true
		case pattern == origin:
			return true
		case strings.HasPrefix(pattern, "*."):
			if matchesDomain(origin, pattern[2:]) {
				return true
			}
		}
	}
	return false
}

// GetAllowedOrigins returns a copy of the patterns, for logging.
func (a AllowList) GetAllowedOrigins() []string {
	out := make([]string, len(a))
	copy(out, a)
	return out
}

// OriginOf returns "scheme://host[:port]" of a Referer value, or "" when it
// is empty or not an absolute http(s) URL.
func OriginOf(referer string) string {
	referer = strings.TrimSpace(referer)
	if referer == "" {
		return ""
	}
	u, err := url.Parse(referer)
	if err != nil || u.Host == "" {
		return ""
	}
	scheme := strings.ToLower(u.Scheme)
	if scheme != "http" && scheme != "https" {
		return ""
	}
	return scheme + "://" + strings.ToLower(u.Host)
}

// matchesDomain implements the "*.domain" rule on a parsed origin so that
// paths, queries, fragments or userinfo cannot smuggle a matching suffix.
func matchesDomain(origin, domain string) bool {
	if origin == "https://"+domain || origin == "http://"+domain {
		return true
	}

	u, err := url.Parse(origin)
	if err != nil || u.Host == "" || u.User != nil {
		return false
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return false
	}
	if (u.Path != "" && u.Path != "/") || u.RawQuery != "" || u.Fragment != "" {
		return false
	}

	// Host keeps the port: a wildcard without one only covers default ports.
	return strings.HasSuffix(u.Host, "."+domain)
}

func normalize(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	return strings.TrimSuffix(s, "/")
}
