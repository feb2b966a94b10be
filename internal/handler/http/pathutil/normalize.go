// Package pathutil parses and normalises request paths for the API routes.
package pathutil

import (
	"strings"
)

// Unmatched labels every path outside the API's routes, so scanners probing
// random URLs cannot grow the metric label set.
const Unmatched = "other"

// staticRoutes are served without path parameters.
var staticRoutes = map[string]struct{}{
	"/api/entries": {},
	"/api/uploads": {},
	"/health":      {},
	"/ready":       {},
	"/live":        {},
	"/metrics":     {},
}

// NormalizePath maps a request path to its route template.
//
//	NormalizePath("/api/entries/123")     // "/api/entries/:id"
//	NormalizePath("/api/entries?limit=5") // "/api/entries"
//	NormalizePath("/wp-login.php")        // "other"
func NormalizePath(path string) string {
	if i := strings.IndexByte(path, '?'); i >= 0 {
		path = path[:i]
	}
	if len(path) > 1 {
		path = strings.TrimSuffix(path, "/")
	}

	if _, ok := staticRoutes[path]; ok {
		return path
	}
	if id, ok := strings.CutPrefix(path, "/api/entries/"); ok && isDigits(id) {
		return "/api/entries/:id"
	}
	return Unmatched
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
