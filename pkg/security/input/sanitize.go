// Package input cleans and screens free-text form fields.
//
// Sanitize is a best-effort cleanser for display contexts, not an HTML
// parser: obfuscated markup can get through, so its output must never be
// rendered as raw HTML. LooksSafe is a heuristic gate layered in front of
// parameterised queries, never a replacement for them.
package input

import (
	"regexp"
	"strings"
)

var (
	tagPattern     = regexp.MustCompile(`<[^>]*>`)
	schemePattern  = regexp.MustCompile(`(?i)(?:javascript|data|vbscript):`)
	handlerPattern = regexp.MustCompile(`(?i)on\w+\s*=\s*[^\s;]+`)
	spacePattern   = regexp.MustCompile(`\s+`)
)

// Sanitize strips tags, dangerous URL schemes and inline event handlers,
// then collapses whitespace and trims.
//
// The passes repeat until nothing changes, because a removal can splice a
// new match together ("javajavascript:script:"). That makes Sanitize
// idempotent: Sanitize(Sanitize(s)) == Sanitize(s).
func Sanitize(s string) string {
	for {
		next := sanitizePass(s)
		if next == s {
			return next
		}
		s = next
	}
}

func sanitizePass(s string) string {
	s = tagPattern.ReplaceAllString(s, "")
	s = schemePattern.ReplaceAllString(s, "")
	s = handlerPattern.ReplaceAllString(s, "")
	s = spacePattern.ReplaceAllString(s, " ")
	// ASCII trim only: \s above is ASCII, and trimming wider whitespace
	// could expose a new handler match.
	return strings.Trim(s, " ")
}
