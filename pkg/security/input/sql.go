package input

import (
	"net/url"
	"regexp"

	"food-diary/pkg/security/validation"
)

var (
	sqlKeywordPattern = regexp.MustCompile(`(?i)\b(?:SELECT|INSERT|UPDATE|DELETE|DROP|CREATE|ALTER|EXEC|UNION|SCRIPT)\b`)

	// '; --; || /* */
	sqlMarkerPattern = regexp.MustCompile(`';|--;|\|\||/\*|\*/`)

	// <iframe or <img, literal or percent-encoded, including encoded letters.
	tagOpenPattern = regexp.MustCompile(`(?i)(?:<|%3C)\s*(?:i|%69)(?:(?:f|%66)(?:r|%72)(?:a|%61)(?:m|%6D)(?:e|%65)|(?:m|%6D)(?:g|%67))`)
)

// LooksSafe reports whether s is free of common injection markers: a SQL
// keyword as a whole word, statement terminator or comment markers, or an
// iframe/img tag opening. False positives on ordinary English ("please
// select one") are expected.
func LooksSafe(s string) bool {
	if matchesInjection(s) {
		return false
	}
	// Catch double-encoded payloads such as %253Ciframe.
	if decoded, err := url.QueryUnescape(s); err == nil && decoded != s && matchesInjection(decoded) {
		return false
	}
	return true
}

func matchesInjection(s string) bool {
	return sqlKeywordPattern.MatchString(s) ||
		sqlMarkerPattern.MatchString(s) ||
		tagOpenPattern.MatchString(s)
}

// CheckField returns a ValidationError for field when value fails LooksSafe.
func CheckField(field, value string) *validation.ValidationError {
	if LooksSafe(value) {
		return nil
	}
	return &validation.ValidationError{Field: field, Message: "contains disallowed characters or keywords"}
}
