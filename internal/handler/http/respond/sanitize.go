package respond

import (
	"regexp"
)

var (
	// Bearer credentials, e.g. echoed Authorization headers.
	bearerPattern = regexp.MustCompile(`(?i)bearer\s+[A-Za-z0-9._~+/=-]+`)

	// Bare JWT-shaped strings.
	jwtPattern = regexp.MustCompile(`eyJ[A-Za-z0-9_-]*\.[A-Za-z0-9_-]*\.[A-Za-z0-9_-]*`)

	// Passwords inside DSNs (postgres://user:pass@, redis://:pass@).
	dsnPasswordPattern = regexp.MustCompile(`://([^:/@]*):([^@]+)@`)

	// libpq keyword DSNs and similar key=value dumps.
	kvSecretPattern = regexp.MustCompile(`(?i)\b(password|passwd|secret)=\S+`)
)

// SanitizeError returns err's message with credentials masked.
func SanitizeError(err error) string {
	if err == nil {
		return ""
	}

	msg := err.Error()

	// Bearer first so its token is not half-masked by the JWT pattern.
	msg = bearerPattern.ReplaceAllString(msg, "Bearer ****")
	msg = jwtPattern.ReplaceAllString(msg, "****")
	msg = dsnPasswordPattern.ReplaceAllString(msg, "://$1:****@")
	msg = kvSecretPattern.ReplaceAllString(msg, "$1=****")

	return msg
}
