// Package logging builds the structured slog logger used across the API.
//
// Credentials are redacted by attribute key, and request and trace IDs are
// attached from the context of *Context calls:
//
//	logger := logging.NewLogger()
//	logger.WarnContext(r.Context(), "upload rate limited", slog.String("user_id", user))
package logging
