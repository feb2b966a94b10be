// Package respond writes the JSON bodies of the API. Error bodies never carry
// internal detail: storage and limiter failures are logged with credentials
// masked and answered with a generic message.
package respond

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"food-diary/pkg/security/validation"
)

// publicMarkers are substrings of messages written for the client, such as
// "food_name is required" or "file too large".
var publicMarkers = []string{
	"required",
	"invalid",
	"not found",
	"must be",
	"too large",
	"too long",
	"unsupported",
}

// JSON writes v as the body with the given status.
func JSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if v == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(v); err != nil {
		// Headers are gone; logging is all that is left.
		slog.Default().Error("failed to encode JSON response",
			slog.Int("status_code", code),
			slog.Any("error", err))
	}
}

// ErrorBody is the shape of every non-validation error response.
type ErrorBody struct {
	Error string `json:"error"`
}

// SafeError answers with err's message only when the status is below 500
// and the message reads as client-facing. Everything else is logged and
// replaced by the status's generic text.
func SafeError(w http.ResponseWriter, code int, err error) {
	if err == nil {
		return
	}
	if code < http.StatusInternalServerError && isPublic(err.Error()) {
		JSON(w, code, ErrorBody{Error: err.Error()})
		return
	}

	slog.Default().Error("request failed",
		slog.Int("code", code),
		slog.String("status", http.StatusText(code)),
		slog.String("error", SanitizeError(err)))
	JSON(w, code, ErrorBody{Error: genericMessage(code)})
}

func isPublic(msg string) bool {
	lower := strings.ToLower(msg)
	for _, m := range publicMarkers {
		if strings.Contains(lower, m) {
			return true
		}
	}
	return false
}

func genericMessage(code int) string {
	switch code {
	case http.StatusServiceUnavailable:
		return "service unavailable"
	case http.StatusUnauthorized:
		return "unauthorized"
	case http.StatusForbidden:
		return "forbidden"
	}
	if code >= http.StatusInternalServerError {
		return "internal server error"
	}
	return "bad request"
}

// FieldError is one rejected field in a validation failure response.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationResponse is the body of a 400 validation failure.
type ValidationResponse struct {
	Error  string       `json:"error"`
	Fields []FieldError `json:"fields"`
}

// ValidationFailed writes a 400 response listing every failed field in order.
// Messages come from the validators and never echo the rejected value.
func ValidationFailed(w http.ResponseWriter, errs validation.Errors) {
	body := ValidationResponse{
		Error:  "validation_failed",
		Fields: make([]FieldError, 0, len(errs)),
	}
	for _, e := range errs {
		body.Fields = append(body.Fields, FieldError{Field: e.Field, Message: e.Message})
	}
	JSON(w, http.StatusBadRequest, body)
}
