package entry

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"food-diary/internal/handler/http/auth"
	"food-diary/internal/handler/http/respond"
	"food-diary/internal/resilience/circuitbreaker"
	entryUC "food-diary/internal/usecase/entry"
	"food-diary/pkg/security/validation"
)

type CreateHandler struct{ Svc *entryUC.Service }

type createRequest struct {
	FoodName string `json:"food_name"`
	Notes    string `json:"notes"`
	MealType string `json:"meal_type"`
	Calories *int   `json:"calories"`
	EatenAt  string `json:"eaten_at"`
}

// ServeHTTP creates an entry for the authenticated user.
// 201 with the stored entry, 400 with per-field errors, 401 without a user.
func (h CreateHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.UserIDFrom(r.Context())
	if !ok {
		respond.SafeError(w, http.StatusUnauthorized, auth.ErrMissingToken)
		return
	}

	var req createRequest
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			respond.SafeError(w, http.StatusRequestEntityTooLarge, errors.New("request body too large"))
			return
		}
		respond.SafeError(w, http.StatusBadRequest, errors.New("invalid JSON body"))
		return
	}

	in := entryUC.CreateInput{
		UserID:   user,
		FoodName: req.FoodName,
		Notes:    req.Notes,
		MealType: req.MealType,
		Calories: req.Calories,
	}
	if req.EatenAt != "" {
		t, err := time.Parse(time.RFC3339, req.EatenAt)
		if err != nil {
			respond.ValidationFailed(w, validation.Errors{
				{Field: "eaten_at", Message: "eaten_at must be in RFC3339 format"},
			})
			return
		}
		in.EatenAt = t
	}

	e, err := h.Svc.Create(r.Context(), in)
	if err != nil {
		writeError(w, err)
		return
	}
	respond.JSON(w, http.StatusCreated, toDTO(e))
}

// writeError maps use case errors to responses.
func writeError(w http.ResponseWriter, err error) {
	var verrs validation.Errors
	switch {
	case errors.As(err, &verrs):
		respond.ValidationFailed(w, verrs)
	case errors.Is(err, entryUC.ErrEntryNotFound):
		respond.SafeError(w, http.StatusNotFound, err)
	case errors.Is(err, entryUC.ErrInvalidEntryID):
		respond.SafeError(w, http.StatusBadRequest, err)
	case errors.Is(err, entryUC.ErrUserRequired):
		respond.SafeError(w, http.StatusUnauthorized, auth.ErrMissingToken)
	case circuitbreaker.IsUnavailable(err):
		w.Header().Set("Retry-After", "30")
		respond.SafeError(w, http.StatusServiceUnavailable, err)
	default:
		respond.SafeError(w, http.StatusInternalServerError, err)
	}
}
