package entry

import (
	"errors"
	"net/http"
	"strconv"

	"food-diary/internal/handler/http/auth"
	"food-diary/internal/handler/http/respond"
	entryUC "food-diary/internal/usecase/entry"
)

const defaultListLimit = 20

type ListHandler struct{ Svc *entryUC.Service }

// ListResponse wraps the entries so fields can be added without breaking clients.
type ListResponse struct {
	Entries []DTO `json:"entries"`
}

// ServeHTTP lists the newest entries of the authenticated user.
// Optional ?limit=N, 1..100.
func (h ListHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.UserIDFrom(r.Context())
	if !ok {
		respond.SafeError(w, http.StatusUnauthorized, auth.ErrMissingToken)
		return
	}

	limit := defaultListLimit
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 1 || n > 100 {
			respond.SafeError(w, http.StatusBadRequest, errors.New("limit must be between 1 and 100"))
			return
		}
		limit = n
	}

	entries, err := h.Svc.List(r.Context(), user, limit)
	if err != nil {
		writeError(w, err)
		return
	}

	resp := ListResponse{Entries: make([]DTO, 0, len(entries))}
	for _, e := range entries {
		resp.Entries = append(resp.Entries, toDTO(e))
	}
	respond.JSON(w, http.StatusOK, resp)
}
