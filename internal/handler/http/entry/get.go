package entry

import (
	"net/http"

	"food-diary/internal/handler/http/auth"
	"food-diary/internal/handler/http/pathutil"
	"food-diary/internal/handler/http/respond"
	entryUC "food-diary/internal/usecase/entry"
)

type GetHandler struct{ Svc *entryUC.Service }

// ServeHTTP returns one entry of the authenticated user. Entries of other
// users are reported as 404.
func (h GetHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.UserIDFrom(r.Context())
	if !ok {
		respond.SafeError(w, http.StatusUnauthorized, auth.ErrMissingToken)
		return
	}

	id, err := pathutil.ParseID(r.PathValue("id"))
	if err != nil {
		respond.SafeError(w, http.StatusBadRequest, err)
		return
	}

	e, err := h.Svc.Get(r.Context(), user, id)
	if err != nil {
		writeError(w, err)
		return
	}
	respond.JSON(w, http.StatusOK, toDTO(e))
}
