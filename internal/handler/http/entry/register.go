// Package entry serves the food-diary entry endpoints.
package entry

import (
	"net/http"

	entryUC "food-diary/internal/usecase/entry"
)

// Register mounts the entry routes. authz wraps every route; it must place
// the user id in the request context (auth.Verifier.Middleware).
func Register(mux *http.ServeMux, svc *entryUC.Service, authz func(http.Handler) http.Handler) {
	mux.Handle("GET /api/entries", authz(ListHandler{svc}))
	mux.Handle("POST /api/entries", authz(CreateHandler{svc}))
	mux.Handle("GET /api/entries/{id}", authz(GetHandler{svc}))
}
