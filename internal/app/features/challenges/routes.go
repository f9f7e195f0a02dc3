// internal/app/features/challenges/routes.go
package challenges

import (
	"github.com/go-chi/chi/v5"
	"github.com/tradeya/tradeya/internal/app/system/auth"
)

// Routes serves /api/challenges. Listing and reading are public; joining and
// submitting need a signed-in user; managing and reviewing need an admin.
func Routes(h *Handler, sm *auth.SessionManager) chi.Router {
	r := chi.NewRouter()

	r.Get("/", h.ServeList)

	r.Group(func(pr chi.Router) {
		pr.Use(sm.RequireSignedIn)
		pr.Get("/mine", h.ServeMine)
		pr.Post("/{id}/join", h.HandleJoin)
		pr.Post("/{id}/submit", h.HandleSubmit)
	})

	r.Group(func(ar chi.Router) {
		ar.Use(sm.RequireRole("admin"))
		ar.Post("/", h.HandleCreate)
		ar.Post("/{id}/close", h.HandleClose)
		ar.Get("/{id}/participants", h.ServeParticipants)
		ar.Post("/submissions/{pid}/approve", h.HandleApprove)
		ar.Post("/submissions/{pid}/return", h.HandleReturn)
	})

	r.Get("/{id}", h.ServeGet)
	return r
}
