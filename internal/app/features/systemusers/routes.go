// internal/app/features/systemusers/routes.go
package systemusers

import (
	"github.com/go-chi/chi/v5"
	"github.com/tradeya/tradeya/internal/app/system/auth"
)

// Routes mounts the user management API under the path where this router
// is mounted (typically "/api/admin/users" from bootstrap).
func Routes(h *Handler, sm *auth.SessionManager) chi.Router {
	r := chi.NewRouter()

	r.Group(func(pr chi.Router) {
		// Only signed-in admins can manage accounts.
		pr.Use(sm.RequireSignedIn)
		pr.Use(sm.RequireRole("admin"))

		pr.Get("/", h.ServeList)
		pr.Get("/{id}", h.ServeView)
		pr.Patch("/{id}/status", h.HandleStatus)
		pr.Patch("/{id}/role", h.HandleRole)
	})

	return r
}
