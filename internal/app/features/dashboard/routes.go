// internal/app/features/dashboard/routes.go
package dashboard

import (
	"github.com/go-chi/chi/v5"
	"github.com/tradeya/tradeya/internal/app/system/auth"
)

// Routes wires the admin dashboard API under whatever mount point the
// top-level router chooses (e.g., "/api/admin").
func Routes(h *Handler, sm *auth.SessionManager) chi.Router {
	r := chi.NewRouter()

	r.Group(func(pr chi.Router) {
		pr.Use(sm.RequireSignedIn)
		pr.Use(sm.RequireRole("admin"))
		pr.Get("/stats", h.ServeStats)
		pr.Get("/jobs", h.ServeJobs)
		pr.Post("/jobs/{name}/run", h.HandleRunJob)
	})

	return r
}
