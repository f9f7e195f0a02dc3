// internal/app/features/auditlog/routes.go
package auditlog

import (
	"github.com/go-chi/chi/v5"
	"github.com/tradeya/tradeya/internal/app/system/auth"
)

// Routes mounts the audit log API where this router is mounted (typically
// "/api/admin/audit" from bootstrap). Admins only.
func Routes(h *Handler, sm *auth.SessionManager) chi.Router {
	r := chi.NewRouter()

	r.Group(func(pr chi.Router) {
		pr.Use(sm.RequireSignedIn)
		pr.Use(sm.RequireRole("admin"))

		pr.Get("/", h.ServeList)
		pr.Get("/categories", h.ServeCategories)
		pr.Get("/entity/{id}", h.ServeEntity)
	})

	return r
}
