// internal/app/features/collaborations/routes.go
package collaborations

import (
	"github.com/go-chi/chi/v5"
	"github.com/tradeya/tradeya/internal/app/system/auth"
)

// Routes serves /api/collaborations. Reads are public.
func Routes(h *Handler, sm *auth.SessionManager) chi.Router {
	r := chi.NewRouter()

	r.Get("/", h.ServeList)
	r.Get("/{id}", h.ServeGet)

	r.Group(func(pr chi.Router) {
		pr.Use(sm.RequireSignedIn)
		pr.Post("/", h.HandleCreate)
		pr.Get("/{id}/applications", h.ServeApplications)
		pr.Post("/{id}/roles", h.HandleAddRole)
		pr.Post("/{id}/roles/{roleID}/close", h.HandleCloseRole)
		pr.Post("/{id}/roles/{roleID}/reopen", h.HandleReopenRole)
		pr.Post("/{id}/roles/{roleID}/apply", h.HandleApply)
		pr.Post("/{id}/start", h.HandleStart)
		pr.Post("/{id}/complete", h.HandleComplete)
		pr.Post("/{id}/cancel", h.HandleCancel)
	})

	return r
}

// ApplicationRoutes serves /api/applications.
func ApplicationRoutes(h *Handler, sm *auth.SessionManager) chi.Router {
	r := chi.NewRouter()
	r.Use(sm.RequireSignedIn)
	r.Get("/", h.ServeMyApplications)
	r.Post("/{appID}/accept", h.HandleAccept)
	r.Post("/{appID}/reject", h.HandleReject)
	r.Post("/{appID}/withdraw", h.HandleWithdraw)
	return r
}
