// internal/app/features/trades/routes.go
package trades

import (
	"github.com/go-chi/chi/v5"
	"github.com/tradeya/tradeya/internal/app/system/auth"
)

// Routes serves /api/trades. Reads are public; everything else needs a
// signed-in user.
func Routes(h *Handler, sm *auth.SessionManager) chi.Router {
	r := chi.NewRouter()

	r.Get("/", h.ServeList)
	r.Get("/{id}", h.ServeGet)

	r.Group(func(pr chi.Router) {
		pr.Use(sm.RequireSignedIn)
		pr.Post("/", h.HandleCreate)
		pr.Get("/{id}/proposals", h.ServeProposals)
		pr.Post("/{id}/proposals", h.HandlePropose)
		pr.Post("/{id}/complete", h.HandleRequestCompletion)
		pr.Post("/{id}/confirm", h.HandleConfirm)
		pr.Post("/{id}/request-changes", h.HandleRequestChanges)
		pr.Post("/{id}/dispute", h.HandleDispute)
		pr.Post("/{id}/cancel", h.HandleCancel)
		pr.Post("/{id}/evidence", h.HandleAddEvidence)

		pr.With(sm.RequireRole("admin")).Post("/{id}/resolve", h.HandleResolve)
	})

	return r
}

// ProposalRoutes serves /api/proposals.
func ProposalRoutes(h *Handler, sm *auth.SessionManager) chi.Router {
	r := chi.NewRouter()
	r.Use(sm.RequireSignedIn)
	r.Get("/", h.ServeMine)
	r.Post("/{pid}/accept", h.HandleAccept)
	r.Post("/{pid}/reject", h.HandleReject)
	r.Post("/{pid}/withdraw", h.HandleWithdraw)
	return r
}
