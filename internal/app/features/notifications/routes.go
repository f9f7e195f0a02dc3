// internal/app/features/notifications/routes.go
package notifications

import (
	"github.com/go-chi/chi/v5"
	"github.com/tradeya/tradeya/internal/app/system/auth"
)

// Routes serves /api/notifications. Every route needs a signed-in user.
func Routes(h *Handler, sm *auth.SessionManager) chi.Router {
	r := chi.NewRouter()
	r.Use(sm.RequireSignedIn)
	r.Get("/", h.ServeList)
	r.Get("/count", h.ServeCount)
	r.Get("/stream", h.ServeStream)
	r.Post("/read-all", h.HandleReadAll)
	r.Post("/{id}/read", h.HandleRead)
	r.Delete("/{id}", h.HandleDelete)
	return r
}
