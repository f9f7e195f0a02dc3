// internal/app/features/profile/routes.go
package profile

import (
	"github.com/go-chi/chi/v5"
	"github.com/tradeya/tradeya/internal/app/system/auth"
)

// Routes serves the signed-in user's own profile under /api/profile.
func Routes(h *Handler, sm *auth.SessionManager) chi.Router {
	r := chi.NewRouter()
	r.Use(sm.RequireSignedIn)
	r.Get("/", h.ServeProfile)
	r.Patch("/", h.HandleUpdate)
	r.Post("/password", h.HandleChangePassword)
	r.Get("/xp", h.ServeXP)
	r.Get("/logins", h.ServeLogins)
	return r
}

// MountPublicRoutes registers the public profile and leaderboard.
func MountPublicRoutes(r chi.Router, h *Handler) {
	r.Get("/api/users/{id}", h.ServePublic)
	r.Get("/api/leaderboard", h.ServeLeaderboard)
}
