// internal/app/features/login/routes.go
package login

import "github.com/go-chi/chi/v5"

// MountRoutes registers the password sign-in routes on r, which the caller
// mounts under /auth.
func MountRoutes(r chi.Router, h *Handler) {
	r.Post("/register", h.ServeRegister)
	r.Post("/login", h.ServeLogin)
}
