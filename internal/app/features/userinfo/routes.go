// internal/app/features/userinfo/routes.go
package userinfo

import "github.com/go-chi/chi/v5"

// MountRoutes registers GET /me on the supplied router. No auth middleware
// is required; the handler checks auth.CurrentUser itself.
func MountRoutes(r chi.Router, h *Handler) {
	r.Get("/me", h.ServeUserInfo)
}
