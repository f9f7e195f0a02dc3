// internal/app/features/userinfo/handler.go
package userinfo

import (
	"net/http"

	uierrors "github.com/tradeya/tradeya/internal/app/features/errors"
	"github.com/tradeya/tradeya/internal/app/system/auth"
)

// Handler serves the identity of the current session.
type Handler struct{}

// NewHandler creates a new userinfo handler.
func NewHandler() *Handler {
	return &Handler{}
}

type response struct {
	IsAuthenticated bool   `json:"is_authenticated"`
	ID              string `json:"id,omitempty"`
	Name            string `json:"name,omitempty"`
	Email           string `json:"email,omitempty"`
	Role            string `json:"role,omitempty"`
}

// ServeUserInfo handles GET /auth/me. Anonymous callers get
// {"is_authenticated": false} rather than an error so clients can probe.
func (h *Handler) ServeUserInfo(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.CurrentUser(r)
	if !ok {
		uierrors.WriteJSON(w, http.StatusOK, response{})
		return
	}

	uierrors.WriteJSON(w, http.StatusOK, response{
		IsAuthenticated: true,
		ID:              user.ID,
		Name:            user.Name,
		Email:           user.Email,
		Role:            user.Role,
	})
}
