// internal/app/features/systemusers/list.go
package systemusers

import (
	"context"
	"net/http"

	"github.com/dalemusser/waffle/pantry/query"
	uierrors "github.com/tradeya/tradeya/internal/app/features/errors"
	"github.com/tradeya/tradeya/internal/app/features/shared"
	userstore "github.com/tradeya/tradeya/internal/app/store/users"
	"github.com/tradeya/tradeya/internal/app/system/authz"
	"github.com/tradeya/tradeya/internal/app/system/normalize"
	"github.com/tradeya/tradeya/internal/app/system/paging"
	"github.com/tradeya/tradeya/internal/app/system/timeouts"
	"github.com/tradeya/tradeya/internal/domain/models"
	"go.uber.org/zap"
)

const recentLogins = 20

// ServeList handles GET /api/admin/users.
//
// Filters: status (active | disabled), role (user | admin), q (name
// prefix), skill. Ordered by name with keyset paging.
func (h *Handler) ServeList(w http.ResponseWriter, r *http.Request) {
	status := normalize.Status(query.Get(r, "status"))
	role := normalize.Role(query.Get(r, "role"))
	if status != "" && status != models.UserActive && status != models.UserDisabled {
		uierrors.RenderBadRequest(w, r, "Unknown status.")
		return
	}
	if role != "" && role != authz.RoleUser && role != authz.RoleAdmin {
		uierrors.RenderBadRequest(w, r, "Unknown role.")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	page, err := h.Users.List(ctx, userstore.ListFilter{
		Status: status,
		Role:   role,
		Search: query.Get(r, "q"),
		Skill:  query.Get(r, "skill"),
	}, paging.FromRequest(r))
	if err != nil {
		h.ErrLog.LogServerError(w, r, "list users", err, "")
		return
	}
	uierrors.WriteJSON(w, http.StatusOK, page)
}

type viewResponse struct {
	*models.User
	RecentLogins []models.LoginRecord `json:"recent_logins"`
}

// ServeView handles GET /api/admin/users/{id}: the full account with its
// recent sign-ins.
func (h *Handler) ServeView(w http.ResponseWriter, r *http.Request) {
	id, ok := shared.IDParam(r, "id")
	if !ok {
		uierrors.RenderNotFound(w, r, "User not found.")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	u, err := h.Users.GetByID(ctx, id)
	if err != nil {
		h.notFoundOr500(w, r, "load user", err, id.Hex())
		return
	}
	logins, err := h.Logins.ListRecentByUser(ctx, id, recentLogins)
	if err != nil {
		h.Log.Warn("recent logins lookup failed", zap.String("user_id", id.Hex()), zap.Error(err))
		logins = []models.LoginRecord{}
	}
	uierrors.WriteJSON(w, http.StatusOK, viewResponse{User: u, RecentLogins: logins})
}
