// internal/app/features/systemusers/edit.go
package systemusers

import (
	"context"
	"errors"
	"net/http"

	uierrors "github.com/tradeya/tradeya/internal/app/features/errors"
	"github.com/tradeya/tradeya/internal/app/features/shared"
	userstore "github.com/tradeya/tradeya/internal/app/store/users"
	"github.com/tradeya/tradeya/internal/app/system/authz"
	"github.com/tradeya/tradeya/internal/app/system/inputval"
	"github.com/tradeya/tradeya/internal/app/system/normalize"
	"github.com/tradeya/tradeya/internal/app/system/timeouts"
	"github.com/tradeya/tradeya/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

type statusRequest struct {
	Status string `json:"status" validate:"required,oneof=active disabled" label:"Status"`
}

type roleRequest struct {
	Role string `json:"role" validate:"required,oneof=user admin" label:"Role"`
}

// HandleStatus handles PATCH /api/admin/users/{id}/status. Admins cannot
// disable themselves or the last active admin.
func (h *Handler) HandleStatus(w http.ResponseWriter, r *http.Request) {
	var req statusRequest
	u, actorID, ctx, cancel, ok := h.prepare(w, r, &req)
	if !ok {
		return
	}
	defer cancel()

	status := normalize.Status(req.Status)
	if status == u.Status {
		uierrors.WriteJSON(w, http.StatusOK, u)
		return
	}
	if status == models.UserDisabled {
		if u.ID == actorID {
			uierrors.RenderConflict(w, r, "You cannot disable your own account.")
			return
		}
		if !h.otherAdminsRemain(w, r, ctx, u) {
			return
		}
	}

	if err := h.Users.SetStatus(ctx, u.ID, status); err != nil {
		h.notFoundOr500(w, r, "set user status", err, u.ID.Hex())
		return
	}
	h.AuditLog.UserStatusChanged(ctx, r, actorID, u.ID, status)
	u.Status = status
	uierrors.WriteJSON(w, http.StatusOK, u)
}

// HandleRole handles PATCH /api/admin/users/{id}/role. The last active admin
// cannot be demoted.
func (h *Handler) HandleRole(w http.ResponseWriter, r *http.Request) {
	var req roleRequest
	u, actorID, ctx, cancel, ok := h.prepare(w, r, &req)
	if !ok {
		return
	}
	defer cancel()

	role := normalize.Role(req.Role)
	if role == u.Role {
		uierrors.WriteJSON(w, http.StatusOK, u)
		return
	}
	if role != authz.RoleAdmin && !h.otherAdminsRemain(w, r, ctx, u) {
		return
	}

	if err := h.Users.SetRole(ctx, u.ID, role); err != nil {
		h.notFoundOr500(w, r, "set user role", err, u.ID.Hex())
		return
	}
	h.AuditLog.RoleChanged(ctx, r, actorID, u.ID, u.Role, role)
	u.Role = role
	uierrors.WriteJSON(w, http.StatusOK, u)
}

// prepare decodes and validates req, then loads the target user. On false a
// response has been written and no cancel needs calling.
func (h *Handler) prepare(w http.ResponseWriter, r *http.Request, req any) (*models.User, primitive.ObjectID, context.Context, context.CancelFunc, bool) {
	id, ok := shared.IDParam(r, "id")
	if !ok {
		uierrors.RenderNotFound(w, r, "User not found.")
		return nil, primitive.NilObjectID, nil, nil, false
	}
	if err := shared.DecodeJSON(w, r, req); err != nil {
		uierrors.RenderBadRequest(w, r, err.Error())
		return nil, primitive.NilObjectID, nil, nil, false
	}
	if res := inputval.Validate(req); res.HasErrors() {
		uierrors.RenderValidation(w, r, res)
		return nil, primitive.NilObjectID, nil, nil, false
	}
	_, _, actorID, _ := authz.UserCtx(r)

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	u, err := h.Users.GetByID(ctx, id)
	if err != nil {
		cancel()
		h.notFoundOr500(w, r, "load user", err, id.Hex())
		return nil, primitive.NilObjectID, nil, nil, false
	}
	return u, actorID, ctx, cancel, true
}

// otherAdminsRemain reports whether taking admin rights from u leaves at
// least one active admin, writing a 409 when it does not.
func (h *Handler) otherAdminsRemain(w http.ResponseWriter, r *http.Request, ctx context.Context, u *models.User) bool {
	if u.Role != authz.RoleAdmin || u.Status != models.UserActive {
		return true
	}
	n, err := h.Users.CountAdmins(ctx)
	if err != nil {
		h.ErrLog.LogServerError(w, r, "count admins", err, "")
		return false
	}
	if n <= 1 {
		uierrors.RenderConflict(w, r, "At least one active admin is required.")
		return false
	}
	return true
}

func (h *Handler) notFoundOr500(w http.ResponseWriter, r *http.Request, msg string, err error, id string) {
	if errors.Is(err, userstore.ErrNotFound) {
		uierrors.RenderNotFound(w, r, "User not found.")
		return
	}
	h.ErrLog.LogServerError(w, r, msg, err, "", zap.String("user_id", id))
}
