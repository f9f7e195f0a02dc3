// internal/app/features/collaborations/actions.go
package collaborations

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	uierrors "github.com/tradeya/tradeya/internal/app/features/errors"
	"github.com/tradeya/tradeya/internal/app/features/shared"
	"github.com/tradeya/tradeya/internal/app/system/inputval"
	"github.com/tradeya/tradeya/internal/app/system/timeouts"
	"github.com/tradeya/tradeya/internal/app/workflow"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

type applyRequest struct {
	Message string `json:"message" validate:"required,max=2000" label:"Message"`
}

// run decodes an optional body into req, resolves the actor and calls fn
// with the id in URL parameter param. Successful results are written with
// status.
func (h *Handler) run(w http.ResponseWriter, r *http.Request, name, param string, status int, req any, fn func(ctx context.Context, a workflow.Actor, id primitive.ObjectID) (any, error)) {
	id, ok := shared.IDParam(r, param)
	if !ok {
		uierrors.RenderNotFound(w, r, "Not found.")
		return
	}
	if req != nil {
		if err := shared.DecodeJSON(w, r, req); err != nil {
			uierrors.RenderBadRequest(w, r, err.Error())
			return
		}
		if res := inputval.Validate(req); res.HasErrors() {
			uierrors.RenderValidation(w, r, res)
			return
		}
	}
	a, ok := shared.Actor(w, r, h.Svc, h.ErrLog)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	out, err := fn(ctx, a, id)
	if err != nil {
		h.ErrLog.HandleWorkflow(w, r, name, err, zap.String(param, id.Hex()))
		return
	}
	uierrors.WriteJSON(w, status, out)
}

// HandleAddRole handles POST /api/collaborations/{id}/roles.
func (h *Handler) HandleAddRole(w http.ResponseWriter, r *http.Request) {
	var req roleRequest
	h.run(w, r, "add role", "id", http.StatusCreated, &req, func(ctx context.Context, a workflow.Actor, id primitive.ObjectID) (any, error) {
		return h.Svc.AddRole(ctx, a, id, req.input())
	})
}

// HandleCloseRole handles POST /api/collaborations/{id}/roles/{roleID}/close.
func (h *Handler) HandleCloseRole(w http.ResponseWriter, r *http.Request) {
	roleID := chi.URLParam(r, "roleID")
	h.run(w, r, "close role", "id", http.StatusOK, nil, func(ctx context.Context, a workflow.Actor, id primitive.ObjectID) (any, error) {
		return h.Svc.CloseRole(ctx, a, id, roleID)
	})
}

// HandleReopenRole handles POST /api/collaborations/{id}/roles/{roleID}/reopen.
func (h *Handler) HandleReopenRole(w http.ResponseWriter, r *http.Request) {
	roleID := chi.URLParam(r, "roleID")
	h.run(w, r, "reopen role", "id", http.StatusOK, nil, func(ctx context.Context, a workflow.Actor, id primitive.ObjectID) (any, error) {
		return h.Svc.ReopenRole(ctx, a, id, roleID)
	})
}

// HandleApply handles POST /api/collaborations/{id}/roles/{roleID}/apply.
func (h *Handler) HandleApply(w http.ResponseWriter, r *http.Request) {
	roleID := chi.URLParam(r, "roleID")
	var req applyRequest
	h.run(w, r, "apply", "id", http.StatusCreated, &req, func(ctx context.Context, a workflow.Actor, id primitive.ObjectID) (any, error) {
		return h.Svc.Apply(ctx, a, id, roleID, req.Message)
	})
}

// HandleStart handles POST /api/collaborations/{id}/start.
func (h *Handler) HandleStart(w http.ResponseWriter, r *http.Request) {
	h.run(w, r, "start collaboration", "id", http.StatusOK, nil, func(ctx context.Context, a workflow.Actor, id primitive.ObjectID) (any, error) {
		return h.Svc.StartCollaboration(ctx, a, id)
	})
}

// HandleComplete handles POST /api/collaborations/{id}/complete.
func (h *Handler) HandleComplete(w http.ResponseWriter, r *http.Request) {
	h.run(w, r, "complete collaboration", "id", http.StatusOK, nil, func(ctx context.Context, a workflow.Actor, id primitive.ObjectID) (any, error) {
		return h.Svc.CompleteCollaboration(ctx, a, id)
	})
}

// HandleCancel handles POST /api/collaborations/{id}/cancel.
func (h *Handler) HandleCancel(w http.ResponseWriter, r *http.Request) {
	h.run(w, r, "cancel collaboration", "id", http.StatusOK, nil, func(ctx context.Context, a workflow.Actor, id primitive.ObjectID) (any, error) {
		return h.Svc.CancelCollaboration(ctx, a, id)
	})
}

// HandleAccept handles POST /api/applications/{appID}/accept and returns
// the updated collaboration.
func (h *Handler) HandleAccept(w http.ResponseWriter, r *http.Request) {
	h.run(w, r, "accept application", "appID", http.StatusOK, nil, func(ctx context.Context, a workflow.Actor, id primitive.ObjectID) (any, error) {
		return h.Svc.AcceptApplication(ctx, a, id)
	})
}

// HandleReject handles POST /api/applications/{appID}/reject.
func (h *Handler) HandleReject(w http.ResponseWriter, r *http.Request) {
	h.run(w, r, "reject application", "appID", http.StatusOK, nil, func(ctx context.Context, a workflow.Actor, id primitive.ObjectID) (any, error) {
		return h.Svc.RejectApplication(ctx, a, id)
	})
}

// HandleWithdraw handles POST /api/applications/{appID}/withdraw.
func (h *Handler) HandleWithdraw(w http.ResponseWriter, r *http.Request) {
	h.run(w, r, "withdraw application", "appID", http.StatusOK, nil, func(ctx context.Context, a workflow.Actor, id primitive.ObjectID) (any, error) {
		return h.Svc.WithdrawApplication(ctx, a, id)
	})
}
