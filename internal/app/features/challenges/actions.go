// internal/app/features/challenges/actions.go
package challenges

import (
	"context"
	"net/http"

	uierrors "github.com/tradeya/tradeya/internal/app/features/errors"
	"github.com/tradeya/tradeya/internal/app/features/shared"
	"github.com/tradeya/tradeya/internal/app/system/inputval"
	"github.com/tradeya/tradeya/internal/app/system/timeouts"
	"github.com/tradeya/tradeya/internal/app/workflow"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// act decodes the optional body, resolves the actor and the id in param,
// runs fn and writes its result with status.
func act[T any](h *Handler, w http.ResponseWriter, r *http.Request, name, param string, status int, req any,
	fn func(ctx context.Context, a workflow.Actor, id primitive.ObjectID) (T, error)) {
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

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	out, err := fn(ctx, a, id)
	if err != nil {
		h.ErrLog.HandleWorkflow(w, r, name, err, zap.String(param, id.Hex()))
		return
	}
	uierrors.WriteJSON(w, status, out)
}

// HandleClose handles POST /api/challenges/{id}/close.
func (h *Handler) HandleClose(w http.ResponseWriter, r *http.Request) {
	act(h, w, r, "close challenge", "id", http.StatusOK, nil, h.Svc.CloseChallenge)
}

// HandleJoin handles POST /api/challenges/{id}/join.
func (h *Handler) HandleJoin(w http.ResponseWriter, r *http.Request) {
	act(h, w, r, "join challenge", "id", http.StatusCreated, nil, h.Svc.JoinChallenge)
}

// HandleSubmit handles POST /api/challenges/{id}/submit.
func (h *Handler) HandleSubmit(w http.ResponseWriter, r *http.Request) {
	var req submitRequest
	act(h, w, r, "submit challenge", "id", http.StatusOK, &req,
		func(ctx context.Context, a workflow.Actor, id primitive.ObjectID) (any, error) {
			return h.Svc.SubmitChallenge(ctx, a, id, req.Text, req.URL)
		})
}

// HandleApprove handles POST /api/challenges/submissions/{pid}/approve.
func (h *Handler) HandleApprove(w http.ResponseWriter, r *http.Request) {
	h.review(w, r, true)
}

// HandleReturn handles POST /api/challenges/submissions/{pid}/return.
func (h *Handler) HandleReturn(w http.ResponseWriter, r *http.Request) {
	h.review(w, r, false)
}

func (h *Handler) review(w http.ResponseWriter, r *http.Request, approve bool) {
	act(h, w, r, "review submission", "pid", http.StatusOK, nil,
		func(ctx context.Context, a workflow.Actor, id primitive.ObjectID) (any, error) {
			return h.Svc.ReviewSubmission(ctx, a, id, approve)
		})
}
