// internal/app/features/trades/actions.go
package trades

import (
	"context"
	"net/http"

	uierrors "github.com/tradeya/tradeya/internal/app/features/errors"
	"github.com/tradeya/tradeya/internal/app/features/shared"
	"github.com/tradeya/tradeya/internal/app/system/inputval"
	"github.com/tradeya/tradeya/internal/app/system/timeouts"
	"github.com/tradeya/tradeya/internal/app/workflow"
	"github.com/tradeya/tradeya/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

type evidenceInput struct {
	Kind  string `json:"kind" validate:"omitempty,oneof=link image video file" label:"Evidence kind"`
	URL   string `json:"url" validate:"required,httpurl,max=1000" label:"Evidence URL"`
	Title string `json:"title" validate:"max=200" label:"Evidence title"`
}

func (e evidenceInput) evidence() models.Evidence {
	kind := e.Kind
	if kind == "" {
		kind = "link"
	}
	return models.Evidence{Kind: kind, URL: e.URL, Title: e.Title}
}

type completionRequest struct {
	Notes    string          `json:"notes" validate:"max=2000" label:"Notes"`
	Evidence []evidenceInput `json:"evidence" validate:"max=20,dive" label:"Evidence"`
}

type reasonRequest struct {
	Reason string `json:"reason" validate:"required,max=2000" label:"Reason"`
}

type resolveRequest struct {
	Resolution string `json:"resolution" validate:"required,max=2000" label:"Resolution"`
}

// tradeAction decodes an optional body into req, resolves the actor and
// runs fn against the trade named by {id}. req may be nil for actions
// without a body.
func (h *Handler) tradeAction(w http.ResponseWriter, r *http.Request, name string, req any, fn func(ctx context.Context, a workflow.Actor, id primitive.ObjectID) (any, error)) {
	id, ok := shared.IDParam(r, "id")
	if !ok {
		uierrors.RenderNotFound(w, r, "Trade not found.")
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
		h.ErrLog.HandleWorkflow(w, r, name, err, zap.String("trade_id", id.Hex()))
		return
	}
	uierrors.WriteJSON(w, http.StatusOK, out)
}

// HandleRequestCompletion handles POST /api/trades/{id}/complete.
func (h *Handler) HandleRequestCompletion(w http.ResponseWriter, r *http.Request) {
	var req completionRequest
	h.tradeAction(w, r, "request completion", &req, func(ctx context.Context, a workflow.Actor, id primitive.ObjectID) (any, error) {
		in := workflow.CompletionInput{Notes: req.Notes}
		for _, e := range req.Evidence {
			in.Evidence = append(in.Evidence, e.evidence())
		}
		return h.Svc.RequestCompletion(ctx, a, id, in)
	})
}

// HandleConfirm handles POST /api/trades/{id}/confirm.
func (h *Handler) HandleConfirm(w http.ResponseWriter, r *http.Request) {
	h.tradeAction(w, r, "confirm completion", nil, func(ctx context.Context, a workflow.Actor, id primitive.ObjectID) (any, error) {
		return h.Svc.ConfirmCompletion(ctx, a, id)
	})
}

// HandleRequestChanges handles POST /api/trades/{id}/request-changes.
func (h *Handler) HandleRequestChanges(w http.ResponseWriter, r *http.Request) {
	var req reasonRequest
	h.tradeAction(w, r, "request changes", &req, func(ctx context.Context, a workflow.Actor, id primitive.ObjectID) (any, error) {
		return h.Svc.RequestChanges(ctx, a, id, req.Reason)
	})
}

// HandleDispute handles POST /api/trades/{id}/dispute.
func (h *Handler) HandleDispute(w http.ResponseWriter, r *http.Request) {
	var req reasonRequest
	h.tradeAction(w, r, "dispute trade", &req, func(ctx context.Context, a workflow.Actor, id primitive.ObjectID) (any, error) {
		return h.Svc.Dispute(ctx, a, id, req.Reason)
	})
}

// HandleResolve handles POST /api/trades/{id}/resolve (admin).
func (h *Handler) HandleResolve(w http.ResponseWriter, r *http.Request) {
	var req resolveRequest
	h.tradeAction(w, r, "resolve dispute", &req, func(ctx context.Context, a workflow.Actor, id primitive.ObjectID) (any, error) {
		return h.Svc.ResolveDispute(ctx, a, id, req.Resolution)
	})
}

// HandleCancel handles POST /api/trades/{id}/cancel.
func (h *Handler) HandleCancel(w http.ResponseWriter, r *http.Request) {
	h.tradeAction(w, r, "cancel trade", nil, func(ctx context.Context, a workflow.Actor, id primitive.ObjectID) (any, error) {
		return h.Svc.CancelTrade(ctx, a, id)
	})
}

// HandleAddEvidence handles POST /api/trades/{id}/evidence.
func (h *Handler) HandleAddEvidence(w http.ResponseWriter, r *http.Request) {
	var req evidenceInput
	h.tradeAction(w, r, "add evidence", &req, func(ctx context.Context, a workflow.Actor, id primitive.ObjectID) (any, error) {
		return h.Svc.AddEvidence(ctx, a, id, req.evidence())
	})
}
