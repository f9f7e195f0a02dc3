// internal/app/features/trades/proposals.go
package trades

import (
	"context"
	"net/http"

	uierrors "github.com/tradeya/tradeya/internal/app/features/errors"
	"github.com/tradeya/tradeya/internal/app/features/shared"
	"github.com/tradeya/tradeya/internal/app/policy/tradepolicy"
	"github.com/tradeya/tradeya/internal/app/system/authz"
	"github.com/tradeya/tradeya/internal/app/system/inputval"
	"github.com/tradeya/tradeya/internal/app/system/paging"
	"github.com/tradeya/tradeya/internal/app/system/timeouts"
	"github.com/tradeya/tradeya/internal/app/workflow"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

type proposeRequest struct {
	Message       string       `json:"message" validate:"required,max=2000" label:"Message"`
	OfferedSkills []skillInput `json:"offered_skills" validate:"max=20,dive" label:"Offered skills"`
}

// ServeProposals handles GET /api/trades/{id}/proposals. The trade's
// creator and admins see every proposal; anyone else sees only their own.
func (h *Handler) ServeProposals(w http.ResponseWriter, r *http.Request) {
	id, ok := shared.IDParam(r, "id")
	if !ok {
		uierrors.RenderNotFound(w, r, "Trade not found.")
		return
	}
	_, _, uid, _ := authz.UserCtx(r)

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	t, err := h.Svc.GetTrade(ctx, id)
	if err != nil {
		h.ErrLog.HandleWorkflow(w, r, "get trade", err, zap.String("trade_id", id.Hex()))
		return
	}
	all, err := h.Svc.Proposals.ListByTrade(ctx, id, "")
	if err != nil {
		h.ErrLog.LogServerError(w, r, "list proposals", err, "", zap.String("trade_id", id.Hex()))
		return
	}

	if !tradepolicy.CanSeeProposals(*t, uid, authz.IsAdmin(r)) {
		own := all[:0]
		for _, p := range all {
			if p.ProposerID == uid {
				own = append(own, p)
			}
		}
		all = own
	}
	uierrors.WriteJSON(w, http.StatusOK, shared.Items(all))
}

// ServeMine handles GET /api/proposals: the caller's proposals, newest first.
func (h *Handler) ServeMine(w http.ResponseWriter, r *http.Request) {
	_, _, uid, ok := authz.UserCtx(r)
	if !ok {
		uierrors.RenderUnauthorized(w, r, "Please sign in to continue.")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	page, err := h.Svc.Proposals.ListByProposer(ctx, uid, paging.FromRequest(r))
	if err != nil {
		h.ErrLog.LogServerError(w, r, "list my proposals", err, "")
		return
	}
	uierrors.WriteJSON(w, http.StatusOK, page)
}

// HandlePropose handles POST /api/trades/{id}/proposals.
func (h *Handler) HandlePropose(w http.ResponseWriter, r *http.Request) {
	id, ok := shared.IDParam(r, "id")
	if !ok {
		uierrors.RenderNotFound(w, r, "Trade not found.")
		return
	}
	var req proposeRequest
	if err := shared.DecodeJSON(w, r, &req); err != nil {
		uierrors.RenderBadRequest(w, r, err.Error())
		return
	}
	if res := inputval.Validate(req); res.HasErrors() {
		uierrors.RenderValidation(w, r, res)
		return
	}
	a, ok := shared.Actor(w, r, h.Svc, h.ErrLog)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	p, err := h.Svc.Propose(ctx, a, id, workflow.ProposalInput{
		Message:       req.Message,
		OfferedSkills: toSkills(req.OfferedSkills),
	})
	if err != nil {
		h.ErrLog.HandleWorkflow(w, r, "propose", err, zap.String("trade_id", id.Hex()))
		return
	}
	uierrors.WriteJSON(w, http.StatusCreated, p)
}

// proposalAction runs fn on the proposal named by the {pid} URL parameter.
func (h *Handler) proposalAction(name string, fn func(ctx context.Context, a workflow.Actor, id primitive.ObjectID) (any, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := shared.IDParam(r, "pid")
		if !ok {
			uierrors.RenderNotFound(w, r, "Proposal not found.")
			return
		}
		a, ok := shared.Actor(w, r, h.Svc, h.ErrLog)
		if !ok {
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
		defer cancel()

		out, err := fn(ctx, a, id)
		if err != nil {
			h.ErrLog.HandleWorkflow(w, r, name, err, zap.String("proposal_id", id.Hex()))
			return
		}
		uierrors.WriteJSON(w, http.StatusOK, out)
	}
}

// HandleAccept handles POST /api/proposals/{pid}/accept and returns the
// updated trade.
func (h *Handler) HandleAccept(w http.ResponseWriter, r *http.Request) {
	h.proposalAction("accept proposal", func(ctx context.Context, a workflow.Actor, id primitive.ObjectID) (any, error) {
		return h.Svc.AcceptProposal(ctx, a, id)
	})(w, r)
}

// HandleReject handles POST /api/proposals/{pid}/reject.
func (h *Handler) HandleReject(w http.ResponseWriter, r *http.Request) {
	h.proposalAction("reject proposal", func(ctx context.Context, a workflow.Actor, id primitive.ObjectID) (any, error) {
		return h.Svc.RejectProposal(ctx, a, id)
	})(w, r)
}

// HandleWithdraw handles POST /api/proposals/{pid}/withdraw.
func (h *Handler) HandleWithdraw(w http.ResponseWriter, r *http.Request) {
	h.proposalAction("withdraw proposal", func(ctx context.Context, a workflow.Actor, id primitive.ObjectID) (any, error) {
		return h.Svc.WithdrawProposal(ctx, a, id)
	})(w, r)
}
