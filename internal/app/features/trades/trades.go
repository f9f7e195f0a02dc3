// internal/app/features/trades/trades.go
package trades

import (
	"context"
	"net/http"

	"github.com/dalemusser/waffle/pantry/query"
	uierrors "github.com/tradeya/tradeya/internal/app/features/errors"
	"github.com/tradeya/tradeya/internal/app/features/shared"
	tradestore "github.com/tradeya/tradeya/internal/app/store/trades"
	"github.com/tradeya/tradeya/internal/app/system/authz"
	"github.com/tradeya/tradeya/internal/app/system/inputval"
	"github.com/tradeya/tradeya/internal/app/system/paging"
	"github.com/tradeya/tradeya/internal/app/system/timeouts"
	"github.com/tradeya/tradeya/internal/app/workflow"
	"github.com/tradeya/tradeya/internal/domain/lifecycle"
	"github.com/tradeya/tradeya/internal/domain/models"
	"go.uber.org/zap"
)

type skillInput struct {
	Name  string `json:"name" validate:"required,max=60" label:"Skill name"`
	Level string `json:"level" validate:"omitempty,oneof=beginner intermediate expert" label:"Skill level"`
}

func toSkills(in []skillInput) []models.Skill {
	out := make([]models.Skill, 0, len(in))
	for _, s := range in {
		out = append(out, models.Skill{Name: s.Name, Level: s.Level})
	}
	return out
}

type createRequest struct {
	Title           string       `json:"title" validate:"required,max=120" label:"Title"`
	Description     string       `json:"description" validate:"max=5000" label:"Description"`
	Category        string       `json:"category" validate:"max=60" label:"Category"`
	OfferedSkills   []skillInput `json:"offered_skills" validate:"max=20,dive" label:"Offered skills"`
	RequestedSkills []skillInput `json:"requested_skills" validate:"max=20,dive" label:"Requested skills"`
}

// ServeList handles GET /api/trades.
//
// Filters: status, category, q (title prefix), skill, and mine=1 for trades
// the caller created or takes part in.
func (h *Handler) ServeList(w http.ResponseWriter, r *http.Request) {
	status := query.Get(r, "status")
	if status != "" && !lifecycle.ValidTradeStatus(status) {
		uierrors.RenderBadRequest(w, r, "Unknown trade status.")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	var (
		page paging.Page[models.Trade]
		err  error
	)
	if query.Get(r, "mine") != "" {
		_, _, uid, ok := authz.UserCtx(r)
		if !ok {
			uierrors.RenderUnauthorized(w, r, "Please sign in to continue.")
			return
		}
		page, err = h.Svc.Trades.ListForUser(ctx, uid, lifecycle.TradeStatus(status), paging.FromRequest(r))
	} else {
		page, err = h.Svc.Trades.List(ctx, tradestore.ListFilter{
			Status:   lifecycle.TradeStatus(status),
			Category: query.Get(r, "category"),
			Search:   query.Get(r, "q"),
			Skill:    query.Get(r, "skill"),
		}, paging.FromRequest(r))
	}
	if err != nil {
		h.ErrLog.LogServerError(w, r, "list trades", err, "")
		return
	}
	uierrors.WriteJSON(w, http.StatusOK, page)
}

// ServeGet handles GET /api/trades/{id}.
func (h *Handler) ServeGet(w http.ResponseWriter, r *http.Request) {
	id, ok := shared.IDParam(r, "id")
	if !ok {
		uierrors.RenderNotFound(w, r, "Trade not found.")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	t, err := h.Svc.GetTrade(ctx, id)
	if err != nil {
		h.ErrLog.HandleWorkflow(w, r, "get trade", err, zap.String("trade_id", id.Hex()))
		return
	}
	uierrors.WriteJSON(w, http.StatusOK, t)
}

// HandleCreate handles POST /api/trades.
func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var req createRequest
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

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	t, err := h.Svc.CreateTrade(ctx, a, workflow.TradeInput{
		Title:           req.Title,
		Description:     req.Description,
		Category:        req.Category,
		OfferedSkills:   toSkills(req.OfferedSkills),
		RequestedSkills: toSkills(req.RequestedSkills),
	})
	if err != nil {
		h.ErrLog.HandleWorkflow(w, r, "create trade", err)
		return
	}
	uierrors.WriteJSON(w, http.StatusCreated, t)
}
