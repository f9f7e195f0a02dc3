// internal/app/features/challenges/handler.go
package challenges

import (
	"context"
	"net/http"
	"time"

	"github.com/dalemusser/waffle/pantry/query"
	uierrors "github.com/tradeya/tradeya/internal/app/features/errors"
	"github.com/tradeya/tradeya/internal/app/features/shared"
	challengestore "github.com/tradeya/tradeya/internal/app/store/challenges"
	"github.com/tradeya/tradeya/internal/app/system/authz"
	"github.com/tradeya/tradeya/internal/app/system/inputval"
	"github.com/tradeya/tradeya/internal/app/system/paging"
	"github.com/tradeya/tradeya/internal/app/system/timeouts"
	"github.com/tradeya/tradeya/internal/app/workflow"
	"github.com/tradeya/tradeya/internal/domain/lifecycle"
	"github.com/tradeya/tradeya/internal/domain/models"
	"go.uber.org/zap"
)

// Handler serves the challenge API.
type Handler struct {
	Svc    *workflow.Service
	ErrLog *uierrors.ErrorLogger
	Log    *zap.Logger
}

func NewHandler(svc *workflow.Service, errLog *uierrors.ErrorLogger, logger *zap.Logger) *Handler {
	return &Handler{Svc: svc, ErrLog: errLog, Log: logger}
}

type createRequest struct {
	Title       string     `json:"title" validate:"required,max=120" label:"Title"`
	Description string     `json:"description" validate:"max=5000" label:"Description"`
	Category    string     `json:"category" validate:"max=60" label:"Category"`
	Difficulty  string     `json:"difficulty" validate:"omitempty,oneof=beginner intermediate advanced" label:"Difficulty"`
	XPReward    int64      `json:"xp_reward" validate:"required,min=1,max=10000" label:"XP reward"`
	StartsAt    *time.Time `json:"starts_at"`
	EndsAt      *time.Time `json:"ends_at"`
}

type submitRequest struct {
	Text string `json:"text" validate:"max=5000" label:"Submission"`
	URL  string `json:"url" validate:"omitempty,httpurl" label:"Link"`
}

// ServeList handles GET /api/challenges.
//
// Only active challenges are listed unless status=closed or status=all.
// Other filters: category, difficulty, q (title prefix).
func (h *Handler) ServeList(w http.ResponseWriter, r *http.Request) {
	status := query.Get(r, "status")
	switch status {
	case "":
		status = models.ChallengeActive
	case "all":
		status = ""
	case models.ChallengeActive, models.ChallengeClosed:
	default:
		uierrors.RenderBadRequest(w, r, "Unknown challenge status.")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	page, err := h.Svc.Challenges.List(ctx, challengestore.ListFilter{
		Status:     status,
		Category:   query.Get(r, "category"),
		Difficulty: query.Get(r, "difficulty"),
		Search:     query.Get(r, "q"),
	}, paging.FromRequest(r))
	if err != nil {
		h.ErrLog.LogServerError(w, r, "list challenges", err, "")
		return
	}
	uierrors.WriteJSON(w, http.StatusOK, page)
}

// ServeGet handles GET /api/challenges/{id}. Signed-in callers also get
// their own participation, if any.
func (h *Handler) ServeGet(w http.ResponseWriter, r *http.Request) {
	id, ok := shared.IDParam(r, "id")
	if !ok {
		uierrors.RenderNotFound(w, r, "Challenge not found.")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	c, err := h.Svc.GetChallenge(ctx, id)
	if err != nil {
		h.ErrLog.HandleWorkflow(w, r, "get challenge", err, zap.String("challenge_id", id.Hex()))
		return
	}

	out := struct {
		*models.Challenge
		Participation *models.ChallengeParticipant `json:"participation,omitempty"`
	}{Challenge: c}
	if _, _, uid, ok := authz.UserCtx(r); ok {
		if p, err := h.Svc.Participants.Get(ctx, id, uid); err == nil {
			out.Participation = p
		}
	}
	uierrors.WriteJSON(w, http.StatusOK, out)
}

// HandleCreate handles POST /api/challenges.
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

	in := workflow.ChallengeInput{
		Title:       req.Title,
		Description: req.Description,
		Category:    req.Category,
		Difficulty:  req.Difficulty,
		XPReward:    req.XPReward,
		EndsAt:      req.EndsAt,
	}
	if req.StartsAt != nil {
		in.StartsAt = *req.StartsAt
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	c, err := h.Svc.CreateChallenge(ctx, a, in)
	if err != nil {
		h.ErrLog.HandleWorkflow(w, r, "create challenge", err)
		return
	}
	uierrors.WriteJSON(w, http.StatusCreated, c)
}

// ServeMine handles GET /api/challenges/mine.
func (h *Handler) ServeMine(w http.ResponseWriter, r *http.Request) {
	_, _, uid, _ := authz.UserCtx(r)

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	page, err := h.Svc.Participants.ListByUser(ctx, uid, paging.FromRequest(r))
	if err != nil {
		h.ErrLog.LogServerError(w, r, "list participations", err, "")
		return
	}
	uierrors.WriteJSON(w, http.StatusOK, page)
}

// ServeParticipants handles GET /api/challenges/{id}/participants, with an
// optional status filter. Admin only.
func (h *Handler) ServeParticipants(w http.ResponseWriter, r *http.Request) {
	id, ok := shared.IDParam(r, "id")
	if !ok {
		uierrors.RenderNotFound(w, r, "Challenge not found.")
		return
	}
	status := lifecycle.ParticipationStatus(query.Get(r, "status"))
	if status != "" && !validParticipation(status) {
		uierrors.RenderBadRequest(w, r, "Unknown participation status.")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	if _, err := h.Svc.GetChallenge(ctx, id); err != nil {
		h.ErrLog.HandleWorkflow(w, r, "get challenge", err, zap.String("challenge_id", id.Hex()))
		return
	}
	page, err := h.Svc.Participants.ListByChallenge(ctx, id, status, paging.FromRequest(r))
	if err != nil {
		h.ErrLog.LogServerError(w, r, "list participants", err, "")
		return
	}
	uierrors.WriteJSON(w, http.StatusOK, page)
}

func validParticipation(s lifecycle.ParticipationStatus) bool {
	for _, v := range lifecycle.ParticipationStatuses {
		if v == s {
			return true
		}
	}
	return false
}
