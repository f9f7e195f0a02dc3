// internal/app/features/collaborations/handler.go
package collaborations

import (
	"context"
	"net/http"
	"slices"

	"github.com/dalemusser/waffle/pantry/query"
	uierrors "github.com/tradeya/tradeya/internal/app/features/errors"
	"github.com/tradeya/tradeya/internal/app/features/shared"
	"github.com/tradeya/tradeya/internal/app/policy/collabpolicy"
	collabstore "github.com/tradeya/tradeya/internal/app/store/collaborations"
	"github.com/tradeya/tradeya/internal/app/system/authz"
	"github.com/tradeya/tradeya/internal/app/system/inputval"
	"github.com/tradeya/tradeya/internal/app/system/paging"
	"github.com/tradeya/tradeya/internal/app/system/timeouts"
	"github.com/tradeya/tradeya/internal/app/workflow"
	"github.com/tradeya/tradeya/internal/domain/lifecycle"
	"github.com/tradeya/tradeya/internal/domain/models"
	"go.uber.org/zap"
)

// Handler serves the collaboration, role and application API.
type Handler struct {
	Svc    *workflow.Service
	ErrLog *uierrors.ErrorLogger
	Log    *zap.Logger
}

func NewHandler(svc *workflow.Service, errLog *uierrors.ErrorLogger, logger *zap.Logger) *Handler {
	return &Handler{Svc: svc, ErrLog: errLog, Log: logger}
}

type skillInput struct {
	Name  string `json:"name" validate:"required,max=60" label:"Skill name"`
	Level string `json:"level" validate:"omitempty,oneof=beginner intermediate expert" label:"Skill level"`
}

type roleRequest struct {
	Title          string       `json:"title" validate:"required,max=120" label:"Role title"`
	Description    string       `json:"description" validate:"max=2000" label:"Role description"`
	RequiredSkills []skillInput `json:"required_skills" validate:"max=20,dive" label:"Required skills"`
}

func (rr roleRequest) input() workflow.RoleInput {
	in := workflow.RoleInput{Title: rr.Title, Description: rr.Description}
	for _, s := range rr.RequiredSkills {
		in.RequiredSkills = append(in.RequiredSkills, models.Skill{Name: s.Name, Level: s.Level})
	}
	return in
}

type createRequest struct {
	Title       string        `json:"title" validate:"required,max=120" label:"Title"`
	Description string        `json:"description" validate:"max=5000" label:"Description"`
	Roles       []roleRequest `json:"roles" validate:"max=20,dive" label:"Roles"`
}

// ServeList handles GET /api/collaborations.
//
// Filters: status, q (title prefix), open_roles=1, and mine=created or
// mine=joined for the caller's own collaborations.
func (h *Handler) ServeList(w http.ResponseWriter, r *http.Request) {
	f := collabstore.ListFilter{
		Status:    lifecycle.CollaborationStatus(query.Get(r, "status")),
		Search:    query.Get(r, "q"),
		OpenRoles: query.Get(r, "open_roles") != "",
	}
	if f.Status != "" && !slices.Contains(lifecycle.CollaborationStatuses, f.Status) {
		uierrors.RenderBadRequest(w, r, "Unknown collaboration status.")
		return
	}
	if mine := query.Get(r, "mine"); mine != "" {
		_, _, uid, ok := authz.UserCtx(r)
		if !ok {
			uierrors.RenderUnauthorized(w, r, "Please sign in to continue.")
			return
		}
		switch mine {
		case "created":
			f.CreatorID = &uid
		case "joined":
			f.ParticipantID = &uid
		default:
			uierrors.RenderBadRequest(w, r, "mine must be created or joined.")
			return
		}
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	page, err := h.Svc.Collabs.List(ctx, f, paging.FromRequest(r))
	if err != nil {
		h.ErrLog.LogServerError(w, r, "list collaborations", err, "")
		return
	}
	uierrors.WriteJSON(w, http.StatusOK, page)
}

// ServeGet handles GET /api/collaborations/{id}.
func (h *Handler) ServeGet(w http.ResponseWriter, r *http.Request) {
	id, ok := shared.IDParam(r, "id")
	if !ok {
		uierrors.RenderNotFound(w, r, "Collaboration not found.")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	c, err := h.Svc.GetCollaboration(ctx, id)
	if err != nil {
		h.ErrLog.HandleWorkflow(w, r, "get collaboration", err, zap.String("collaboration_id", id.Hex()))
		return
	}
	uierrors.WriteJSON(w, http.StatusOK, c)
}

// HandleCreate handles POST /api/collaborations.
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

	in := workflow.CollaborationInput{Title: req.Title, Description: req.Description}
	for _, rr := range req.Roles {
		in.Roles = append(in.Roles, rr.input())
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	c, err := h.Svc.CreateCollaboration(ctx, a, in)
	if err != nil {
		h.ErrLog.HandleWorkflow(w, r, "create collaboration", err)
		return
	}
	uierrors.WriteJSON(w, http.StatusCreated, c)
}

// ServeApplications handles GET /api/collaborations/{id}/applications
// (optional ?role=). The creator and admins see everything; applicants
// see their own.
func (h *Handler) ServeApplications(w http.ResponseWriter, r *http.Request) {
	id, ok := shared.IDParam(r, "id")
	if !ok {
		uierrors.RenderNotFound(w, r, "Collaboration not found.")
		return
	}
	_, _, uid, _ := authz.UserCtx(r)

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	c, err := h.Svc.GetCollaboration(ctx, id)
	if err != nil {
		h.ErrLog.HandleWorkflow(w, r, "get collaboration", err, zap.String("collaboration_id", id.Hex()))
		return
	}
	apps, err := h.Svc.Applications.ListByCollaboration(ctx, id, query.Get(r, "role"), "")
	if err != nil {
		h.ErrLog.LogServerError(w, r, "list applications", err, "", zap.String("collaboration_id", id.Hex()))
		return
	}
	if !collabpolicy.CanSeeApplications(*c, uid, authz.IsAdmin(r)) {
		own := apps[:0]
		for _, a := range apps {
			if a.ApplicantID == uid {
				own = append(own, a)
			}
		}
		apps = own
	}
	uierrors.WriteJSON(w, http.StatusOK, shared.Items(apps))
}

// ServeMyApplications handles GET /api/applications.
func (h *Handler) ServeMyApplications(w http.ResponseWriter, r *http.Request) {
	_, _, uid, ok := authz.UserCtx(r)
	if !ok {
		uierrors.RenderUnauthorized(w, r, "Please sign in to continue.")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	page, err := h.Svc.Applications.ListByApplicant(ctx, uid, paging.FromRequest(r))
	if err != nil {
		h.ErrLog.LogServerError(w, r, "list my applications", err, "")
		return
	}
	uierrors.WriteJSON(w, http.StatusOK, page)
}
