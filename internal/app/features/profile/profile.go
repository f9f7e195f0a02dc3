// internal/app/features/profile/profile.go
package profile

import (
	"context"
	"errors"
	"net/http"

	uierrors "github.com/tradeya/tradeya/internal/app/features/errors"
	"github.com/tradeya/tradeya/internal/app/features/shared"
	userstore "github.com/tradeya/tradeya/internal/app/store/users"
	"github.com/tradeya/tradeya/internal/app/system/authz"
	"github.com/tradeya/tradeya/internal/app/system/htmlsanitize"
	"github.com/tradeya/tradeya/internal/app/system/inputval"
	"github.com/tradeya/tradeya/internal/app/system/timeouts"
	"github.com/tradeya/tradeya/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

type skillInput struct {
	Name  string `json:"name" validate:"required,max=60" label:"Skill name"`
	Level string `json:"level" validate:"omitempty,oneof=beginner intermediate expert" label:"Skill level"`
}

// updateRequest is a partial update: nil fields keep their value.
type updateRequest struct {
	DisplayName   *string       `json:"display_name" validate:"omitempty,min=1,max=80" label:"Display name"`
	PhotoURL      *string       `json:"photo_url" validate:"omitempty,max=500" label:"Photo URL"`
	Bio           *string       `json:"bio" validate:"omitempty,max=2000" label:"Bio"`
	Location      *string       `json:"location" validate:"omitempty,max=120" label:"Location"`
	SkillsOffered *[]skillInput `json:"skills_offered" validate:"omitempty,max=30,dive" label:"Skills offered"`
	SkillsWanted  *[]skillInput `json:"skills_wanted" validate:"omitempty,max=30,dive" label:"Skills wanted"`
}

type passwordRequest struct {
	CurrentPassword string `json:"current_password" label:"Current password"`
	NewPassword     string `json:"new_password" validate:"required,min=8,max=72" label:"New password"`
}

// ServeProfile handles GET /api/profile.
func (h *Handler) ServeProfile(w http.ResponseWriter, r *http.Request) {
	u, ok := h.loadSelf(w, r)
	if !ok {
		return
	}
	uierrors.WriteJSON(w, http.StatusOK, u)
}

// HandleUpdate handles PATCH /api/profile.
func (h *Handler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	var req updateRequest
	if err := shared.DecodeJSON(w, r, &req); err != nil {
		uierrors.RenderBadRequest(w, r, err.Error())
		return
	}
	if res := inputval.Validate(req); res.HasErrors() {
		uierrors.RenderValidation(w, r, res)
		return
	}

	u, ok := h.loadSelf(w, r)
	if !ok {
		return
	}

	upd := userstore.ProfileUpdate{
		DisplayName:   u.DisplayName,
		PhotoURL:      u.PhotoURL,
		Bio:           u.Bio,
		Location:      u.Location,
		SkillsOffered: u.SkillsOffered,
		SkillsWanted:  u.SkillsWanted,
	}
	if req.DisplayName != nil {
		upd.DisplayName = htmlsanitize.PlainText(*req.DisplayName)
		if upd.DisplayName == "" {
			uierrors.RenderBadRequest(w, r, "Display name is required.")
			return
		}
	}
	if req.PhotoURL != nil {
		if *req.PhotoURL != "" && !inputval.IsValidHTTPURL(*req.PhotoURL) {
			uierrors.RenderBadRequest(w, r, "Photo URL must be an http or https URL.")
			return
		}
		upd.PhotoURL = *req.PhotoURL
	}
	if req.Bio != nil {
		upd.Bio = htmlsanitize.Sanitize(*req.Bio)
	}
	if req.Location != nil {
		upd.Location = htmlsanitize.PlainText(*req.Location)
	}
	if req.SkillsOffered != nil {
		upd.SkillsOffered = toSkills(*req.SkillsOffered)
	}
	if req.SkillsWanted != nil {
		upd.SkillsWanted = toSkills(*req.SkillsWanted)
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	updated, err := h.Users.UpdateProfile(ctx, u.ID, upd)
	if err != nil {
		h.ErrLog.LogServerError(w, r, "update profile", err, "", zap.String("user_id", u.ID.Hex()))
		return
	}

	if h.Sync != nil && (updated.DisplayName != u.DisplayName || updated.PhotoURL != u.PhotoURL) {
		h.Sync.Enqueue(updated.Ref())
	}
	uierrors.WriteJSON(w, http.StatusOK, updated)
}

// HandleChangePassword handles POST /api/profile/password. Accounts that
// only sign in with Google may set a first password without a current one.
func (h *Handler) HandleChangePassword(w http.ResponseWriter, r *http.Request) {
	var req passwordRequest
	if err := shared.DecodeJSON(w, r, &req); err != nil {
		uierrors.RenderBadRequest(w, r, err.Error())
		return
	}
	if res := inputval.Validate(req); res.HasErrors() {
		uierrors.RenderValidation(w, r, res)
		return
	}

	u, ok := h.loadSelf(w, r)
	if !ok {
		return
	}
	if u.PasswordHash != nil {
		if bcrypt.CompareHashAndPassword([]byte(*u.PasswordHash), []byte(req.CurrentPassword)) != nil {
			uierrors.RenderForbidden(w, r, "Current password is incorrect.")
			return
		}
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.NewPassword), h.BcryptCost)
	if err != nil {
		h.ErrLog.LogServerError(w, r, "bcrypt hash", err, "")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	if err := h.Users.SetPasswordHash(ctx, u.ID, string(hash)); err != nil {
		h.ErrLog.LogServerError(w, r, "set password", err, "", zap.String("user_id", u.ID.Hex()))
		return
	}
	h.AuditLog.PasswordChanged(ctx, r, u.ID)
	w.WriteHeader(http.StatusNoContent)
}

// loadSelf loads the signed-in user. It has written a response when ok is false.
func (h *Handler) loadSelf(w http.ResponseWriter, r *http.Request) (*models.User, bool) {
	_, _, uid, ok := authz.UserCtx(r)
	if !ok {
		uierrors.RenderUnauthorized(w, r, "Please sign in to continue.")
		return nil, false
	}
	return h.loadUser(w, r, uid)
}

func (h *Handler) loadUser(w http.ResponseWriter, r *http.Request, id primitive.ObjectID) (*models.User, bool) {
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	u, err := h.Users.GetByID(ctx, id)
	if errors.Is(err, userstore.ErrNotFound) {
		uierrors.RenderNotFound(w, r, "User not found.")
		return nil, false
	}
	if err != nil {
		h.ErrLog.LogServerError(w, r, "load user", err, "", zap.String("user_id", id.Hex()))
		return nil, false
	}
	return u, true
}

func toSkills(in []skillInput) []models.Skill {
	out := make([]models.Skill, 0, len(in))
	for _, s := range in {
		name := htmlsanitize.PlainText(s.Name)
		if name == "" {
			continue
		}
		out = append(out, models.Skill{Name: name, Level: s.Level})
	}
	return out
}
