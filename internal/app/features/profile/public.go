// internal/app/features/profile/public.go
package profile

import (
	"context"
	"net/http"
	"strconv"
	"time"

	uierrors "github.com/tradeya/tradeya/internal/app/features/errors"
	"github.com/tradeya/tradeya/internal/app/features/shared"
	"github.com/tradeya/tradeya/internal/app/system/authz"
	"github.com/tradeya/tradeya/internal/app/system/paging"
	"github.com/tradeya/tradeya/internal/app/system/timeouts"
	"github.com/tradeya/tradeya/internal/domain/lifecycle"
	"github.com/tradeya/tradeya/internal/domain/models"
	"go.uber.org/zap"
)

const (
	defaultLeaderboard = 25
	maxLeaderboard     = 100
	recentLogins       = 10
)

// publicProfile is what other users may see. Email, auth method and role
// are left out.
type publicProfile struct {
	ID            string         `json:"id"`
	DisplayName   string         `json:"display_name"`
	PhotoURL      string         `json:"photo_url"`
	Bio           string         `json:"bio"`
	Location      string         `json:"location"`
	SkillsOffered []models.Skill `json:"skills_offered"`
	SkillsWanted  []models.Skill `json:"skills_wanted"`
	XP            int64          `json:"xp"`
	Level         int            `json:"level"`
	NextLevelXP   int64          `json:"next_level_xp"`
	MemberSince   time.Time      `json:"member_since"`
}

func toPublic(u models.User) publicProfile {
	return publicProfile{
		ID:            u.ID.Hex(),
		DisplayName:   u.DisplayName,
		PhotoURL:      u.PhotoURL,
		Bio:           u.Bio,
		Location:      u.Location,
		SkillsOffered: u.SkillsOffered,
		SkillsWanted:  u.SkillsWanted,
		XP:            u.XP,
		Level:         u.Level,
		NextLevelXP:   lifecycle.XPForLevel(u.Level + 1),
		MemberSince:   u.CreatedAt,
	}
}

// ServePublic handles GET /api/users/{id}. Disabled accounts are hidden
// from everyone but admins.
func (h *Handler) ServePublic(w http.ResponseWriter, r *http.Request) {
	id, ok := shared.IDParam(r, "id")
	if !ok {
		uierrors.RenderNotFound(w, r, "User not found.")
		return
	}
	u, ok := h.loadUser(w, r, id)
	if !ok {
		return
	}
	if u.Status == models.UserDisabled && !authz.IsAdmin(r) {
		uierrors.RenderNotFound(w, r, "User not found.")
		return
	}
	uierrors.WriteJSON(w, http.StatusOK, toPublic(*u))
}

// ServeLeaderboard handles GET /api/leaderboard?limit=N.
func (h *Handler) ServeLeaderboard(w http.ResponseWriter, r *http.Request) {
	limit := defaultLeaderboard
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 1 {
			uierrors.RenderBadRequest(w, r, "limit must be a positive number.")
			return
		}
		limit = min(n, maxLeaderboard)
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	users, err := h.Users.Leaderboard(ctx, int64(limit))
	if err != nil {
		h.ErrLog.LogServerError(w, r, "leaderboard", err, "")
		return
	}

	type entry struct {
		Rank int `json:"rank"`
		publicProfile
	}
	out := make([]entry, 0, len(users))
	for i, u := range users {
		out = append(out, entry{Rank: i + 1, publicProfile: toPublic(u)})
	}
	uierrors.WriteJSON(w, http.StatusOK, map[string]any{"items": out})
}

// ServeXP handles GET /api/profile/xp: the signed-in user's XP ledger,
// newest first.
func (h *Handler) ServeXP(w http.ResponseWriter, r *http.Request) {
	_, _, uid, ok := authz.UserCtx(r)
	if !ok {
		uierrors.RenderUnauthorized(w, r, "Please sign in to continue.")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	page, err := h.XP.ListByUser(ctx, uid, paging.FromRequest(r))
	if err != nil {
		h.ErrLog.LogServerError(w, r, "list xp", err, "", zap.String("user_id", uid.Hex()))
		return
	}
	uierrors.WriteJSON(w, http.StatusOK, page)
}

// ServeLogins handles GET /api/profile/logins: recent sign-ins so users can
// spot unfamiliar activity.
func (h *Handler) ServeLogins(w http.ResponseWriter, r *http.Request) {
	_, _, uid, ok := authz.UserCtx(r)
	if !ok {
		uierrors.RenderUnauthorized(w, r, "Please sign in to continue.")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	recs, err := h.Logins.ListRecentByUser(ctx, uid, recentLogins)
	if err != nil {
		h.ErrLog.LogServerError(w, r, "list logins", err, "", zap.String("user_id", uid.Hex()))
		return
	}
	uierrors.WriteJSON(w, http.StatusOK, map[string]any{"items": recs})
}
