// internal/app/features/dashboard/stats.go
package dashboard

import (
	"context"
	"net/http"
	"time"

	uierrors "github.com/tradeya/tradeya/internal/app/features/errors"
	metricsstore "github.com/tradeya/tradeya/internal/app/store/metrics"
	"github.com/tradeya/tradeya/internal/app/system/authz"
	"github.com/tradeya/tradeya/internal/domain/models"
	"go.uber.org/zap"
)

type leader struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
	XP          int64  `json:"xp"`
	Level       int    `json:"level"`
}

type statsData struct {
	metricsstore.Counts
	LoginsLast24h int64     `json:"logins_last_24h"`
	TopUsers      []leader  `json:"top_users"`
	GeneratedAt   time.Time `json:"generated_at"`
}

// ServeStats handles GET /api/admin/stats.
func (h *Handler) ServeStats(w http.ResponseWriter, r *http.Request) {
	_, uname, _, _ := authz.UserCtx(r)

	ctx, cancel := context.WithTimeout(r.Context(), dashboardTimeout)
	defer cancel()

	now := time.Now().UTC()
	data := statsData{
		Counts:      metricsstore.FetchPlatformCounts(ctx, h.DB),
		TopUsers:    []leader{},
		GeneratedAt: now,
	}

	if n, err := h.Logins.CountSince(ctx, now.Add(-24*time.Hour)); err != nil {
		h.Log.Warn("login count failed", zap.Error(err))
	} else {
		data.LoginsLast24h = n
	}

	top, err := h.Users.Leaderboard(ctx, leaderboardSize)
	if err != nil {
		h.Log.Warn("leaderboard lookup failed", zap.Error(err))
	}
	for _, u := range top {
		data.TopUsers = append(data.TopUsers, leaderFrom(u))
	}

	h.Log.Debug("admin stats served", zap.String("user", uname))
	uierrors.WriteJSON(w, http.StatusOK, data)
}

func leaderFrom(u models.User) leader {
	return leader{ID: u.ID.Hex(), DisplayName: u.DisplayName, XP: u.XP, Level: u.Level}
}
