// internal/app/features/logout/handler.go
package logout

import (
	"net/http"

	"github.com/tradeya/tradeya/internal/app/system/auditlog"
	"github.com/tradeya/tradeya/internal/app/system/auth"
	"go.uber.org/zap"
)

type Handler struct {
	Log        *zap.Logger
	SessionMgr *auth.SessionManager
	AuditLog   *auditlog.Logger
}

func NewHandler(sessionMgr *auth.SessionManager, audit *auditlog.Logger, logger *zap.Logger) *Handler {
	return &Handler{
		Log:        logger,
		SessionMgr: sessionMgr,
		AuditLog:   audit,
	}
}

// ServeLogout handles POST /auth/logout. The cookie is cleared even when
// the session could not be decoded.
func (h *Handler) ServeLogout(w http.ResponseWriter, r *http.Request) {
	userID := ""
	if u, ok := auth.CurrentUser(r); ok {
		userID = u.ID
	}

	if err := h.SessionMgr.Logout(w, r); err != nil {
		h.Log.Error("logout: save session", zap.Error(err))
	}
	if userID != "" {
		h.AuditLog.Logout(r.Context(), r, userID)
	}

	w.WriteHeader(http.StatusNoContent)
}
