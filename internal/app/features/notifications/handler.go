// internal/app/features/notifications/handler.go
package notifications

import (
	"context"
	"errors"
	"net/http"

	"github.com/dalemusser/waffle/pantry/query"
	uierrors "github.com/tradeya/tradeya/internal/app/features/errors"
	"github.com/tradeya/tradeya/internal/app/features/shared"
	notificationstore "github.com/tradeya/tradeya/internal/app/store/notifications"
	"github.com/tradeya/tradeya/internal/app/system/authz"
	"github.com/tradeya/tradeya/internal/app/system/notify"
	"github.com/tradeya/tradeya/internal/app/system/paging"
	"github.com/tradeya/tradeya/internal/app/system/timeouts"
	"github.com/tradeya/tradeya/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// Handler serves the signed-in user's notifications.
type Handler struct {
	Store  *notificationstore.Store
	Hub    *notify.Hub
	ErrLog *uierrors.ErrorLogger
	Log    *zap.Logger

	// AllowedOrigins lists extra origins that may open the stream. The
	// request's own host is always allowed.
	AllowedOrigins []string
}

func NewHandler(db *mongo.Database, hub *notify.Hub, errLog *uierrors.ErrorLogger, logger *zap.Logger, allowedOrigins ...string) *Handler {
	return &Handler{
		Store:          notificationstore.New(db),
		Hub:            hub,
		ErrLog:         errLog,
		Log:            logger,
		AllowedOrigins: allowedOrigins,
	}
}

func category(w http.ResponseWriter, r *http.Request) (string, bool) {
	c := query.Get(r, "category")
	if c != "" && !models.IsValidNotificationCategory(c) {
		uierrors.RenderBadRequest(w, r, "Unknown notification category.")
		return "", false
	}
	return c, true
}

// ServeList handles GET /api/notifications?category=&unread=1.
func (h *Handler) ServeList(w http.ResponseWriter, r *http.Request) {
	cat, ok := category(w, r)
	if !ok {
		return
	}
	_, _, uid, _ := authz.UserCtx(r)

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	page, err := h.Store.List(ctx, uid, notificationstore.ListFilter{
		Category:   cat,
		UnreadOnly: query.Get(r, "unread") != "",
	}, paging.FromRequest(r))
	if err != nil {
		h.ErrLog.LogServerError(w, r, "list notifications", err, "")
		return
	}
	uierrors.WriteJSON(w, http.StatusOK, page)
}

type countResponse struct {
	Total      int64            `json:"total"`
	ByCategory map[string]int64 `json:"by_category"`
}

// ServeCount handles GET /api/notifications/count.
func (h *Handler) ServeCount(w http.ResponseWriter, r *http.Request) {
	_, _, uid, _ := authz.UserCtx(r)

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	counts, err := h.Store.CountUnread(ctx, uid)
	if err != nil {
		h.ErrLog.LogServerError(w, r, "count notifications", err, "")
		return
	}
	total := counts[""]
	delete(counts, "")
	uierrors.WriteJSON(w, http.StatusOK, countResponse{Total: total, ByCategory: counts})
}

// HandleRead handles POST /api/notifications/{id}/read.
func (h *Handler) HandleRead(w http.ResponseWriter, r *http.Request) {
	h.one(w, r, "mark notification read", h.Store.MarkRead)
}

// HandleDelete handles DELETE /api/notifications/{id}.
func (h *Handler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	h.one(w, r, "delete notification", h.Store.Delete)
}

func (h *Handler) one(w http.ResponseWriter, r *http.Request, name string, fn func(context.Context, primitive.ObjectID, primitive.ObjectID) error) {
	id, ok := shared.IDParam(r, "id")
	if !ok {
		uierrors.RenderNotFound(w, r, "Notification not found.")
		return
	}
	_, _, uid, _ := authz.UserCtx(r)

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	if err := fn(ctx, uid, id); err != nil {
		if errors.Is(err, notificationstore.ErrNotFound) {
			uierrors.RenderNotFound(w, r, "Notification not found.")
			return
		}
		h.ErrLog.LogServerError(w, r, name, err, "", zap.String("notification_id", id.Hex()))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleReadAll handles POST /api/notifications/read-all?category=.
func (h *Handler) HandleReadAll(w http.ResponseWriter, r *http.Request) {
	cat, ok := category(w, r)
	if !ok {
		return
	}
	_, _, uid, _ := authz.UserCtx(r)

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	n, err := h.Store.MarkAllRead(ctx, uid, cat)
	if err != nil {
		h.ErrLog.LogServerError(w, r, "mark all notifications read", err, "")
		return
	}
	uierrors.WriteJSON(w, http.StatusOK, map[string]int64{"updated": n})
}
