// internal/app/features/notifications/stream.go
package notifications

import (
	"context"
	"net/http"
	"net/url"
	"slices"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	uierrors "github.com/tradeya/tradeya/internal/app/features/errors"
	"github.com/tradeya/tradeya/internal/app/system/authz"
	"github.com/tradeya/tradeya/internal/app/system/metrics"
	"github.com/tradeya/tradeya/internal/app/system/timeouts"
	"github.com/tradeya/tradeya/internal/domain/models"
	"go.uber.org/zap"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
	// Clients only send control frames.
	maxReadSize = 512
)

// StreamMessage is one frame sent on the notification stream.
type StreamMessage struct {
	Type         string               `json:"type"` // unread | notification
	Unread       *int64               `json:"unread,omitempty"`
	Notification *models.Notification `json:"notification,omitempty"`
}

func (h *Handler) upgrader() websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     h.checkOrigin,
	}
}

func (h *Handler) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	if strings.EqualFold(u.Host, r.Host) {
		return true
	}
	return slices.ContainsFunc(h.AllowedOrigins, func(o string) bool {
		return strings.EqualFold(strings.TrimRight(o, "/"), origin)
	})
}

// ServeStream handles GET /api/notifications/stream. It upgrades to a
// websocket, sends the unread count, then pushes each new notification for
// the signed-in user until either side closes.
func (h *Handler) ServeStream(w http.ResponseWriter, r *http.Request) {
	_, _, uid, _ := authz.UserCtx(r)
	if h.Hub == nil {
		uierrors.RenderServiceUnavailable(w, r, "Live notifications are not available.")
		return
	}

	up := h.upgrader()
	conn, err := up.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the error response.
		h.Log.Debug("notification stream upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	sub := h.Hub.Subscribe(uid)
	if sub == nil {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"), time.Now().Add(writeWait))
		return
	}
	defer h.Hub.Unsubscribe(sub)

	metrics.StreamOpened()
	defer metrics.StreamClosed()

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	counts, err := h.Store.CountUnread(ctx, uid)
	cancel()
	if err != nil {
		h.Log.Warn("notification stream unread count failed", zap.String("user_id", uid.Hex()), zap.Error(err))
	} else {
		total := counts[""]
		if err := write(conn, StreamMessage{Type: "unread", Unread: &total}); err != nil {
			return
		}
	}

	done := make(chan struct{})
	go readPump(conn, done)

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case n, ok := <-sub.C:
			if !ok {
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, ""), time.Now().Add(writeWait))
				return
			}
			if err := write(conn, StreamMessage{Type: "notification", Notification: &n}); err != nil {
				h.Log.Debug("notification stream write failed", zap.String("user_id", uid.Hex()), zap.Error(err))
				return
			}
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		case <-done:
			return
		}
	}
}

func write(conn *websocket.Conn, m StreamMessage) error {
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteJSON(m)
}

// readPump discards client frames so control frames are processed, and
// closes done when the connection ends.
func readPump(conn *websocket.Conn, done chan<- struct{}) {
	defer close(done)
	conn.SetReadLimit(maxReadSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}
