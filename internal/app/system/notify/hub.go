// internal/app/system/notify/hub.go
package notify

import (
	"sync"

	"github.com/tradeya/tradeya/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// DefaultBuffer is the per-subscriber queue length.
const DefaultBuffer = 16

// Subscription receives the notifications of one user. C is closed when
// the subscription is removed from the hub.
type Subscription struct {
	UserID primitive.ObjectID
	C      <-chan models.Notification

	ch chan models.Notification
}

// Hub fans notifications out to the open realtime connections of their
// recipients. A slow subscriber whose buffer is full misses messages; the
// stored notification is still listed on its next fetch.
type Hub struct {
	mu     sync.RWMutex
	subs   map[primitive.ObjectID]map[*Subscription]struct{}
	buffer int
	log    *zap.Logger
	closed bool
}

// NewHub creates a hub. buffer <= 0 uses DefaultBuffer.
func NewHub(buffer int, logger *zap.Logger) *Hub {
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	return &Hub{
		subs:   make(map[primitive.ObjectID]map[*Subscription]struct{}),
		buffer: buffer,
		log:    logger,
	}
}

// Subscribe registers a new subscription for userID. It returns nil once
// the hub is closed.
func (h *Hub) Subscribe(userID primitive.ObjectID) *Subscription {
	ch := make(chan models.Notification, h.buffer)
	s := &Subscription{UserID: userID, C: ch, ch: ch}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil
	}
	set := h.subs[userID]
	if set == nil {
		set = make(map[*Subscription]struct{})
		h.subs[userID] = set
	}
	set[s] = struct{}{}
	return s
}

// Unsubscribe removes s and closes its channel. Calling it twice is safe.
func (h *Hub) Unsubscribe(s *Subscription) {
	if s == nil {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	set := h.subs[s.UserID]
	if _, ok := set[s]; !ok {
		return
	}
	delete(set, s)
	if len(set) == 0 {
		delete(h.subs, s.UserID)
	}
	close(s.ch)
}

// Publish delivers n to every subscription of its recipient without
// blocking. It returns how many subscriptions received it.
func (h *Hub) Publish(n models.Notification) int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	delivered := 0
	for s := range h.subs[n.RecipientID] {
		select {
		case s.ch <- n:
			delivered++
		default:
			h.log.Warn("notification stream buffer full; dropping",
				zap.String("user_id", n.RecipientID.Hex()),
				zap.String("notification_id", n.ID.Hex()))
		}
	}
	return delivered
}

// Subscribers reports the number of open subscriptions for userID.
func (h *Hub) Subscribers(userID primitive.ObjectID) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[userID])
}

// Close removes every subscription. Later Subscribe calls return nil.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	for id, set := range h.subs {
		for s := range set {
			close(s.ch)
		}
		delete(h.subs, id)
	}
}
