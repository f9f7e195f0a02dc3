// internal/app/system/notify/dispatcher.go
package notify

import (
	"context"
	"time"

	notificationstore "github.com/tradeya/tradeya/internal/app/store/notifications"
	"github.com/tradeya/tradeya/internal/app/system/metrics"
	"github.com/tradeya/tradeya/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// Input describes one notification to send.
type Input struct {
	RecipientID primitive.ObjectID
	Type        models.NotificationType
	Title       string
	Message     string
	EntityKind  string
	EntityID    *primitive.ObjectID
	// Actor is the user whose action caused the notification. Nil for
	// system notifications.
	Actor *models.UserRef
	// DedupeKey makes repeated sends of the same event a no-op.
	DedupeKey string
}

// Result is the outcome of Send.
type Result string

const (
	Sent      Result = "sent"
	Duplicate Result = "duplicate"
	Skipped   Result = "skipped" // recipient caused the event
	Invalid   Result = "invalid"
	Failed    Result = "failed"
)

// Dispatcher writes notifications and pushes them to open streams.
// Errors never reach the caller: the operation that triggered a
// notification has already committed.
type Dispatcher struct {
	store   *notificationstore.Store
	hub     *Hub
	log     *zap.Logger
	timeout time.Duration
}

// NewDispatcher creates a dispatcher. hub may be nil when realtime is off.
func NewDispatcher(store *notificationstore.Store, hub *Hub, logger *zap.Logger, timeout time.Duration) *Dispatcher {
	return &Dispatcher{store: store, hub: hub, log: logger, timeout: timeout}
}

// Send stores and publishes one notification.
func (d *Dispatcher) Send(ctx context.Context, in Input) Result {
	res := d.send(ctx, in)
	metrics.RecordNotification(string(in.Type), string(res))
	return res
}

// SendAll sends each input in order.
func (d *Dispatcher) SendAll(ctx context.Context, ins ...Input) {
	for _, in := range ins {
		d.Send(ctx, in)
	}
}

func (d *Dispatcher) send(ctx context.Context, in Input) Result {
	if _, ok := models.CategoryOf(in.Type); !ok || in.RecipientID.IsZero() {
		d.log.Warn("notification dropped: invalid input",
			zap.String("type", string(in.Type)),
			zap.String("recipient_id", in.RecipientID.Hex()))
		return Invalid
	}
	if in.Actor != nil && in.Actor.ID == in.RecipientID {
		return Skipped
	}

	n := models.Notification{
		RecipientID: in.RecipientID,
		Type:        in.Type,
		Title:       in.Title,
		Message:     in.Message,
		EntityKind:  in.EntityKind,
		EntityID:    in.EntityID,
		DedupeKey:   in.DedupeKey,
	}
	if in.Actor != nil {
		id := in.Actor.ID
		n.ActorID = &id
		n.ActorName = in.Actor.Name
	}

	// The triggering request may already be finishing; give the write its
	// own deadline while keeping request-scoped values.
	wctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), d.timeout)
	defer cancel()

	stored, created, err := d.store.Insert(wctx, n)
	if err != nil {
		d.log.Error("notification insert failed",
			zap.String("type", string(in.Type)),
			zap.String("recipient_id", in.RecipientID.Hex()),
			zap.Error(err))
		return Failed
	}
	if !created {
		return Duplicate
	}
	if d.hub != nil {
		d.hub.Publish(stored)
	}
	return Sent
}
