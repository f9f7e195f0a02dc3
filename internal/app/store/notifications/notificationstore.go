// internal/app/store/notifications/notificationstore.go
package notificationstore

import (
	"context"
	"errors"
	"strings"
	"time"

	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"github.com/tradeya/tradeya/internal/app/system/paging"
	"github.com/tradeya/tradeya/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

var (
	// ErrNotFound is returned when the recipient has no such notification.
	ErrNotFound = errors.New("notification not found")
	// ErrUnknownType is returned for a type outside the closed set.
	ErrUnknownType = errors.New("unknown notification type")

	errRecipientRequired = errors.New("notification recipient is required")
	errTitleRequired     = errors.New("notification title is required")
)

type Store struct {
	c *mongo.Collection
}

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("notifications")}
}

// Insert stores n as unread. The category is derived from the type. When
// n has a dedupe key and the recipient already holds a notification with
// that key, the existing notification is returned and created is false.
func (s *Store) Insert(ctx context.Context, n models.Notification) (out models.Notification, created bool, err error) {
	if n.RecipientID.IsZero() {
		return models.Notification{}, false, errRecipientRequired
	}
	category, ok := models.CategoryOf(n.Type)
	if !ok {
		return models.Notification{}, false, ErrUnknownType
	}
	n.Title = strings.TrimSpace(n.Title)
	if n.Title == "" {
		return models.Notification{}, false, errTitleRequired
	}
	n.Message = strings.TrimSpace(n.Message)
	n.DedupeKey = strings.TrimSpace(n.DedupeKey)
	n.Category = category

	if n.DedupeKey != "" {
		existing, err := s.byDedupeKey(ctx, n.RecipientID, n.DedupeKey)
		if err == nil {
			return *existing, false, nil
		}
		if !errors.Is(err, ErrNotFound) {
			return models.Notification{}, false, err
		}
	}

	n.ID = primitive.NewObjectID()
	n.Read = false
	n.ReadAt = nil
	n.CreatedAt = time.Now().UTC()
	if _, err := s.c.InsertOne(ctx, n); err != nil {
		if n.DedupeKey != "" && wafflemongo.IsDup(err) {
			existing, lookErr := s.byDedupeKey(ctx, n.RecipientID, n.DedupeKey)
			if lookErr == nil {
				return *existing, false, nil
			}
		}
		return models.Notification{}, false, err
	}
	return n, true, nil
}

func (s *Store) byDedupeKey(ctx context.Context, recipient primitive.ObjectID, key string) (*models.Notification, error) {
	var n models.Notification
	err := s.c.FindOne(ctx, bson.M{"recipient_id": recipient, "dedupe_key": key}).Decode(&n)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &n, nil
}

// ListFilter narrows List. Empty fields do not filter.
type ListFilter struct {
	Category   string
	UnreadOnly bool
}

// List returns the recipient's notifications newest first with keyset paging.
func (s *Store) List(ctx context.Context, recipient primitive.ObjectID, f ListFilter, p paging.Params) (paging.Page[models.Notification], error) {
	q := bson.M{"recipient_id": recipient}
	if f.Category != "" {
		q["category"] = f.Category
	}
	if f.UnreadOnly {
		q["read"] = false
	}
	cfg := paging.ConfigureKeyset(p, paging.Descending)
	if win := cfg.KeysetWindow(""); win != nil {
		q = bson.M{"$and": bson.A{q, win}}
	}
	find := options.Find()
	cfg.ApplyToFind(find, "", p)

	cur, err := s.c.Find(ctx, q, find)
	if err != nil {
		return paging.Page[models.Notification]{}, err
	}
	defer cur.Close(ctx)
	rows := []models.Notification{}
	if err := cur.All(ctx, &rows); err != nil {
		return paging.Page[models.Notification]{}, err
	}
	return paging.Finish(rows, p, cfg, nil, func(n models.Notification) primitive.ObjectID { return n.ID }), nil
}

// GetByID loads one of the recipient's notifications.
func (s *Store) GetByID(ctx context.Context, recipient, id primitive.ObjectID) (*models.Notification, error) {
	var n models.Notification
	err := s.c.FindOne(ctx, bson.M{"_id": id, "recipient_id": recipient}).Decode(&n)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &n, nil
}

// CountUnread counts the recipient's unread notifications per category.
// The "" key holds the total.
func (s *Store) CountUnread(ctx context.Context, recipient primitive.ObjectID) (map[string]int64, error) {
	pipe := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"recipient_id": recipient, "read": false}}},
		{{Key: "$group", Value: bson.M{"_id": "$category", "n": bson.M{"$sum": 1}}}},
	}
	cur, err := s.c.Aggregate(ctx, pipe)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	out := map[string]int64{"": 0}
	for _, c := range models.AllNotificationCategories {
		out[c] = 0
	}
	for cur.Next(ctx) {
		var row struct {
			Category string `bson:"_id"`
			N        int64  `bson:"n"`
		}
		if err := cur.Decode(&row); err != nil {
			return nil, err
		}
		out[row.Category] = row.N
		out[""] += row.N
	}
	return out, cur.Err()
}

// MarkRead marks one notification read. Marking an already-read
// notification succeeds and keeps its original read_at.
func (s *Store) MarkRead(ctx context.Context, recipient, id primitive.ObjectID) error {
	res, err := s.c.UpdateOne(ctx,
		bson.M{"_id": id, "recipient_id": recipient, "read": false},
		bson.M{"$set": bson.M{"read": true, "read_at": time.Now().UTC()}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 1 {
		return nil
	}
	if _, err := s.GetByID(ctx, recipient, id); err != nil {
		return err
	}
	return nil
}

// MarkAllRead marks every unread notification of the recipient read,
// optionally only within category. It returns how many changed.
func (s *Store) MarkAllRead(ctx context.Context, recipient primitive.ObjectID, category string) (int64, error) {
	q := bson.M{"recipient_id": recipient, "read": false}
	if category != "" {
		q["category"] = category
	}
	res, err := s.c.UpdateMany(ctx, q, bson.M{"$set": bson.M{"read": true, "read_at": time.Now().UTC()}})
	if err != nil {
		return 0, err
	}
	return res.ModifiedCount, nil
}

// Delete removes one of the recipient's notifications.
func (s *Store) Delete(ctx context.Context, recipient, id primitive.ObjectID) error {
	res, err := s.c.DeleteOne(ctx, bson.M{"_id": id, "recipient_id": recipient})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteReadOlderThan removes notifications read before before.
func (s *Store) DeleteReadOlderThan(ctx context.Context, before time.Time) (int64, error) {
	res, err := s.c.DeleteMany(ctx, bson.M{"read": true, "read_at": bson.M{"$lt": before}})
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}
