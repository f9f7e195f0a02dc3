// internal/app/store/logins/loginstore.go
package loginstore

import (
	"context"
	"net/http"
	"time"

	"github.com/tradeya/tradeya/internal/app/system/ratelimit"
	"github.com/tradeya/tradeya/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// DefaultRecentLimit caps ListRecentByUser when no limit is given.
const DefaultRecentLimit = 10

type Store struct {
	c *mongo.Collection
}

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("login_records")}
}

// Create inserts a LoginRecord. If CreatedAt is zero, it's set to time.Now().UTC().
func (s *Store) Create(ctx context.Context, rec models.LoginRecord) error {
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	_, err := s.c.InsertOne(ctx, rec)
	return err
}

// CreateFrom builds a LoginRecord from the HTTP request and inserts it.
// provider is the auth method used (password | google).
func (s *Store) CreateFrom(ctx context.Context, r *http.Request, userID primitive.ObjectID, provider string) error {
	return s.Create(ctx, models.LoginRecord{
		UserID:    userID,
		CreatedAt: time.Now().UTC(),
		IP:        ratelimit.ClientIP(r),
		Provider:  provider,
	})
}

// ListRecentByUser returns the user's most recent logins, newest first.
func (s *Store) ListRecentByUser(ctx context.Context, userID primitive.ObjectID, limit int64) ([]models.LoginRecord, error) {
	if limit <= 0 {
		limit = DefaultRecentLimit
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}}).
		SetLimit(limit)
	cur, err := s.c.Find(ctx, bson.M{"user_id": userID}, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	out := []models.LoginRecord{}
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// CountSince counts logins at or after t across all users.
func (s *Store) CountSince(ctx context.Context, t time.Time) (int64, error) {
	return s.c.CountDocuments(ctx, bson.M{"created_at": bson.M{"$gte": t}})
}
