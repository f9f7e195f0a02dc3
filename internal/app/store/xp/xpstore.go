// internal/app/store/xp/xpstore.go
package xpstore

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
	errUserRequired   = errors.New("xp user is required")
	errSourceRequired = errors.New("xp source is required")
	errBadAmount      = errors.New("xp amount must be positive")
)

type Store struct {
	c *mongo.Collection
}

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("xp_transactions")}
}

// Award appends a ledger entry. A (user, source, source id) triple is
// awarded once: repeating it returns created false and no error.
func (s *Store) Award(ctx context.Context, tx models.XPTransaction) (out models.XPTransaction, created bool, err error) {
	tx.Source = strings.TrimSpace(tx.Source)
	switch {
	case tx.UserID.IsZero():
		return models.XPTransaction{}, false, errUserRequired
	case tx.Source == "" || tx.SourceID.IsZero():
		return models.XPTransaction{}, false, errSourceRequired
	case tx.Amount <= 0:
		return models.XPTransaction{}, false, errBadAmount
	}
	tx.ID = primitive.NewObjectID()
	tx.CreatedAt = time.Now().UTC()
	if _, err := s.c.InsertOne(ctx, tx); err != nil {
		if wafflemongo.IsDup(err) {
			return tx, false, nil
		}
		return models.XPTransaction{}, false, err
	}
	return tx, true, nil
}

// ListByUser returns the user's ledger newest first.
func (s *Store) ListByUser(ctx context.Context, userID primitive.ObjectID, p paging.Params) (paging.Page[models.XPTransaction], error) {
	q := bson.M{"user_id": userID}
	cfg := paging.ConfigureKeyset(p, paging.Descending)
	if win := cfg.KeysetWindow(""); win != nil {
		q = bson.M{"$and": bson.A{q, win}}
	}
	find := options.Find()
	cfg.ApplyToFind(find, "", p)

	cur, err := s.c.Find(ctx, q, find)
	if err != nil {
		return paging.Page[models.XPTransaction]{}, err
	}
	defer cur.Close(ctx)
	rows := []models.XPTransaction{}
	if err := cur.All(ctx, &rows); err != nil {
		return paging.Page[models.XPTransaction]{}, err
	}
	return paging.Finish(rows, p, cfg, nil, func(x models.XPTransaction) primitive.ObjectID { return x.ID }), nil
}

// TotalByUser sums the user's ledger.
func (s *Store) TotalByUser(ctx context.Context, userID primitive.ObjectID) (int64, error) {
	pipe := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"user_id": userID}}},
		{{Key: "$group", Value: bson.M{"_id": nil, "total": bson.M{"$sum": "$amount"}}}},
	}
	cur, err := s.c.Aggregate(ctx, pipe)
	if err != nil {
		return 0, err
	}
	defer cur.Close(ctx)
	var row struct {
		Total int64 `bson:"total"`
	}
	if cur.Next(ctx) {
		if err := cur.Decode(&row); err != nil {
			return 0, err
		}
	}
	return row.Total, cur.Err()
}
