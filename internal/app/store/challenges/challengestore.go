// internal/app/store/challenges/challengestore.go
package challengestore

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"time"

	"github.com/dalemusser/waffle/pantry/text"
	"github.com/tradeya/tradeya/internal/app/system/normalize"
	"github.com/tradeya/tradeya/internal/app/system/paging"
	"github.com/tradeya/tradeya/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

var (
	ErrNotFound = errors.New("challenge not found")
	ErrConflict = errors.New("challenge was changed by someone else")

	errTitleRequired = errors.New("title is required")
	errBadReward     = errors.New("xp reward must be positive")
	errBadWindow     = errors.New("challenge must end after it starts")
)

// Difficulties a challenge may have.
var Difficulties = []string{"beginner", "intermediate", "advanced"}

type Store struct {
	c *mongo.Collection
}

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("challenges")}
}

// Create inserts an active challenge. StartsAt defaults to now.
func (s *Store) Create(ctx context.Context, c models.Challenge) (models.Challenge, error) {
	now := time.Now().UTC()
	c.ID = primitive.NewObjectID()
	c.Title = normalize.Name(c.Title)
	c.TitleCI = text.Fold(c.Title)
	c.Category = strings.ToLower(normalize.Name(c.Category))
	c.Difficulty = strings.ToLower(strings.TrimSpace(c.Difficulty))
	if c.Difficulty == "" {
		c.Difficulty = Difficulties[0]
	}
	c.Status = models.ChallengeActive
	if c.StartsAt.IsZero() {
		c.StartsAt = now
	}

	switch {
	case c.Title == "":
		return models.Challenge{}, errTitleRequired
	case c.XPReward <= 0:
		return models.Challenge{}, errBadReward
	case c.EndsAt != nil && !c.EndsAt.After(c.StartsAt):
		return models.Challenge{}, errBadWindow
	}

	c.CreatedAt = now
	c.UpdatedAt = now
	if _, err := s.c.InsertOne(ctx, c); err != nil {
		return models.Challenge{}, err
	}
	return c, nil
}

func (s *Store) GetByID(ctx context.Context, id primitive.ObjectID) (*models.Challenge, error) {
	var c models.Challenge
	if err := s.c.FindOne(ctx, bson.M{"_id": id}).Decode(&c); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &c, nil
}

// ListFilter narrows List. Empty fields do not filter.
type ListFilter struct {
	Status     string
	Category   string
	Difficulty string
	Search     string
}

// List returns challenges newest first with keyset paging.
func (s *Store) List(ctx context.Context, f ListFilter, p paging.Params) (paging.Page[models.Challenge], error) {
	q := bson.M{}
	if f.Status != "" {
		q["status"] = f.Status
	}
	if f.Category != "" {
		q["category"] = strings.ToLower(f.Category)
	}
	if f.Difficulty != "" {
		q["difficulty"] = strings.ToLower(f.Difficulty)
	}
	if f.Search != "" {
		q["title_ci"] = bson.M{"$regex": "^" + regexp.QuoteMeta(text.Fold(f.Search))}
	}

	cfg := paging.ConfigureKeyset(p, paging.Descending)
	if win := cfg.KeysetWindow(""); win != nil {
		q = bson.M{"$and": bson.A{q, win}}
	}
	find := options.Find()
	cfg.ApplyToFind(find, "", p)

	cur, err := s.c.Find(ctx, q, find)
	if err != nil {
		return paging.Page[models.Challenge]{}, err
	}
	defer cur.Close(ctx)
	rows := []models.Challenge{}
	if err := cur.All(ctx, &rows); err != nil {
		return paging.Page[models.Challenge]{}, err
	}
	return paging.Finish(rows, p, cfg, nil, func(c models.Challenge) primitive.ObjectID { return c.ID }), nil
}

// SetStatus changes the status while it is still from.
func (s *Store) SetStatus(ctx context.Context, id primitive.ObjectID, from, to string) (*models.Challenge, error) {
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var c models.Challenge
	err := s.c.FindOneAndUpdate(ctx,
		bson.M{"_id": id, "status": from},
		bson.M{"$set": bson.M{"status": to, "updated_at": time.Now().UTC()}},
		opts).Decode(&c)
	if errors.Is(err, mongo.ErrNoDocuments) {
		n, cerr := s.c.CountDocuments(ctx, bson.M{"_id": id})
		if cerr != nil {
			return nil, cerr
		}
		if n == 0 {
			return nil, ErrNotFound
		}
		return nil, ErrConflict
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// CloseExpired closes active challenges whose ends_at is at or before now.
func (s *Store) CloseExpired(ctx context.Context, now time.Time) (int64, error) {
	res, err := s.c.UpdateMany(ctx,
		bson.M{"status": models.ChallengeActive, "ends_at": bson.M{"$lte": now}},
		bson.M{"$set": bson.M{"status": models.ChallengeClosed, "updated_at": now}})
	if err != nil {
		return 0, err
	}
	return res.ModifiedCount, nil
}
