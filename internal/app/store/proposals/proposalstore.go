// internal/app/store/proposals/proposalstore.go
package proposalstore

import (
	"context"
	"errors"
	"time"

	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"github.com/tradeya/tradeya/internal/app/system/normalize"
	"github.com/tradeya/tradeya/internal/app/system/paging"
	"github.com/tradeya/tradeya/internal/domain/lifecycle"
	"github.com/tradeya/tradeya/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

var (
	// ErrNotFound is returned when no proposal matches.
	ErrNotFound = errors.New("proposal not found")
	// ErrConflict is returned when the proposal is no longer in the expected status.
	ErrConflict = errors.New("proposal was changed by someone else")
	// ErrDuplicatePending is returned when the proposer already has a pending
	// proposal on the trade.
	ErrDuplicatePending = errors.New("you already have a pending proposal on this trade")

	errMissingRefs = errors.New("proposal needs a trade and a proposer")
)

type Store struct {
	c *mongo.Collection
}

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("proposals")}
}

// Create inserts a pending proposal. A proposer may hold one pending
// proposal per trade; the partial unique index enforces it under races.
func (s *Store) Create(ctx context.Context, p models.Proposal) (models.Proposal, error) {
	if p.TradeID.IsZero() || p.ProposerID.IsZero() {
		return models.Proposal{}, errMissingRefs
	}
	n, err := s.c.CountDocuments(ctx, bson.M{
		"trade_id":    p.TradeID,
		"proposer_id": p.ProposerID,
		"status":      lifecycle.DecisionPending,
	})
	if err != nil {
		return models.Proposal{}, err
	}
	if n > 0 {
		return models.Proposal{}, ErrDuplicatePending
	}

	p.ID = primitive.NewObjectID()
	p.Status = lifecycle.DecisionPending
	p.OfferedSkills = normalize.Skills(p.OfferedSkills)
	now := time.Now().UTC()
	p.CreatedAt = now
	p.UpdatedAt = now
	if _, err := s.c.InsertOne(ctx, p); err != nil {
		if wafflemongo.IsDup(err) {
			return models.Proposal{}, ErrDuplicatePending
		}
		return models.Proposal{}, err
	}
	return p, nil
}

// GetByID loads a proposal.
func (s *Store) GetByID(ctx context.Context, id primitive.ObjectID) (*models.Proposal, error) {
	var p models.Proposal
	if err := s.c.FindOne(ctx, bson.M{"_id": id}).Decode(&p); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	fill(&p)
	return &p, nil
}

// ListByTrade returns a trade's proposals, oldest first. An empty status
// returns every status.
func (s *Store) ListByTrade(ctx context.Context, tradeID primitive.ObjectID, status lifecycle.DecisionStatus) ([]models.Proposal, error) {
	q := bson.M{"trade_id": tradeID}
	if status != "" {
		q["status"] = status
	}
	return s.find(ctx, q, options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
}

// ListByProposer returns a user's proposals newest first with keyset paging.
func (s *Store) ListByProposer(ctx context.Context, proposerID primitive.ObjectID, p paging.Params) (paging.Page[models.Proposal], error) {
	cfg := paging.ConfigureKeyset(p, paging.Descending)
	q := bson.M{"proposer_id": proposerID}
	if win := cfg.KeysetWindow(""); win != nil {
		q = bson.M{"$and": bson.A{q, win}}
	}
	find := options.Find()
	cfg.ApplyToFind(find, "", p)
	rows, err := s.find(ctx, q, find)
	if err != nil {
		return paging.Page[models.Proposal]{}, err
	}
	return paging.Finish(rows, p, cfg, nil, func(p models.Proposal) primitive.ObjectID { return p.ID }), nil
}

// SetStatus moves a proposal from one status to another, guarded on from.
func (s *Store) SetStatus(ctx context.Context, id primitive.ObjectID, from, to lifecycle.DecisionStatus) (*models.Proposal, error) {
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var p models.Proposal
	err := s.c.FindOneAndUpdate(ctx,
		bson.M{"_id": id, "status": from},
		bson.M{"$set": bson.M{"status": to, "updated_at": time.Now().UTC()}},
		opts).Decode(&p)
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
	fill(&p)
	return &p, nil
}

// RejectOthers rejects every pending proposal on the trade except keep and
// returns the proposals it rejected.
func (s *Store) RejectOthers(ctx context.Context, tradeID, keep primitive.ObjectID) ([]models.Proposal, error) {
	q := bson.M{
		"trade_id": tradeID,
		"_id":      bson.M{"$ne": keep},
		"status":   lifecycle.DecisionPending,
	}
	others, err := s.find(ctx, q, options.Find())
	if err != nil {
		return nil, err
	}
	if len(others) == 0 {
		return others, nil
	}
	ids := make([]primitive.ObjectID, 0, len(others))
	for _, p := range others {
		ids = append(ids, p.ID)
	}
	now := time.Now().UTC()
	if _, err := s.c.UpdateMany(ctx,
		bson.M{"_id": bson.M{"$in": ids}, "status": lifecycle.DecisionPending},
		bson.M{"$set": bson.M{"status": lifecycle.DecisionRejected, "updated_at": now}}); err != nil {
		return nil, err
	}
	for i := range others {
		others[i].Status = lifecycle.DecisionRejected
		others[i].UpdatedAt = now
	}
	return others, nil
}

// UpdateDisplayFields rewrites the proposer name and photo of ref.
func (s *Store) UpdateDisplayFields(ctx context.Context, ref models.UserRef) (int64, error) {
	res, err := s.c.UpdateMany(ctx, bson.M{"proposer_id": ref.ID},
		bson.M{"$set": bson.M{"proposer_name": ref.Name, "proposer_photo": ref.PhotoURL}})
	if err != nil {
		return 0, err
	}
	return res.ModifiedCount, nil
}

func (s *Store) find(ctx context.Context, q bson.M, opts *options.FindOptions) ([]models.Proposal, error) {
	cur, err := s.c.Find(ctx, q, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	out := []models.Proposal{}
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	for i := range out {
		fill(&out[i])
	}
	return out, nil
}

func fill(p *models.Proposal) {
	if p.OfferedSkills == nil {
		p.OfferedSkills = []models.Skill{}
	}
}
