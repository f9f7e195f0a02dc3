// internal/app/store/participants/participantstore.go
package participantstore

import (
	"context"
	"errors"
	"strings"
	"time"

	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"github.com/tradeya/tradeya/internal/app/system/paging"
	"github.com/tradeya/tradeya/internal/domain/lifecycle"
	"github.com/tradeya/tradeya/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

var (
	ErrNotFound      = errors.New("participation not found")
	ErrConflict      = errors.New("participation was changed by someone else")
	ErrAlreadyJoined = errors.New("already joined this challenge")
)

type Store struct {
	c *mongo.Collection
}

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("challenge_participants")}
}

// Join records that userID joined challengeID. Joining twice returns
// ErrAlreadyJoined.
func (s *Store) Join(ctx context.Context, challengeID, userID primitive.ObjectID) (models.ChallengeParticipant, error) {
	p := models.ChallengeParticipant{
		ID:          primitive.NewObjectID(),
		ChallengeID: challengeID,
		UserID:      userID,
		Status:      lifecycle.ParticipationJoined,
		JoinedAt:    time.Now().UTC(),
	}
	if _, err := s.c.InsertOne(ctx, p); err != nil {
		if wafflemongo.IsDup(err) {
			return models.ChallengeParticipant{}, ErrAlreadyJoined
		}
		return models.ChallengeParticipant{}, err
	}
	return p, nil
}

// Get loads the participation of userID in challengeID.
func (s *Store) Get(ctx context.Context, challengeID, userID primitive.ObjectID) (*models.ChallengeParticipant, error) {
	return s.findOne(ctx, bson.M{"challenge_id": challengeID, "user_id": userID})
}

func (s *Store) GetByID(ctx context.Context, id primitive.ObjectID) (*models.ChallengeParticipant, error) {
	return s.findOne(ctx, bson.M{"_id": id})
}

func (s *Store) findOne(ctx context.Context, q bson.M) (*models.ChallengeParticipant, error) {
	var p models.ChallengeParticipant
	if err := s.c.FindOne(ctx, q).Decode(&p); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &p, nil
}

// ListByChallenge returns a challenge's participants newest first,
// optionally only those in status.
func (s *Store) ListByChallenge(ctx context.Context, challengeID primitive.ObjectID, status lifecycle.ParticipationStatus, p paging.Params) (paging.Page[models.ChallengeParticipant], error) {
	q := bson.M{"challenge_id": challengeID}
	if status != "" {
		q["status"] = status
	}
	return s.page(ctx, q, p)
}

// ListByUser returns the user's participations newest first.
func (s *Store) ListByUser(ctx context.Context, userID primitive.ObjectID, p paging.Params) (paging.Page[models.ChallengeParticipant], error) {
	return s.page(ctx, bson.M{"user_id": userID}, p)
}

func (s *Store) page(ctx context.Context, q bson.M, p paging.Params) (paging.Page[models.ChallengeParticipant], error) {
	cfg := paging.ConfigureKeyset(p, paging.Descending)
	if win := cfg.KeysetWindow(""); win != nil {
		q = bson.M{"$and": bson.A{q, win}}
	}
	find := options.Find()
	cfg.ApplyToFind(find, "", p)

	cur, err := s.c.Find(ctx, q, find)
	if err != nil {
		return paging.Page[models.ChallengeParticipant]{}, err
	}
	defer cur.Close(ctx)
	rows := []models.ChallengeParticipant{}
	if err := cur.All(ctx, &rows); err != nil {
		return paging.Page[models.ChallengeParticipant]{}, err
	}
	return paging.Finish(rows, p, cfg, nil, func(r models.ChallengeParticipant) primitive.ObjectID { return r.ID }), nil
}

// Submission is the work attached when a participant submits.
type Submission struct {
	Text string
	URL  string
}

// Transition moves a participation from one status to another while it is
// still from. Entering submitted stores sub; entering completed stamps
// completed_at; returning to joined clears the submission time.
func (s *Store) Transition(ctx context.Context, id primitive.ObjectID, from, to lifecycle.ParticipationStatus, sub *Submission) (*models.ChallengeParticipant, error) {
	now := time.Now().UTC()
	set := bson.M{"status": to}
	upd := bson.M{}
	switch to {
	case lifecycle.ParticipationSubmitted:
		set["submitted_at"] = now
		if sub != nil {
			set["submission"] = strings.TrimSpace(sub.Text)
			set["submission_url"] = strings.TrimSpace(sub.URL)
		}
	case lifecycle.ParticipationCompleted:
		set["completed_at"] = now
	case lifecycle.ParticipationJoined:
		upd["$unset"] = bson.M{"submitted_at": ""}
	}
	upd["$set"] = set

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var p models.ChallengeParticipant
	err := s.c.FindOneAndUpdate(ctx, bson.M{"_id": id, "status": from}, upd, opts).Decode(&p)
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
	return &p, nil
}

// CountByStatus counts a challenge's participants per status.
func (s *Store) CountByStatus(ctx context.Context, challengeID primitive.ObjectID) (map[lifecycle.ParticipationStatus]int64, error) {
	pipe := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"challenge_id": challengeID}}},
		{{Key: "$group", Value: bson.M{"_id": "$status", "n": bson.M{"$sum": 1}}}},
	}
	cur, err := s.c.Aggregate(ctx, pipe)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	out := make(map[lifecycle.ParticipationStatus]int64, len(lifecycle.ParticipationStatuses))
	for _, st := range lifecycle.ParticipationStatuses {
		out[st] = 0
	}
	for cur.Next(ctx) {
		var row struct {
			Status lifecycle.ParticipationStatus `bson:"_id"`
			N      int64                         `bson:"n"`
		}
		if err := cur.Decode(&row); err != nil {
			return nil, err
		}
		out[row.Status] = row.N
	}
	return out, cur.Err()
}
