// internal/app/store/applications/applicationstore.go
package applicationstore

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
	// ErrNotFound is returned when no application matches.
	ErrNotFound = errors.New("application not found")
	// ErrConflict is returned when the application is no longer in the expected status.
	ErrConflict = errors.New("application was changed by someone else")
	// ErrDuplicatePending is returned when the applicant already has a
	// pending application for the role.
	ErrDuplicatePending = errors.New("you already applied for this role")

	errMissingRefs = errors.New("application needs a collaboration, role and applicant")
)

type Store struct {
	c *mongo.Collection
}

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("role_applications")}
}

// Create inserts a pending application. One pending application per
// applicant per role.
func (s *Store) Create(ctx context.Context, a models.RoleApplication) (models.RoleApplication, error) {
	a.RoleID = strings.TrimSpace(a.RoleID)
	if a.CollaborationID.IsZero() || a.RoleID == "" || a.ApplicantID.IsZero() {
		return models.RoleApplication{}, errMissingRefs
	}
	n, err := s.c.CountDocuments(ctx, bson.M{
		"collaboration_id": a.CollaborationID,
		"role_id":          a.RoleID,
		"applicant_id":     a.ApplicantID,
		"status":           lifecycle.DecisionPending,
	})
	if err != nil {
		return models.RoleApplication{}, err
	}
	if n > 0 {
		return models.RoleApplication{}, ErrDuplicatePending
	}

	a.ID = primitive.NewObjectID()
	a.Status = lifecycle.DecisionPending
	a.DecidedBy = nil
	a.DecidedAt = nil
	now := time.Now().UTC()
	a.CreatedAt = now
	a.UpdatedAt = now
	if _, err := s.c.InsertOne(ctx, a); err != nil {
		if wafflemongo.IsDup(err) {
			return models.RoleApplication{}, ErrDuplicatePending
		}
		return models.RoleApplication{}, err
	}
	return a, nil
}

// GetByID loads an application.
func (s *Store) GetByID(ctx context.Context, id primitive.ObjectID) (*models.RoleApplication, error) {
	var a models.RoleApplication
	if err := s.c.FindOne(ctx, bson.M{"_id": id}).Decode(&a); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &a, nil
}

// ListByCollaboration returns a collaboration's applications oldest first.
// Empty roleID or status do not filter.
func (s *Store) ListByCollaboration(ctx context.Context, collabID primitive.ObjectID, roleID string, status lifecycle.DecisionStatus) ([]models.RoleApplication, error) {
	q := bson.M{"collaboration_id": collabID}
	if roleID != "" {
		q["role_id"] = roleID
	}
	if status != "" {
		q["status"] = status
	}
	return s.find(ctx, q, options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
}

// ListByApplicant returns a user's applications newest first with keyset paging.
func (s *Store) ListByApplicant(ctx context.Context, applicantID primitive.ObjectID, p paging.Params) (paging.Page[models.RoleApplication], error) {
	cfg := paging.ConfigureKeyset(p, paging.Descending)
	q := bson.M{"applicant_id": applicantID}
	if win := cfg.KeysetWindow(""); win != nil {
		q = bson.M{"$and": bson.A{q, win}}
	}
	find := options.Find()
	cfg.ApplyToFind(find, "", p)
	rows, err := s.find(ctx, q, find)
	if err != nil {
		return paging.Page[models.RoleApplication]{}, err
	}
	return paging.Finish(rows, p, cfg, nil, func(a models.RoleApplication) primitive.ObjectID { return a.ID }), nil
}

// SetStatus moves an application from one status to another, guarded on
// from. decidedBy is recorded for accept and reject.
func (s *Store) SetStatus(ctx context.Context, id primitive.ObjectID, from, to lifecycle.DecisionStatus, decidedBy *primitive.ObjectID) (*models.RoleApplication, error) {
	now := time.Now().UTC()
	set := bson.M{"status": to, "updated_at": now}
	if decidedBy != nil {
		set["decided_by"] = *decidedBy
		set["decided_at"] = now
	}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var a models.RoleApplication
	err := s.c.FindOneAndUpdate(ctx, bson.M{"_id": id, "status": from}, bson.M{"$set": set}, opts).Decode(&a)
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
	return &a, nil
}

// RejectOthers rejects every other pending application for the role and
// returns the applications it rejected.
func (s *Store) RejectOthers(ctx context.Context, collabID primitive.ObjectID, roleID string, keep primitive.ObjectID, decidedBy primitive.ObjectID) ([]models.RoleApplication, error) {
	q := bson.M{
		"collaboration_id": collabID,
		"role_id":          roleID,
		"_id":              bson.M{"$ne": keep},
		"status":           lifecycle.DecisionPending,
	}
	others, err := s.find(ctx, q, options.Find())
	if err != nil || len(others) == 0 {
		return others, err
	}
	ids := make([]primitive.ObjectID, 0, len(others))
	for _, a := range others {
		ids = append(ids, a.ID)
	}
	now := time.Now().UTC()
	if _, err := s.c.UpdateMany(ctx,
		bson.M{"_id": bson.M{"$in": ids}, "status": lifecycle.DecisionPending},
		bson.M{"$set": bson.M{
			"status":     lifecycle.DecisionRejected,
			"decided_by": decidedBy,
			"decided_at": now,
			"updated_at": now,
		}}); err != nil {
		return nil, err
	}
	for i := range others {
		others[i].Status = lifecycle.DecisionRejected
		others[i].DecidedBy = &decidedBy
		others[i].DecidedAt = &now
		others[i].UpdatedAt = now
	}
	return others, nil
}

// UpdateDisplayFields rewrites the applicant name and photo of ref.
func (s *Store) UpdateDisplayFields(ctx context.Context, ref models.UserRef) (int64, error) {
	res, err := s.c.UpdateMany(ctx, bson.M{"applicant_id": ref.ID},
		bson.M{"$set": bson.M{"applicant_name": ref.Name, "applicant_photo": ref.PhotoURL}})
	if err != nil {
		return 0, err
	}
	return res.ModifiedCount, nil
}

func (s *Store) find(ctx context.Context, q bson.M, opts *options.FindOptions) ([]models.RoleApplication, error) {
	cur, err := s.c.Find(ctx, q, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	out := []models.RoleApplication{}
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}
