// internal/app/store/collaborations/collabstore.go
package collabstore

import (
	"context"
	"errors"
	"regexp"
	"time"

	"github.com/dalemusser/waffle/pantry/text"
	"github.com/google/uuid"
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
	// ErrNotFound is returned when no collaboration matches.
	ErrNotFound = errors.New("collaboration not found")
	// ErrRoleNotFound is returned when the collaboration has no role with the id.
	ErrRoleNotFound = errors.New("role not found")
	// ErrConflict is returned when a guarded update finds the collaboration
	// or role in a different status than the caller checked.
	ErrConflict = errors.New("collaboration was changed by someone else")

	errTitleRequired     = errors.New("title is required")
	errRoleTitleRequired = errors.New("every role needs a title")
	errCreatorRequired   = errors.New("creator is required")
)

// openStatuses are the collaboration statuses in which roles change.
var openStatuses = bson.A{lifecycle.CollabRecruiting, lifecycle.CollabInProgress}

type Store struct {
	c *mongo.Collection
}

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("collaborations")}
}

// Create inserts a recruiting collaboration. Every role gets a fresh id and
// starts open.
func (s *Store) Create(ctx context.Context, c models.Collaboration) (models.Collaboration, error) {
	c.ID = primitive.NewObjectID()
	c.Title = normalize.Name(c.Title)
	c.TitleCI = text.Fold(c.Title)
	c.Status = lifecycle.CollabRecruiting
	c.ParticipantIDs = []primitive.ObjectID{}

	if c.Title == "" {
		return models.Collaboration{}, errTitleRequired
	}
	if c.CreatorID.IsZero() {
		return models.Collaboration{}, errCreatorRequired
	}
	roles := make([]models.Role, 0, len(c.Roles))
	for _, r := range c.Roles {
		nr, err := newRole(r)
		if err != nil {
			return models.Collaboration{}, err
		}
		roles = append(roles, nr)
	}
	c.Roles = roles

	now := time.Now().UTC()
	c.CreatedAt = now
	c.UpdatedAt = now
	if _, err := s.c.InsertOne(ctx, c); err != nil {
		return models.Collaboration{}, err
	}
	return c, nil
}

func newRole(r models.Role) (models.Role, error) {
	r.Title = normalize.Name(r.Title)
	if r.Title == "" {
		return models.Role{}, errRoleTitleRequired
	}
	r.ID = uuid.NewString()
	r.Status = lifecycle.RoleOpen
	r.RequiredSkills = normalize.Skills(r.RequiredSkills)
	r.AssigneeID = nil
	r.AssigneeName = ""
	r.AssigneePhoto = ""
	r.FilledAt = nil
	return r, nil
}

// GetByID loads a collaboration.
func (s *Store) GetByID(ctx context.Context, id primitive.ObjectID) (*models.Collaboration, error) {
	var c models.Collaboration
	if err := s.c.FindOne(ctx, bson.M{"_id": id}).Decode(&c); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	fill(&c)
	return &c, nil
}

// ListFilter narrows List. Empty fields do not filter.
type ListFilter struct {
	Status        lifecycle.CollaborationStatus
	CreatorID     *primitive.ObjectID
	ParticipantID *primitive.ObjectID
	Search        string // prefix of the title, any case
	OpenRoles     bool   // only collaborations with at least one open role
}

func (f ListFilter) query() bson.M {
	q := bson.M{}
	if f.Status != "" {
		q["status"] = f.Status
	}
	if f.CreatorID != nil {
		q["creator_id"] = *f.CreatorID
	}
	if f.ParticipantID != nil {
		q["participant_ids"] = *f.ParticipantID
	}
	if f.Search != "" {
		q["title_ci"] = bson.M{"$regex": "^" + regexp.QuoteMeta(text.Fold(f.Search))}
	}
	if f.OpenRoles {
		q["roles.status"] = lifecycle.RoleOpen
	}
	return q
}

// List returns collaborations newest first with keyset paging.
func (s *Store) List(ctx context.Context, f ListFilter, p paging.Params) (paging.Page[models.Collaboration], error) {
	cfg := paging.ConfigureKeyset(p, paging.Descending)
	q := f.query()
	if win := cfg.KeysetWindow(""); win != nil {
		q = bson.M{"$and": bson.A{q, win}}
	}
	find := options.Find()
	cfg.ApplyToFind(find, "", p)

	rows, err := s.find(ctx, q, find)
	if err != nil {
		return paging.Page[models.Collaboration]{}, err
	}
	return paging.Finish(rows, p, cfg, nil, func(c models.Collaboration) primitive.ObjectID { return c.ID }), nil
}

// SetStatus moves a collaboration from one status to another, guarded on from.
func (s *Store) SetStatus(ctx context.Context, id primitive.ObjectID, from, to lifecycle.CollaborationStatus) (*models.Collaboration, error) {
	return s.update(ctx, id,
		bson.M{"_id": id, "status": from},
		bson.M{"$set": bson.M{"status": to, "updated_at": time.Now().UTC()}},
		nil)
}

// AddRole appends an open role while the collaboration is recruiting or in progress.
func (s *Store) AddRole(ctx context.Context, id primitive.ObjectID, r models.Role) (models.Role, error) {
	nr, err := newRole(r)
	if err != nil {
		return models.Role{}, err
	}
	_, err = s.update(ctx, id,
		bson.M{"_id": id, "status": bson.M{"$in": openStatuses}},
		bson.M{"$push": bson.M{"roles": nr}, "$set": bson.M{"updated_at": time.Now().UTC()}},
		nil)
	if err != nil {
		return models.Role{}, err
	}
	return nr, nil
}

// FillRole assigns a user to an open role and adds them to the participants.
// The update only applies while the role is still open and the
// collaboration is recruiting or in progress.
func (s *Store) FillRole(ctx context.Context, id primitive.ObjectID, roleID string, assignee models.UserRef) (*models.Collaboration, error) {
	now := time.Now().UTC()
	filter := bson.M{
		"_id":    id,
		"status": bson.M{"$in": openStatuses},
		"roles":  bson.M{"$elemMatch": bson.M{"id": roleID, "status": lifecycle.RoleOpen}},
	}
	upd := bson.M{
		"$set": bson.M{
			"roles.$.status":         lifecycle.RoleFilled,
			"roles.$.assignee_id":    assignee.ID,
			"roles.$.assignee_name":  assignee.Name,
			"roles.$.assignee_photo": assignee.PhotoURL,
			"roles.$.filled_at":      now,
			"updated_at":             now,
		},
		"$addToSet": bson.M{"participant_ids": assignee.ID},
	}
	return s.update(ctx, id, filter, upd, &roleID)
}

// SetRoleStatus closes or reopens a role, guarded on its current status.
func (s *Store) SetRoleStatus(ctx context.Context, id primitive.ObjectID, roleID string, from, to lifecycle.RoleStatus) (*models.Collaboration, error) {
	filter := bson.M{
		"_id":   id,
		"roles": bson.M{"$elemMatch": bson.M{"id": roleID, "status": from}},
	}
	upd := bson.M{"$set": bson.M{"roles.$.status": to, "updated_at": time.Now().UTC()}}
	return s.update(ctx, id, filter, upd, &roleID)
}

// UpdateDisplayFields rewrites the denormalized name and photo of ref on
// collaborations they created and roles they hold.
func (s *Store) UpdateDisplayFields(ctx context.Context, ref models.UserRef) (int64, error) {
	a, err := s.c.UpdateMany(ctx, bson.M{"creator_id": ref.ID},
		bson.M{"$set": bson.M{"creator_name": ref.Name, "creator_photo": ref.PhotoURL}})
	if err != nil {
		return 0, err
	}
	opts := options.Update().SetArrayFilters(options.ArrayFilters{
		Filters: []interface{}{bson.M{"r.assignee_id": ref.ID}},
	})
	b, err := s.c.UpdateMany(ctx, bson.M{"roles.assignee_id": ref.ID},
		bson.M{"$set": bson.M{
			"roles.$[r].assignee_name":  ref.Name,
			"roles.$[r].assignee_photo": ref.PhotoURL,
		}}, opts)
	if err != nil {
		return a.ModifiedCount, err
	}
	return a.ModifiedCount + b.ModifiedCount, nil
}

// update applies a guarded FindOneAndUpdate and explains a miss. When
// roleID is set, a miss on an existing collaboration without that role
// reports ErrRoleNotFound.
func (s *Store) update(ctx context.Context, id primitive.ObjectID, filter, upd bson.M, roleID *string) (*models.Collaboration, error) {
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var c models.Collaboration
	err := s.c.FindOneAndUpdate(ctx, filter, upd, opts).Decode(&c)
	if err == nil {
		fill(&c)
		return &c, nil
	}
	if !errors.Is(err, mongo.ErrNoDocuments) {
		return nil, err
	}

	cur, gerr := s.GetByID(ctx, id)
	if gerr != nil {
		return nil, gerr
	}
	if roleID != nil {
		if _, ok := cur.Role(*roleID); !ok {
			return nil, ErrRoleNotFound
		}
	}
	return nil, ErrConflict
}

func (s *Store) find(ctx context.Context, q bson.M, opts *options.FindOptions) ([]models.Collaboration, error) {
	cur, err := s.c.Find(ctx, q, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	out := []models.Collaboration{}
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	for i := range out {
		fill(&out[i])
	}
	return out, nil
}

func fill(c *models.Collaboration) {
	if c.Roles == nil {
		c.Roles = []models.Role{}
	}
	if c.ParticipantIDs == nil {
		c.ParticipantIDs = []primitive.ObjectID{}
	}
	for i := range c.Roles {
		if c.Roles[i].RequiredSkills == nil {
			c.Roles[i].RequiredSkills = []models.Skill{}
		}
	}
}
