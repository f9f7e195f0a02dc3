// internal/app/store/users/userstore.go
package userstore

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/dalemusser/waffle/pantry/text"
	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"github.com/tradeya/tradeya/internal/app/system/authz"
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
	// ErrNotFound is returned when no user matches.
	ErrNotFound = errors.New("user not found")
	// ErrDuplicateEmail is returned when attempting to create a user with an email that already exists.
	ErrDuplicateEmail = errors.New("a user with this email already exists")
	// ErrDuplicateGoogleAccount is returned when a Google account is already linked to another user.
	ErrDuplicateGoogleAccount = errors.New("this Google account is linked to another user")
	errBadRole                = errors.New(`role must be "user"|"admin"`)
	errBadStatus              = errors.New(`status must be "active"|"disabled"`)
	errBadAuthMethod          = errors.New(`auth_method must be "password"|"google"`)
	errNameRequired           = errors.New("display name is required")
	errEmailRequired          = errors.New("email is required")
	errBadXP                  = errors.New("xp amount must be positive")
)

type Store struct {
	c *mongo.Collection
}

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("users")}
}

// GetByID loads a user by ObjectID.
func (s *Store) GetByID(ctx context.Context, id primitive.ObjectID) (*models.User, error) {
	return s.findOne(ctx, bson.M{"_id": id})
}

// GetByEmail looks up a user by case-insensitive email.
func (s *Store) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	return s.findOne(ctx, bson.M{"email_ci": text.Fold(normalize.Email(email))})
}

// GetByGoogleSub looks up a user by their Google subject id.
func (s *Store) GetByGoogleSub(ctx context.Context, sub string) (*models.User, error) {
	if sub == "" {
		return nil, ErrNotFound
	}
	return s.findOne(ctx, bson.M{"google_sub": sub})
}

func (s *Store) findOne(ctx context.Context, filter bson.M) (*models.User, error) {
	var u models.User
	if err := s.c.FindOne(ctx, filter).Decode(&u); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &u, nil
}

// Create inserts a new user after normalizing & validating fields.
// Role defaults to user, status to active and level to 1.
func (s *Store) Create(ctx context.Context, u models.User) (models.User, error) {
	u.ID = primitive.NewObjectID()
	u.DisplayName = normalize.Name(u.DisplayName)
	u.DisplayNameCI = text.Fold(u.DisplayName)
	u.Email = normalize.Email(u.Email)
	u.EmailCI = text.Fold(u.Email)
	u.AuthMethod = normalize.AuthMethod(u.AuthMethod)
	u.Role = normalize.Role(u.Role)
	u.Status = normalize.Status(u.Status)
	if u.Role == "" {
		u.Role = authz.RoleUser
	}
	if u.Status == "" {
		u.Status = models.UserActive
	}
	if u.AuthMethod == "" {
		u.AuthMethod = "password"
	}
	u.SkillsOffered = normalize.Skills(u.SkillsOffered)
	u.SkillsWanted = normalize.Skills(u.SkillsWanted)
	u.XP = 0
	u.Level = lifecycle.LevelForXP(0)

	if u.DisplayName == "" {
		return models.User{}, errNameRequired
	}
	if u.Email == "" {
		return models.User{}, errEmailRequired
	}
	if err := validRole(u.Role); err != nil {
		return models.User{}, err
	}
	if err := validStatus(u.Status); err != nil {
		return models.User{}, err
	}
	if !models.IsValidAuthMethod(u.AuthMethod) {
		return models.User{}, errBadAuthMethod
	}

	now := time.Now().UTC()
	u.CreatedAt = now
	u.UpdatedAt = now

	if _, err := s.c.InsertOne(ctx, u); err != nil {
		if wafflemongo.IsDup(err) {
			if u.GoogleSub != nil {
				if _, lookErr := s.GetByGoogleSub(ctx, *u.GoogleSub); lookErr == nil {
					return models.User{}, ErrDuplicateGoogleAccount
				}
			}
			return models.User{}, ErrDuplicateEmail
		}
		return models.User{}, err
	}
	return u, nil
}

// ProfileUpdate holds the user-editable profile fields.
// Bio is expected to be sanitized by the caller.
type ProfileUpdate struct {
	DisplayName   string
	PhotoURL      string
	Bio           string
	Location      string
	SkillsOffered []models.Skill
	SkillsWanted  []models.Skill
}

// UpdateProfile writes the profile fields and returns the updated user.
func (s *Store) UpdateProfile(ctx context.Context, id primitive.ObjectID, upd ProfileUpdate) (*models.User, error) {
	name := normalize.Name(upd.DisplayName)
	if name == "" {
		return nil, errNameRequired
	}
	set := bson.M{
		"display_name":    name,
		"display_name_ci": text.Fold(name),
		"photo_url":       upd.PhotoURL,
		"bio":             upd.Bio,
		"location":        normalize.Name(upd.Location),
		"skills_offered":  normalize.Skills(upd.SkillsOffered),
		"skills_wanted":   normalize.Skills(upd.SkillsWanted),
		"updated_at":      time.Now().UTC(),
	}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var u models.User
	if err := s.c.FindOneAndUpdate(ctx, bson.M{"_id": id}, bson.M{"$set": set}, opts).Decode(&u); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &u, nil
}

// SetPasswordHash replaces the stored bcrypt hash.
func (s *Store) SetPasswordHash(ctx context.Context, id primitive.ObjectID, hash string) error {
	return s.set(ctx, id, bson.M{"password_hash": hash})
}

// LinkGoogle attaches a Google subject id to an existing account.
func (s *Store) LinkGoogle(ctx context.Context, id primitive.ObjectID, sub string) error {
	err := s.set(ctx, id, bson.M{"google_sub": sub})
	if wafflemongo.IsDup(err) {
		return ErrDuplicateGoogleAccount
	}
	return err
}

// SetStatus enables or disables an account.
func (s *Store) SetStatus(ctx context.Context, id primitive.ObjectID, status string) error {
	status = normalize.Status(status)
	if err := validStatus(status); err != nil {
		return err
	}
	return s.set(ctx, id, bson.M{"status": status})
}

// SetRole changes an account's role.
func (s *Store) SetRole(ctx context.Context, id primitive.ObjectID, role string) error {
	role = normalize.Role(role)
	if err := validRole(role); err != nil {
		return err
	}
	return s.set(ctx, id, bson.M{"role": role})
}

func (s *Store) set(ctx context.Context, id primitive.ObjectID, set bson.M) error {
	set["updated_at"] = time.Now().UTC()
	res, err := s.c.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": set})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// XPResult is the outcome of AddXP.
type XPResult struct {
	XP       int64
	OldLevel int
	NewLevel int
}

// LeveledUp reports whether the award crossed a level threshold.
func (r XPResult) LeveledUp() bool { return r.NewLevel > r.OldLevel }

// AddXP increments the user's xp by amount and raises the stored level to
// match. Levels never go down, so concurrent awards settle on the highest.
// Callers record the award in the xp ledger first.
func (s *Store) AddXP(ctx context.Context, id primitive.ObjectID, amount int64) (XPResult, error) {
	if amount <= 0 {
		return XPResult{}, errBadXP
	}
	opts := options.FindOneAndUpdate().
		SetReturnDocument(options.After).
		SetProjection(bson.M{"xp": 1, "level": 1})
	var u models.User
	err := s.c.FindOneAndUpdate(ctx, bson.M{"_id": id},
		bson.M{"$inc": bson.M{"xp": amount}, "$set": bson.M{"updated_at": time.Now().UTC()}},
		opts).Decode(&u)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return XPResult{}, ErrNotFound
		}
		return XPResult{}, err
	}

	res := XPResult{
		XP:       u.XP,
		OldLevel: lifecycle.LevelForXP(u.XP - amount),
		NewLevel: lifecycle.LevelForXP(u.XP),
	}
	if res.NewLevel > u.Level {
		if _, err := s.c.UpdateOne(ctx,
			bson.M{"_id": id, "level": bson.M{"$lt": res.NewLevel}},
			bson.M{"$set": bson.M{"level": res.NewLevel}}); err != nil {
			return res, fmt.Errorf("set level: %w", err)
		}
	}
	return res, nil
}

// ListFilter narrows List. Empty fields do not filter.
type ListFilter struct {
	Status string // active | disabled
	Role   string // user | admin
	Search string // prefix of the display name, any case
	Skill  string // offered skill name, any case
}

func (f ListFilter) query() bson.M {
	q := bson.M{}
	if f.Status != "" {
		q["status"] = f.Status
	}
	if f.Role != "" {
		q["role"] = f.Role
	}
	if f.Search != "" {
		q["display_name_ci"] = bson.M{"$regex": "^" + regexp.QuoteMeta(text.Fold(f.Search))}
	}
	if f.Skill != "" {
		q["skills_offered.name"] = bson.M{"$regex": "^" + regexp.QuoteMeta(f.Skill) + "$", "$options": "i"}
	}
	return q
}

// List returns users ordered by display name with keyset paging.
func (s *Store) List(ctx context.Context, f ListFilter, p paging.Params) (paging.Page[models.User], error) {
	cfg := paging.ConfigureKeyset(p, paging.Ascending)
	q := f.query()
	if win := cfg.KeysetWindow("display_name_ci"); win != nil {
		q = bson.M{"$and": bson.A{q, win}}
	}
	find := options.Find()
	cfg.ApplyToFind(find, "display_name_ci", p)

	rows, err := s.find(ctx, q, find)
	if err != nil {
		return paging.Page[models.User]{}, err
	}
	return paging.Finish(rows, p, cfg,
		func(u models.User) string { return u.DisplayNameCI },
		func(u models.User) primitive.ObjectID { return u.ID }), nil
}

// Leaderboard returns the top active users by xp.
func (s *Store) Leaderboard(ctx context.Context, limit int64) ([]models.User, error) {
	if limit <= 0 || limit > paging.MaxPageSize {
		limit = paging.PageSize
	}
	find := options.Find().
		SetSort(bson.D{{Key: "xp", Value: -1}, {Key: "_id", Value: 1}}).
		SetLimit(limit)
	return s.find(ctx, bson.M{"status": models.UserActive}, find)
}

// GetByIDs loads the users with the given ids, in no particular order.
func (s *Store) GetByIDs(ctx context.Context, ids []primitive.ObjectID) ([]models.User, error) {
	if len(ids) == 0 {
		return []models.User{}, nil
	}
	return s.find(ctx, bson.M{"_id": bson.M{"$in": ids}}, options.Find())
}

// CountAdmins counts active admins.
func (s *Store) CountAdmins(ctx context.Context) (int64, error) {
	return s.c.CountDocuments(ctx, bson.M{"role": authz.RoleAdmin, "status": models.UserActive})
}

func (s *Store) find(ctx context.Context, q bson.M, opts *options.FindOptions) ([]models.User, error) {
	cur, err := s.c.Find(ctx, q, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	out := []models.User{}
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func validRole(r string) error {
	switch r {
	case authz.RoleUser, authz.RoleAdmin:
		return nil
	}
	return errBadRole
}

func validStatus(s string) error {
	switch s {
	case models.UserActive, models.UserDisabled:
		return nil
	}
	return errBadStatus
}
