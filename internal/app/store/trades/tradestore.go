// internal/app/store/trades/tradestore.go
package tradestore

import (
	"context"
	"errors"
	"regexp"
	"strings"
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
	// ErrNotFound is returned when no trade matches.
	ErrNotFound = errors.New("trade not found")
	// ErrConflict is returned when a guarded update finds the trade in a
	// different status than the caller checked.
	ErrConflict = errors.New("trade was changed by someone else")

	errTitleRequired   = errors.New("title is required")
	errCreatorRequired = errors.New("creator is required")
	errNoEvidence      = errors.New("evidence has no url")
)

// DefaultCategory is used when a trade is created without one.
const DefaultCategory = "general"

type Store struct {
	c *mongo.Collection
}

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("trades")}
}

// Create inserts a new open trade. Creator fields must be set.
func (s *Store) Create(ctx context.Context, t models.Trade) (models.Trade, error) {
	t.ID = primitive.NewObjectID()
	t.Title = normalize.Name(t.Title)
	t.TitleCI = text.Fold(t.Title)
	t.Category = strings.ToLower(normalize.Name(t.Category))
	if t.Category == "" {
		t.Category = DefaultCategory
	}
	t.OfferedSkills = normalize.Skills(t.OfferedSkills)
	t.RequestedSkills = normalize.Skills(t.RequestedSkills)
	t.Status = lifecycle.TradeOpen
	t.ParticipantID = nil
	t.ParticipantName = ""
	t.ParticipantPhoto = ""
	t.CompletionRequestedBy = nil
	t.CompletionRequestedAt = nil
	t.Evidence = []models.Evidence{}
	t.ChangeRequests = []models.ChangeRequest{}

	if t.Title == "" {
		return models.Trade{}, errTitleRequired
	}
	if t.CreatorID.IsZero() {
		return models.Trade{}, errCreatorRequired
	}

	now := time.Now().UTC()
	t.CreatedAt = now
	t.UpdatedAt = now
	if _, err := s.c.InsertOne(ctx, t); err != nil {
		return models.Trade{}, err
	}
	return t, nil
}

// GetByID loads a trade.
func (s *Store) GetByID(ctx context.Context, id primitive.ObjectID) (*models.Trade, error) {
	var t models.Trade
	if err := s.c.FindOne(ctx, bson.M{"_id": id}).Decode(&t); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	normalizeSlices(&t)
	return &t, nil
}

// ListFilter narrows List. Empty fields do not filter.
type ListFilter struct {
	Status        lifecycle.TradeStatus
	Category      string
	CreatorID     *primitive.ObjectID
	ParticipantID *primitive.ObjectID
	Search        string // prefix of the title, any case
	Skill         string // offered or requested skill name, any case
}

func (f ListFilter) query() bson.M {
	q := bson.M{}
	if f.Status != "" {
		q["status"] = f.Status
	}
	if f.Category != "" {
		q["category"] = strings.ToLower(f.Category)
	}
	if f.CreatorID != nil {
		q["creator_id"] = *f.CreatorID
	}
	if f.ParticipantID != nil {
		q["participant_id"] = *f.ParticipantID
	}
	if f.Search != "" {
		q["title_ci"] = bson.M{"$regex": "^" + regexp.QuoteMeta(text.Fold(f.Search))}
	}
	if f.Skill != "" {
		re := bson.M{"$regex": "^" + regexp.QuoteMeta(f.Skill) + "$", "$options": "i"}
		q["$or"] = bson.A{
			bson.M{"offered_skills.name": re},
			bson.M{"requested_skills.name": re},
		}
	}
	return q
}

// List returns trades newest first with keyset paging.
func (s *Store) List(ctx context.Context, f ListFilter, p paging.Params) (paging.Page[models.Trade], error) {
	return s.page(ctx, f.query(), p)
}

// ListForUser returns trades the user created or takes part in, newest first.
func (s *Store) ListForUser(ctx context.Context, userID primitive.ObjectID, status lifecycle.TradeStatus, p paging.Params) (paging.Page[models.Trade], error) {
	q := bson.M{"$or": bson.A{
		bson.M{"creator_id": userID},
		bson.M{"participant_id": userID},
	}}
	if status != "" {
		q["status"] = status
	}
	return s.page(ctx, q, p)
}

func (s *Store) page(ctx context.Context, q bson.M, p paging.Params) (paging.Page[models.Trade], error) {
	cfg := paging.ConfigureKeyset(p, paging.Descending)
	if win := cfg.KeysetWindow(""); win != nil {
		q = bson.M{"$and": bson.A{q, win}}
	}
	find := options.Find()
	cfg.ApplyToFind(find, "", p)

	rows, err := s.find(ctx, q, find)
	if err != nil {
		return paging.Page[models.Trade]{}, err
	}
	return paging.Finish(rows, p, cfg, nil, func(t models.Trade) primitive.ObjectID { return t.ID }), nil
}

// Change carries the fields written alongside a status transition.
type Change struct {
	// Participant is set when a proposal is accepted.
	Participant *models.UserRef
	// RequestedBy and Notes are set on a completion request. Evidence is
	// appended at the same time.
	RequestedBy *primitive.ObjectID
	Notes       string
	Evidence    []models.Evidence
	// ClearRequest removes the completion request (changes requested,
	// dispute resolved).
	ClearRequest  bool
	ChangeRequest *models.ChangeRequest
	DisputeReason string
	// Completed stamps completed_at.
	Completed bool
}

// Transition moves a trade from one status to another. The update only
// applies while the stored status is still from; otherwise ErrConflict is
// returned (or ErrNotFound when the trade does not exist).
func (s *Store) Transition(ctx context.Context, id primitive.ObjectID, from, to lifecycle.TradeStatus, ch Change) (*models.Trade, error) {
	now := time.Now().UTC()
	set := bson.M{"status": to, "updated_at": now}
	unset := bson.M{}
	push := bson.M{}

	if ch.Participant != nil {
		set["participant_id"] = ch.Participant.ID
		set["participant_name"] = ch.Participant.Name
		set["participant_photo"] = ch.Participant.PhotoURL
	}
	if ch.RequestedBy != nil {
		set["completion_requested_by"] = *ch.RequestedBy
		set["completion_requested_at"] = now
		set["completion_notes"] = ch.Notes
		unset["reminder_sent_at"] = ""
	}
	if len(ch.Evidence) > 0 {
		evs, err := prepareEvidence(ch.Evidence, now)
		if err != nil {
			return nil, err
		}
		push["evidence"] = bson.M{"$each": evs}
	}
	if ch.ClearRequest {
		unset["completion_requested_by"] = ""
		unset["completion_requested_at"] = ""
		unset["completion_notes"] = ""
		unset["reminder_sent_at"] = ""
	}
	if ch.ChangeRequest != nil {
		cr := *ch.ChangeRequest
		if cr.At.IsZero() {
			cr.At = now
		}
		push["change_requests"] = cr
	}
	if ch.DisputeReason != "" {
		set["dispute_reason"] = ch.DisputeReason
	}
	if ch.Completed {
		set["completed_at"] = now
	}

	upd := bson.M{"$set": set}
	if len(unset) > 0 {
		upd["$unset"] = unset
	}
	if len(push) > 0 {
		upd["$push"] = push
	}

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var t models.Trade
	err := s.c.FindOneAndUpdate(ctx, bson.M{"_id": id, "status": from}, upd, opts).Decode(&t)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, s.missReason(ctx, id)
	}
	if err != nil {
		return nil, err
	}
	normalizeSlices(&t)
	return &t, nil
}

// AddEvidence appends evidence while the trade is in one of statuses.
func (s *Store) AddEvidence(ctx context.Context, id primitive.ObjectID, statuses []lifecycle.TradeStatus, ev models.Evidence) (models.Evidence, error) {
	now := time.Now().UTC()
	evs, err := prepareEvidence([]models.Evidence{ev}, now)
	if err != nil {
		return models.Evidence{}, err
	}
	res, err := s.c.UpdateOne(ctx,
		bson.M{"_id": id, "status": bson.M{"$in": statuses}},
		bson.M{"$push": bson.M{"evidence": evs[0]}, "$set": bson.M{"updated_at": now}})
	if err != nil {
		return models.Evidence{}, err
	}
	if res.MatchedCount == 0 {
		return models.Evidence{}, s.missReason(ctx, id)
	}
	return evs[0], nil
}

// ListPendingOlderThan returns pending_confirmation trades whose completion
// was requested at or before before, oldest request first. With
// unremindedOnly, trades that already got a reminder are skipped.
func (s *Store) ListPendingOlderThan(ctx context.Context, before time.Time, unremindedOnly bool, limit int64) ([]models.Trade, error) {
	q := bson.M{
		"status":                  lifecycle.TradePendingConfirmation,
		"completion_requested_at": bson.M{"$lte": before},
	}
	if unremindedOnly {
		q["reminder_sent_at"] = bson.M{"$exists": false}
	}
	find := options.Find().SetSort(bson.D{{Key: "completion_requested_at", Value: 1}, {Key: "_id", Value: 1}})
	if limit > 0 {
		find.SetLimit(limit)
	}
	return s.find(ctx, q, find)
}

// MarkReminderSent stamps reminder_sent_at once per completion request.
// It reports false when the trade was already reminded or is no longer pending.
func (s *Store) MarkReminderSent(ctx context.Context, id primitive.ObjectID) (bool, error) {
	res, err := s.c.UpdateOne(ctx, bson.M{
		"_id":              id,
		"status":           lifecycle.TradePendingConfirmation,
		"reminder_sent_at": bson.M{"$exists": false},
	}, bson.M{"$set": bson.M{"reminder_sent_at": time.Now().UTC()}})
	if err != nil {
		return false, err
	}
	return res.ModifiedCount == 1, nil
}

// UpdateDisplayFields rewrites the denormalized name and photo of ref on
// every trade they created or take part in.
func (s *Store) UpdateDisplayFields(ctx context.Context, ref models.UserRef) (int64, error) {
	a, err := s.c.UpdateMany(ctx, bson.M{"creator_id": ref.ID},
		bson.M{"$set": bson.M{"creator_name": ref.Name, "creator_photo": ref.PhotoURL}})
	if err != nil {
		return 0, err
	}
	b, err := s.c.UpdateMany(ctx, bson.M{"participant_id": ref.ID},
		bson.M{"$set": bson.M{"participant_name": ref.Name, "participant_photo": ref.PhotoURL}})
	if err != nil {
		return a.ModifiedCount, err
	}
	return a.ModifiedCount + b.ModifiedCount, nil
}

func (s *Store) missReason(ctx context.Context, id primitive.ObjectID) error {
	n, err := s.c.CountDocuments(ctx, bson.M{"_id": id})
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return ErrConflict
}

func (s *Store) find(ctx context.Context, q bson.M, opts *options.FindOptions) ([]models.Trade, error) {
	cur, err := s.c.Find(ctx, q, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	out := []models.Trade{}
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	for i := range out {
		normalizeSlices(&out[i])
	}
	return out, nil
}

// prepareEvidence assigns ids and timestamps and rejects entries without a URL.
func prepareEvidence(in []models.Evidence, now time.Time) ([]models.Evidence, error) {
	out := make([]models.Evidence, 0, len(in))
	for _, ev := range in {
		ev.URL = strings.TrimSpace(ev.URL)
		if ev.URL == "" {
			return nil, errNoEvidence
		}
		if ev.ID == "" {
			ev.ID = uuid.NewString()
		}
		ev.Kind = strings.ToLower(strings.TrimSpace(ev.Kind))
		if ev.Kind == "" {
			ev.Kind = "link"
		}
		ev.Title = normalize.Name(ev.Title)
		if ev.AddedAt.IsZero() {
			ev.AddedAt = now
		}
		out = append(out, ev)
	}
	return out, nil
}

func normalizeSlices(t *models.Trade) {
	if t.OfferedSkills == nil {
		t.OfferedSkills = []models.Skill{}
	}
	if t.RequestedSkills == nil {
		t.RequestedSkills = []models.Skill{}
	}
	if t.Evidence == nil {
		t.Evidence = []models.Evidence{}
	}
	if t.ChangeRequests == nil {
		t.ChangeRequests = []models.ChangeRequest{}
	}
}
