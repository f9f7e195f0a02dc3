package testutil

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/dalemusser/waffle/pantry/text"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/tradeya/tradeya/internal/domain/lifecycle"
	"github.com/tradeya/tradeya/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"golang.org/x/crypto/bcrypt"
)

// WithChiURLParam adds a chi URL parameter to the request context.
// Use this in handler tests that need to access chi.URLParam values.
func WithChiURLParam(r *http.Request, key, value string) *http.Request {
	rctx, ok := r.Context().Value(chi.RouteCtxKey).(*chi.Context)
	if !ok || rctx == nil {
		rctx = chi.NewRouteContext()
		r = r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
	}
	rctx.URLParams.Add(key, value)
	return r
}

// Fixtures provides helper methods for creating test data.
// Documents are inserted directly so fixtures do not depend on the stores
// under test.
type Fixtures struct {
	db *mongo.Database
	t  *testing.T
}

// NewFixtures creates a new Fixtures instance for the given test database.
func NewFixtures(t *testing.T, db *mongo.Database) *Fixtures {
	t.Helper()
	return &Fixtures{db: db, t: t}
}

// DB returns the underlying database for direct access in tests.
func (f *Fixtures) DB() *mongo.Database {
	return f.db
}

// TestPassword is the password of users created with CreateUserWithPassword.
const TestPassword = "correct-horse-battery"

// CreateUser creates an active user with the given display name, email and role.
func (f *Fixtures) CreateUser(ctx context.Context, name, email, role string) models.User {
	f.t.Helper()
	now := time.Now().UTC()
	u := models.User{
		ID:            primitive.NewObjectID(),
		DisplayName:   name,
		DisplayNameCI: text.Fold(name),
		Email:         email,
		EmailCI:       text.Fold(email),
		AuthMethod:    "password",
		PhotoURL:      "https://img.test/" + text.Fold(name) + ".png",
		SkillsOffered: []models.Skill{},
		SkillsWanted:  []models.Skill{},
		Role:          role,
		Status:        "active",
		Level:         1,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if _, err := f.db.Collection("users").InsertOne(ctx, u); err != nil {
		f.t.Fatalf("failed to create test user: %v", err)
	}
	return u
}

// CreateAdmin creates an admin user.
func (f *Fixtures) CreateAdmin(ctx context.Context, name, email string) models.User {
	f.t.Helper()
	return f.CreateUser(ctx, name, email, "admin")
}

// CreateUserWithPassword creates a user whose password is TestPassword.
func (f *Fixtures) CreateUserWithPassword(ctx context.Context, name, email string) models.User {
	f.t.Helper()
	u := f.CreateUser(ctx, name, email, "user")
	hash, err := bcrypt.GenerateFromPassword([]byte(TestPassword), bcrypt.MinCost)
	if err != nil {
		f.t.Fatalf("bcrypt: %v", err)
	}
	h := string(hash)
	u.PasswordHash = &h
	if _, err := f.db.Collection("users").UpdateByID(ctx, u.ID, map[string]any{"$set": map[string]any{"password_hash": h}}); err != nil {
		f.t.Fatalf("failed to set password: %v", err)
	}
	return u
}

// CreateDisabledUser creates a disabled user.
func (f *Fixtures) CreateDisabledUser(ctx context.Context, name, email string) models.User {
	f.t.Helper()
	u := f.CreateUser(ctx, name, email, "user")
	if _, err := f.db.Collection("users").UpdateByID(ctx, u.ID, map[string]any{"$set": map[string]any{"status": "disabled"}}); err != nil {
		f.t.Fatalf("failed to disable user: %v", err)
	}
	u.Status = "disabled"
	return u
}

// CreateTrade creates a trade owned by creator with the given status.
// Trades past open get participant as their counterpart; pending trades are
// marked as requested by the creator.
func (f *Fixtures) CreateTrade(ctx context.Context, title string, creator models.User, status lifecycle.TradeStatus, participant *models.User) models.Trade {
	f.t.Helper()
	now := time.Now().UTC()
	tr := models.Trade{
		ID:              primitive.NewObjectID(),
		Title:           title,
		TitleCI:         text.Fold(title),
		Description:     "Test trade",
		OfferedSkills:   []models.Skill{{Name: "Go"}},
		RequestedSkills: []models.Skill{{Name: "Guitar"}},
		Category:        "tech",
		Status:          status,
		CreatorID:       creator.ID,
		CreatorName:     creator.DisplayName,
		CreatorPhoto:    creator.PhotoURL,
		Evidence:        []models.Evidence{},
		ChangeRequests:  []models.ChangeRequest{},
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if participant != nil {
		pid := participant.ID
		tr.ParticipantID = &pid
		tr.ParticipantName = participant.DisplayName
		tr.ParticipantPhoto = participant.PhotoURL
	}
	if status == lifecycle.TradePendingConfirmation {
		by := creator.ID
		tr.CompletionRequestedBy = &by
		tr.CompletionRequestedAt = &now
	}
	if _, err := f.db.Collection("trades").InsertOne(ctx, tr); err != nil {
		f.t.Fatalf("failed to create test trade: %v", err)
	}
	return tr
}

// CreateProposal creates a pending proposal by proposer on trade.
func (f *Fixtures) CreateProposal(ctx context.Context, trade models.Trade, proposer models.User) models.Proposal {
	f.t.Helper()
	now := time.Now().UTC()
	p := models.Proposal{
		ID:            primitive.NewObjectID(),
		TradeID:       trade.ID,
		ProposerID:    proposer.ID,
		ProposerName:  proposer.DisplayName,
		ProposerPhoto: proposer.PhotoURL,
		Message:       "I can help",
		OfferedSkills: []models.Skill{},
		Status:        lifecycle.DecisionPending,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if _, err := f.db.Collection("proposals").InsertOne(ctx, p); err != nil {
		f.t.Fatalf("failed to create test proposal: %v", err)
	}
	return p
}

// CreateCollaboration creates a recruiting collaboration with one open role
// per title.
func (f *Fixtures) CreateCollaboration(ctx context.Context, title string, creator models.User, roleTitles ...string) models.Collaboration {
	f.t.Helper()
	now := time.Now().UTC()
	roles := make([]models.Role, 0, len(roleTitles))
	for _, rt := range roleTitles {
		roles = append(roles, models.Role{
			ID:             uuid.NewString(),
			Title:          rt,
			RequiredSkills: []models.Skill{},
			Status:         lifecycle.RoleOpen,
		})
	}
	c := models.Collaboration{
		ID:             primitive.NewObjectID(),
		Title:          title,
		TitleCI:        text.Fold(title),
		Description:    "Test collaboration",
		CreatorID:      creator.ID,
		CreatorName:    creator.DisplayName,
		CreatorPhoto:   creator.PhotoURL,
		Status:         lifecycle.CollabRecruiting,
		Roles:          roles,
		ParticipantIDs: []primitive.ObjectID{},
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if _, err := f.db.Collection("collaborations").InsertOne(ctx, c); err != nil {
		f.t.Fatalf("failed to create test collaboration: %v", err)
	}
	return c
}

// CreateApplication creates a pending application for roleID.
func (f *Fixtures) CreateApplication(ctx context.Context, c models.Collaboration, roleID string, applicant models.User) models.RoleApplication {
	f.t.Helper()
	now := time.Now().UTC()
	a := models.RoleApplication{
		ID:              primitive.NewObjectID(),
		CollaborationID: c.ID,
		RoleID:          roleID,
		ApplicantID:     applicant.ID,
		ApplicantName:   applicant.DisplayName,
		ApplicantPhoto:  applicant.PhotoURL,
		Message:         "Pick me",
		Status:          lifecycle.DecisionPending,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if _, err := f.db.Collection("role_applications").InsertOne(ctx, a); err != nil {
		f.t.Fatalf("failed to create test application: %v", err)
	}
	return a
}

// CreateChallenge creates an active challenge that started an hour ago.
func (f *Fixtures) CreateChallenge(ctx context.Context, title string, xp int64, createdBy primitive.ObjectID) models.Challenge {
	f.t.Helper()
	now := time.Now().UTC()
	c := models.Challenge{
		ID:          primitive.NewObjectID(),
		Title:       title,
		TitleCI:     text.Fold(title),
		Description: "Test challenge",
		Category:    "tech",
		Difficulty:  "beginner",
		XPReward:    xp,
		Status:      models.ChallengeActive,
		StartsAt:    now.Add(-time.Hour),
		CreatedBy:   createdBy,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if _, err := f.db.Collection("challenges").InsertOne(ctx, c); err != nil {
		f.t.Fatalf("failed to create test challenge: %v", err)
	}
	return c
}
