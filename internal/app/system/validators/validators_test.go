package validators_test

import (
	"context"
	"testing"
	"time"

	"github.com/tradeya/tradeya/internal/app/system/validators"
	"github.com/tradeya/tradeya/internal/testutil"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

func setup(t *testing.T) (*mongo.Database, context.Context) {
	t.Helper()
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	t.Cleanup(cancel)
	if err := validators.EnsureAll(ctx, db); err != nil {
		t.Fatalf("EnsureAll failed: %v", err)
	}
	return db, ctx
}

func validUser() bson.M {
	return bson.M{
		"display_name":    "Ana Lima",
		"display_name_ci": "ana lima",
		"email":           "ana@example.com",
		"email_ci":        "ana@example.com",
		"role":            "user",
		"status":          "active",
		"auth_method":     "password",
		"skills_offered":  bson.A{bson.M{"name": "Go", "level": "expert"}},
		"skills_wanted":   bson.A{},
		"xp":              int64(0),
		"level":           1,
	}
}

func validTrade() bson.M {
	return bson.M{
		"title":            "Go for guitar",
		"title_ci":         "go for guitar",
		"status":           "open",
		"creator_id":       primitive.NewObjectID(),
		"offered_skills":   bson.A{bson.M{"name": "Go"}},
		"requested_skills": bson.A{bson.M{"name": "Guitar"}},
		"evidence":         bson.A{},
		"change_requests":  bson.A{},
		"created_at":       time.Now(),
	}
}

func with(doc bson.M, key string, v any) bson.M {
	out := bson.M{}
	for k, val := range doc {
		out[k] = val
	}
	if v == nil {
		delete(out, key)
	} else {
		out[key] = v
	}
	return out
}

func TestEnsureAll_Idempotent(t *testing.T) {
	db, ctx := setup(t)

	// Second call should also succeed (idempotent)
	if err := validators.EnsureAll(ctx, db); err != nil {
		t.Fatalf("Second EnsureAll failed: %v", err)
	}
}

func TestEnsureAll_CreatesCollections(t *testing.T) {
	db, ctx := setup(t)

	expectedCollections := []string{
		"users", "trades", "proposals", "collaborations", "role_applications",
		"notifications", "challenges", "challenge_participants", "xp_transactions",
		"login_records", "oauth_states", "audit_events",
	}

	names, err := db.ListCollectionNames(ctx, bson.M{})
	if err != nil {
		t.Fatalf("ListCollectionNames failed: %v", err)
	}
	collMap := make(map[string]bool)
	for _, name := range names {
		collMap[name] = true
	}
	for _, expected := range expectedCollections {
		if !collMap[expected] {
			t.Errorf("expected collection %q to exist", expected)
		}
	}
}

func TestUsersValidator(t *testing.T) {
	db, ctx := setup(t)

	tests := []struct {
		name    string
		doc     bson.M
		wantErr bool
	}{
		{"valid", validUser(), false},
		{"missing display name", with(validUser(), "display_name", nil), true},
		{"blank display name", with(validUser(), "display_name", "   "), true},
		{"invalid role", with(validUser(), "role", "superadmin"), true},
		{"invalid status", with(validUser(), "status", "pending"), true},
		{"invalid auth method", with(validUser(), "auth_method", "clever"), true},
		{"google auth method", with(with(validUser(), "auth_method", "google"), "email_ci", "g@example.com"), false},
		{"null skills", with(validUser(), "skills_offered", primitive.Null{}), true},
		{"skill without name", with(validUser(), "skills_wanted", bson.A{bson.M{"level": "beginner"}}), true},
		{"negative xp", with(with(validUser(), "xp", int64(-1)), "email_ci", "neg@example.com"), true},
	}

	for i, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := tt.doc
			if !tt.wantErr {
				// keep valid inserts distinct for the unique email index (if present)
				doc = with(doc, "email_ci", primitive.NewObjectID().Hex()+"@example.com")
			}
			_, err := db.Collection("users").InsertOne(ctx, doc)
			if tt.wantErr && err == nil {
				t.Errorf("case %d: expected validation error", i)
			}
			if !tt.wantErr && err != nil {
				t.Errorf("case %d: unexpected error: %v", i, err)
			}
		})
	}
}

func TestTradesValidator(t *testing.T) {
	db, ctx := setup(t)

	tests := []struct {
		name    string
		doc     bson.M
		wantErr bool
	}{
		{"valid", validTrade(), false},
		{"all statuses accepted", with(validTrade(), "status", "pending_confirmation"), false},
		{"unknown status", with(validTrade(), "status", "proposed"), true},
		{"missing creator", with(validTrade(), "creator_id", nil), true},
		{"creator as string", with(validTrade(), "creator_id", "abc"), true},
		{"missing evidence array", with(validTrade(), "evidence", nil), true},
		{"evidence without url", with(validTrade(), "evidence", bson.A{bson.M{"id": "x", "added_by": primitive.NewObjectID(), "added_at": time.Now()}}), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := db.Collection("trades").InsertOne(ctx, tt.doc)
			if tt.wantErr && err == nil {
				t.Error("expected validation error")
			}
			if !tt.wantErr && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}

func TestProposalsValidator(t *testing.T) {
	db, ctx := setup(t)

	valid := bson.M{
		"trade_id":       primitive.NewObjectID(),
		"proposer_id":    primitive.NewObjectID(),
		"status":         "pending",
		"offered_skills": bson.A{},
		"created_at":     time.Now(),
	}
	if _, err := db.Collection("proposals").InsertOne(ctx, valid); err != nil {
		t.Errorf("Insert valid proposal failed: %v", err)
	}
	if _, err := db.Collection("proposals").InsertOne(ctx, with(valid, "status", "expired")); err == nil {
		t.Error("expected validation error for unknown proposal status")
	}
}

func TestCollaborationsValidator(t *testing.T) {
	db, ctx := setup(t)

	valid := bson.M{
		"title":           "Indie game",
		"title_ci":        "indie game",
		"status":          "recruiting",
		"creator_id":      primitive.NewObjectID(),
		"roles":           bson.A{bson.M{"id": "r1", "title": "Artist", "status": "open", "required_skills": bson.A{}}},
		"participant_ids": bson.A{},
		"created_at":      time.Now(),
	}
	if _, err := db.Collection("collaborations").InsertOne(ctx, valid); err != nil {
		t.Errorf("Insert valid collaboration failed: %v", err)
	}

	badRole := with(valid, "roles", bson.A{bson.M{"id": "r1", "title": "Artist", "status": "vacant"}})
	if _, err := db.Collection("collaborations").InsertOne(ctx, badRole); err == nil {
		t.Error("expected validation error for unknown role status")
	}
}

func TestNotificationsValidator(t *testing.T) {
	db, ctx := setup(t)

	valid := bson.M{
		"recipient_id": primitive.NewObjectID(),
		"type":         "trade_proposal",
		"category":     "trades",
		"title":        "New proposal",
		"read":         false,
		"created_at":   time.Now(),
	}
	if _, err := db.Collection("notifications").InsertOne(ctx, valid); err != nil {
		t.Errorf("Insert valid notification failed: %v", err)
	}
	if _, err := db.Collection("notifications").InsertOne(ctx, with(valid, "type", "friend_request")); err == nil {
		t.Error("expected validation error for unknown notification type")
	}
	if _, err := db.Collection("notifications").InsertOne(ctx, with(valid, "category", "social")); err == nil {
		t.Error("expected validation error for unknown category")
	}
}

func TestXPValidator(t *testing.T) {
	db, ctx := setup(t)

	valid := bson.M{
		"user_id":    primitive.NewObjectID(),
		"amount":     int64(50),
		"source":     "trade",
		"source_id":  primitive.NewObjectID(),
		"created_at": time.Now(),
	}
	if _, err := db.Collection("xp_transactions").InsertOne(ctx, valid); err != nil {
		t.Errorf("Insert valid xp transaction failed: %v", err)
	}
	if _, err := db.Collection("xp_transactions").InsertOne(ctx, with(valid, "source", "gift")); err == nil {
		t.Error("expected validation error for unknown xp source")
	}
}

func TestLoginRecords_NoValidator(t *testing.T) {
	db, ctx := setup(t)

	// login_records has no validator; any document is accepted
	if _, err := db.Collection("login_records").InsertOne(ctx, bson.M{"anything": "goes"}); err != nil {
		t.Errorf("Insert into login_records failed: %v", err)
	}
}
