package indexes

import (
	"context"
	"testing"

	"github.com/tradeya/tradeya/internal/testutil"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

func indexNames(t *testing.T, ctx context.Context, db *mongo.Database, coll string) map[string]bool {
	t.Helper()
	cur, err := db.Collection(coll).Indexes().List(ctx)
	if err != nil {
		t.Fatalf("List indexes on %s failed: %v", coll, err)
	}
	defer cur.Close(ctx)

	names := make(map[string]bool)
	for cur.Next(ctx) {
		var idx bson.M
		if err := cur.Decode(&idx); err != nil {
			continue
		}
		if name, ok := idx["name"].(string); ok {
			names[name] = true
		}
	}
	return names
}

func TestEnsureAll(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	// EnsureAll should succeed on a clean database
	if err := EnsureAll(ctx, db); err != nil {
		t.Fatalf("EnsureAll failed: %v", err)
	}
}

func TestEnsureAll_Idempotent(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	if err := EnsureAll(ctx, db); err != nil {
		t.Fatalf("First EnsureAll failed: %v", err)
	}
	// Second call should also succeed (idempotent)
	if err := EnsureAll(ctx, db); err != nil {
		t.Fatalf("Second EnsureAll failed: %v", err)
	}
}

func TestEnsureAll_CreatesIndexes(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	if err := EnsureAll(ctx, db); err != nil {
		t.Fatalf("EnsureAll failed: %v", err)
	}

	tests := []struct {
		coll string
		want []string
	}{
		{"users", []string{"uniq_users_emailci", "uniq_users_googlesub", "idx_users_status_displaynameci__id", "idx_users_status_xp__id"}},
		{"trades", []string{"idx_trades_status__id", "idx_trades_category_status__id", "idx_trades_creator__id", "idx_trades_participant__id", "idx_trades_titleci__id", "idx_trades_status_completionrequestedat"}},
		{"proposals", []string{"uniq_proposals_trade_proposer_pending", "idx_proposals_trade_status__id", "idx_proposals_proposer__id"}},
		{"collaborations", []string{"idx_collabs_status__id", "idx_collabs_creator__id", "idx_collabs_participants__id", "idx_collabs_titleci__id"}},
		{"role_applications", []string{"uniq_apps_collab_role_applicant_pending", "idx_apps_collab_status__id", "idx_apps_applicant__id"}},
		{"notifications", []string{"uniq_notifications_recipient_dedupe", "idx_notifications_recipient__id", "idx_notifications_recipient_category__id", "idx_notifications_recipient_read", "idx_notifications_read_readat"}},
		{"challenges", []string{"idx_challenges_status__id", "idx_challenges_status_endsat"}},
		{"challenge_participants", []string{"uniq_participants_challenge_user", "idx_participants_challenge_status__id", "idx_participants_user__id"}},
		{"xp_transactions", []string{"uniq_xp_user_source_sourceid", "idx_xp_user__id"}},
		{"login_records", []string{"idx_logins_user_created", "idx_logins_created"}},
		{"oauth_states", []string{"uniq_oauthstate_state", "idx_oauthstate_expires_ttl"}},
		{"audit_events", []string{"idx_audit_timestamp", "idx_audit_user_timestamp", "idx_audit_category_event_timestamp"}},
	}

	for _, tt := range tests {
		t.Run(tt.coll, func(t *testing.T) {
			names := indexNames(t, ctx, db, tt.coll)
			for _, name := range tt.want {
				if !names[name] {
					t.Errorf("expected index %q to exist on %s collection", name, tt.coll)
				}
			}
		})
	}
}

func TestEnsureAll_RenamesMisnamedIndex(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	// Same keys as idx_logins_created under a legacy name
	_, err := db.Collection("login_records").Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "created_at", Value: -1}},
		Options: options.Index().SetName("legacy_created"),
	})
	if err != nil {
		t.Fatalf("create legacy index: %v", err)
	}

	if err := EnsureAll(ctx, db); err != nil {
		t.Fatalf("EnsureAll failed: %v", err)
	}

	names := indexNames(t, ctx, db, "login_records")
	if names["legacy_created"] {
		t.Error("legacy index should have been dropped")
	}
	if !names["idx_logins_created"] {
		t.Error("idx_logins_created should exist")
	}
}

func TestEnsureAll_UniqueEmailEnforced(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	if err := EnsureAll(ctx, db); err != nil {
		t.Fatalf("EnsureAll failed: %v", err)
	}

	users := db.Collection("users")
	if _, err := users.InsertOne(ctx, bson.M{"email_ci": "ana@example.com"}); err != nil {
		t.Fatalf("Insert user failed: %v", err)
	}
	if _, err := users.InsertOne(ctx, bson.M{"email_ci": "ana@example.com"}); err == nil {
		t.Error("expected duplicate key error for unique index on users.email_ci")
	}
}

func TestEnsureAll_PendingProposalUniqueOnlyWhilePending(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	if err := EnsureAll(ctx, db); err != nil {
		t.Fatalf("EnsureAll failed: %v", err)
	}

	c := db.Collection("proposals")
	tradeID, proposerID := primitive.NewObjectID(), primitive.NewObjectID()
	doc := func(status string) bson.M {
		return bson.M{"trade_id": tradeID, "proposer_id": proposerID, "status": status}
	}

	if _, err := c.InsertOne(ctx, doc("withdrawn")); err != nil {
		t.Fatalf("insert withdrawn: %v", err)
	}
	if _, err := c.InsertOne(ctx, doc("pending")); err != nil {
		t.Fatalf("insert pending after withdrawn: %v", err)
	}
	if _, err := c.InsertOne(ctx, doc("pending")); err == nil {
		t.Error("expected duplicate key error for second pending proposal")
	}
}

func TestKeySig(t *testing.T) {
	got := keySig(bson.D{{Key: "status", Value: 1}, {Key: "_id", Value: -1}})
	if got != "status:1, _id:-1" {
		t.Errorf("keySig() = %q", got)
	}
}

func TestSameBoolPtr(t *testing.T) {
	yes, no := true, false
	tests := []struct {
		a, b *bool
		want bool
	}{
		{nil, nil, true},
		{nil, &no, true},
		{&yes, nil, false},
		{&yes, &yes, true},
	}
	for _, tt := range tests {
		if got := sameBoolPtr(tt.a, tt.b); got != tt.want {
			t.Errorf("sameBoolPtr(%v, %v) = %v, want %v", tt.a, tt.b, got, tt.want)
		}
	}
}
