package challengestore_test

import (
	"errors"
	"testing"
	"time"

	challengestore "github.com/tradeya/tradeya/internal/app/store/challenges"
	"github.com/tradeya/tradeya/internal/app/system/paging"
	"github.com/tradeya/tradeya/internal/domain/models"
	"github.com/tradeya/tradeya/internal/testutil"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestStore_Create(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := challengestore.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	c, err := store.Create(ctx, models.Challenge{
		Title:     "  Build a  CLI ",
		Category:  "Tech",
		XPReward:  50,
		CreatedBy: primitive.NewObjectID(),
	})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if c.Title != "Build a CLI" || c.Category != "tech" {
		t.Errorf("not normalized: %q / %q", c.Title, c.Category)
	}
	if c.Status != models.ChallengeActive || c.Difficulty != "beginner" || c.StartsAt.IsZero() {
		t.Errorf("defaults not applied: %+v", c)
	}
}

func TestStore_Create_Invalid(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := challengestore.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	past := time.Now().UTC().Add(-time.Hour)
	tests := []struct {
		name string
		c    models.Challenge
	}{
		{"no title", models.Challenge{XPReward: 10}},
		{"zero reward", models.Challenge{Title: "A"}},
		{"ends before start", models.Challenge{Title: "A", XPReward: 10, EndsAt: &past}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := store.Create(ctx, tt.c); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestStore_ListAndSetStatus(t *testing.T) {
	db := testutil.SetupTestDB(t)
	fx := testutil.NewFixtures(t, db)
	store := challengestore.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	admin := primitive.NewObjectID()
	a := fx.CreateChallenge(ctx, "Alpha Sprint", 10, admin)
	b := fx.CreateChallenge(ctx, "Beta Sprint", 20, admin)

	if _, err := store.SetStatus(ctx, a.ID, models.ChallengeActive, models.ChallengeClosed); err != nil {
		t.Fatalf("SetStatus failed: %v", err)
	}
	if _, err := store.SetStatus(ctx, a.ID, models.ChallengeActive, models.ChallengeClosed); !errors.Is(err, challengestore.ErrConflict) {
		t.Errorf("second close err = %v, want ErrConflict", err)
	}
	if _, err := store.SetStatus(ctx, primitive.NewObjectID(), models.ChallengeActive, models.ChallengeClosed); !errors.Is(err, challengestore.ErrNotFound) {
		t.Errorf("missing err = %v, want ErrNotFound", err)
	}

	page, err := store.List(ctx, challengestore.ListFilter{Status: models.ChallengeActive}, paging.Params{})
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(page.Items) != 1 || page.Items[0].ID != b.ID {
		t.Errorf("active list = %d items, want just beta", len(page.Items))
	}
	page, _ = store.List(ctx, challengestore.ListFilter{Search: "alp"}, paging.Params{})
	if len(page.Items) != 1 || page.Items[0].ID != a.ID {
		t.Errorf("search alp = %d items, want alpha", len(page.Items))
	}
}

func TestStore_CloseExpired(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := challengestore.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	now := time.Now().UTC()
	soon := now.Add(time.Hour)
	start := now.Add(-2 * time.Hour)
	expired, err := store.Create(ctx, models.Challenge{Title: "Expired", XPReward: 5, StartsAt: start, EndsAt: &soon})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	open, _ := store.Create(ctx, models.Challenge{Title: "Open ended", XPReward: 5})

	n, err := store.CloseExpired(ctx, soon.Add(time.Minute))
	if err != nil || n != 1 {
		t.Fatalf("CloseExpired = %d, %v; want 1", n, err)
	}
	got, _ := store.GetByID(ctx, expired.ID)
	if got.Status != models.ChallengeClosed {
		t.Errorf("expired status = %q, want closed", got.Status)
	}
	got, _ = store.GetByID(ctx, open.ID)
	if got.Status != models.ChallengeActive {
		t.Errorf("open-ended challenge should stay active")
	}
}
