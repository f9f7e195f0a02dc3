package oauthstate_test

import (
	"errors"
	"testing"
	"time"

	"github.com/tradeya/tradeya/internal/app/store/oauthstate"
	"github.com/tradeya/tradeya/internal/testutil"
)

func TestStore_SaveAndValidate(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := oauthstate.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	if err := store.Save(ctx, "state-123", "/trades/abc", time.Now().Add(10*time.Minute)); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	returnURL, valid, err := store.Validate(ctx, "state-123")
	if err != nil {
		t.Fatalf("Validate failed: %v", err)
	}
	if !valid {
		t.Fatal("expected state to be valid")
	}
	if returnURL != "/trades/abc" {
		t.Errorf("returnURL = %q, want /trades/abc", returnURL)
	}
}

func TestStore_Validate_OneTimeUse(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := oauthstate.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	_ = store.Save(ctx, "once", "", time.Now().Add(time.Minute))
	if _, valid, _ := store.Validate(ctx, "once"); !valid {
		t.Fatal("first Validate should succeed")
	}
	if _, valid, err := store.Validate(ctx, "once"); err != nil || valid {
		t.Errorf("second Validate = (%v, %v), want (false, nil)", valid, err)
	}
}

func TestStore_Validate_Expired(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := oauthstate.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	_ = store.Save(ctx, "old", "/x", time.Now().Add(-time.Minute))
	_, valid, err := store.Validate(ctx, "old")
	if err != nil {
		t.Fatalf("Validate failed: %v", err)
	}
	if valid {
		t.Error("expired state should not validate")
	}
}

func TestStore_Validate_Unknown(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := oauthstate.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	for _, s := range []string{"", "never-saved"} {
		if _, valid, err := store.Validate(ctx, s); err != nil || valid {
			t.Errorf("Validate(%q) = (%v, %v), want (false, nil)", s, valid, err)
		}
	}
}

func TestStore_Save_EmptyState(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := oauthstate.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	if err := store.Save(ctx, "", "/", time.Now().Add(time.Minute)); !errors.Is(err, oauthstate.ErrEmptyState) {
		t.Errorf("err = %v, want ErrEmptyState", err)
	}
}

func TestStore_CleanupExpired(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := oauthstate.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	_ = store.Save(ctx, "expired-1", "", time.Now().Add(-time.Hour))
	_ = store.Save(ctx, "expired-2", "", time.Now().Add(-time.Minute))
	_ = store.Save(ctx, "live", "", time.Now().Add(time.Hour))

	n, err := store.CleanupExpired(ctx)
	if err != nil {
		t.Fatalf("CleanupExpired failed: %v", err)
	}
	if n != 2 {
		t.Errorf("deleted %d, want 2", n)
	}
	if _, valid, _ := store.Validate(ctx, "live"); !valid {
		t.Error("live state should survive cleanup")
	}
}
