package proposalstore_test

import (
	"errors"
	"testing"

	proposalstore "github.com/tradeya/tradeya/internal/app/store/proposals"
	"github.com/tradeya/tradeya/internal/app/system/indexes"
	"github.com/tradeya/tradeya/internal/app/system/paging"
	"github.com/tradeya/tradeya/internal/domain/lifecycle"
	"github.com/tradeya/tradeya/internal/domain/models"
	"github.com/tradeya/tradeya/internal/testutil"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestStore_Create(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := proposalstore.New(db)
	fx := testutil.NewFixtures(t, db)
	ctx, cancel := testutil.TestContext()
	defer cancel()
	if err := indexes.EnsureAll(ctx, db); err != nil {
		t.Fatalf("EnsureAll: %v", err)
	}

	creator := fx.CreateUser(ctx, "Creator", "c@example.com", "user")
	bob := fx.CreateUser(ctx, "Bob", "b@example.com", "user")
	tr := fx.CreateTrade(ctx, "Trade", creator, lifecycle.TradeOpen, nil)

	p, err := store.Create(ctx, models.Proposal{TradeID: tr.ID, ProposerID: bob.ID, ProposerName: bob.DisplayName, Status: lifecycle.DecisionAccepted})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if p.Status != lifecycle.DecisionPending {
		t.Errorf("Status = %q, want pending", p.Status)
	}
	if p.OfferedSkills == nil {
		t.Error("OfferedSkills should be an empty slice")
	}

	_, err = store.Create(ctx, models.Proposal{TradeID: tr.ID, ProposerID: bob.ID})
	if !errors.Is(err, proposalstore.ErrDuplicatePending) {
		t.Errorf("second pending proposal: err = %v, want ErrDuplicatePending", err)
	}

	// Once withdrawn, the proposer may propose again.
	if _, err := store.SetStatus(ctx, p.ID, lifecycle.DecisionPending, lifecycle.DecisionWithdrawn); err != nil {
		t.Fatalf("withdraw: %v", err)
	}
	if _, err := store.Create(ctx, models.Proposal{TradeID: tr.ID, ProposerID: bob.ID}); err != nil {
		t.Errorf("re-propose after withdraw: %v", err)
	}

	if _, err := store.Create(ctx, models.Proposal{ProposerID: bob.ID}); err == nil {
		t.Error("missing trade id should fail")
	}
}

func TestStore_SetStatus_Guarded(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := proposalstore.New(db)
	fx := testutil.NewFixtures(t, db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	creator := fx.CreateUser(ctx, "Creator", "c@example.com", "user")
	bob := fx.CreateUser(ctx, "Bob", "b@example.com", "user")
	tr := fx.CreateTrade(ctx, "Trade", creator, lifecycle.TradeOpen, nil)
	p := fx.CreateProposal(ctx, tr, bob)

	got, err := store.SetStatus(ctx, p.ID, lifecycle.DecisionPending, lifecycle.DecisionAccepted)
	if err != nil {
		t.Fatalf("SetStatus failed: %v", err)
	}
	if got.Status != lifecycle.DecisionAccepted {
		t.Errorf("Status = %q", got.Status)
	}
	if _, err := store.SetStatus(ctx, p.ID, lifecycle.DecisionPending, lifecycle.DecisionRejected); !errors.Is(err, proposalstore.ErrConflict) {
		t.Errorf("stale SetStatus err = %v, want ErrConflict", err)
	}
	if _, err := store.SetStatus(ctx, primitive.NewObjectID(), lifecycle.DecisionPending, lifecycle.DecisionRejected); !errors.Is(err, proposalstore.ErrNotFound) {
		t.Errorf("missing proposal err = %v, want ErrNotFound", err)
	}
}

func TestStore_RejectOthers(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := proposalstore.New(db)
	fx := testutil.NewFixtures(t, db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	creator := fx.CreateUser(ctx, "Creator", "c@example.com", "user")
	tr := fx.CreateTrade(ctx, "Trade", creator, lifecycle.TradeOpen, nil)
	other := fx.CreateTrade(ctx, "Other trade", creator, lifecycle.TradeOpen, nil)

	var props []models.Proposal
	for _, n := range []string{"A", "B", "C"} {
		u := fx.CreateUser(ctx, n, n+"@example.com", "user")
		props = append(props, fx.CreateProposal(ctx, tr, u))
	}
	elsewhere := fx.CreateProposal(ctx, other, fx.CreateUser(ctx, "D", "d@example.com", "user"))

	rejected, err := store.RejectOthers(ctx, tr.ID, props[0].ID)
	if err != nil {
		t.Fatalf("RejectOthers failed: %v", err)
	}
	if len(rejected) != 2 {
		t.Fatalf("rejected %d, want 2", len(rejected))
	}

	kept, _ := store.GetByID(ctx, props[0].ID)
	if kept.Status != lifecycle.DecisionPending {
		t.Errorf("kept proposal status = %q", kept.Status)
	}
	for _, p := range props[1:] {
		got, _ := store.GetByID(ctx, p.ID)
		if got.Status != lifecycle.DecisionRejected {
			t.Errorf("proposal %s status = %q, want rejected", p.ProposerName, got.Status)
		}
	}
	untouched, _ := store.GetByID(ctx, elsewhere.ID)
	if untouched.Status != lifecycle.DecisionPending {
		t.Error("proposals on other trades must not change")
	}

	again, err := store.RejectOthers(ctx, tr.ID, props[0].ID)
	if err != nil || len(again) != 0 {
		t.Errorf("second RejectOthers = %d, %v; want 0, nil", len(again), err)
	}
}

func TestStore_ListByTradeAndProposer(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := proposalstore.New(db)
	fx := testutil.NewFixtures(t, db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	creator := fx.CreateUser(ctx, "Creator", "c@example.com", "user")
	bob := fx.CreateUser(ctx, "Bob", "b@example.com", "user")
	cara := fx.CreateUser(ctx, "Cara", "cara@example.com", "user")
	t1 := fx.CreateTrade(ctx, "T1", creator, lifecycle.TradeOpen, nil)
	t2 := fx.CreateTrade(ctx, "T2", creator, lifecycle.TradeOpen, nil)
	fx.CreateProposal(ctx, t1, bob)
	fx.CreateProposal(ctx, t1, cara)
	fx.CreateProposal(ctx, t2, bob)

	all, err := store.ListByTrade(ctx, t1.ID, "")
	if err != nil {
		t.Fatalf("ListByTrade failed: %v", err)
	}
	if len(all) != 2 || all[0].ProposerID != bob.ID {
		t.Errorf("ListByTrade = %d proposals, want 2 oldest first", len(all))
	}
	none, _ := store.ListByTrade(ctx, t1.ID, lifecycle.DecisionAccepted)
	if none == nil || len(none) != 0 {
		t.Errorf("accepted filter = %#v, want empty", none)
	}

	page, err := store.ListByProposer(ctx, bob.ID, paging.Params{})
	if err != nil {
		t.Fatalf("ListByProposer failed: %v", err)
	}
	if len(page.Items) != 2 || page.Items[0].TradeID != t2.ID {
		t.Errorf("ListByProposer should return bob's 2 proposals newest first")
	}
}

func TestStore_UpdateDisplayFields(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := proposalstore.New(db)
	fx := testutil.NewFixtures(t, db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	creator := fx.CreateUser(ctx, "Creator", "c@example.com", "user")
	bob := fx.CreateUser(ctx, "Bob", "b@example.com", "user")
	p := fx.CreateProposal(ctx, fx.CreateTrade(ctx, "T", creator, lifecycle.TradeOpen, nil), bob)

	if _, err := store.UpdateDisplayFields(ctx, models.UserRef{ID: bob.ID, Name: "Robert", PhotoURL: "p.png"}); err != nil {
		t.Fatalf("UpdateDisplayFields failed: %v", err)
	}
	got, _ := store.GetByID(ctx, p.ID)
	if got.ProposerName != "Robert" || got.ProposerPhoto != "p.png" {
		t.Errorf("proposer fields = %q %q", got.ProposerName, got.ProposerPhoto)
	}
}
