package applicationstore_test

import (
	"errors"
	"testing"

	applicationstore "github.com/tradeya/tradeya/internal/app/store/applications"
	"github.com/tradeya/tradeya/internal/app/system/paging"
	"github.com/tradeya/tradeya/internal/domain/lifecycle"
	"github.com/tradeya/tradeya/internal/domain/models"
	"github.com/tradeya/tradeya/internal/testutil"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestStore_Create(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := applicationstore.New(db)
	fx := testutil.NewFixtures(t, db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	creator := fx.CreateUser(ctx, "Creator", "c@example.com", "user")
	ann := fx.CreateUser(ctx, "Ann", "ann@example.com", "user")
	c := fx.CreateCollaboration(ctx, "Game", creator, "Artist", "Coder")

	a, err := store.Create(ctx, models.RoleApplication{
		CollaborationID: c.ID,
		RoleID:          c.Roles[0].ID,
		ApplicantID:     ann.ID,
		ApplicantName:   ann.DisplayName,
		Status:          lifecycle.DecisionAccepted, // ignored
	})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if a.Status != lifecycle.DecisionPending || a.DecidedBy != nil {
		t.Errorf("application = %+v", a)
	}

	_, err = store.Create(ctx, models.RoleApplication{CollaborationID: c.ID, RoleID: c.Roles[0].ID, ApplicantID: ann.ID})
	if !errors.Is(err, applicationstore.ErrDuplicatePending) {
		t.Errorf("duplicate err = %v, want ErrDuplicatePending", err)
	}

	// A different role is fine.
	if _, err := store.Create(ctx, models.RoleApplication{CollaborationID: c.ID, RoleID: c.Roles[1].ID, ApplicantID: ann.ID}); err != nil {
		t.Errorf("apply to second role: %v", err)
	}

	if _, err := store.Create(ctx, models.RoleApplication{CollaborationID: c.ID, ApplicantID: ann.ID}); err == nil {
		t.Error("missing role id should fail")
	}
}

func TestStore_SetStatus(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := applicationstore.New(db)
	fx := testutil.NewFixtures(t, db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	creator := fx.CreateUser(ctx, "Creator", "c@example.com", "user")
	ann := fx.CreateUser(ctx, "Ann", "ann@example.com", "user")
	c := fx.CreateCollaboration(ctx, "Game", creator, "Artist")
	app := fx.CreateApplication(ctx, c, c.Roles[0].ID, ann)

	got, err := store.SetStatus(ctx, app.ID, lifecycle.DecisionPending, lifecycle.DecisionAccepted, &creator.ID)
	if err != nil {
		t.Fatalf("SetStatus failed: %v", err)
	}
	if got.Status != lifecycle.DecisionAccepted || got.DecidedBy == nil || *got.DecidedBy != creator.ID || got.DecidedAt == nil {
		t.Errorf("decision not recorded: %+v", got)
	}
	if _, err := store.SetStatus(ctx, app.ID, lifecycle.DecisionPending, lifecycle.DecisionWithdrawn, nil); !errors.Is(err, applicationstore.ErrConflict) {
		t.Errorf("stale SetStatus err = %v, want ErrConflict", err)
	}
	if _, err := store.SetStatus(ctx, primitive.NewObjectID(), lifecycle.DecisionPending, lifecycle.DecisionWithdrawn, nil); !errors.Is(err, applicationstore.ErrNotFound) {
		t.Errorf("missing err = %v, want ErrNotFound", err)
	}
}

func TestStore_RejectOthers(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := applicationstore.New(db)
	fx := testutil.NewFixtures(t, db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	creator := fx.CreateUser(ctx, "Creator", "c@example.com", "user")
	c := fx.CreateCollaboration(ctx, "Game", creator, "Artist", "Coder")
	artist, coder := c.Roles[0].ID, c.Roles[1].ID

	ann := fx.CreateUser(ctx, "Ann", "ann@example.com", "user")
	ben := fx.CreateUser(ctx, "Ben", "ben@example.com", "user")
	cal := fx.CreateUser(ctx, "Cal", "cal@example.com", "user")
	keep := fx.CreateApplication(ctx, c, artist, ann)
	lose := fx.CreateApplication(ctx, c, artist, ben)
	otherRole := fx.CreateApplication(ctx, c, coder, cal)

	rejected, err := store.RejectOthers(ctx, c.ID, artist, keep.ID, creator.ID)
	if err != nil {
		t.Fatalf("RejectOthers failed: %v", err)
	}
	if len(rejected) != 1 || rejected[0].ID != lose.ID {
		t.Fatalf("rejected = %v, want only Ben's application", rejected)
	}

	got, _ := store.GetByID(ctx, lose.ID)
	if got.Status != lifecycle.DecisionRejected || got.DecidedBy == nil {
		t.Errorf("Ben's application = %+v", got)
	}
	got, _ = store.GetByID(ctx, keep.ID)
	if got.Status != lifecycle.DecisionPending {
		t.Error("kept application must stay pending")
	}
	got, _ = store.GetByID(ctx, otherRole.ID)
	if got.Status != lifecycle.DecisionPending {
		t.Error("applications for other roles must stay pending")
	}
}

func TestStore_Lists(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := applicationstore.New(db)
	fx := testutil.NewFixtures(t, db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	creator := fx.CreateUser(ctx, "Creator", "c@example.com", "user")
	ann := fx.CreateUser(ctx, "Ann", "ann@example.com", "user")
	ben := fx.CreateUser(ctx, "Ben", "ben@example.com", "user")
	c1 := fx.CreateCollaboration(ctx, "One", creator, "Artist", "Coder")
	c2 := fx.CreateCollaboration(ctx, "Two", creator, "Host")
	fx.CreateApplication(ctx, c1, c1.Roles[0].ID, ann)
	fx.CreateApplication(ctx, c1, c1.Roles[1].ID, ben)
	fx.CreateApplication(ctx, c2, c2.Roles[0].ID, ann)

	all, err := store.ListByCollaboration(ctx, c1.ID, "", "")
	if err != nil || len(all) != 2 {
		t.Fatalf("ListByCollaboration = %d, %v; want 2", len(all), err)
	}
	byRole, _ := store.ListByCollaboration(ctx, c1.ID, c1.Roles[1].ID, lifecycle.DecisionPending)
	if len(byRole) != 1 || byRole[0].ApplicantID != ben.ID {
		t.Errorf("role filter = %v", byRole)
	}

	page, err := store.ListByApplicant(ctx, ann.ID, paging.Params{})
	if err != nil {
		t.Fatalf("ListByApplicant failed: %v", err)
	}
	if len(page.Items) != 2 || page.Items[0].CollaborationID != c2.ID {
		t.Errorf("ListByApplicant should return Ann's 2 applications newest first")
	}
}

func TestStore_UpdateDisplayFields(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := applicationstore.New(db)
	fx := testutil.NewFixtures(t, db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	creator := fx.CreateUser(ctx, "Creator", "c@example.com", "user")
	ann := fx.CreateUser(ctx, "Ann", "ann@example.com", "user")
	c := fx.CreateCollaboration(ctx, "Game", creator, "Artist")
	app := fx.CreateApplication(ctx, c, c.Roles[0].ID, ann)

	n, err := store.UpdateDisplayFields(ctx, models.UserRef{ID: ann.ID, Name: "Annie", PhotoURL: "a.png"})
	if err != nil || n != 1 {
		t.Fatalf("UpdateDisplayFields = %d, %v", n, err)
	}
	got, _ := store.GetByID(ctx, app.ID)
	if got.ApplicantName != "Annie" {
		t.Errorf("ApplicantName = %q", got.ApplicantName)
	}
}
