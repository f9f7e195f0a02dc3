package userstore_test

import (
	"errors"
	"testing"

	userstore "github.com/tradeya/tradeya/internal/app/store/users"
	"github.com/tradeya/tradeya/internal/app/system/indexes"
	"github.com/tradeya/tradeya/internal/app/system/paging"
	"github.com/tradeya/tradeya/internal/domain/models"
	"github.com/tradeya/tradeya/internal/testutil"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestStore_Create(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := userstore.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	created, err := store.Create(ctx, models.User{
		DisplayName:   "  Ada   Lovelace ",
		Email:         " Ada@Example.COM ",
		SkillsOffered: []models.Skill{{Name: "Math"}, {Name: "math"}, {Name: " "}},
	})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	if created.ID == primitive.NilObjectID {
		t.Error("expected ID to be assigned")
	}
	if created.DisplayName != "Ada Lovelace" {
		t.Errorf("DisplayName = %q", created.DisplayName)
	}
	if created.DisplayNameCI != "ada lovelace" {
		t.Errorf("DisplayNameCI = %q", created.DisplayNameCI)
	}
	if created.Email != "ada@example.com" {
		t.Errorf("Email = %q", created.Email)
	}
	if created.Role != "user" || created.Status != "active" || created.AuthMethod != "password" {
		t.Errorf("defaults: role=%q status=%q auth=%q", created.Role, created.Status, created.AuthMethod)
	}
	if created.Level != 1 || created.XP != 0 {
		t.Errorf("xp/level = %d/%d, want 0/1", created.XP, created.Level)
	}
	if len(created.SkillsOffered) != 1 {
		t.Errorf("SkillsOffered = %v, want one deduplicated skill", created.SkillsOffered)
	}
	if created.SkillsWanted == nil {
		t.Error("SkillsWanted should be an empty slice, not nil")
	}

	got, err := store.GetByEmail(ctx, "ADA@example.com")
	if err != nil {
		t.Fatalf("GetByEmail failed: %v", err)
	}
	if got.ID != created.ID {
		t.Error("GetByEmail returned a different user")
	}
}

func TestStore_Create_Invalid(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := userstore.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	tests := []struct {
		name string
		user models.User
	}{
		{"missing name", models.User{Email: "a@example.com"}},
		{"missing email", models.User{DisplayName: "A"}},
		{"bad role", models.User{DisplayName: "A", Email: "a@example.com", Role: "owner"}},
		{"bad status", models.User{DisplayName: "A", Email: "a@example.com", Status: "pending"}},
		{"bad auth method", models.User{DisplayName: "A", Email: "a@example.com", AuthMethod: "saml"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := store.Create(ctx, tt.user); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestStore_Create_DuplicateEmail(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()
	if err := indexes.EnsureAll(ctx, db); err != nil {
		t.Fatalf("EnsureAll: %v", err)
	}
	store := userstore.New(db)

	if _, err := store.Create(ctx, models.User{DisplayName: "One", Email: "dup@example.com"}); err != nil {
		t.Fatalf("first Create: %v", err)
	}
	_, err := store.Create(ctx, models.User{DisplayName: "Two", Email: "DUP@example.com"})
	if !errors.Is(err, userstore.ErrDuplicateEmail) {
		t.Errorf("err = %v, want ErrDuplicateEmail", err)
	}
}

func TestStore_GetByID_NotFound(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := userstore.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	if _, err := store.GetByID(ctx, primitive.NewObjectID()); !errors.Is(err, userstore.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
	if _, err := store.GetByGoogleSub(ctx, ""); !errors.Is(err, userstore.ErrNotFound) {
		t.Errorf("empty sub: err = %v, want ErrNotFound", err)
	}
}

func TestStore_UpdateProfile(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := userstore.New(db)
	fx := testutil.NewFixtures(t, db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	u := fx.CreateUser(ctx, "Old Name", "old@example.com", "user")
	got, err := store.UpdateProfile(ctx, u.ID, userstore.ProfileUpdate{
		DisplayName:   "New  Name",
		Bio:           "hello",
		SkillsOffered: []models.Skill{{Name: "Go", Level: "Expert"}},
	})
	if err != nil {
		t.Fatalf("UpdateProfile failed: %v", err)
	}
	if got.DisplayName != "New Name" || got.DisplayNameCI != "new name" {
		t.Errorf("name = %q / %q", got.DisplayName, got.DisplayNameCI)
	}
	if len(got.SkillsOffered) != 1 || got.SkillsOffered[0].Level != "expert" {
		t.Errorf("SkillsOffered = %v", got.SkillsOffered)
	}
	if got.SkillsWanted == nil {
		t.Error("SkillsWanted should be stored as an empty array")
	}

	if _, err := store.UpdateProfile(ctx, u.ID, userstore.ProfileUpdate{DisplayName: "  "}); err == nil {
		t.Error("blank display name should be rejected")
	}
	if _, err := store.UpdateProfile(ctx, primitive.NewObjectID(), userstore.ProfileUpdate{DisplayName: "x"}); !errors.Is(err, userstore.ErrNotFound) {
		t.Errorf("unknown id: err = %v, want ErrNotFound", err)
	}
}

func TestStore_SetStatusAndRole(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := userstore.New(db)
	fx := testutil.NewFixtures(t, db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	u := fx.CreateUser(ctx, "Sam", "sam@example.com", "user")
	if err := store.SetStatus(ctx, u.ID, "Disabled"); err != nil {
		t.Fatalf("SetStatus failed: %v", err)
	}
	if err := store.SetRole(ctx, u.ID, "ADMIN"); err != nil {
		t.Fatalf("SetRole failed: %v", err)
	}
	got, _ := store.GetByID(ctx, u.ID)
	if got.Status != "disabled" || got.Role != "admin" {
		t.Errorf("status/role = %q/%q", got.Status, got.Role)
	}

	if err := store.SetStatus(ctx, u.ID, "gone"); err == nil {
		t.Error("invalid status should be rejected")
	}
	if err := store.SetRole(ctx, primitive.NewObjectID(), "user"); !errors.Is(err, userstore.ErrNotFound) {
		t.Errorf("unknown id: err = %v, want ErrNotFound", err)
	}
}

func TestStore_AddXP(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := userstore.New(db)
	fx := testutil.NewFixtures(t, db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	u := fx.CreateUser(ctx, "Leveler", "lvl@example.com", "user")

	res, err := store.AddXP(ctx, u.ID, 60)
	if err != nil {
		t.Fatalf("AddXP failed: %v", err)
	}
	if res.XP != 60 || res.LeveledUp() {
		t.Errorf("first award = %+v, want xp 60 and no level up", res)
	}

	res, err = store.AddXP(ctx, u.ID, 200)
	if err != nil {
		t.Fatalf("AddXP failed: %v", err)
	}
	if res.XP != 260 || res.OldLevel != 1 || res.NewLevel != 3 || !res.LeveledUp() {
		t.Errorf("second award = %+v, want xp 260 level 1 -> 3", res)
	}
	got, _ := store.GetByID(ctx, u.ID)
	if got.Level != 3 {
		t.Errorf("stored level = %d, want 3", got.Level)
	}

	if _, err := store.AddXP(ctx, u.ID, 0); err == nil {
		t.Error("zero amount should be rejected")
	}
	if _, err := store.AddXP(ctx, primitive.NewObjectID(), 10); !errors.Is(err, userstore.ErrNotFound) {
		t.Errorf("unknown user: err = %v, want ErrNotFound", err)
	}
}

func TestStore_List_PagesByName(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := userstore.New(db)
	fx := testutil.NewFixtures(t, db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	for _, n := range []string{"Dana", "Bea", "Cal", "Abe", "Eve"} {
		fx.CreateUser(ctx, n, n+"@example.com", "user")
	}
	fx.CreateDisabledUser(ctx, "Zed", "zed@example.com")

	first, err := store.List(ctx, userstore.ListFilter{Status: "active"}, paging.Params{Limit: 2})
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(first.Items) != 2 || first.Items[0].DisplayName != "Abe" || first.Items[1].DisplayName != "Bea" {
		t.Fatalf("first page = %v", names(first.Items))
	}
	if first.Next == "" || first.Prev != "" {
		t.Errorf("first page cursors prev=%q next=%q", first.Prev, first.Next)
	}

	second, err := store.List(ctx, userstore.ListFilter{Status: "active"}, paging.Params{Limit: 2, After: first.Next})
	if err != nil {
		t.Fatalf("List page 2 failed: %v", err)
	}
	if got := names(second.Items); len(got) != 2 || got[0] != "Cal" || got[1] != "Dana" {
		t.Fatalf("second page = %v", got)
	}

	back, err := store.List(ctx, userstore.ListFilter{Status: "active"}, paging.Params{Limit: 2, Before: second.Prev})
	if err != nil {
		t.Fatalf("List back failed: %v", err)
	}
	if got := names(back.Items); len(got) != 2 || got[0] != "Abe" {
		t.Errorf("back page = %v", got)
	}
}

func TestStore_List_Filters(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := userstore.New(db)
	fx := testutil.NewFixtures(t, db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	fx.CreateUser(ctx, "Jose", "jose@example.com", "user")
	fx.CreateUser(ctx, "Josephine", "josephine@example.com", "user")
	fx.CreateUser(ctx, "Mia", "mia@example.com", "user")

	page, err := store.List(ctx, userstore.ListFilter{Search: "JOS"}, paging.Params{})
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(page.Items) != 2 {
		t.Errorf("search JOS = %v, want 2 users", names(page.Items))
	}

	page, err = store.List(ctx, userstore.ListFilter{Search: "Zoe"}, paging.Params{})
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(page.Items) != 0 {
		t.Errorf("search Zoe = %v, want none", names(page.Items))
	}
}

func TestStore_Leaderboard(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := userstore.New(db)
	fx := testutil.NewFixtures(t, db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	low := fx.CreateUser(ctx, "Low", "low@example.com", "user")
	high := fx.CreateUser(ctx, "High", "high@example.com", "user")
	off := fx.CreateDisabledUser(ctx, "Off", "off@example.com")
	_, _ = store.AddXP(ctx, low.ID, 10)
	_, _ = store.AddXP(ctx, high.ID, 500)
	_, _ = store.AddXP(ctx, off.ID, 9000)

	top, err := store.Leaderboard(ctx, 10)
	if err != nil {
		t.Fatalf("Leaderboard failed: %v", err)
	}
	if len(top) != 2 || top[0].ID != high.ID || top[1].ID != low.ID {
		t.Errorf("leaderboard = %v, want [High Low]", names(top))
	}
}

func TestFetcher_FetchUser(t *testing.T) {
	db := testutil.SetupTestDB(t)
	fx := testutil.NewFixtures(t, db)
	f := userstore.NewFetcher(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	admin := fx.CreateAdmin(ctx, "Root", "root@example.com")
	disabled := fx.CreateDisabledUser(ctx, "Gone", "gone@example.com")

	su := f.FetchUser(ctx, admin.ID.Hex())
	if su == nil {
		t.Fatal("expected session user for active admin")
	}
	if su.Name != "Root" || su.Role != "admin" || su.Email != "root@example.com" {
		t.Errorf("session user = %+v", su)
	}

	if f.FetchUser(ctx, disabled.ID.Hex()) != nil {
		t.Error("disabled user should not load")
	}
	if f.FetchUser(ctx, "not-an-id") != nil {
		t.Error("malformed id should not load")
	}
	if f.FetchUser(ctx, primitive.NewObjectID().Hex()) != nil {
		t.Error("unknown id should not load")
	}
}

func names(us []models.User) []string {
	out := make([]string, 0, len(us))
	for _, u := range us {
		out = append(out, u.DisplayName)
	}
	return out
}
