package challenges_test

import (
	"net/http"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/tradeya/tradeya/internal/app/features/challenges"
	uierrors "github.com/tradeya/tradeya/internal/app/features/errors"
	userstore "github.com/tradeya/tradeya/internal/app/store/users"
	"github.com/tradeya/tradeya/internal/app/system/indexes"
	"github.com/tradeya/tradeya/internal/domain/lifecycle"
	"github.com/tradeya/tradeya/internal/domain/models"
	"github.com/tradeya/tradeya/internal/testutil"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

type api struct {
	t      *testing.T
	router http.Handler
	db     *mongo.Database
	fx     *testutil.Fixtures
}

func newAPI(t *testing.T) api {
	t.Helper()
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()
	if err := indexes.EnsureAll(ctx, db); err != nil {
		t.Fatalf("EnsureAll: %v", err)
	}

	logger := zap.NewNop()
	h := challenges.NewHandler(testutil.NewWorkflow(db, nil), uierrors.NewErrorLogger(logger), logger)

	r := chi.NewRouter()
	r.Mount("/api/challenges", challenges.Routes(h, testutil.NewSessionManager(t)))
	return api{t: t, router: r, db: db, fx: testutil.NewFixtures(t, db)}
}

func (a api) do(method, path string, body any, as *models.User) *testutil.ResponseRecorder {
	a.t.Helper()
	var user *testutil.TestUser
	if as != nil {
		tu := testutil.AsTestUser(as.ID, as.DisplayName, as.Role)
		user = &tu
	}
	rec := testutil.NewRecorder()
	a.router.ServeHTTP(rec, testutil.NewJSONRequest(a.t, method, path, body, user))
	return rec
}

func TestChallengeFlow(t *testing.T) {
	a := newAPI(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()
	admin := a.fx.CreateAdmin(ctx, "Admin", "admin@example.com")
	bob := a.fx.CreateUser(ctx, "Bob", "bob@example.com", "user")

	rec := a.do(http.MethodPost, "/api/challenges", map[string]any{
		"title":      "Teach a friend",
		"category":   "community",
		"difficulty": "beginner",
		"xp_reward":  120,
	}, &admin)
	rec.AssertStatus(t, http.StatusCreated)
	var c models.Challenge
	rec.DecodeJSON(t, &c)
	if c.Status != models.ChallengeActive || c.XPReward != 120 {
		t.Fatalf("created = %+v", c)
	}
	base := "/api/challenges/" + c.ID.Hex()

	a.do(http.MethodPost, base+"/join", nil, &bob).AssertStatus(t, http.StatusCreated)
	a.do(http.MethodPost, base+"/join", nil, &bob).AssertStatus(t, http.StatusConflict)

	rec = a.do(http.MethodPost, base+"/submit", map[string]string{
		"text": "Taught my neighbour to bake bread.",
		"url":  "https://example.com/bread",
	}, &bob)
	rec.AssertStatus(t, http.StatusOK)
	var p models.ChallengeParticipant
	rec.DecodeJSON(t, &p)
	if p.Status != lifecycle.ParticipationSubmitted {
		t.Fatalf("status after submit = %q", p.Status)
	}

	rec = a.do(http.MethodGet, base+"/participants?status=submitted", nil, &admin)
	rec.AssertStatus(t, http.StatusOK)
	var page struct {
		Items []models.ChallengeParticipant `json:"items"`
	}
	rec.DecodeJSON(t, &page)
	if len(page.Items) != 1 || page.Items[0].UserID != bob.ID {
		t.Fatalf("participants = %+v", page.Items)
	}

	rec = a.do(http.MethodPost, "/api/challenges/submissions/"+p.ID.Hex()+"/approve", nil, &admin)
	rec.AssertStatus(t, http.StatusOK)
	rec.DecodeJSON(t, &p)
	if p.Status != lifecycle.ParticipationCompleted {
		t.Fatalf("status after approve = %q", p.Status)
	}

	u, err := userstore.New(a.db).GetByID(ctx, bob.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if u.XP != 120 || u.Level != 2 {
		t.Errorf("xp = %d level = %d, want 120 and 2", u.XP, u.Level)
	}

	// Approving twice is an invalid transition.
	a.do(http.MethodPost, "/api/challenges/submissions/"+p.ID.Hex()+"/approve", nil, &admin).
		AssertStatus(t, http.StatusConflict)
}

func TestReturnSubmission(t *testing.T) {
	a := newAPI(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()
	admin := a.fx.CreateAdmin(ctx, "Admin", "admin@example.com")
	bob := a.fx.CreateUser(ctx, "Bob", "bob@example.com", "user")
	c := a.fx.CreateChallenge(ctx, "Write a poem", 50, admin.ID)
	base := "/api/challenges/" + c.ID.Hex()

	a.do(http.MethodPost, base+"/join", nil, &bob).AssertStatus(t, http.StatusCreated)
	rec := a.do(http.MethodPost, base+"/submit", map[string]string{"text": "Roses are red"}, &bob)
	rec.AssertStatus(t, http.StatusOK)
	var p models.ChallengeParticipant
	rec.DecodeJSON(t, &p)

	rec = a.do(http.MethodPost, "/api/challenges/submissions/"+p.ID.Hex()+"/return", nil, &admin)
	rec.AssertStatus(t, http.StatusOK)
	rec.DecodeJSON(t, &p)
	if p.Status != lifecycle.ParticipationJoined {
		t.Fatalf("status after return = %q", p.Status)
	}

	// A returned submission can be handed in again.
	a.do(http.MethodPost, base+"/submit", map[string]string{"text": "A better poem"}, &bob).
		AssertStatus(t, http.StatusOK)
}

func TestSubmitValidation(t *testing.T) {
	a := newAPI(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()
	admin := a.fx.CreateAdmin(ctx, "Admin", "admin@example.com")
	bob := a.fx.CreateUser(ctx, "Bob", "bob@example.com", "user")
	c := a.fx.CreateChallenge(ctx, "Write a poem", 50, admin.ID)
	base := "/api/challenges/" + c.ID.Hex()

	tests := []struct {
		name   string
		body   map[string]string
		status int
	}{
		{"not joined", map[string]string{"text": "hello"}, http.StatusNotFound},
		{"bad url", map[string]string{"url": "ftp://example.com"}, http.StatusBadRequest},
		{"empty", map[string]string{}, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a.do(http.MethodPost, base+"/submit", tt.body, &bob).AssertStatus(t, tt.status)
		})
	}
}

func TestAccess(t *testing.T) {
	a := newAPI(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()
	admin := a.fx.CreateAdmin(ctx, "Admin", "admin@example.com")
	bob := a.fx.CreateUser(ctx, "Bob", "bob@example.com", "user")
	c := a.fx.CreateChallenge(ctx, "Write a poem", 50, admin.ID)
	base := "/api/challenges/" + c.ID.Hex()

	tests := []struct {
		name   string
		method string
		path   string
		as     *models.User
		status int
	}{
		{"public list", http.MethodGet, "/api/challenges", nil, http.StatusOK},
		{"public get", http.MethodGet, base, nil, http.StatusOK},
		{"join signed out", http.MethodPost, base + "/join", nil, http.StatusUnauthorized},
		{"create as user", http.MethodPost, "/api/challenges", &bob, http.StatusForbidden},
		{"close as user", http.MethodPost, base + "/close", &bob, http.StatusForbidden},
		{"participants as user", http.MethodGet, base + "/participants", &bob, http.StatusForbidden},
		{"mine", http.MethodGet, "/api/challenges/mine", &bob, http.StatusOK},
		{"bad status", http.MethodGet, "/api/challenges?status=nope", nil, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a.do(tt.method, tt.path, map[string]any{"title": "x", "xp_reward": 1}, tt.as).AssertStatus(t, tt.status)
		})
	}
}

func TestServeList_ClosedHidden(t *testing.T) {
	a := newAPI(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()
	admin := a.fx.CreateAdmin(ctx, "Admin", "admin@example.com")
	a.fx.CreateChallenge(ctx, "Open one", 10, admin.ID)
	closed := a.fx.CreateChallenge(ctx, "Closed one", 10, admin.ID)
	a.do(http.MethodPost, "/api/challenges/"+closed.ID.Hex()+"/close", nil, &admin).AssertStatus(t, http.StatusOK)

	tests := []struct {
		query string
		count int
	}{
		{"", 1},
		{"?status=closed", 1},
		{"?status=all", 2},
	}
	for _, tt := range tests {
		rec := a.do(http.MethodGet, "/api/challenges"+tt.query, nil, nil)
		rec.AssertStatus(t, http.StatusOK)
		var page struct {
			Items []models.Challenge `json:"items"`
		}
		rec.DecodeJSON(t, &page)
		if len(page.Items) != tt.count {
			t.Errorf("%q: got %d, want %d", tt.query, len(page.Items), tt.count)
		}
	}
}
