package trades_test

import (
	"net/http"
	"testing"

	"github.com/go-chi/chi/v5"
	uierrors "github.com/tradeya/tradeya/internal/app/features/errors"
	"github.com/tradeya/tradeya/internal/app/features/trades"
	"github.com/tradeya/tradeya/internal/app/system/indexes"
	"github.com/tradeya/tradeya/internal/domain/lifecycle"
	"github.com/tradeya/tradeya/internal/domain/models"
	"github.com/tradeya/tradeya/internal/testutil"
	"go.uber.org/zap"
)

type api struct {
	t      *testing.T
	router http.Handler
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
	sm := testutil.NewSessionManager(t)
	h := trades.NewHandler(testutil.NewWorkflow(db, nil), uierrors.NewErrorLogger(logger), logger)

	r := chi.NewRouter()
	r.Mount("/api/trades", trades.Routes(h, sm))
	r.Mount("/api/proposals", trades.ProposalRoutes(h, sm))
	return api{t: t, router: r, fx: testutil.NewFixtures(t, db)}
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

func TestTradeFlow(t *testing.T) {
	a := newAPI(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()
	alice := a.fx.CreateUser(ctx, "Alice", "alice@example.com", "user")
	bob := a.fx.CreateUser(ctx, "Bob", "bob@example.com", "user")

	rec := a.do(http.MethodPost, "/api/trades", map[string]any{
		"title":            "Guitar for Go",
		"description":      "I teach guitar, you teach Go.",
		"offered_skills":   []map[string]string{{"name": "Guitar", "level": "expert"}},
		"requested_skills": []map[string]string{{"name": "Go"}},
	}, &alice)
	rec.AssertStatus(t, http.StatusCreated)
	var trade models.Trade
	rec.DecodeJSON(t, &trade)
	if trade.Status != lifecycle.TradeOpen {
		t.Fatalf("new trade status = %q", trade.Status)
	}
	base := "/api/trades/" + trade.ID.Hex()

	rec = a.do(http.MethodPost, base+"/proposals", map[string]any{"message": "Deal!"}, &bob)
	rec.AssertStatus(t, http.StatusCreated)
	var proposal models.Proposal
	rec.DecodeJSON(t, &proposal)

	// Bob cannot accept his own proposal.
	a.do(http.MethodPost, "/api/proposals/"+proposal.ID.Hex()+"/accept", nil, &bob).
		AssertStatus(t, http.StatusForbidden)

	rec = a.do(http.MethodPost, "/api/proposals/"+proposal.ID.Hex()+"/accept", nil, &alice)
	rec.AssertStatus(t, http.StatusOK)
	rec.DecodeJSON(t, &trade)
	if trade.Status != lifecycle.TradeInProgress || trade.ParticipantID == nil || *trade.ParticipantID != bob.ID {
		t.Fatalf("after accept: %+v", trade)
	}

	rec = a.do(http.MethodPost, base+"/complete", map[string]any{
		"notes":    "All lessons done.",
		"evidence": []map[string]string{{"url": "https://example.com/recording", "title": "Last lesson"}},
	}, &bob)
	rec.AssertStatus(t, http.StatusOK)
	rec.DecodeJSON(t, &trade)
	if trade.Status != lifecycle.TradePendingConfirmation || len(trade.Evidence) != 1 {
		t.Fatalf("after request completion: %+v", trade)
	}

	// The requester cannot confirm their own request.
	a.do(http.MethodPost, base+"/confirm", nil, &bob).AssertStatus(t, http.StatusForbidden)

	rec = a.do(http.MethodPost, base+"/confirm", nil, &alice)
	rec.AssertStatus(t, http.StatusOK)
	rec.DecodeJSON(t, &trade)
	if trade.Status != lifecycle.TradeCompleted || trade.CompletedAt == nil {
		t.Fatalf("after confirm: %+v", trade)
	}

	// Completed trades accept no more transitions.
	a.do(http.MethodPost, base+"/cancel", nil, &alice).AssertStatus(t, http.StatusConflict)
}

func TestCreate_Validation(t *testing.T) {
	a := newAPI(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()
	alice := a.fx.CreateUser(ctx, "Alice", "alice@example.com", "user")

	tests := []struct {
		name string
		body any
	}{
		{"missing title", map[string]any{"description": "x"}},
		{"bad skill level", map[string]any{"title": "T", "offered_skills": []map[string]string{{"name": "Go", "level": "guru"}}}},
		{"unknown field", map[string]any{"title": "T", "price": 5}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a.do(http.MethodPost, "/api/trades", tt.body, &alice).AssertStatus(t, http.StatusBadRequest)
		})
	}
}

func TestAuthentication(t *testing.T) {
	a := newAPI(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()
	alice := a.fx.CreateUser(ctx, "Alice", "alice@example.com", "user")
	tr := a.fx.CreateTrade(ctx, "Open trade", alice, lifecycle.TradeOpen, nil)

	// Reads are public.
	a.do(http.MethodGet, "/api/trades", nil, nil).AssertStatus(t, http.StatusOK)
	a.do(http.MethodGet, "/api/trades/"+tr.ID.Hex(), nil, nil).AssertStatus(t, http.StatusOK)

	// Writes are not.
	a.do(http.MethodPost, "/api/trades", map[string]any{"title": "T"}, nil).AssertStatus(t, http.StatusUnauthorized)
	a.do(http.MethodPost, "/api/trades/"+tr.ID.Hex()+"/cancel", nil, nil).AssertStatus(t, http.StatusUnauthorized)

	// Resolving disputes is admin only.
	a.do(http.MethodPost, "/api/trades/"+tr.ID.Hex()+"/resolve", map[string]any{"resolution": "ok"}, &alice).
		AssertStatus(t, http.StatusForbidden)
}

func TestServeList_Filters(t *testing.T) {
	a := newAPI(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()
	alice := a.fx.CreateUser(ctx, "Alice", "alice@example.com", "user")
	bob := a.fx.CreateUser(ctx, "Bob", "bob@example.com", "user")
	a.fx.CreateTrade(ctx, "Alice open", alice, lifecycle.TradeOpen, nil)
	a.fx.CreateTrade(ctx, "Alice with Bob", alice, lifecycle.TradeInProgress, &bob)
	a.fx.CreateTrade(ctx, "Carol style", bob, lifecycle.TradeOpen, nil)

	tests := []struct {
		name  string
		path  string
		as    *models.User
		count int
	}{
		{"all", "/api/trades", nil, 3},
		{"open only", "/api/trades?status=open", nil, 2},
		{"title prefix", "/api/trades?q=alice", nil, 2},
		{"mine as bob", "/api/trades?mine=1", &bob, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := a.do(http.MethodGet, tt.path, nil, tt.as)
			rec.AssertStatus(t, http.StatusOK)
			var page struct {
				Items []models.Trade `json:"items"`
			}
			rec.DecodeJSON(t, &page)
			if len(page.Items) != tt.count {
				t.Errorf("got %d trades, want %d", len(page.Items), tt.count)
			}
		})
	}

	a.do(http.MethodGet, "/api/trades?status=bogus", nil, nil).AssertStatus(t, http.StatusBadRequest)
	a.do(http.MethodGet, "/api/trades?mine=1", nil, nil).AssertStatus(t, http.StatusUnauthorized)
}

func TestServeProposals_Visibility(t *testing.T) {
	a := newAPI(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()
	alice := a.fx.CreateUser(ctx, "Alice", "alice@example.com", "user")
	bob := a.fx.CreateUser(ctx, "Bob", "bob@example.com", "user")
	carol := a.fx.CreateUser(ctx, "Carol", "carol@example.com", "user")
	tr := a.fx.CreateTrade(ctx, "Open trade", alice, lifecycle.TradeOpen, nil)
	a.fx.CreateProposal(ctx, tr, bob)
	a.fx.CreateProposal(ctx, tr, carol)

	tests := []struct {
		name  string
		as    models.User
		count int
	}{
		{"creator sees all", alice, 2},
		{"proposer sees own", bob, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := a.do(http.MethodGet, "/api/trades/"+tr.ID.Hex()+"/proposals", nil, &tt.as)
			rec.AssertStatus(t, http.StatusOK)
			var page struct {
				Items []models.Proposal `json:"items"`
			}
			rec.DecodeJSON(t, &page)
			if len(page.Items) != tt.count {
				t.Errorf("got %d proposals, want %d", len(page.Items), tt.count)
			}
		})
	}
}

func TestEvidence_RejectsBadURL(t *testing.T) {
	a := newAPI(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()
	alice := a.fx.CreateUser(ctx, "Alice", "alice@example.com", "user")
	bob := a.fx.CreateUser(ctx, "Bob", "bob@example.com", "user")
	tr := a.fx.CreateTrade(ctx, "In progress", alice, lifecycle.TradeInProgress, &bob)

	a.do(http.MethodPost, "/api/trades/"+tr.ID.Hex()+"/evidence", map[string]string{"url": "ftp://nope"}, &bob).
		AssertStatus(t, http.StatusBadRequest)
	a.do(http.MethodPost, "/api/trades/"+tr.ID.Hex()+"/evidence", map[string]string{"url": "https://example.com/a.png", "kind": "image"}, &bob).
		AssertStatus(t, http.StatusOK)
}
