package dashboard_test

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/tradeya/tradeya/internal/app/features/dashboard"
	uierrors "github.com/tradeya/tradeya/internal/app/features/errors"
	"github.com/tradeya/tradeya/internal/app/system/tasks"
	"github.com/tradeya/tradeya/internal/domain/lifecycle"
	"github.com/tradeya/tradeya/internal/testutil"
	"go.uber.org/zap"
)

type fakeJobs struct {
	ran []string
	err error
}

func (f *fakeJobs) Jobs() []tasks.JobInfo {
	return []tasks.JobInfo{{Name: "purge", Interval: "24h0m0s"}, {Name: "sweep", Interval: "1h0m0s"}}
}

func (f *fakeJobs) RunNow(_ context.Context, name string) error {
	if name != "purge" && name != "sweep" {
		return fmt.Errorf("%w: %s", tasks.ErrUnknownJob, name)
	}
	f.ran = append(f.ran, name)
	return f.err
}

func TestServeStats(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()
	fx := testutil.NewFixtures(t, db)
	admin := fx.CreateAdmin(ctx, "Ada", "ada@example.com")
	bob := fx.CreateUser(ctx, "Bob", "bob@example.com", "user")
	fx.CreateTrade(ctx, "Guitar for Go", bob, lifecycle.TradeOpen, nil)

	logger := zap.NewNop()
	router := dashboard.Routes(dashboard.NewHandler(db, &fakeJobs{}, uierrors.NewErrorLogger(logger), logger), testutil.NewSessionManager(t))

	rec := testutil.NewRecorder()
	router.ServeHTTP(rec, testutil.NewAuthenticatedRequest(http.MethodGet, "/stats", testutil.AsTestUser(admin.ID, admin.DisplayName, "admin")))
	rec.AssertStatus(t, http.StatusOK)

	var stats struct {
		Users          int64            `json:"users"`
		Trades         int64            `json:"trades"`
		TradesByStatus map[string]int64 `json:"trades_by_status"`
		TopUsers       []struct {
			DisplayName string `json:"display_name"`
		} `json:"top_users"`
	}
	rec.DecodeJSON(t, &stats)
	if stats.Users != 2 || stats.Trades != 1 || stats.TradesByStatus["open"] != 1 {
		t.Errorf("stats = %+v", stats)
	}
	if len(stats.TopUsers) != 2 {
		t.Errorf("top users = %+v", stats.TopUsers)
	}
}

func TestJobs(t *testing.T) {
	db := testutil.SetupTestDB(t)
	logger := zap.NewNop()
	jobs := &fakeJobs{}
	router := dashboard.Routes(dashboard.NewHandler(db, jobs, uierrors.NewErrorLogger(logger), logger), testutil.NewSessionManager(t))
	admin := testutil.AdminUser()

	rec := testutil.NewRecorder()
	router.ServeHTTP(rec, testutil.NewAuthenticatedRequest(http.MethodGet, "/jobs", admin))
	rec.AssertStatus(t, http.StatusOK)
	rec.AssertContains(t, `"name":"purge"`)

	tests := []struct {
		name   string
		job    string
		err    error
		as     testutil.TestUser
		status int
	}{
		{"runs", "sweep", nil, admin, http.StatusOK},
		{"unknown", "nope", nil, admin, http.StatusNotFound},
		{"fails", "purge", errors.New("boom"), admin, http.StatusInternalServerError},
		{"already running", "sweep", fmt.Errorf("%w: sweep", tasks.ErrJobBusy), admin, http.StatusConflict},
		{"not admin", "sweep", nil, testutil.RegularUser(), http.StatusForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			jobs.err = tt.err
			rec := testutil.NewRecorder()
			router.ServeHTTP(rec, testutil.NewAuthenticatedRequest(http.MethodPost, "/jobs/"+tt.job+"/run", tt.as))
			rec.AssertStatus(t, tt.status)
		})
	}
	if len(jobs.ran) != 3 {
		t.Errorf("ran = %v, want sweep, purge and sweep", jobs.ran)
	}
}
