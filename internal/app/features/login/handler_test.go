package login_test

import (
	"net/http"
	"strings"
	"testing"
	"time"

	uierrors "github.com/tradeya/tradeya/internal/app/features/errors"
	"github.com/tradeya/tradeya/internal/app/features/login"
	loginstore "github.com/tradeya/tradeya/internal/app/store/logins"
	"github.com/tradeya/tradeya/internal/app/system/indexes"
	"github.com/tradeya/tradeya/internal/app/system/ratelimit"
	"github.com/tradeya/tradeya/internal/testutil"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

func newHandler(t *testing.T, perIP int) (*login.Handler, *testutil.Fixtures, *mongo.Database) {
	t.Helper()
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()
	if err := indexes.EnsureAll(ctx, db); err != nil {
		t.Fatalf("EnsureAll: %v", err)
	}
	logger := zap.NewNop()
	h := login.NewHandler(db, testutil.NewSessionManager(t), ratelimit.NewLoginLimiter(perIP, time.Minute),
		uierrors.NewErrorLogger(logger), nil, logger)
	h.BcryptCost = bcrypt.MinCost
	return h, testutil.NewFixtures(t, db), db
}

func hasSessionCookie(rec *testutil.ResponseRecorder) bool {
	for _, c := range rec.Result().Cookies() {
		if c.Name == "tradeya-test" && c.MaxAge >= 0 {
			return true
		}
	}
	return false
}

func TestServeRegister(t *testing.T) {
	h, _, _ := newHandler(t, 10)

	rec := testutil.NewRecorder()
	h.ServeRegister(rec, testutil.NewJSONRequest(t, http.MethodPost, "/auth/register", map[string]string{
		"display_name": "Ada Lovelace",
		"email":        "Ada@Example.com",
		"password":     "analytical-engine",
	}, nil))
	rec.AssertStatus(t, http.StatusCreated)

	var body struct {
		User struct {
			ID    string `json:"id"`
			Email string `json:"email"`
			Level int    `json:"level"`
		} `json:"user"`
	}
	rec.DecodeJSON(t, &body)
	if body.User.Email != "ada@example.com" || body.User.Level != 1 {
		t.Errorf("user = %+v", body.User)
	}
	if !hasSessionCookie(rec) {
		t.Error("registration did not start a session")
	}
	rec.AssertContains(t, `"id"`)
	if got := rec.Body.String(); strings.Contains(got, "password_hash") {
		t.Errorf("response leaked the password hash: %s", got)
	}

	dup := testutil.NewRecorder()
	h.ServeRegister(dup, testutil.NewJSONRequest(t, http.MethodPost, "/auth/register", map[string]string{
		"display_name": "Other Ada",
		"email":        "ada@example.com",
		"password":     "analytical-engine",
	}, nil))
	dup.AssertStatus(t, http.StatusConflict)
}

func TestServeRegister_Validation(t *testing.T) {
	h, _, _ := newHandler(t, 10)
	tests := []struct {
		name string
		body map[string]string
	}{
		{"missing name", map[string]string{"email": "a@example.com", "password": "long-enough"}},
		{"bad email", map[string]string{"display_name": "A", "email": "nope", "password": "long-enough"}},
		{"short password", map[string]string{"display_name": "A", "email": "a@example.com", "password": "short"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := testutil.NewRecorder()
			h.ServeRegister(rec, testutil.NewJSONRequest(t, http.MethodPost, "/auth/register", tt.body, nil))
			rec.AssertStatus(t, http.StatusBadRequest)
			if code := rec.ErrorCode(t); code != "validation_failed" {
				t.Errorf("error code = %q", code)
			}
		})
	}
}

func TestServeLogin(t *testing.T) {
	h, fx, db := newHandler(t, 10)
	ctx, cancel := testutil.TestContext()
	defer cancel()
	u := fx.CreateUserWithPassword(ctx, "Ada", "ada@example.com")
	fx.CreateDisabledUser(ctx, "Bea", "bea@example.com")

	tests := []struct {
		name     string
		email    string
		password string
		status   int
	}{
		{"success", "ADA@example.com", testutil.TestPassword, http.StatusOK},
		{"wrong password", "ada@example.com", "nope-nope", http.StatusUnauthorized},
		{"unknown user", "nobody@example.com", testutil.TestPassword, http.StatusUnauthorized},
		{"no password set", "bea@example.com", testutil.TestPassword, http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := testutil.NewRecorder()
			h.ServeLogin(rec, testutil.NewJSONRequest(t, http.MethodPost, "/auth/login", map[string]string{
				"email": tt.email, "password": tt.password,
			}, nil))
			rec.AssertStatus(t, tt.status)
			if tt.status == http.StatusOK && !hasSessionCookie(rec) {
				t.Error("login did not set the session cookie")
			}
		})
	}

	recent, err := loginstore.New(db).ListRecentByUser(ctx, u.ID, 5)
	if err != nil {
		t.Fatalf("ListRecentByUser: %v", err)
	}
	if len(recent) != 1 || recent[0].Provider != "password" {
		t.Errorf("login records = %+v, want one password login", recent)
	}
}

func TestServeLogin_Disabled(t *testing.T) {
	h, fx, _ := newHandler(t, 10)
	ctx, cancel := testutil.TestContext()
	defer cancel()
	u := fx.CreateUserWithPassword(ctx, "Ada", "ada@example.com")
	if err := h.Users.SetStatus(ctx, u.ID, "disabled"); err != nil {
		t.Fatalf("SetStatus: %v", err)
	}

	rec := testutil.NewRecorder()
	h.ServeLogin(rec, testutil.NewJSONRequest(t, http.MethodPost, "/auth/login", map[string]string{
		"email": "ada@example.com", "password": testutil.TestPassword,
	}, nil))
	rec.AssertStatus(t, http.StatusForbidden)
}

func TestServeLogin_RateLimited(t *testing.T) {
	h, _, _ := newHandler(t, 2)
	var last *testutil.ResponseRecorder
	for i := 0; i < 3; i++ {
		last = testutil.NewRecorder()
		h.ServeLogin(last, testutil.NewJSONRequest(t, http.MethodPost, "/auth/login", map[string]string{
			"email": "x@example.com", "password": "whatever-1",
		}, nil))
	}
	last.AssertStatus(t, http.StatusTooManyRequests)
}
