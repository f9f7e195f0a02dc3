// internal/app/features/authgoogle/handler.go
package authgoogle

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/dalemusser/waffle/pantry/query"
	"github.com/dalemusser/waffle/pantry/urlutil"
	"github.com/gorilla/securecookie"
	loginstore "github.com/tradeya/tradeya/internal/app/store/logins"
	"github.com/tradeya/tradeya/internal/app/store/oauthstate"
	userstore "github.com/tradeya/tradeya/internal/app/store/users"
	"github.com/tradeya/tradeya/internal/app/system/auditlog"
	"github.com/tradeya/tradeya/internal/app/system/auth"
	"github.com/tradeya/tradeya/internal/app/system/normalize"
	"github.com/tradeya/tradeya/internal/app/system/timeouts"
	"github.com/tradeya/tradeya/internal/domain/models"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

const stateTTL = 10 * time.Minute

// Profile is the subset of Google's userinfo response we use.
type Profile struct {
	Sub           string `json:"id"`
	Email         string `json:"email"`
	EmailVerified bool   `json:"verified_email"`
	Name          string `json:"name"`
	Picture       string `json:"picture"`
}

// ProfileFetcher exchanges an authorization code for the user's profile.
type ProfileFetcher func(ctx context.Context, code string) (*Profile, error)

// Handler handles Google OAuth sign-in.
type Handler struct {
	Users      *userstore.Store
	Logins     *loginstore.Store
	StateStore *oauthstate.Store
	SessionMgr *auth.SessionManager
	AuditLog   *auditlog.Logger
	Log        *zap.Logger

	ClientID     string
	ClientSecret string
	RedirectURL  string // e.g. "https://api.tradeya.io/auth/google/callback"

	// AppURL is where the browser lands after the callback. Errors are
	// reported as ?auth_error=<code> on AppURL + "/login".
	AppURL string

	// FetchProfile defaults to the Google userinfo endpoint. Tests replace it.
	FetchProfile ProfileFetcher
}

// NewHandler creates a Google OAuth handler.
func NewHandler(
	db *mongo.Database,
	sessionMgr *auth.SessionManager,
	audit *auditlog.Logger,
	clientID, clientSecret, baseURL, appURL string,
	logger *zap.Logger,
) *Handler {
	h := &Handler{
		Users:        userstore.New(db),
		Logins:       loginstore.New(db),
		StateStore:   oauthstate.New(db),
		SessionMgr:   sessionMgr,
		AuditLog:     audit,
		Log:          logger,
		ClientID:     clientID,
		ClientSecret: clientSecret,
		RedirectURL:  baseURL + "/auth/google/callback",
		AppURL:       appURL,
	}
	h.FetchProfile = h.fetchGoogleProfile
	return h
}

func (h *Handler) oauth2Config() *oauth2.Config {
	return &oauth2.Config{
		ClientID:     h.ClientID,
		ClientSecret: h.ClientSecret,
		RedirectURL:  h.RedirectURL,
		Scopes: []string{
			"openid",
			"https://www.googleapis.com/auth/userinfo.email",
			"https://www.googleapis.com/auth/userinfo.profile",
		},
		Endpoint: google.Endpoint,
	}
}

// IsConfigured reports whether a client id and secret are set.
func (h *Handler) IsConfigured() bool {
	return h.ClientID != "" && h.ClientSecret != ""
}

/*─────────────────────────────────────────────────────────────────────────────*
| GET /auth/google                                                             |
| Redirects to Google's consent screen with a one-time state token.            |
*─────────────────────────────────────────────────────────────────────────────*/

func (h *Handler) ServeLogin(w http.ResponseWriter, r *http.Request) {
	if !h.IsConfigured() {
		h.Log.Warn("Google OAuth not configured")
		h.fail(w, r, "google_not_configured")
		return
	}

	state := base64.RawURLEncoding.EncodeToString(securecookie.GenerateRandomKey(32))

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	returnURL := query.Get(r, "return")
	if err := h.StateStore.Save(ctx, state, returnURL, time.Now().UTC().Add(stateTTL)); err != nil {
		h.Log.Error("failed to save OAuth state", zap.Error(err))
		h.fail(w, r, "internal")
		return
	}

	http.Redirect(w, r, h.oauth2Config().AuthCodeURL(state), http.StatusTemporaryRedirect)
}

/*─────────────────────────────────────────────────────────────────────────────*
| GET /auth/google/callback                                                    |
| Validates state, resolves the account and signs the user in.                 |
*─────────────────────────────────────────────────────────────────────────────*/

func (h *Handler) ServeCallback(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if errParam := q.Get("error"); errParam != "" {
		h.Log.Warn("Google OAuth error",
			zap.String("error", errParam),
			zap.String("description", q.Get("error_description")))
		h.fail(w, r, "google_denied")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	returnURL, valid, err := h.StateStore.Validate(ctx, q.Get("state"))
	if err != nil {
		h.Log.Error("failed to validate OAuth state", zap.Error(err))
		h.fail(w, r, "internal")
		return
	}
	if !valid {
		h.Log.Warn("invalid or expired OAuth state")
		h.fail(w, r, "invalid_state")
		return
	}

	code := q.Get("code")
	if code == "" {
		h.fail(w, r, "invalid_code")
		return
	}

	profile, err := h.FetchProfile(ctx, code)
	if err != nil {
		h.Log.Error("failed to fetch Google profile", zap.Error(err))
		h.fail(w, r, "user_info")
		return
	}

	u, err := h.resolveUser(ctx, r, profile)
	switch {
	case errors.Is(err, errUserDisabled):
		h.fail(w, r, "account_disabled")
		return
	case errors.Is(err, errUnverifiedEmail):
		h.fail(w, r, "unverified_email")
		return
	case err != nil:
		h.Log.Error("failed to resolve Google user", zap.Error(err))
		h.fail(w, r, "internal")
		return
	}

	if err := h.SessionMgr.Login(w, r, &auth.SessionUser{
		ID:    u.ID.Hex(),
		Name:  u.DisplayName,
		Email: u.Email,
		Role:  u.Role,
	}); err != nil {
		h.Log.Error("save session failed", zap.Error(err), zap.String("user_id", u.ID.Hex()))
		h.fail(w, r, "session")
		return
	}
	if err := h.Logins.CreateFrom(ctx, r, u.ID, "google"); err != nil {
		h.Log.Warn("record login failed", zap.String("user_id", u.ID.Hex()), zap.Error(err))
	}
	h.AuditLog.LoginSuccess(ctx, r, u.ID, "google", u.Email)

	h.Log.Info("user signed in via Google", zap.String("user_id", u.ID.Hex()))
	http.Redirect(w, r, h.AppURL+urlutil.SafeReturn(returnURL, "", "/"), http.StatusSeeOther)
}

var (
	errUserDisabled    = errors.New("user disabled")
	errUnverifiedEmail = errors.New("google email not verified")
)

// resolveUser finds the account linked to the Google subject, links an
// existing account with the same verified email, or registers a new one.
func (h *Handler) resolveUser(ctx context.Context, r *http.Request, p *Profile) (*models.User, error) {
	u, err := h.Users.GetByGoogleSub(ctx, p.Sub)
	if err != nil && !errors.Is(err, userstore.ErrNotFound) {
		return nil, err
	}

	if u == nil {
		if !p.EmailVerified {
			return nil, errUnverifiedEmail
		}
		email := normalize.Email(p.Email)
		u, err = h.Users.GetByEmail(ctx, email)
		switch {
		case err == nil:
			if err := h.Users.LinkGoogle(ctx, u.ID, p.Sub); err != nil {
				return nil, err
			}
		case errors.Is(err, userstore.ErrNotFound):
			sub := p.Sub
			created, err := h.Users.Create(ctx, models.User{
				DisplayName: p.Name,
				Email:       email,
				AuthMethod:  "google",
				GoogleSub:   &sub,
				PhotoURL:    p.Picture,
			})
			if err != nil {
				return nil, err
			}
			h.AuditLog.Registered(ctx, r, created.ID, "google")
			return &created, nil
		default:
			return nil, err
		}
	}

	if normalize.Status(u.Status) == models.UserDisabled {
		h.AuditLog.LoginFailedUserDisabled(ctx, r, u.ID, u.Email)
		return nil, errUserDisabled
	}
	return u, nil
}

func (h *Handler) fetchGoogleProfile(ctx context.Context, code string) (*Profile, error) {
	cfg := h.oauth2Config()
	token, err := cfg.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("exchange code: %w", err)
	}

	resp, err := cfg.Client(ctx, token).Get("https://www.googleapis.com/oauth2/v2/userinfo")
	if err != nil {
		return nil, fmt.Errorf("fetch user info: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	var p Profile
	if err := json.NewDecoder(resp.Body).Decode(&p); err != nil {
		return nil, fmt.Errorf("decode user info: %w", err)
	}
	return &p, nil
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, code string) {
	http.Redirect(w, r, h.AppURL+"/login?auth_error="+url.QueryEscape(code), http.StatusSeeOther)
}
