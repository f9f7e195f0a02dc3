// Package auth manages cookie sessions and the signed-in user carried in the
// request context.
package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/sessions"
	"go.uber.org/zap"
)

const (
	isAuthKey  = "is_authenticated"
	userIDKey  = "user_id"
	userName   = "user_name"
	userEmail  = "user_email"
	userRole   = "user_role"
	issuedAtKy = "issued_at"
)

// SessionUser is what we cache in the session & inject into r.Context().
type SessionUser struct {
	ID    string
	Name  string
	Email string
	Role  string // user | admin
}

// UserFetcher reloads the user behind a session on every request so that
// role changes and disabled accounts take effect immediately. It returns
// nil when the user no longer exists or is disabled.
type UserFetcher interface {
	FetchUser(ctx context.Context, userID string) *SessionUser
}

// SessionManager wraps a gorilla cookie store.
type SessionManager struct {
	store   *sessions.CookieStore
	name    string
	maxAge  time.Duration
	log     *zap.Logger
	fetcher UserFetcher
}

// NewSessionManager builds a cookie store from sessionKey.
//
// In production (secure=true), cookies are Secure + SameSite=None.
// In local dev over http://localhost, use secure=false so cookies are accepted.
func NewSessionManager(sessionKey, name, domain string, maxAge time.Duration, secure bool, logger *zap.Logger) (*SessionManager, error) {
	if sessionKey == "" {
		return nil, fmt.Errorf("session key is empty; provide ≥32 random chars")
	}
	if len(sessionKey) < 32 {
		logger.Warn("session key is short; 32+ chars recommended",
			zap.Int("length", len(sessionKey)))
	}
	if name == "" {
		name = "tradeya-session"
	}
	if maxAge <= 0 {
		maxAge = 30 * 24 * time.Hour
	}

	store := sessions.NewCookieStore([]byte(sessionKey))
	opts := &sessions.Options{
		Domain:   domain,
		Path:     "/",
		MaxAge:   int(maxAge.Seconds()),
		Secure:   secure,
		HttpOnly: true,
	}
	if secure {
		opts.SameSite = http.SameSiteNoneMode
	} else {
		opts.SameSite = http.SameSiteLaxMode
	}
	store.Options = opts

	logger.Info("session store initialized",
		zap.String("name", name),
		zap.Bool("secure", secure),
		zap.String("domain", domain))

	return &SessionManager{store: store, name: name, maxAge: maxAge, log: logger}, nil
}

// SetUserFetcher installs the per-request user reload.
func (sm *SessionManager) SetUserFetcher(f UserFetcher) { sm.fetcher = f }

// GetSession returns the current session (a new one if the cookie is
// missing or cannot be decoded).
func (sm *SessionManager) GetSession(r *http.Request) (*sessions.Session, error) {
	return sm.store.Get(r, sm.name)
}

// Login marks the session as authenticated for u and saves it.
func (sm *SessionManager) Login(w http.ResponseWriter, r *http.Request, u *SessionUser) error {
	sess, _ := sm.GetSession(r)
	sess.Values[isAuthKey] = true
	sess.Values[userIDKey] = u.ID
	sess.Values[userName] = u.Name
	sess.Values[userEmail] = u.Email
	sess.Values[userRole] = u.Role
	sess.Values[issuedAtKy] = time.Now().Unix()
	return sess.Save(r, w)
}

// Logout clears the session cookie.
func (sm *SessionManager) Logout(w http.ResponseWriter, r *http.Request) error {
	sess, _ := sm.GetSession(r)
	for k := range sess.Values {
		delete(sess.Values, k)
	}
	sess.Options.MaxAge = -1
	return sess.Save(r, w)
}

// SetValue stores a string in the session (e.g. an OAuth state token).
func (sm *SessionManager) SetValue(w http.ResponseWriter, r *http.Request, key, value string) error {
	sess, _ := sm.GetSession(r)
	sess.Values[key] = value
	return sess.Save(r, w)
}

// PopValue returns and removes a string value from the session.
func (sm *SessionManager) PopValue(w http.ResponseWriter, r *http.Request, key string) string {
	sess, _ := sm.GetSession(r)
	v := getString(sess, key)
	if v == "" {
		return ""
	}
	delete(sess.Values, key)
	if err := sess.Save(r, w); err != nil {
		sm.log.Warn("session save failed", zap.Error(err))
	}
	return v
}

type ctxKey string

const currentUserKey ctxKey = "currentUser"

// CurrentUser returns the user & "found?" flag.
func CurrentUser(r *http.Request) (*SessionUser, bool) {
	u, ok := r.Context().Value(currentUserKey).(*SessionUser)
	return u, ok && u != nil
}

// WithTestUser injects u into the request context. Tests use it to skip
// the cookie round trip.
func WithTestUser(r *http.Request, u *SessionUser) *http.Request {
	return withUser(r, u)
}

// LoadSessionUser injects the user into context if they are signed in.
// With a UserFetcher installed the user is reloaded; a nil result signs
// the request out.
func (sm *SessionManager) LoadSessionUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess, _ := sm.GetSession(r)
		isAuth, _ := sess.Values[isAuthKey].(bool)
		if !isAuth {
			next.ServeHTTP(w, r)
			return
		}

		id := getString(sess, userIDKey)
		if sm.fetcher != nil {
			u := sm.fetcher.FetchUser(r.Context(), id)
			if u == nil {
				sm.log.Debug("session user not loadable; treating as signed out", zap.String("user_id", id))
				next.ServeHTTP(w, r)
				return
			}
			next.ServeHTTP(w, withUser(r, u))
			return
		}

		u := &SessionUser{
			ID:    id,
			Name:  getString(sess, userName),
			Email: getString(sess, userEmail),
			Role:  getString(sess, userRole),
		}
		next.ServeHTTP(w, withUser(r, u))
	})
}

// RequireSignedIn answers 401 unless LoadSessionUser found a user.
func (sm *SessionManager) RequireSignedIn(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := CurrentUser(r); ok {
			next.ServeHTTP(w, r)
			return
		}
		writeJSONError(w, http.StatusUnauthorized, "unauthorized", "Please sign in to continue.")
	})
}

// RequireRole answers 401 when signed out and 403 when the user's role is
// not one of allowed (case-insensitive).
func (sm *SessionManager) RequireRole(allowed ...string) func(http.Handler) http.Handler {
	set := make(map[string]struct{}, len(allowed))
	for _, role := range allowed {
		set[strings.ToLower(strings.TrimSpace(role))] = struct{}{}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			u, ok := CurrentUser(r)
			if !ok {
				writeJSONError(w, http.StatusUnauthorized, "unauthorized", "Please sign in to continue.")
				return
			}
			if _, has := set[strings.ToLower(u.Role)]; !has {
				writeJSONError(w, http.StatusForbidden, "forbidden", "You don't have permission to do that.")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// helpers

func withUser(r *http.Request, u *SessionUser) *http.Request {
	return r.WithContext(context.WithValue(r.Context(), currentUserKey, u))
}

// getString safely extracts a string from a session value.
func getString(s *sessions.Session, key string) string {
	if v, ok := s.Values[key].(string); ok {
		return v
	}
	return ""
}

func writeJSONError(w http.ResponseWriter, status int, code, msg string) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": code, "message": msg})
}
