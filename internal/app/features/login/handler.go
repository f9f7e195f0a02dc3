// internal/app/features/login/handler.go
package login

import (
	"context"
	"errors"
	"net/http"

	uierrors "github.com/tradeya/tradeya/internal/app/features/errors"
	"github.com/tradeya/tradeya/internal/app/features/shared"
	loginstore "github.com/tradeya/tradeya/internal/app/store/logins"
	userstore "github.com/tradeya/tradeya/internal/app/store/users"
	"github.com/tradeya/tradeya/internal/app/system/auditlog"
	"github.com/tradeya/tradeya/internal/app/system/auth"
	"github.com/tradeya/tradeya/internal/app/system/inputval"
	"github.com/tradeya/tradeya/internal/app/system/normalize"
	"github.com/tradeya/tradeya/internal/app/system/ratelimit"
	"github.com/tradeya/tradeya/internal/app/system/timeouts"
	"github.com/tradeya/tradeya/internal/domain/models"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

type Handler struct {
	Users      *userstore.Store
	Logins     *loginstore.Store
	SessionMgr *auth.SessionManager
	Limiter    *ratelimit.LoginLimiter
	ErrLog     *uierrors.ErrorLogger
	AuditLog   *auditlog.Logger
	Log        *zap.Logger

	// BcryptCost is the hashing cost for new passwords.
	BcryptCost int
}

func NewHandler(
	db *mongo.Database,
	sessionMgr *auth.SessionManager,
	limiter *ratelimit.LoginLimiter,
	errLog *uierrors.ErrorLogger,
	audit *auditlog.Logger,
	logger *zap.Logger,
) *Handler {
	return &Handler{
		Users:      userstore.New(db),
		Logins:     loginstore.New(db),
		SessionMgr: sessionMgr,
		Limiter:    limiter,
		ErrLog:     errLog,
		AuditLog:   audit,
		Log:        logger,
		BcryptCost: bcrypt.DefaultCost,
	}
}

type registerRequest struct {
	DisplayName string `json:"display_name" validate:"required,max=80" label:"Display name"`
	Email       string `json:"email" validate:"required,tradeemail" label:"Email"`
	Password    string `json:"password" validate:"required,min=8,max=72" label:"Password"`
}

type loginRequest struct {
	Email    string `json:"email" validate:"required" label:"Email"`
	Password string `json:"password" validate:"required" label:"Password"`
}

// sessionResponse is returned after a successful sign-in.
type sessionResponse struct {
	User models.User `json:"user"`
}

// ServeRegister handles POST /auth/register and signs the new user in.
func (h *Handler) ServeRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := shared.DecodeJSON(w, r, &req); err != nil {
		uierrors.RenderBadRequest(w, r, err.Error())
		return
	}
	req.Email = normalize.Email(req.Email)
	if res := inputval.Validate(req); res.HasErrors() {
		uierrors.RenderValidation(w, r, res)
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), h.BcryptCost)
	if err != nil {
		h.ErrLog.LogServerError(w, r, "bcrypt hash", err, "")
		return
	}
	hs := string(hash)

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	u, err := h.Users.Create(ctx, models.User{
		DisplayName:  req.DisplayName,
		Email:        req.Email,
		AuthMethod:   "password",
		PasswordHash: &hs,
	})
	if errors.Is(err, userstore.ErrDuplicateEmail) {
		uierrors.RenderConflict(w, r, "An account with that email already exists.")
		return
	}
	if err != nil {
		h.ErrLog.LogServerError(w, r, "create user", err, "")
		return
	}
	h.AuditLog.Registered(ctx, r, u.ID, u.AuthMethod)

	if !h.startSession(w, r, u, "password") {
		return
	}
	uierrors.WriteJSON(w, http.StatusCreated, sessionResponse{User: u})
}

// ServeLogin handles POST /auth/login with an email and password.
func (h *Handler) ServeLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := shared.DecodeJSON(w, r, &req); err != nil {
		uierrors.RenderBadRequest(w, r, err.Error())
		return
	}
	if res := inputval.Validate(req); res.HasErrors() {
		uierrors.RenderValidation(w, r, res)
		return
	}
	email := normalize.Email(req.Email)

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	if err := h.Limiter.Check(r, email); err != nil {
		limitType := "ip"
		if errors.Is(err, ratelimit.ErrTooManyForAccount) {
			limitType = "account"
		}
		h.AuditLog.LoginFailedRateLimit(ctx, r, email, limitType)
		uierrors.RenderTooManyRequests(w, r, err.Error())
		return
	}

	u, err := h.Users.GetByEmail(ctx, email)
	switch {
	case errors.Is(err, userstore.ErrNotFound):
		h.AuditLog.LoginFailedUserNotFound(ctx, r, email)
		uierrors.RenderUnauthorized(w, r, "Incorrect email or password.")
		return
	case err != nil:
		h.ErrLog.LogServerError(w, r, "find user for login", err, "")
		return
	}

	if u.PasswordHash == nil || bcrypt.CompareHashAndPassword([]byte(*u.PasswordHash), []byte(req.Password)) != nil {
		h.AuditLog.LoginFailedWrongPassword(ctx, r, u.ID, email)
		uierrors.RenderUnauthorized(w, r, "Incorrect email or password.")
		return
	}
	if normalize.Status(u.Status) == models.UserDisabled {
		h.AuditLog.LoginFailedUserDisabled(ctx, r, u.ID, email)
		uierrors.RenderForbidden(w, r, "Your account is disabled. Please contact an administrator.")
		return
	}

	h.Limiter.ResetEmail(email)
	if !h.startSession(w, r, *u, "password") {
		return
	}
	h.AuditLog.LoginSuccess(ctx, r, u.ID, "password", email)
	uierrors.WriteJSON(w, http.StatusOK, sessionResponse{User: *u})
}

// startSession writes the session cookie and records the login. It has
// written an error response when it returns false.
func (h *Handler) startSession(w http.ResponseWriter, r *http.Request, u models.User, provider string) bool {
	if err := h.SessionMgr.Login(w, r, &auth.SessionUser{
		ID:    u.ID.Hex(),
		Name:  u.DisplayName,
		Email: u.Email,
		Role:  u.Role,
	}); err != nil {
		h.ErrLog.LogServerError(w, r, "save session", err, "")
		return false
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(r.Context()), timeouts.Short())
	defer cancel()
	if err := h.Logins.CreateFrom(ctx, r, u.ID, provider); err != nil {
		h.Log.Warn("record login failed", zap.String("user_id", u.ID.Hex()), zap.Error(err))
	}
	return true
}
