// internal/app/system/auditlog/logger.go
package auditlog

import (
	"context"
	"net/http"
	"strconv"

	"github.com/tradeya/tradeya/internal/app/store/audit"
	"github.com/tradeya/tradeya/internal/app/system/ratelimit"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// Config holds audit logging configuration.
//
// Each field takes one of "all" (MongoDB + zap), "db" (MongoDB only),
// "log" (zap only) or "off" (disabled). An empty value means "all".
type Config struct {
	// Auth controls logging for authentication events (login, logout, registration, password).
	Auth string
	// Admin controls logging for admin actions (dispute resolution, challenge management, account status).
	Admin string
	// Activity controls logging for trade, collaboration and XP state changes.
	Activity string
}

// Logger provides convenience methods for logging audit events.
// It logs to both MongoDB (via audit.Store) and structured logs (via zap).
type Logger struct {
	store  *audit.Store
	zapLog *zap.Logger
	config Config
}

// New creates a new audit Logger.
func New(store *audit.Store, zapLog *zap.Logger, config Config) *Logger {
	return &Logger{
		store:  store,
		zapLog: zapLog,
		config: config,
	}
}

// requestInfo returns the client IP and user agent. Background jobs pass a nil request.
func requestInfo(r *http.Request) (ip, ua string) {
	if r == nil {
		return "system", ""
	}
	return ratelimit.ClientIP(r), r.UserAgent()
}

// logToZap logs the event to zap with consistent structure.
func (l *Logger) logToZap(event audit.Event) {
	fields := []zap.Field{
		zap.Bool("audit", true),
		zap.String("category", event.Category),
		zap.String("event_type", event.EventType),
		zap.Bool("success", event.Success),
		zap.String("ip", event.IP),
	}

	if event.UserID != nil {
		fields = append(fields, zap.String("user_id", event.UserID.Hex()))
	}
	if event.ActorID != nil {
		fields = append(fields, zap.String("actor_id", event.ActorID.Hex()))
	}
	if event.EntityID != nil {
		fields = append(fields, zap.String(event.EntityKind+"_id", event.EntityID.Hex()))
	}
	if event.FailureReason != "" {
		fields = append(fields, zap.String("failure_reason", event.FailureReason))
	}
	for k, v := range event.Details {
		fields = append(fields, zap.String("detail_"+k, v))
	}

	if event.Success {
		l.zapLog.Info("audit event", fields...)
	} else {
		l.zapLog.Warn("audit event", fields...)
	}
}

func (l *Logger) settingFor(category string) string {
	var setting string
	switch category {
	case audit.CategoryAuth:
		setting = l.config.Auth
	case audit.CategoryAdmin:
		setting = l.config.Admin
	case audit.CategoryActivity:
		setting = l.config.Activity
	}
	if setting == "" {
		return "all"
	}
	return setting
}

// Log records an audit event based on configuration.
// If the logger is nil, this is a no-op (allows tests to use nil audit logger).
func (l *Logger) Log(ctx context.Context, event audit.Event) {
	if l == nil {
		return
	}

	setting := l.settingFor(event.Category)
	if setting == "off" {
		return
	}

	if setting == "all" || setting == "log" {
		l.logToZap(event)
	}

	if setting == "all" || setting == "db" {
		if err := l.store.Log(ctx, event); err != nil {
			l.zapLog.Error("failed to store audit event",
				zap.Error(err),
				zap.String("event_type", event.EventType),
			)
		}
	}
}

func (l *Logger) auth(ctx context.Context, r *http.Request, eventType string, userID *primitive.ObjectID, success bool, reason string, details map[string]string) {
	ip, ua := requestInfo(r)
	l.Log(ctx, audit.Event{
		Category:      audit.CategoryAuth,
		EventType:     eventType,
		UserID:        userID,
		IP:            ip,
		UserAgent:     ua,
		Success:       success,
		FailureReason: reason,
		Details:       details,
	})
}

// --- Authentication Events ---

// LoginSuccess logs a successful login.
func (l *Logger) LoginSuccess(ctx context.Context, r *http.Request, userID primitive.ObjectID, authMethod, email string) {
	l.auth(ctx, r, audit.EventLoginSuccess, &userID, true, "", map[string]string{
		"auth_method": authMethod,
		"email":       email,
	})
}

// LoginFailedUserNotFound logs a failed login due to user not found.
func (l *Logger) LoginFailedUserNotFound(ctx context.Context, r *http.Request, attemptedEmail string) {
	l.auth(ctx, r, audit.EventLoginFailedUserNotFound, nil, false, "user not found", map[string]string{
		"attempted_email": attemptedEmail,
	})
}

// LoginFailedWrongPassword logs a failed login due to wrong password.
func (l *Logger) LoginFailedWrongPassword(ctx context.Context, r *http.Request, userID primitive.ObjectID, email string) {
	l.auth(ctx, r, audit.EventLoginFailedWrongPassword, &userID, false, "wrong password", map[string]string{
		"email": email,
	})
}

// LoginFailedUserDisabled logs a failed login due to disabled account.
func (l *Logger) LoginFailedUserDisabled(ctx context.Context, r *http.Request, userID primitive.ObjectID, email string) {
	l.auth(ctx, r, audit.EventLoginFailedUserDisabled, &userID, false, "user disabled", map[string]string{
		"email": email,
	})
}

// LoginFailedRateLimit logs a failed login due to rate limiting.
// limitType is "ip" or "account".
func (l *Logger) LoginFailedRateLimit(ctx context.Context, r *http.Request, email, limitType string) {
	l.auth(ctx, r, audit.EventLoginFailedRateLimit, nil, false, "rate limit exceeded", map[string]string{
		"email":      email,
		"limit_type": limitType,
	})
}

// Logout logs a user logout.
// Accepts the string ID from SessionUser; an invalid ID is logged without a user.
func (l *Logger) Logout(ctx context.Context, r *http.Request, userIDStr string) {
	var userID *primitive.ObjectID
	if oid, err := primitive.ObjectIDFromHex(userIDStr); err == nil {
		userID = &oid
	}
	l.auth(ctx, r, audit.EventLogout, userID, true, "", nil)
}

// Registered logs a new account.
func (l *Logger) Registered(ctx context.Context, r *http.Request, userID primitive.ObjectID, authMethod string) {
	l.auth(ctx, r, audit.EventRegistered, &userID, true, "", map[string]string{
		"auth_method": authMethod,
	})
}

// PasswordChanged logs a password change.
func (l *Logger) PasswordChanged(ctx context.Context, r *http.Request, userID primitive.ObjectID) {
	l.auth(ctx, r, audit.EventPasswordChanged, &userID, true, "", nil)
}

// --- Admin Events ---

func (l *Logger) admin(ctx context.Context, r *http.Request, eventType string, actorID *primitive.ObjectID, userID *primitive.ObjectID, kind string, entityID *primitive.ObjectID, details map[string]string) {
	ip, ua := requestInfo(r)
	l.Log(ctx, audit.Event{
		Category:   audit.CategoryAdmin,
		EventType:  eventType,
		ActorID:    actorID,
		UserID:     userID,
		EntityKind: kind,
		EntityID:   entityID,
		IP:         ip,
		UserAgent:  ua,
		Success:    true,
		Details:    details,
	})
}

// UserStatusChanged logs when an admin disables or re-enables an account.
func (l *Logger) UserStatusChanged(ctx context.Context, r *http.Request, actorID, targetUserID primitive.ObjectID, status string) {
	eventType := audit.EventUserEnabled
	if status == "disabled" {
		eventType = audit.EventUserDisabled
	}
	l.admin(ctx, r, eventType, &actorID, &targetUserID, "user", &targetUserID, map[string]string{
		"status": status,
	})
}

// RoleChanged logs when an admin changes a user's role.
func (l *Logger) RoleChanged(ctx context.Context, r *http.Request, actorID, targetUserID primitive.ObjectID, from, to string) {
	l.admin(ctx, r, audit.EventRoleChanged, &actorID, &targetUserID, "user", &targetUserID, map[string]string{
		"from": from,
		"to":   to,
	})
}

// DisputeResolved logs when an admin returns a disputed trade to progress.
func (l *Logger) DisputeResolved(ctx context.Context, r *http.Request, actorID, tradeID primitive.ObjectID, resolution string) {
	l.admin(ctx, r, audit.EventDisputeResolved, &actorID, nil, "trade", &tradeID, map[string]string{
		"resolution": resolution,
	})
}

// ChallengeCreated logs when an admin creates a challenge.
func (l *Logger) ChallengeCreated(ctx context.Context, r *http.Request, actorID, challengeID primitive.ObjectID, title string, xp int64) {
	l.admin(ctx, r, audit.EventChallengeCreated, &actorID, nil, "challenge", &challengeID, map[string]string{
		"title":     title,
		"xp_reward": strconv.FormatInt(xp, 10),
	})
}

// ChallengeClosed logs when a challenge is closed. actorID is nil when the
// close came from the expiry job.
func (l *Logger) ChallengeClosed(ctx context.Context, r *http.Request, actorID *primitive.ObjectID, challengeID primitive.ObjectID) {
	l.admin(ctx, r, audit.EventChallengeClosed, actorID, nil, "challenge", &challengeID, nil)
}

// SubmissionReviewed logs an admin approving or returning a challenge submission.
func (l *Logger) SubmissionReviewed(ctx context.Context, r *http.Request, actorID, userID, challengeID primitive.ObjectID, approved bool) {
	l.admin(ctx, r, audit.EventSubmissionReview, &actorID, &userID, "challenge", &challengeID, map[string]string{
		"approved": strconv.FormatBool(approved),
	})
}

// --- Activity Events ---

// Transition describes a lifecycle step for activity logging.
type Transition struct {
	Action string
	From   string
	To     string
}

func (l *Logger) activity(ctx context.Context, r *http.Request, eventType string, actorID *primitive.ObjectID, kind string, entityID primitive.ObjectID, details map[string]string) {
	ip, ua := requestInfo(r)
	l.Log(ctx, audit.Event{
		Category:   audit.CategoryActivity,
		EventType:  eventType,
		ActorID:    actorID,
		UserID:     actorID,
		EntityKind: kind,
		EntityID:   &entityID,
		IP:         ip,
		UserAgent:  ua,
		Success:    true,
		Details:    details,
	})
}

func (t Transition) details() map[string]string {
	return map[string]string{"action": t.Action, "from": t.From, "to": t.To}
}

// TradeTransition logs a trade status change. actorID is nil for system actions.
func (l *Logger) TradeTransition(ctx context.Context, r *http.Request, actorID *primitive.ObjectID, tradeID primitive.ObjectID, t Transition) {
	l.activity(ctx, r, audit.EventTradeTransition, actorID, "trade", tradeID, t.details())
}

// ProposalDecision logs a proposal being accepted, rejected or withdrawn.
func (l *Logger) ProposalDecision(ctx context.Context, r *http.Request, actorID, proposalID, tradeID primitive.ObjectID, t Transition) {
	d := t.details()
	d["trade_id"] = tradeID.Hex()
	l.activity(ctx, r, audit.EventProposalDecision, &actorID, "proposal", proposalID, d)
}

// CollaborationTransition logs a collaboration status change.
func (l *Logger) CollaborationTransition(ctx context.Context, r *http.Request, actorID primitive.ObjectID, collabID primitive.ObjectID, t Transition) {
	l.activity(ctx, r, audit.EventCollaborationTransition, &actorID, "collaboration", collabID, t.details())
}

// ApplicationDecision logs a role application being accepted, rejected or withdrawn.
func (l *Logger) ApplicationDecision(ctx context.Context, r *http.Request, actorID, applicationID primitive.ObjectID, roleID string, t Transition) {
	d := t.details()
	d["role_id"] = roleID
	l.activity(ctx, r, audit.EventApplicationDecision, &actorID, "application", applicationID, d)
}

// XPAwarded logs an XP award and the resulting level.
func (l *Logger) XPAwarded(ctx context.Context, userID primitive.ObjectID, amount int64, source string, sourceID primitive.ObjectID, level int) {
	l.Log(ctx, audit.Event{
		Category:   audit.CategoryActivity,
		EventType:  audit.EventXPAwarded,
		UserID:     &userID,
		EntityKind: source,
		EntityID:   &sourceID,
		IP:         "system",
		Success:    true,
		Details: map[string]string{
			"amount": strconv.FormatInt(amount, 10),
			"level":  strconv.Itoa(level),
		},
	})
}
