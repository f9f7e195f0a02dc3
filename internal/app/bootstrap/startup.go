// internal/app/bootstrap/startup.go
package bootstrap

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/dalemusser/waffle/config"
	applicationstore "github.com/tradeya/tradeya/internal/app/store/applications"
	"github.com/tradeya/tradeya/internal/app/store/audit"
	challengestore "github.com/tradeya/tradeya/internal/app/store/challenges"
	collabstore "github.com/tradeya/tradeya/internal/app/store/collaborations"
	notificationstore "github.com/tradeya/tradeya/internal/app/store/notifications"
	"github.com/tradeya/tradeya/internal/app/store/oauthstate"
	participantstore "github.com/tradeya/tradeya/internal/app/store/participants"
	proposalstore "github.com/tradeya/tradeya/internal/app/store/proposals"
	tradestore "github.com/tradeya/tradeya/internal/app/store/trades"
	userstore "github.com/tradeya/tradeya/internal/app/store/users"
	xpstore "github.com/tradeya/tradeya/internal/app/store/xp"
	"github.com/tradeya/tradeya/internal/app/system/auditlog"
	"github.com/tradeya/tradeya/internal/app/system/authz"
	"github.com/tradeya/tradeya/internal/app/system/normalize"
	"github.com/tradeya/tradeya/internal/app/system/notify"
	"github.com/tradeya/tradeya/internal/app/system/tasks"
	"github.com/tradeya/tradeya/internal/app/system/timeouts"
	"github.com/tradeya/tradeya/internal/app/system/workers"
	"github.com/tradeya/tradeya/internal/app/workflow"
	"github.com/tradeya/tradeya/internal/domain/models"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

const (
	hubBuffer          = 16
	notifyTimeout      = 10 * time.Second
	profileSyncTimeout = time.Minute
)

// Startup runs one-time initialization after the database is ready and
// before the HTTP handler is built. It bootstraps the admin account and
// starts the background services that handlers share.
func Startup(ctx context.Context, coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) error {
	if err := ensureAdmin(ctx, deps, appCfg.AdminEmail, logger); err != nil {
		logger.Error("admin bootstrap failed", zap.Error(err))
		return err
	}

	db := deps.MongoDatabase
	s := deps.Services

	s.Audit = auditlog.New(audit.New(db), logger, auditlog.Config{
		Auth:     appCfg.AuditLogAuth,
		Admin:    appCfg.AuditLogAdmin,
		Activity: appCfg.AuditLogActivity,
	})
	s.Hub = notify.NewHub(hubBuffer, logger)
	s.Workflow = newWorkflow(db, s.Hub, s.Audit, appCfg, logger)

	s.ProfileSync = workers.NewProfileSync(map[string]workers.DisplayFieldUpdater{
		"trades":            s.Workflow.Trades,
		"proposals":         s.Workflow.Proposals,
		"collaborations":    s.Workflow.Collabs,
		"role_applications": s.Workflow.Applications,
	}, logger, profileSyncTimeout)
	s.ProfileSync.Start()

	s.Scheduler = tasks.NewScheduler(logger, timeouts.Job())
	for _, j := range []tasks.Job{
		tasks.TradeAutoCompleteJob(s.Workflow, appCfg.TradeAutoCompleteAfter, logger),
		tasks.TradeReminderJob(s.Workflow, appCfg.TradeReminderAfter, logger),
		tasks.CloseExpiredChallengesJob(s.Workflow.Challenges, logger),
		tasks.PurgeReadNotificationsJob(notificationstore.New(db), appCfg.NotificationRetention, logger),
		tasks.OAuthStateCleanupJob(oauthstate.New(db), logger),
	} {
		if err := s.Scheduler.Add(j); err != nil {
			return err
		}
	}
	s.Scheduler.Start()

	return nil
}

func newWorkflow(db *mongo.Database, hub *notify.Hub, al *auditlog.Logger, appCfg AppConfig, logger *zap.Logger) *workflow.Service {
	return workflow.New(workflow.Deps{
		DB:           db,
		Users:        userstore.New(db),
		Trades:       tradestore.New(db),
		Proposals:    proposalstore.New(db),
		Collabs:      collabstore.New(db),
		Applications: applicationstore.New(db),
		Challenges:   challengestore.New(db),
		Participants: participantstore.New(db),
		XP:           xpstore.New(db),
		Notify:       notify.NewDispatcher(notificationstore.New(db), hub, logger, notifyTimeout),
		Audit:        al,
		Log:          logger,
	}, workflow.Config{
		TradeXP:       appCfg.TradeCompletionXP,
		NotifyTimeout: notifyTimeout,
	})
}

// ensureAdmin makes sure the configured admin email belongs to an active
// admin. An unknown email gets a Google-linked account that is claimed on
// first Google sign-in with that verified address.
func ensureAdmin(ctx context.Context, deps DBDeps, email string, logger *zap.Logger) error {
	email = normalize.Email(email)
	if email == "" {
		return nil
	}
	users := userstore.New(deps.MongoDatabase)

	u, err := users.GetByEmail(ctx, email)
	switch {
	case errors.Is(err, userstore.ErrNotFound):
		created, err := users.Create(ctx, models.User{
			DisplayName: adminNameFor(email),
			Email:       email,
			AuthMethod:  "google",
			Role:        authz.RoleAdmin,
		})
		if err != nil {
			return err
		}
		logger.Info("created admin account", zap.String("email", email), zap.String("user_id", created.ID.Hex()))
		return nil
	case err != nil:
		return err
	}

	if u.Role != authz.RoleAdmin {
		if err := users.SetRole(ctx, u.ID, authz.RoleAdmin); err != nil {
			return err
		}
		logger.Info("promoted user to admin", zap.String("email", email), zap.String("from", u.Role))
	}
	if u.Status != models.UserActive {
		if err := users.SetStatus(ctx, u.ID, models.UserActive); err != nil {
			return err
		}
		logger.Info("re-enabled admin account", zap.String("email", email))
	}
	return nil
}

func adminNameFor(email string) string {
	if local, _, ok := strings.Cut(email, "@"); ok && local != "" {
		return local
	}
	return "Admin"
}
