// internal/app/bootstrap/routes.go
package bootstrap

import (
	"net/http"

	"github.com/dalemusser/waffle/config"
	"github.com/go-chi/chi/v5"
	auditlogfeature "github.com/tradeya/tradeya/internal/app/features/auditlog"
	authgooglefeature "github.com/tradeya/tradeya/internal/app/features/authgoogle"
	challengesfeature "github.com/tradeya/tradeya/internal/app/features/challenges"
	collabfeature "github.com/tradeya/tradeya/internal/app/features/collaborations"
	dashboardfeature "github.com/tradeya/tradeya/internal/app/features/dashboard"
	errorsfeature "github.com/tradeya/tradeya/internal/app/features/errors"
	healthfeature "github.com/tradeya/tradeya/internal/app/features/health"
	loginfeature "github.com/tradeya/tradeya/internal/app/features/login"
	logoutfeature "github.com/tradeya/tradeya/internal/app/features/logout"
	notificationsfeature "github.com/tradeya/tradeya/internal/app/features/notifications"
	profilefeature "github.com/tradeya/tradeya/internal/app/features/profile"
	systemusersfeature "github.com/tradeya/tradeya/internal/app/features/systemusers"
	tradesfeature "github.com/tradeya/tradeya/internal/app/features/trades"
	userinfofeature "github.com/tradeya/tradeya/internal/app/features/userinfo"
	userstore "github.com/tradeya/tradeya/internal/app/store/users"
	"github.com/tradeya/tradeya/internal/app/system/auth"
	"github.com/tradeya/tradeya/internal/app/system/metrics"
	"github.com/tradeya/tradeya/internal/app/system/ratelimit"
	"go.uber.org/zap"
)

// BuildHandler constructs the root HTTP handler for TradeYa.
//
// WAFFLE calls this after configuration, DB connections, schema setup and
// Startup have completed, so the shared Services are ready. Every feature
// speaks JSON; unknown routes get a JSON 404.
func BuildHandler(coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) (http.Handler, error) {
	// Secure cookies are enabled in production mode.
	secure := coreCfg.Env == "prod"
	sessionMgr, err := auth.NewSessionManager(appCfg.SessionKey, appCfg.SessionName, appCfg.SessionDomain, appCfg.SessionMaxAge, secure, logger)
	if err != nil {
		logger.Error("session manager init failed", zap.Error(err))
		return nil, err
	}

	// Fresh user data on each request, so role changes and disabled
	// accounts take effect immediately.
	sessionMgr.SetUserFetcher(userstore.NewFetcher(deps.MongoDatabase))

	db := deps.MongoDatabase
	svc := deps.Services
	errLog := errorsfeature.NewErrorLogger(logger)

	r := chi.NewRouter()
	if appCfg.MetricsEnabled {
		r.Use(metrics.Middleware)
	}
	r.Use(sessionMgr.LoadSessionUser)

	if appCfg.MetricsEnabled {
		r.Handle("/metrics", metrics.Handler())
	}

	errorsHandler := errorsfeature.NewHandler()
	r.NotFound(errorsHandler.NotFound)
	r.MethodNotAllowed(errorsHandler.MethodNotAllowed)

	// Health check endpoint for load balancers and orchestrators
	healthHandler := healthfeature.NewHandler(deps.MongoClient, appCfg.Version, logger)
	r.Mount("/health", healthfeature.Routes(healthHandler))

	// Authentication
	limiter := ratelimit.NewLoginLimiter(appCfg.LoginRateLimit, appCfg.LoginRateWindow)
	loginHandler := loginfeature.NewHandler(db, sessionMgr, limiter, errLog, svc.Audit, logger)
	logoutHandler := logoutfeature.NewHandler(sessionMgr, svc.Audit, logger)
	r.Route("/auth", func(ar chi.Router) {
		loginfeature.MountRoutes(ar, loginHandler)
		ar.Mount("/logout", logoutfeature.Routes(logoutHandler, sessionMgr))
		userinfofeature.MountRoutes(ar, userinfofeature.NewHandler())
		if appCfg.GoogleClientID != "" {
			googleHandler := authgooglefeature.NewHandler(db, sessionMgr, svc.Audit,
				appCfg.GoogleClientID, appCfg.GoogleClientSecret, appCfg.BaseURL, appCfg.AppURL, logger)
			ar.Mount("/google", authgooglefeature.Routes(googleHandler))
		}
	})

	// Profiles and leaderboard
	profileHandler := profilefeature.NewHandler(db, svc.ProfileSync, errLog, svc.Audit, logger)
	r.Mount("/api/profile", profilefeature.Routes(profileHandler, sessionMgr))
	profilefeature.MountPublicRoutes(r, profileHandler)

	// Trades and proposals
	tradesHandler := tradesfeature.NewHandler(svc.Workflow, errLog, logger)
	r.Mount("/api/trades", tradesfeature.Routes(tradesHandler, sessionMgr))
	r.Mount("/api/proposals", tradesfeature.ProposalRoutes(tradesHandler, sessionMgr))

	// Collaborations and role applications
	collabHandler := collabfeature.NewHandler(svc.Workflow, errLog, logger)
	r.Mount("/api/collaborations", collabfeature.Routes(collabHandler, sessionMgr))
	r.Mount("/api/applications", collabfeature.ApplicationRoutes(collabHandler, sessionMgr))

	// Challenges
	challengesHandler := challengesfeature.NewHandler(svc.Workflow, errLog, logger)
	r.Mount("/api/challenges", challengesfeature.Routes(challengesHandler, sessionMgr))

	// Notifications (REST and realtime stream)
	notificationsHandler := notificationsfeature.NewHandler(db, svc.Hub, errLog, logger, appCfg.AllowedOrigins...)
	r.Mount("/api/notifications", notificationsfeature.Routes(notificationsHandler, sessionMgr))

	// Administration
	sysUsersHandler := systemusersfeature.NewHandler(db, errLog, svc.Audit, logger)
	r.Mount("/api/admin/users", systemusersfeature.Routes(sysUsersHandler, sessionMgr))

	auditHandler := auditlogfeature.NewHandler(db, errLog, logger)
	r.Mount("/api/admin/audit", auditlogfeature.Routes(auditHandler, sessionMgr))

	dashboardHandler := dashboardfeature.NewHandler(db, svc.Scheduler, errLog, logger)
	r.Mount("/api/admin", dashboardfeature.Routes(dashboardHandler, sessionMgr))

	return r, nil
}
