// internal/app/bootstrap/config.go
package bootstrap

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dalemusser/waffle/config"
	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"github.com/tradeya/tradeya/internal/app/system/timeouts"
	"go.uber.org/zap"
)

const minSessionKeyLen = 32

// appConfigKeys defines the configuration keys for TradeYa.
// These are loaded via WAFFLE's config system with support for:
//   - Config files: mongo_uri, session_name, etc.
//   - Environment variables: TRADEYA_MONGO_URI, TRADEYA_SESSION_NAME, etc.
//   - Command-line flags: --mongo_uri, --session_name, etc.
var appConfigKeys = []config.AppKey{
	{Name: "mongo_uri", Default: "mongodb://localhost:27017", Desc: "MongoDB connection URI"},
	{Name: "mongo_database", Default: "tradeya", Desc: "MongoDB database name"},
	{Name: "mongo_max_pool_size", Default: 100, Desc: "MongoDB max connection pool size (default: 100)"},
	{Name: "mongo_min_pool_size", Default: 10, Desc: "MongoDB min connection pool size (default: 10)"},
	{Name: "session_key", Default: "dev-only-change-me-please-0123456789ABCDEF", Desc: "Session signing key (must be strong in production)"},
	{Name: "session_name", Default: "tradeya-session", Desc: "Session cookie name"},
	{Name: "session_domain", Default: "", Desc: "Session cookie domain (blank means current host)"},
	{Name: "session_max_age", Default: "720h", Desc: "Session cookie lifetime"},

	{Name: "base_url", Default: "http://localhost:8080", Desc: "Public URL of this API (OAuth callbacks are built from it)"},
	{Name: "app_url", Default: "http://localhost:3000", Desc: "URL of the web client"},
	{Name: "version", Default: "dev", Desc: "Build version reported by /health"},

	// Google OAuth configuration
	{Name: "google_client_id", Default: "", Desc: "Google OAuth2 client ID"},
	{Name: "google_client_secret", Default: "", Desc: "Google OAuth2 client secret"},

	// Audit logging settings
	{Name: "audit_log_auth", Default: "all", Desc: "Auth event logging: 'all' (db+log), 'db', 'log', or 'off'"},
	{Name: "audit_log_admin", Default: "all", Desc: "Admin event logging: 'all' (db+log), 'db', 'log', or 'off'"},
	{Name: "audit_log_activity", Default: "db", Desc: "Trade/collaboration/XP event logging: 'all', 'db', 'log', or 'off'"},

	// Background jobs
	{Name: "trade_auto_complete_after", Default: "168h", Desc: "Auto-complete trades left pending confirmation this long"},
	{Name: "trade_reminder_after", Default: "72h", Desc: "Remind the other party after a trade is pending confirmation this long"},
	{Name: "notification_retention", Default: "720h", Desc: "Delete read notifications older than this"},

	// Login throttling
	{Name: "login_rate_limit", Default: 10, Desc: "Login attempts allowed per IP and per email within login_rate_window"},
	{Name: "login_rate_window", Default: "15m", Desc: "Login rate limit window"},

	{Name: "xp_trade_completion", Default: 50, Desc: "XP awarded to each party of a completed trade"},
	{Name: "allowed_origins", Default: "", Desc: "Comma-separated extra origins allowed to open the notification stream"},
	{Name: "metrics_enabled", Default: true, Desc: "Expose Prometheus metrics at /metrics"},

	// Admin bootstrap
	{Name: "admin_email", Default: "", Desc: "Email of a user promoted to admin (or created) on startup"},
}

// LoadConfig loads WAFFLE core config and app-specific config.
//
// WAFFLE's config.LoadWithAppConfig handles:
//   - Loading from .env files
//   - Loading from config.yaml/json/toml files
//   - Reading environment variables (WAFFLE_* for core, TRADEYA_* for app)
//   - Parsing command-line flags
//   - Merging with precedence: flags > env > files > defaults
func LoadConfig(logger *zap.Logger) (*config.CoreConfig, AppConfig, error) {
	coreCfg, appValues, err := config.LoadWithAppConfig(logger, "TRADEYA", appConfigKeys)
	if err != nil {
		return nil, AppConfig{}, err
	}

	appCfg := AppConfig{
		MongoURI:         appValues.String("mongo_uri"),
		MongoDatabase:    appValues.String("mongo_database"),
		MongoMaxPoolSize: uint64(appValues.Int("mongo_max_pool_size")),
		MongoMinPoolSize: uint64(appValues.Int("mongo_min_pool_size")),
		SessionKey:       appValues.String("session_key"),
		SessionName:      appValues.String("session_name"),
		SessionDomain:    appValues.String("session_domain"),
		SessionMaxAge:    appValues.Duration("session_max_age", 30*24*time.Hour),

		BaseURL: strings.TrimRight(appValues.String("base_url"), "/"),
		AppURL:  strings.TrimRight(appValues.String("app_url"), "/"),
		Version: appValues.String("version"),

		GoogleClientID:     appValues.String("google_client_id"),
		GoogleClientSecret: appValues.String("google_client_secret"),

		AuditLogAuth:     appValues.String("audit_log_auth"),
		AuditLogAdmin:    appValues.String("audit_log_admin"),
		AuditLogActivity: appValues.String("audit_log_activity"),

		TradeAutoCompleteAfter: appValues.Duration("trade_auto_complete_after", 7*24*time.Hour),
		TradeReminderAfter:     appValues.Duration("trade_reminder_after", 3*24*time.Hour),
		NotificationRetention:  appValues.Duration("notification_retention", 30*24*time.Hour),

		LoginRateLimit:  appValues.Int("login_rate_limit"),
		LoginRateWindow: appValues.Duration("login_rate_window", 15*time.Minute),

		TradeCompletionXP: int64(appValues.Int("xp_trade_completion")),
		AllowedOrigins:    splitList(appValues.String("allowed_origins")),
		MetricsEnabled:    appValues.Bool("metrics_enabled"),

		AdminEmail: strings.TrimSpace(appValues.String("admin_email")),
	}

	if n := timeouts.ConfigureFromEnv(); n > 0 {
		cur := timeouts.Current()
		logger.Info("timeouts configured from environment",
			zap.Int("count", n),
			zap.Duration("short", cur.Short),
			zap.Duration("medium", cur.Medium),
			zap.Duration("long", cur.Long),
			zap.Duration("job", cur.Job))
	}


	return coreCfg, appCfg, nil
}

// ValidateConfig performs app-specific config validation.
//
// It checks the MongoDB URI format before any connection is attempted,
// and refuses to start production with a weak session key.
func ValidateConfig(coreCfg *config.CoreConfig, appCfg AppConfig, logger *zap.Logger) error {
	if err := wafflemongo.ValidateURI(appCfg.MongoURI); err != nil {
		logger.Error("invalid MongoDB URI", zap.Error(err))
		return fmt.Errorf("invalid MongoDB URI: %w", err)
	}
	if len(appCfg.SessionKey) < minSessionKeyLen {
		return fmt.Errorf("session_key must be at least %d characters", minSessionKeyLen)
	}
	if coreCfg != nil && coreCfg.Env == "prod" && strings.HasPrefix(appCfg.SessionKey, "dev-only") {
		return errors.New("session_key must be changed for production")
	}
	if (appCfg.GoogleClientID == "") != (appCfg.GoogleClientSecret == "") {
		return errors.New("google_client_id and google_client_secret must be set together")
	}
	if appCfg.TradeReminderAfter >= appCfg.TradeAutoCompleteAfter {
		return errors.New("trade_reminder_after must be shorter than trade_auto_complete_after")
	}
	if appCfg.LoginRateLimit <= 0 {
		return errors.New("login_rate_limit must be positive")
	}
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, strings.TrimRight(p, "/"))
		}
	}
	return out
}
