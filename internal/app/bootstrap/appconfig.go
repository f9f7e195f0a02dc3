// internal/app/bootstrap/appconfig.go
package bootstrap

import "time"

// AppConfig holds service-specific configuration for TradeYa.
//
// These values come from environment variables, configuration files, or
// command-line flags (loaded in LoadConfig). WAFFLE's CoreConfig handles
// framework-level settings such as ports, TLS, logging and CORS.
type AppConfig struct {
	// MongoDB connection configuration
	MongoURI         string // MongoDB connection string (e.g., mongodb://localhost:27017)
	MongoDatabase    string // Database name within MongoDB
	MongoMaxPoolSize uint64
	MongoMinPoolSize uint64

	// Session management configuration
	SessionKey    string        // Secret key for signing session cookies (must be strong in production)
	SessionName   string        // Cookie name for sessions (default: tradeya-session)
	SessionDomain string        // Cookie domain (blank means current host)
	SessionMaxAge time.Duration // Cookie lifetime

	// Public URLs
	BaseURL string // where this API is reachable; OAuth callbacks are built from it
	AppURL  string // the web client; OAuth flows redirect back here
	Version string // reported by /health

	// Google OAuth
	GoogleClientID     string
	GoogleClientSecret string

	// Audit logging: all | db | log | off
	AuditLogAuth     string
	AuditLogAdmin    string
	AuditLogActivity string

	// Background jobs
	TradeAutoCompleteAfter time.Duration // pending-confirmation trades are completed after this
	TradeReminderAfter     time.Duration // pending-confirmation trades get a reminder after this
	NotificationRetention  time.Duration // read notifications older than this are purged

	// Login throttling
	LoginRateLimit  int
	LoginRateWindow time.Duration

	// Gamification
	TradeCompletionXP int64

	// Realtime
	AllowedOrigins []string // extra origins allowed to open the notification stream

	MetricsEnabled bool

	// Admin bootstrap
	AdminEmail string // promoted to admin (or created) on startup
}
