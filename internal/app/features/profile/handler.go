// internal/app/features/profile/handler.go
package profile

import (
	uierrors "github.com/tradeya/tradeya/internal/app/features/errors"
	loginstore "github.com/tradeya/tradeya/internal/app/store/logins"
	userstore "github.com/tradeya/tradeya/internal/app/store/users"
	xpstore "github.com/tradeya/tradeya/internal/app/store/xp"
	"github.com/tradeya/tradeya/internal/app/system/auditlog"
	"github.com/tradeya/tradeya/internal/app/system/workers"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// Handler owns the profile, public profile and leaderboard handlers.
type Handler struct {
	Users    *userstore.Store
	XP       *xpstore.Store
	Logins   *loginstore.Store
	Sync     *workers.ProfileSync // nil disables display-field propagation
	ErrLog   *uierrors.ErrorLogger
	AuditLog *auditlog.Logger
	Log      *zap.Logger

	BcryptCost int
}

// NewHandler constructs a Handler bound to the given Mongo database and logger.
func NewHandler(db *mongo.Database, sync *workers.ProfileSync, errLog *uierrors.ErrorLogger, audit *auditlog.Logger, logger *zap.Logger) *Handler {
	return &Handler{
		Users:      userstore.New(db),
		XP:         xpstore.New(db),
		Logins:     loginstore.New(db),
		Sync:       sync,
		ErrLog:     errLog,
		AuditLog:   audit,
		Log:        logger,
		BcryptCost: bcrypt.DefaultCost,
	}
}
