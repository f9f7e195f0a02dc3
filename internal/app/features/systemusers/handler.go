// internal/app/features/systemusers/handler.go
package systemusers

import (
	uierrors "github.com/tradeya/tradeya/internal/app/features/errors"
	loginstore "github.com/tradeya/tradeya/internal/app/store/logins"
	userstore "github.com/tradeya/tradeya/internal/app/store/users"
	"github.com/tradeya/tradeya/internal/app/system/auditlog"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

type Handler struct {
	Users    *userstore.Store
	Logins   *loginstore.Store
	Log      *zap.Logger
	ErrLog   *uierrors.ErrorLogger
	AuditLog *auditlog.Logger
}

// NewHandler constructs the admin user management handler bound to the
// given Mongo database and logger.
func NewHandler(db *mongo.Database, errLog *uierrors.ErrorLogger, audit *auditlog.Logger, logger *zap.Logger) *Handler {
	return &Handler{
		Users:    userstore.New(db),
		Logins:   loginstore.New(db),
		Log:      logger,
		ErrLog:   errLog,
		AuditLog: audit,
	}
}
