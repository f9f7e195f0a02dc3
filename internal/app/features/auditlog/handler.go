// internal/app/features/auditlog/handler.go
package auditlog

import (
	uierrors "github.com/tradeya/tradeya/internal/app/features/errors"
	"github.com/tradeya/tradeya/internal/app/store/audit"
	userstore "github.com/tradeya/tradeya/internal/app/store/users"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

type Handler struct {
	Events *audit.Store
	Users  *userstore.Store
	Log    *zap.Logger
	ErrLog *uierrors.ErrorLogger
}

// NewHandler constructs the audit log API handler bound to the given Mongo
// database and logger.
func NewHandler(db *mongo.Database, errLog *uierrors.ErrorLogger, logger *zap.Logger) *Handler {
	return &Handler{
		Events: audit.New(db),
		Users:  userstore.New(db),
		Log:    logger,
		ErrLog: errLog,
	}
}
