// internal/app/features/trades/handler.go
package trades

import (
	uierrors "github.com/tradeya/tradeya/internal/app/features/errors"
	"github.com/tradeya/tradeya/internal/app/workflow"
	"go.uber.org/zap"
)

// Handler serves the trade and proposal API.
type Handler struct {
	Svc    *workflow.Service
	ErrLog *uierrors.ErrorLogger
	Log    *zap.Logger
}

func NewHandler(svc *workflow.Service, errLog *uierrors.ErrorLogger, logger *zap.Logger) *Handler {
	return &Handler{Svc: svc, ErrLog: errLog, Log: logger}
}
