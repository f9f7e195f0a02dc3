// internal/app/features/dashboard/handler.go
package dashboard

import (
	"context"
	"time"

	uierrors "github.com/tradeya/tradeya/internal/app/features/errors"
	loginstore "github.com/tradeya/tradeya/internal/app/store/logins"
	userstore "github.com/tradeya/tradeya/internal/app/store/users"
	"github.com/tradeya/tradeya/internal/app/system/tasks"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

const (
	dashboardTimeout = 10 * time.Second
	leaderboardSize  = 5
)

// JobRunner is the part of the task scheduler the dashboard drives.
type JobRunner interface {
	Jobs() []tasks.JobInfo
	RunNow(ctx context.Context, name string) error
}

type Handler struct {
	DB     *mongo.Database
	Users  *userstore.Store
	Logins *loginstore.Store
	Jobs   JobRunner
	ErrLog *uierrors.ErrorLogger
	Log    *zap.Logger
}

func NewHandler(db *mongo.Database, jobs JobRunner, errLog *uierrors.ErrorLogger, logger *zap.Logger) *Handler {
	return &Handler{
		DB:     db,
		Users:  userstore.New(db),
		Logins: loginstore.New(db),
		Jobs:   jobs,
		ErrLog: errLog,
		Log:    logger,
	}
}
