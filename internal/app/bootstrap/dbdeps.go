// internal/app/bootstrap/dbdeps.go
package bootstrap

import (
	"github.com/tradeya/tradeya/internal/app/system/auditlog"
	"github.com/tradeya/tradeya/internal/app/system/notify"
	"github.com/tradeya/tradeya/internal/app/system/tasks"
	"github.com/tradeya/tradeya/internal/app/system/workers"
	"github.com/tradeya/tradeya/internal/app/workflow"
	"go.mongodb.org/mongo-driver/mongo"
)

// DBDeps holds database/back-end dependencies for the app.
type DBDeps struct {
	MongoClient   *mongo.Client
	MongoDatabase *mongo.Database

	// Services is allocated by ConnectDB and filled in by Startup.
	Services *Services
}

// Services are the long-lived runtime components shared by handlers and
// stopped on shutdown.
type Services struct {
	Audit       *auditlog.Logger
	Hub         *notify.Hub
	Workflow    *workflow.Service
	ProfileSync *workers.ProfileSync
	Scheduler   *tasks.Scheduler
}
