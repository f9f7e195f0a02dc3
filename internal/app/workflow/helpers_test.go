package workflow_test

import (
	"context"
	"testing"
	"time"

	applicationstore "github.com/tradeya/tradeya/internal/app/store/applications"
	"github.com/tradeya/tradeya/internal/app/store/audit"
	challengestore "github.com/tradeya/tradeya/internal/app/store/challenges"
	collabstore "github.com/tradeya/tradeya/internal/app/store/collaborations"
	notificationstore "github.com/tradeya/tradeya/internal/app/store/notifications"
	participantstore "github.com/tradeya/tradeya/internal/app/store/participants"
	proposalstore "github.com/tradeya/tradeya/internal/app/store/proposals"
	tradestore "github.com/tradeya/tradeya/internal/app/store/trades"
	userstore "github.com/tradeya/tradeya/internal/app/store/users"
	xpstore "github.com/tradeya/tradeya/internal/app/store/xp"
	"github.com/tradeya/tradeya/internal/app/system/auditlog"
	"github.com/tradeya/tradeya/internal/app/system/indexes"
	"github.com/tradeya/tradeya/internal/app/system/notify"
	"github.com/tradeya/tradeya/internal/app/system/paging"
	"github.com/tradeya/tradeya/internal/app/workflow"
	"github.com/tradeya/tradeya/internal/domain/models"
	"github.com/tradeya/tradeya/internal/testutil"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

type env struct {
	ctx    context.Context
	db     *mongo.Database
	fx     *testutil.Fixtures
	svc    *workflow.Service
	notes  *notificationstore.Store
	events *audit.Store
}

func setup(t *testing.T) *env {
	t.Helper()
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	t.Cleanup(cancel)
	if err := indexes.EnsureAll(ctx, db); err != nil {
		t.Fatalf("EnsureAll: %v", err)
	}

	notes := notificationstore.New(db)
	events := audit.New(db)
	logger := zap.NewNop()
	svc := workflow.New(workflow.Deps{
		DB:           db,
		Users:        userstore.New(db),
		Trades:       tradestore.New(db),
		Proposals:    proposalstore.New(db),
		Collabs:      collabstore.New(db),
		Applications: applicationstore.New(db),
		Challenges:   challengestore.New(db),
		Participants: participantstore.New(db),
		XP:           xpstore.New(db),
		Notify:       notify.NewDispatcher(notes, nil, logger, 5*time.Second),
		Audit:        auditlog.New(events, logger, auditlog.Config{}),
		Log:          logger,
	}, workflow.Config{TradeXP: 40})

	return &env{ctx: ctx, db: db, fx: testutil.NewFixtures(t, db), svc: svc, notes: notes, events: events}
}

func actor(u models.User) workflow.Actor {
	return workflow.Actor{Ref: u.Ref(), Admin: u.Role == "admin"}
}

// notificationTypes lists the notification types a user received, newest first.
func (e *env) notificationTypes(t *testing.T, userID primitive.ObjectID) []models.NotificationType {
	t.Helper()
	page, err := e.notes.List(e.ctx, userID, notificationstore.ListFilter{}, paging.Params{Limit: 50})
	if err != nil {
		t.Fatalf("List notifications: %v", err)
	}
	out := make([]models.NotificationType, 0, len(page.Items))
	for _, n := range page.Items {
		out = append(out, n.Type)
	}
	return out
}

func hasType(types []models.NotificationType, want models.NotificationType) bool {
	for _, t := range types {
		if t == want {
			return true
		}
	}
	return false
}

func (e *env) user(t *testing.T, id primitive.ObjectID) *models.User {
	t.Helper()
	u, err := e.svc.Users.GetByID(e.ctx, id)
	if err != nil {
		t.Fatalf("GetByID user: %v", err)
	}
	return u
}
