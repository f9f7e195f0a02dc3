package testutil

import (
	"testing"
	"time"

	applicationstore "github.com/tradeya/tradeya/internal/app/store/applications"
	challengestore "github.com/tradeya/tradeya/internal/app/store/challenges"
	collabstore "github.com/tradeya/tradeya/internal/app/store/collaborations"
	notificationstore "github.com/tradeya/tradeya/internal/app/store/notifications"
	participantstore "github.com/tradeya/tradeya/internal/app/store/participants"
	proposalstore "github.com/tradeya/tradeya/internal/app/store/proposals"
	tradestore "github.com/tradeya/tradeya/internal/app/store/trades"
	userstore "github.com/tradeya/tradeya/internal/app/store/users"
	xpstore "github.com/tradeya/tradeya/internal/app/store/xp"
	"github.com/tradeya/tradeya/internal/app/system/auth"
	"github.com/tradeya/tradeya/internal/app/system/notify"
	"github.com/tradeya/tradeya/internal/app/workflow"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// TestSessionKey is a 32-byte key for test session managers.
const TestSessionKey = "test-session-key-0123456789abcdef"

// NewSessionManager returns a cookie session manager for tests.
func NewSessionManager(t *testing.T) *auth.SessionManager {
	t.Helper()
	sm, err := auth.NewSessionManager(TestSessionKey, "tradeya-test", "", time.Hour, false, zap.NewNop())
	if err != nil {
		t.Fatalf("NewSessionManager: %v", err)
	}
	return sm
}

// NewWorkflow wires a workflow service over db without audit logging.
// hub may be nil.
func NewWorkflow(db *mongo.Database, hub *notify.Hub) *workflow.Service {
	logger := zap.NewNop()
	return workflow.New(workflow.Deps{
		DB:           db,
		Users:        userstore.New(db),
		Trades:       tradestore.New(db),
		Proposals:    proposalstore.New(db),
		Collabs:      collabstore.New(db),
		Applications: applicationstore.New(db),
		Challenges:   challengestore.New(db),
		Participants: participantstore.New(db),
		XP:           xpstore.New(db),
		Notify:       notify.NewDispatcher(notificationstore.New(db), hub, logger, 5*time.Second),
		Log:          logger,
	}, workflow.Config{})
}
