// Package workflow runs the multi-step operations behind the API: load,
// access check, lifecycle check, guarded write, then notifications, XP and
// audit. Handlers and background jobs both go through it.
package workflow

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/tradeya/tradeya/internal/app/policy/collabpolicy"
	"github.com/tradeya/tradeya/internal/app/policy/tradepolicy"
	applicationstore "github.com/tradeya/tradeya/internal/app/store/applications"
	challengestore "github.com/tradeya/tradeya/internal/app/store/challenges"
	collabstore "github.com/tradeya/tradeya/internal/app/store/collaborations"
	participantstore "github.com/tradeya/tradeya/internal/app/store/participants"
	proposalstore "github.com/tradeya/tradeya/internal/app/store/proposals"
	tradestore "github.com/tradeya/tradeya/internal/app/store/trades"
	userstore "github.com/tradeya/tradeya/internal/app/store/users"
	xpstore "github.com/tradeya/tradeya/internal/app/store/xp"
	"github.com/tradeya/tradeya/internal/app/system/auditlog"
	"github.com/tradeya/tradeya/internal/app/system/authz"
	"github.com/tradeya/tradeya/internal/app/system/metrics"
	"github.com/tradeya/tradeya/internal/app/system/notify"
	"github.com/tradeya/tradeya/internal/domain/lifecycle"
	"github.com/tradeya/tradeya/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// Error kinds. Every error returned by this package that is not a plain
// infrastructure failure wraps exactly one of them.
var (
	ErrNotFound  = errors.New("not found")
	ErrForbidden = errors.New("forbidden")
	ErrConflict  = errors.New("conflict")
	ErrInvalid   = errors.New("invalid")
)

// Error is a classified failure with a message safe to show to users.
type Error struct {
	Kind error
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Msg + ": " + e.Err.Error()
	}
	return e.Msg
}

func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

func fail(kind error, msg string, cause error) error {
	return &Error{Kind: kind, Msg: msg, Err: cause}
}

// Invalid builds an ErrInvalid error with msg.
func Invalid(msg string) error { return fail(ErrInvalid, msg, nil) }

// classify maps store, lifecycle and policy errors onto the error kinds.
// Anything it does not recognize is returned unchanged.
func classify(err error) error {
	if err == nil {
		return nil
	}
	var we *Error
	if errors.As(err, &we) {
		return err
	}
	switch {
	case errors.Is(err, tradestore.ErrNotFound),
		errors.Is(err, proposalstore.ErrNotFound),
		errors.Is(err, collabstore.ErrNotFound),
		errors.Is(err, collabstore.ErrRoleNotFound),
		errors.Is(err, applicationstore.ErrNotFound),
		errors.Is(err, challengestore.ErrNotFound),
		errors.Is(err, participantstore.ErrNotFound),
		errors.Is(err, userstore.ErrNotFound):
		return fail(ErrNotFound, err.Error(), err)

	case errors.Is(err, tradestore.ErrConflict),
		errors.Is(err, proposalstore.ErrConflict),
		errors.Is(err, collabstore.ErrConflict),
		errors.Is(err, applicationstore.ErrConflict),
		errors.Is(err, challengestore.ErrConflict),
		errors.Is(err, participantstore.ErrConflict):
		return fail(ErrConflict, "This was changed by someone else. Reload and try again.", err)

	case errors.Is(err, proposalstore.ErrDuplicatePending),
		errors.Is(err, applicationstore.ErrDuplicatePending),
		errors.Is(err, participantstore.ErrAlreadyJoined),
		errors.Is(err, tradepolicy.ErrNotOpen),
		errors.Is(err, tradepolicy.ErrNoEvidence),
		errors.Is(err, collabpolicy.ErrRoleUnavailable),
		errors.Is(err, collabpolicy.ErrClosed),
		errors.Is(err, collabpolicy.ErrAlreadyMember):
		return fail(ErrConflict, err.Error(), err)

	case errors.Is(err, tradepolicy.ErrOwnTrade),
		errors.Is(err, tradepolicy.ErrNotParty),
		errors.Is(err, collabpolicy.ErrOwnCollaboration),
		errors.Is(err, collabpolicy.ErrNotCreator):
		return fail(ErrForbidden, err.Error(), err)

	case errors.Is(err, lifecycle.ErrNotPermitted):
		return fail(ErrForbidden, "You are not allowed to do that.", err)
	case errors.Is(err, lifecycle.ErrNoFilledRoles):
		return fail(ErrConflict, "Fill at least one role before starting.", err)
	case errors.Is(err, lifecycle.ErrInvalidTransition),
		errors.Is(err, lifecycle.ErrUnknownStatus):
		return fail(ErrConflict, "That action is not available right now.", err)
	case errors.Is(err, lifecycle.ErrUnknownAction):
		return fail(ErrInvalid, "Unknown action.", err)
	}
	return err
}

// outcome names the metrics outcome of a transition error.
func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, tradestore.ErrConflict), errors.Is(err, proposalstore.ErrConflict),
		errors.Is(err, collabstore.ErrConflict), errors.Is(err, applicationstore.ErrConflict),
		errors.Is(err, participantstore.ErrConflict), errors.Is(err, challengestore.ErrConflict):
		return "conflict"
	case errors.Is(err, lifecycle.ErrNotPermitted), errors.Is(err, lifecycle.ErrInvalidTransition),
		errors.Is(err, lifecycle.ErrNoFilledRoles), errors.Is(err, lifecycle.ErrUnknownStatus):
		return "rejected"
	}
	return "error"
}

// Actor is the user performing an operation.
type Actor struct {
	Ref   models.UserRef
	Admin bool
	// Req is the triggering request, used for audit context. Nil for jobs.
	Req *http.Request
}

// SystemActor is used by background jobs.
var SystemActor = Actor{Ref: models.UserRef{Name: "TradeYa"}}

// IsSystem reports whether a is the background job actor.
func (a Actor) IsSystem() bool { return a.Ref.ID.IsZero() }

func (a Actor) idPtr() *primitive.ObjectID {
	if a.IsSystem() {
		return nil
	}
	id := a.Ref.ID
	return &id
}

// Config holds the tunable amounts.
type Config struct {
	// TradeXP is awarded to each party of a completed trade.
	TradeXP int64
	// NotifyTimeout bounds the follow-up work after a write commits.
	NotifyTimeout time.Duration
}

// Deps are the stores and services a Service uses.
type Deps struct {
	DB           *mongo.Database
	Users        *userstore.Store
	Trades       *tradestore.Store
	Proposals    *proposalstore.Store
	Collabs      *collabstore.Store
	Applications *applicationstore.Store
	Challenges   *challengestore.Store
	Participants *participantstore.Store
	XP           *xpstore.Store
	Notify       *notify.Dispatcher
	Audit        *auditlog.Logger
	Log          *zap.Logger
}

// Service runs workflows.
type Service struct {
	Deps
	cfg Config
}

// DefaultTradeXP is used when Config.TradeXP is not positive.
const DefaultTradeXP = 50

// New creates a Service.
func New(d Deps, cfg Config) *Service {
	if cfg.TradeXP <= 0 {
		cfg.TradeXP = DefaultTradeXP
	}
	if cfg.NotifyTimeout <= 0 {
		cfg.NotifyTimeout = 10 * time.Second
	}
	return &Service{Deps: d, cfg: cfg}
}

// ActorFor loads the signed-in user of r. Handlers call it after
// RequireSignedIn.
func (s *Service) ActorFor(r *http.Request) (Actor, error) {
	role, _, uid, ok := authz.UserCtx(r)
	if !ok {
		return Actor{}, fail(ErrForbidden, "Please sign in to continue.", nil)
	}
	u, err := s.Users.GetByID(r.Context(), uid)
	if err != nil {
		return Actor{}, classify(err)
	}
	return Actor{Ref: u.Ref(), Admin: role == authz.RoleAdmin, Req: r}, nil
}

// after returns a context for follow-up work (notify, xp, audit) that
// survives the request being cancelled.
func (s *Service) after(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), s.cfg.NotifyTimeout)
}

func (s *Service) send(ctx context.Context, ins ...notify.Input) {
	if s.Notify == nil {
		return
	}
	s.Notify.SendAll(ctx, ins...)
}

func record[A ~string](entity string, action A, err error) {
	metrics.RecordTransition(entity, string(action), outcome(err))
}

func oid(id primitive.ObjectID) *primitive.ObjectID { return &id }
