// internal/app/policy/tradepolicy/tradepolicy.go
package tradepolicy

import (
	"errors"
	"net/http"

	"github.com/tradeya/tradeya/internal/app/system/authz"
	"github.com/tradeya/tradeya/internal/domain/lifecycle"
	"github.com/tradeya/tradeya/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

var (
	// ErrOwnTrade is returned when a creator proposes on their own trade.
	ErrOwnTrade = errors.New("you cannot propose on your own trade")
	// ErrNotOpen is returned when the trade no longer takes proposals.
	ErrNotOpen = errors.New("trade is not open for proposals")
	// ErrNotParty is returned when the user is neither creator nor participant.
	ErrNotParty = errors.New("only the trade's creator or participant can do that")
	// ErrNoEvidence is returned when evidence is added in a status that does not accept it.
	ErrNoEvidence = errors.New("evidence can only be added while the trade is in progress")
)

// PartyOf returns how userID relates to t. A creator or participant keeps
// that party even when they are also an admin.
func PartyOf(t models.Trade, userID primitive.ObjectID, admin bool) lifecycle.Party {
	switch {
	case t.CreatorID == userID:
		return lifecycle.PartyCreator
	case t.ParticipantID != nil && *t.ParticipantID == userID:
		return lifecycle.PartyParticipant
	case admin:
		return lifecycle.PartyAdmin
	}
	return lifecycle.PartyOther
}

// Party returns the party of the signed-in user, or PartyOther when the
// request is anonymous.
func Party(r *http.Request, t models.Trade) lifecycle.Party {
	role, _, uid, ok := authz.UserCtx(r)
	if !ok {
		return lifecycle.PartyOther
	}
	return PartyOf(t, uid, role == authz.RoleAdmin)
}

// RequestedParty returns the party that asked for confirmation, or "" when
// no completion request is pending.
func RequestedParty(t models.Trade) lifecycle.Party {
	if t.CompletionRequestedBy == nil {
		return ""
	}
	return PartyOf(t, *t.CompletionRequestedBy, false)
}

// State returns the lifecycle view of t.
func State(t models.Trade) lifecycle.TradeState {
	return lifecycle.TradeState{Status: t.Status, RequestedBy: RequestedParty(t)}
}

// CanPropose checks that userID may send a proposal on t.
func CanPropose(t models.Trade, userID primitive.ObjectID) error {
	if t.CreatorID == userID {
		return ErrOwnTrade
	}
	if !lifecycle.TradeAcceptsProposals(t.Status) {
		return ErrNotOpen
	}
	return nil
}

// CanAddEvidence checks that userID may attach evidence to t now.
func CanAddEvidence(t models.Trade, userID primitive.ObjectID) error {
	if !t.IsParty(userID) {
		return ErrNotParty
	}
	if !lifecycle.TradeAcceptsEvidence(t.Status) {
		return ErrNoEvidence
	}
	return nil
}

// CanSeeProposals reports whether userID may list every proposal on t.
// Other users only see their own.
func CanSeeProposals(t models.Trade, userID primitive.ObjectID, admin bool) bool {
	return admin || t.CreatorID == userID
}
