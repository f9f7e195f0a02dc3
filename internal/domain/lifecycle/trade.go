// internal/domain/lifecycle/trade.go
package lifecycle

// TradeStatus is the persisted status of a trade.
type TradeStatus string

const (
	TradeOpen                TradeStatus = "open"
	TradeInProgress          TradeStatus = "in-progress"
	TradePendingConfirmation TradeStatus = "pending_confirmation"
	TradeCompleted           TradeStatus = "completed"
	TradeCancelled           TradeStatus = "cancelled"
	TradeDisputed            TradeStatus = "disputed"
)

// TradeStatuses lists every trade status in lifecycle order.
var TradeStatuses = []TradeStatus{
	TradeOpen, TradeInProgress, TradePendingConfirmation,
	TradeCompleted, TradeCancelled, TradeDisputed,
}

// TradeAction is a user or system action on a trade.
type TradeAction string

const (
	TradeAcceptProposal    TradeAction = "accept_proposal"
	TradeRequestCompletion TradeAction = "request_completion"
	TradeConfirmCompletion TradeAction = "confirm_completion"
	TradeRequestChanges    TradeAction = "request_changes"
	TradeDispute           TradeAction = "dispute"
	TradeResolveDispute    TradeAction = "resolve_dispute"
	TradeCancel            TradeAction = "cancel"
	TradeAutoComplete      TradeAction = "auto_complete"
)

var tradeActions = []TradeAction{
	TradeAcceptProposal, TradeRequestCompletion, TradeConfirmCompletion,
	TradeRequestChanges, TradeDispute, TradeResolveDispute, TradeCancel,
	TradeAutoComplete,
}

var tradeMachine = newMachine("trade", TradeStatuses, tradeActions).
	on(TradeOpen, TradeAcceptProposal, TradeInProgress, PartyCreator).
	on(TradeOpen, TradeCancel, TradeCancelled, PartyCreator).
	on(TradeInProgress, TradeRequestCompletion, TradePendingConfirmation, PartyCreator, PartyParticipant).
	on(TradeInProgress, TradeCancel, TradeCancelled, PartyCreator, PartyParticipant).
	on(TradePendingConfirmation, TradeConfirmCompletion, TradeCompleted, PartyCreator, PartyParticipant).
	on(TradePendingConfirmation, TradeRequestChanges, TradeInProgress, PartyCreator, PartyParticipant).
	on(TradePendingConfirmation, TradeDispute, TradeDisputed, PartyCreator, PartyParticipant).
	on(TradePendingConfirmation, TradeAutoComplete, TradeCompleted, PartySystem).
	on(TradeDisputed, TradeResolveDispute, TradeInProgress, PartyAdmin)

// TradeState is the part of a trade the machine needs.
type TradeState struct {
	Status TradeStatus
	// RequestedBy is the party that moved the trade to pending_confirmation.
	RequestedBy Party
}

// NextTrade validates action a by party p against s and returns the new status.
// Responses to a completion request (confirm, request changes, dispute) must
// come from the party that did not make the request.
func NextTrade(s TradeState, a TradeAction, p Party) (TradeStatus, error) {
	to, err := tradeMachine.next(s.Status, a, p)
	if err != nil {
		return "", err
	}
	switch a {
	case TradeConfirmCompletion, TradeRequestChanges, TradeDispute:
		if s.RequestedBy == "" || s.RequestedBy == p {
			return "", tradeMachine.fail(s.Status, a, p, ErrNotPermitted)
		}
	}
	return to, nil
}

// ValidTradeStatus reports whether s is a known trade status.
func ValidTradeStatus(s string) bool { return tradeMachine.valid(TradeStatus(s)) }

// TradeTerminal reports whether no action can move a trade out of s.
func TradeTerminal(s TradeStatus) bool {
	for _, a := range tradeActions {
		if tradeMachine.can(s, a) {
			return false
		}
	}
	return true
}

// TradeAcceptsProposals reports whether new proposals may be made.
func TradeAcceptsProposals(s TradeStatus) bool { return s == TradeOpen }

// TradeAcceptsEvidence reports whether evidence may be attached in s.
func TradeAcceptsEvidence(s TradeStatus) bool {
	return s == TradeInProgress || s == TradePendingConfirmation
}
