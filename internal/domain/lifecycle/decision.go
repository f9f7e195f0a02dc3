// internal/domain/lifecycle/decision.go
package lifecycle

// DecisionStatus is the status of a request awaiting the owner's decision.
// Trade proposals and role applications share it.
type DecisionStatus string

const (
	DecisionPending   DecisionStatus = "pending"
	DecisionAccepted  DecisionStatus = "accepted"
	DecisionRejected  DecisionStatus = "rejected"
	DecisionWithdrawn DecisionStatus = "withdrawn"
)

// DecisionStatuses lists every decision status.
var DecisionStatuses = []DecisionStatus{DecisionPending, DecisionAccepted, DecisionRejected, DecisionWithdrawn}

// DecisionAction is an action on a proposal or application.
type DecisionAction string

const (
	DecisionAccept   DecisionAction = "accept"
	DecisionReject   DecisionAction = "reject"
	DecisionWithdraw DecisionAction = "withdraw"
)

func decisionMachine(entity string) *machine[DecisionStatus, DecisionAction] {
	return newMachine(entity, DecisionStatuses, []DecisionAction{DecisionAccept, DecisionReject, DecisionWithdraw}).
		on(DecisionPending, DecisionAccept, DecisionAccepted, PartyCreator).
		// PartySystem rejects the remaining requests once one is accepted.
		on(DecisionPending, DecisionReject, DecisionRejected, PartyCreator, PartySystem).
		on(DecisionPending, DecisionWithdraw, DecisionWithdrawn, PartyApplicant)
}

var (
	proposalMachine    = decisionMachine("proposal")
	applicationMachine = decisionMachine("application")
)

// NextProposal validates a proposal decision.
func NextProposal(s DecisionStatus, a DecisionAction, p Party) (DecisionStatus, error) {
	return proposalMachine.next(s, a, p)
}

// NextApplication validates a role application decision.
func NextApplication(s DecisionStatus, a DecisionAction, p Party) (DecisionStatus, error) {
	return applicationMachine.next(s, a, p)
}

// ValidDecisionStatus reports whether s is a known decision status.
func ValidDecisionStatus(s string) bool { return proposalMachine.valid(DecisionStatus(s)) }
