// internal/domain/lifecycle/challenge.go
package lifecycle

// ParticipationStatus is a user's progress on a challenge.
type ParticipationStatus string

const (
	ParticipationJoined    ParticipationStatus = "joined"
	ParticipationSubmitted ParticipationStatus = "submitted"
	ParticipationCompleted ParticipationStatus = "completed"
)

// ParticipationAction is an action on a challenge participation.
type ParticipationAction string

const (
	ParticipationSubmit  ParticipationAction = "submit"
	ParticipationApprove ParticipationAction = "approve"
	ParticipationReturn  ParticipationAction = "return" // send back for rework
)

// ParticipationStatuses lists every participation status.
var ParticipationStatuses = []ParticipationStatus{ParticipationJoined, ParticipationSubmitted, ParticipationCompleted}

var participationMachine = newMachine("challenge participation", ParticipationStatuses,
	[]ParticipationAction{ParticipationSubmit, ParticipationApprove, ParticipationReturn}).
	on(ParticipationJoined, ParticipationSubmit, ParticipationSubmitted, PartyParticipant).
	on(ParticipationSubmitted, ParticipationApprove, ParticipationCompleted, PartyAdmin).
	on(ParticipationSubmitted, ParticipationReturn, ParticipationJoined, PartyAdmin)

// NextParticipation validates a participation action.
func NextParticipation(s ParticipationStatus, a ParticipationAction, p Party) (ParticipationStatus, error) {
	return participationMachine.next(s, a, p)
}
