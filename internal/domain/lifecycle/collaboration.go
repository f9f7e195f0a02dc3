// internal/domain/lifecycle/collaboration.go
package lifecycle

import "errors"

// ErrNoFilledRoles means a collaboration cannot start without a filled role.
var ErrNoFilledRoles = errors.New("collaboration has no filled roles")

// CollaborationStatus is the persisted status of a collaboration.
type CollaborationStatus string

const (
	CollabRecruiting CollaborationStatus = "recruiting"
	CollabInProgress CollaborationStatus = "in-progress"
	CollabCompleted  CollaborationStatus = "completed"
	CollabCancelled  CollaborationStatus = "cancelled"
)

// CollaborationAction is an action on a collaboration.
type CollaborationAction string

const (
	CollabStart    CollaborationAction = "start"
	CollabComplete CollaborationAction = "complete"
	CollabCancel   CollaborationAction = "cancel"
)

// CollaborationStatuses lists every collaboration status.
var CollaborationStatuses = []CollaborationStatus{CollabRecruiting, CollabInProgress, CollabCompleted, CollabCancelled}

var collabMachine = newMachine("collaboration", CollaborationStatuses,
	[]CollaborationAction{CollabStart, CollabComplete, CollabCancel}).
	on(CollabRecruiting, CollabStart, CollabInProgress, PartyCreator).
	on(CollabRecruiting, CollabCancel, CollabCancelled, PartyCreator, PartyAdmin).
	on(CollabInProgress, CollabComplete, CollabCompleted, PartyCreator).
	on(CollabInProgress, CollabCancel, CollabCancelled, PartyCreator, PartyAdmin)

// CollaborationState is the part of a collaboration the machine needs.
type CollaborationState struct {
	Status      CollaborationStatus
	FilledRoles int
}

// NextCollaboration validates a collaboration action.
func NextCollaboration(s CollaborationState, a CollaborationAction, p Party) (CollaborationStatus, error) {
	to, err := collabMachine.next(s.Status, a, p)
	if err != nil {
		return "", err
	}
	if a == CollabStart && s.FilledRoles == 0 {
		return "", collabMachine.fail(s.Status, a, p, ErrNoFilledRoles)
	}
	return to, nil
}

// CollaborationOpenForApplications reports whether roles may receive applications.
func CollaborationOpenForApplications(s CollaborationStatus) bool {
	return s == CollabRecruiting || s == CollabInProgress
}

// RoleStatus is the status of a role within a collaboration.
type RoleStatus string

const (
	RoleOpen   RoleStatus = "open"
	RoleFilled RoleStatus = "filled"
	RoleClosed RoleStatus = "closed"
)

// RoleAction is an action on a role.
type RoleAction string

const (
	RoleFill   RoleAction = "fill"
	RoleClose  RoleAction = "close"
	RoleReopen RoleAction = "reopen"
)

// RoleStatuses lists every role status.
var RoleStatuses = []RoleStatus{RoleOpen, RoleFilled, RoleClosed}

var roleMachine = newMachine("role", RoleStatuses,
	[]RoleAction{RoleFill, RoleClose, RoleReopen}).
	on(RoleOpen, RoleFill, RoleFilled, PartyCreator).
	on(RoleOpen, RoleClose, RoleClosed, PartyCreator).
	on(RoleClosed, RoleReopen, RoleOpen, PartyCreator)

// NextRole validates a role action.
func NextRole(s RoleStatus, a RoleAction, p Party) (RoleStatus, error) {
	return roleMachine.next(s, a, p)
}
