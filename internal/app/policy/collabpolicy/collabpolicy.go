// internal/app/policy/collabpolicy/collabpolicy.go
package collabpolicy

import (
	"errors"
	"net/http"

	"github.com/tradeya/tradeya/internal/app/system/authz"
	"github.com/tradeya/tradeya/internal/domain/lifecycle"
	"github.com/tradeya/tradeya/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

var (
	ErrOwnCollaboration = errors.New("you cannot apply to your own collaboration")
	ErrAlreadyMember    = errors.New("you already hold a role in this collaboration")
	ErrRoleUnavailable  = errors.New("role is not open")
	ErrClosed           = errors.New("collaboration is not accepting applications")
	ErrNotCreator       = errors.New("only the collaboration's creator can do that")
)

// PartyOf returns how userID relates to c.
func PartyOf(c models.Collaboration, userID primitive.ObjectID, admin bool) lifecycle.Party {
	switch {
	case c.CreatorID == userID:
		return lifecycle.PartyCreator
	case c.IsParticipant(userID):
		return lifecycle.PartyParticipant
	case admin:
		return lifecycle.PartyAdmin
	}
	return lifecycle.PartyOther
}

// Party returns the party of the signed-in user.
func Party(r *http.Request, c models.Collaboration) lifecycle.Party {
	role, _, uid, ok := authz.UserCtx(r)
	if !ok {
		return lifecycle.PartyOther
	}
	return PartyOf(c, uid, role == authz.RoleAdmin)
}

// CanApply checks that userID may apply to the role.
func CanApply(c models.Collaboration, roleID string, userID primitive.ObjectID) error {
	if c.CreatorID == userID {
		return ErrOwnCollaboration
	}
	if !lifecycle.CollaborationOpenForApplications(c.Status) {
		return ErrClosed
	}
	if c.IsParticipant(userID) {
		return ErrAlreadyMember
	}
	role, ok := c.Role(roleID)
	if !ok || role.Status != lifecycle.RoleOpen {
		return ErrRoleUnavailable
	}
	return nil
}

// CanManage checks that userID may change roles and decide applications.
func CanManage(c models.Collaboration, userID primitive.ObjectID) error {
	if c.CreatorID != userID {
		return ErrNotCreator
	}
	return nil
}

// CanSeeApplications reports whether userID may list every application.
// Applicants only see their own.
func CanSeeApplications(c models.Collaboration, userID primitive.ObjectID, admin bool) bool {
	return admin || c.CreatorID == userID
}

// State returns the lifecycle view of c.
func State(c models.Collaboration) lifecycle.CollaborationState {
	return lifecycle.CollaborationState{Status: c.Status, FilledRoles: c.FilledRoles()}
}
