// internal/domain/models/collaboration.go
package models

import (
	"time"

	"github.com/tradeya/tradeya/internal/domain/lifecycle"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Role is a position within a collaboration. Roles are embedded in the
// collaboration document and addressed by their uuid ID.
type Role struct {
	ID             string               `bson:"id" json:"id"`
	Title          string               `bson:"title" json:"title"`
	Description    string               `bson:"description" json:"description"`
	RequiredSkills []Skill              `bson:"required_skills" json:"required_skills"`
	Status         lifecycle.RoleStatus `bson:"status" json:"status"`
	AssigneeID     *primitive.ObjectID  `bson:"assignee_id,omitempty" json:"assignee_id,omitempty"`
	AssigneeName   string               `bson:"assignee_name,omitempty" json:"assignee_name,omitempty"`
	AssigneePhoto  string               `bson:"assignee_photo,omitempty" json:"assignee_photo,omitempty"`
	FilledAt       *time.Time           `bson:"filled_at,omitempty" json:"filled_at,omitempty"`
}

// Collaboration is a multi-person project with roles to fill.
type Collaboration struct {
	ID             primitive.ObjectID            `bson:"_id,omitempty" json:"id"`
	Title          string                        `bson:"title" json:"title"`
	TitleCI        string                        `bson:"title_ci" json:"-"`
	Description    string                        `bson:"description" json:"description"`
	CreatorID      primitive.ObjectID            `bson:"creator_id" json:"creator_id"`
	CreatorName    string                        `bson:"creator_name" json:"creator_name"`
	CreatorPhoto   string                        `bson:"creator_photo" json:"creator_photo"`
	Status         lifecycle.CollaborationStatus `bson:"status" json:"status"`
	Roles          []Role                        `bson:"roles" json:"roles"`
	ParticipantIDs []primitive.ObjectID          `bson:"participant_ids" json:"participant_ids"`
	CreatedAt      time.Time                     `bson:"created_at" json:"created_at"`
	UpdatedAt      time.Time                     `bson:"updated_at" json:"updated_at"`
}

// Role returns the role with the given id.
func (c Collaboration) Role(id string) (Role, bool) {
	for _, r := range c.Roles {
		if r.ID == id {
			return r, true
		}
	}
	return Role{}, false
}

// FilledRoles counts roles with an assignee.
func (c Collaboration) FilledRoles() int {
	n := 0
	for _, r := range c.Roles {
		if r.Status == lifecycle.RoleFilled {
			n++
		}
	}
	return n
}

// IsParticipant reports whether id holds a role in the collaboration.
func (c Collaboration) IsParticipant(id primitive.ObjectID) bool {
	for _, p := range c.ParticipantIDs {
		if p == id {
			return true
		}
	}
	return false
}
