// internal/domain/models/application.go
package models

import (
	"time"

	"github.com/tradeya/tradeya/internal/domain/lifecycle"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// RoleApplication is a request by a user to fill a collaboration role.
type RoleApplication struct {
	ID              primitive.ObjectID       `bson:"_id,omitempty" json:"id"`
	CollaborationID primitive.ObjectID       `bson:"collaboration_id" json:"collaboration_id"`
	RoleID          string                   `bson:"role_id" json:"role_id"`
	ApplicantID     primitive.ObjectID       `bson:"applicant_id" json:"applicant_id"`
	ApplicantName   string                   `bson:"applicant_name" json:"applicant_name"`
	ApplicantPhoto  string                   `bson:"applicant_photo" json:"applicant_photo"`
	Message         string                   `bson:"message" json:"message"`
	Status          lifecycle.DecisionStatus `bson:"status" json:"status"`
	DecidedBy       *primitive.ObjectID      `bson:"decided_by,omitempty" json:"decided_by,omitempty"`
	DecidedAt       *time.Time               `bson:"decided_at,omitempty" json:"decided_at,omitempty"`
	CreatedAt       time.Time                `bson:"created_at" json:"created_at"`
	UpdatedAt       time.Time                `bson:"updated_at" json:"updated_at"`
}
