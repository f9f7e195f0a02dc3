// internal/domain/models/proposal.go
package models

import (
	"time"

	"github.com/tradeya/tradeya/internal/domain/lifecycle"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Proposal is an offer by another user to take part in an open trade.
type Proposal struct {
	ID            primitive.ObjectID       `bson:"_id,omitempty" json:"id"`
	TradeID       primitive.ObjectID       `bson:"trade_id" json:"trade_id"`
	ProposerID    primitive.ObjectID       `bson:"proposer_id" json:"proposer_id"`
	ProposerName  string                   `bson:"proposer_name" json:"proposer_name"`
	ProposerPhoto string                   `bson:"proposer_photo" json:"proposer_photo"`
	Message       string                   `bson:"message" json:"message"`
	OfferedSkills []Skill                  `bson:"offered_skills" json:"offered_skills"`
	Status        lifecycle.DecisionStatus `bson:"status" json:"status"`
	CreatedAt     time.Time                `bson:"created_at" json:"created_at"`
	UpdatedAt     time.Time                `bson:"updated_at" json:"updated_at"`
}
