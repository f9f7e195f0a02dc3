// internal/domain/models/trade.go
package models

import (
	"time"

	"github.com/tradeya/tradeya/internal/domain/lifecycle"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Evidence is proof of work attached to a trade (a link, image or file URL).
type Evidence struct {
	ID      string             `bson:"id" json:"id"`     // uuid
	Kind    string             `bson:"kind" json:"kind"` // link | image | video | file
	URL     string             `bson:"url" json:"url"`
	Title   string             `bson:"title" json:"title"`
	AddedBy primitive.ObjectID `bson:"added_by" json:"added_by"`
	AddedAt time.Time          `bson:"added_at" json:"added_at"`
}

// ChangeRequest records a refused completion request.
type ChangeRequest struct {
	By     primitive.ObjectID `bson:"by" json:"by"`
	Reason string             `bson:"reason" json:"reason"`
	At     time.Time          `bson:"at" json:"at"`
}

// Trade is a one-to-one skill exchange.
//
// ParticipantID is set when the creator accepts a proposal. The
// CompletionRequested* fields are set while status is pending_confirmation.
type Trade struct {
	ID              primitive.ObjectID    `bson:"_id,omitempty" json:"id"`
	Title           string                `bson:"title" json:"title"`
	TitleCI         string                `bson:"title_ci" json:"-"`
	Description     string                `bson:"description" json:"description"`
	OfferedSkills   []Skill               `bson:"offered_skills" json:"offered_skills"`
	RequestedSkills []Skill               `bson:"requested_skills" json:"requested_skills"`
	Category        string                `bson:"category" json:"category"`
	Status          lifecycle.TradeStatus `bson:"status" json:"status"`

	CreatorID    primitive.ObjectID `bson:"creator_id" json:"creator_id"`
	CreatorName  string             `bson:"creator_name" json:"creator_name"`
	CreatorPhoto string             `bson:"creator_photo" json:"creator_photo"`

	ParticipantID    *primitive.ObjectID `bson:"participant_id,omitempty" json:"participant_id,omitempty"`
	ParticipantName  string              `bson:"participant_name,omitempty" json:"participant_name,omitempty"`
	ParticipantPhoto string              `bson:"participant_photo,omitempty" json:"participant_photo,omitempty"`

	CompletionRequestedBy *primitive.ObjectID `bson:"completion_requested_by,omitempty" json:"completion_requested_by,omitempty"`
	CompletionRequestedAt *time.Time          `bson:"completion_requested_at,omitempty" json:"completion_requested_at,omitempty"`
	CompletionNotes       string              `bson:"completion_notes,omitempty" json:"completion_notes,omitempty"`

	Evidence       []Evidence      `bson:"evidence" json:"evidence"`
	ChangeRequests []ChangeRequest `bson:"change_requests" json:"change_requests"`
	DisputeReason  string          `bson:"dispute_reason,omitempty" json:"dispute_reason,omitempty"`

	ReminderSentAt *time.Time `bson:"reminder_sent_at,omitempty" json:"-"`
	CompletedAt    *time.Time `bson:"completed_at,omitempty" json:"completed_at,omitempty"`
	CreatedAt      time.Time  `bson:"created_at" json:"created_at"`
	UpdatedAt      time.Time  `bson:"updated_at" json:"updated_at"`
}

// IsParty reports whether id is the creator or the accepted participant.
func (t Trade) IsParty(id primitive.ObjectID) bool {
	if t.CreatorID == id {
		return true
	}
	return t.ParticipantID != nil && *t.ParticipantID == id
}

// Counterparty returns the other party of the trade, if any.
func (t Trade) Counterparty(id primitive.ObjectID) (primitive.ObjectID, bool) {
	switch {
	case t.CreatorID == id && t.ParticipantID != nil:
		return *t.ParticipantID, true
	case t.ParticipantID != nil && *t.ParticipantID == id:
		return t.CreatorID, true
	}
	return primitive.NilObjectID, false
}
