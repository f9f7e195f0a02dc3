// internal/domain/models/challenge.go
package models

import (
	"time"

	"github.com/tradeya/tradeya/internal/domain/lifecycle"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Challenge statuses.
const (
	ChallengeActive = "active"
	ChallengeClosed = "closed"
)

// Challenge is a time-boxed task that awards XP on completion.
type Challenge struct {
	ID          primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Title       string             `bson:"title" json:"title"`
	TitleCI     string             `bson:"title_ci" json:"-"`
	Description string             `bson:"description" json:"description"`
	Category    string             `bson:"category" json:"category"`
	Difficulty  string             `bson:"difficulty" json:"difficulty"` // beginner | intermediate | advanced
	XPReward    int64              `bson:"xp_reward" json:"xp_reward"`
	Status      string             `bson:"status" json:"status"`
	StartsAt    time.Time          `bson:"starts_at" json:"starts_at"`
	EndsAt      *time.Time         `bson:"ends_at,omitempty" json:"ends_at,omitempty"`
	CreatedBy   primitive.ObjectID `bson:"created_by" json:"created_by"`
	CreatedAt   time.Time          `bson:"created_at" json:"created_at"`
	UpdatedAt   time.Time          `bson:"updated_at" json:"updated_at"`
}

// Open reports whether users may join or submit at now.
func (c Challenge) Open(now time.Time) bool {
	if c.Status != ChallengeActive || now.Before(c.StartsAt) {
		return false
	}
	return c.EndsAt == nil || now.Before(*c.EndsAt)
}

// ChallengeParticipant tracks one user's progress on a challenge.
type ChallengeParticipant struct {
	ID            primitive.ObjectID            `bson:"_id,omitempty" json:"id"`
	ChallengeID   primitive.ObjectID            `bson:"challenge_id" json:"challenge_id"`
	UserID        primitive.ObjectID            `bson:"user_id" json:"user_id"`
	Status        lifecycle.ParticipationStatus `bson:"status" json:"status"`
	Submission    string                        `bson:"submission,omitempty" json:"submission,omitempty"`
	SubmissionURL string                        `bson:"submission_url,omitempty" json:"submission_url,omitempty"`
	JoinedAt      time.Time                     `bson:"joined_at" json:"joined_at"`
	SubmittedAt   *time.Time                    `bson:"submitted_at,omitempty" json:"submitted_at,omitempty"`
	CompletedAt   *time.Time                    `bson:"completed_at,omitempty" json:"completed_at,omitempty"`
}
