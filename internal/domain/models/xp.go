// internal/domain/models/xp.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// XP sources.
const (
	XPSourceTrade     = "trade"
	XPSourceChallenge = "challenge"
)

// XPTransaction is one ledger entry of experience points.
// (user_id, source, source_id) is unique so an award is applied once.
type XPTransaction struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	UserID    primitive.ObjectID `bson:"user_id" json:"user_id"`
	Amount    int64              `bson:"amount" json:"amount"`
	Source    string             `bson:"source" json:"source"`
	SourceID  primitive.ObjectID `bson:"source_id" json:"source_id"`
	Reason    string             `bson:"reason" json:"reason"`
	CreatedAt time.Time          `bson:"created_at" json:"created_at"`
}
