// internal/domain/models/user.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// User statuses.
const (
	UserActive   = "active"
	UserDisabled = "disabled"
)

// Skill is a skill a user offers or wants, with a free-form level
// (beginner | intermediate | expert).
type Skill struct {
	Name  string `bson:"name" json:"name"`
	Level string `bson:"level,omitempty" json:"level,omitempty"`
}

// User is a TradeYa account and its public profile.
//
// NOTE:
//   - DisplayName and PhotoURL are denormalized onto trades, proposals,
//     collaborations and applications. Profile updates propagate them.
//   - XP and Level are only changed through the xp store so that every
//     award has a ledger entry.
type User struct {
	ID            primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	DisplayName   string             `bson:"display_name" json:"display_name"`
	DisplayNameCI string             `bson:"display_name_ci" json:"-"` // lowercase, diacritics-stripped
	Email         string             `bson:"email" json:"email,omitempty"`
	EmailCI       string             `bson:"email_ci" json:"-"`
	AuthMethod    string             `bson:"auth_method" json:"auth_method,omitempty"` // password | google
	PasswordHash  *string            `bson:"password_hash,omitempty" json:"-"`
	GoogleSub     *string            `bson:"google_sub,omitempty" json:"-"`

	PhotoURL      string  `bson:"photo_url" json:"photo_url"`
	Bio           string  `bson:"bio" json:"bio"`
	Location      string  `bson:"location" json:"location"`
	SkillsOffered []Skill `bson:"skills_offered" json:"skills_offered"`
	SkillsWanted  []Skill `bson:"skills_wanted" json:"skills_wanted"`

	Role   string `bson:"role" json:"role"`     // user | admin
	Status string `bson:"status" json:"status"` // active | disabled

	XP    int64 `bson:"xp" json:"xp"`
	Level int   `bson:"level" json:"level"`

	CreatedAt time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time `bson:"updated_at" json:"updated_at"`
}

// UserRef is the denormalized identity copied onto other documents.
type UserRef struct {
	ID       primitive.ObjectID
	Name     string
	PhotoURL string
}

// Ref returns the denormalized identity for u.
func (u User) Ref() UserRef {
	return UserRef{ID: u.ID, Name: u.DisplayName, PhotoURL: u.PhotoURL}
}
