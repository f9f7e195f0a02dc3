// internal/domain/models/notification.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// NotificationType is one of a closed set of notification kinds.
type NotificationType string

const (
	NotifyTradeProposal             NotificationType = "trade_proposal"
	NotifyProposalAccepted          NotificationType = "proposal_accepted"
	NotifyProposalRejected          NotificationType = "proposal_rejected"
	NotifyTradeCompletionRequested  NotificationType = "trade_completion_requested"
	NotifyTradeChangesRequested     NotificationType = "trade_changes_requested"
	NotifyTradeCompleted            NotificationType = "trade_completed"
	NotifyTradeCancelled            NotificationType = "trade_cancelled"
	NotifyTradeDisputed             NotificationType = "trade_disputed"
	NotifyTradeConfirmationReminder NotificationType = "trade_confirmation_reminder"
	NotifyRoleApplication           NotificationType = "role_application"
	NotifyApplicationAccepted       NotificationType = "application_accepted"
	NotifyApplicationRejected       NotificationType = "application_rejected"
	NotifyCollaborationStarted      NotificationType = "collaboration_started"
	NotifyCollaborationCompleted    NotificationType = "collaboration_completed"
	NotifyChallengeCompleted        NotificationType = "challenge_completed"
	NotifyLevelUp                   NotificationType = "level_up"
	NotifySystem                    NotificationType = "system"
)

// Notification categories used for filtering.
const (
	CategoryTrades         = "trades"
	CategoryCollaborations = "collaborations"
	CategoryChallenges     = "challenges"
	CategorySystem         = "system"
)

var notificationCategories = map[NotificationType]string{
	NotifyTradeProposal:             CategoryTrades,
	NotifyProposalAccepted:          CategoryTrades,
	NotifyProposalRejected:          CategoryTrades,
	NotifyTradeCompletionRequested:  CategoryTrades,
	NotifyTradeChangesRequested:     CategoryTrades,
	NotifyTradeCompleted:            CategoryTrades,
	NotifyTradeCancelled:            CategoryTrades,
	NotifyTradeDisputed:             CategoryTrades,
	NotifyTradeConfirmationReminder: CategoryTrades,
	NotifyRoleApplication:           CategoryCollaborations,
	NotifyApplicationAccepted:       CategoryCollaborations,
	NotifyApplicationRejected:       CategoryCollaborations,
	NotifyCollaborationStarted:      CategoryCollaborations,
	NotifyCollaborationCompleted:    CategoryCollaborations,
	NotifyChallengeCompleted:        CategoryChallenges,
	NotifyLevelUp:                   CategoryChallenges,
	NotifySystem:                    CategorySystem,
}

// AllNotificationTypes lists every notification type.
var AllNotificationTypes = []NotificationType{
	NotifyTradeProposal, NotifyProposalAccepted, NotifyProposalRejected,
	NotifyTradeCompletionRequested, NotifyTradeChangesRequested, NotifyTradeCompleted,
	NotifyTradeCancelled, NotifyTradeDisputed, NotifyTradeConfirmationReminder,
	NotifyRoleApplication, NotifyApplicationAccepted, NotifyApplicationRejected,
	NotifyCollaborationStarted, NotifyCollaborationCompleted,
	NotifyChallengeCompleted, NotifyLevelUp, NotifySystem,
}

// AllNotificationCategories lists the categories in display order.
var AllNotificationCategories = []string{CategoryTrades, CategoryCollaborations, CategoryChallenges, CategorySystem}

// CategoryOf returns the category of t and whether t is a known type.
func CategoryOf(t NotificationType) (string, bool) {
	c, ok := notificationCategories[t]
	return c, ok
}

// IsValidNotificationCategory checks if c is a known category.
func IsValidNotificationCategory(c string) bool {
	for _, k := range AllNotificationCategories {
		if k == c {
			return true
		}
	}
	return false
}

// Notification is a message to a single recipient.
// DedupeKey, when set, is unique per recipient so retried sends do not
// create a second document.
type Notification struct {
	ID          primitive.ObjectID  `bson:"_id,omitempty" json:"id"`
	RecipientID primitive.ObjectID  `bson:"recipient_id" json:"recipient_id"`
	Type        NotificationType    `bson:"type" json:"type"`
	Category    string              `bson:"category" json:"category"`
	Title       string              `bson:"title" json:"title"`
	Message     string              `bson:"message" json:"message"`
	EntityKind  string              `bson:"entity_kind,omitempty" json:"entity_kind,omitempty"` // trade | collaboration | challenge
	EntityID    *primitive.ObjectID `bson:"entity_id,omitempty" json:"entity_id,omitempty"`
	ActorID     *primitive.ObjectID `bson:"actor_id,omitempty" json:"actor_id,omitempty"`
	ActorName   string              `bson:"actor_name,omitempty" json:"actor_name,omitempty"`
	DedupeKey   string              `bson:"dedupe_key,omitempty" json:"-"`
	Read        bool                `bson:"read" json:"read"`
	ReadAt      *time.Time          `bson:"read_at,omitempty" json:"read_at,omitempty"`
	CreatedAt   time.Time           `bson:"created_at" json:"created_at"`
}
