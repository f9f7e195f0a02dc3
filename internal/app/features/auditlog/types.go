// internal/app/features/auditlog/types.go
package auditlog

import (
	"time"

	"github.com/tradeya/tradeya/internal/app/store/audit"
)

// listItem is one audit event with user names resolved.
type listItem struct {
	ID         string            `json:"id"`
	Timestamp  time.Time         `json:"timestamp"`
	Category   string            `json:"category"`
	EventType  string            `json:"event_type"`
	ActorID    string            `json:"actor_id,omitempty"`
	ActorName  string            `json:"actor_name,omitempty"`  // resolved from ActorID
	TargetID   string            `json:"target_id,omitempty"`
	TargetName string            `json:"target_name,omitempty"` // resolved from UserID
	EntityKind string            `json:"entity_kind,omitempty"`
	EntityID   string            `json:"entity_id,omitempty"`
	IP         string            `json:"ip"`
	Success    bool              `json:"success"`
	Failure    string            `json:"failure_reason,omitempty"`
	Details    map[string]string `json:"details,omitempty"`
}

type listResponse struct {
	Items      []listItem `json:"items"`
	Page       int        `json:"page"`
	TotalPages int        `json:"total_pages"`
	Total      int64      `json:"total"`
}

type categoryOption struct {
	Value      string   `json:"value"`
	Label      string   `json:"label"`
	EventTypes []string `json:"event_types"`
}

// allCategories returns the categories and event types offered as filters.
func allCategories() []categoryOption {
	return []categoryOption{
		{Value: audit.CategoryAuth, Label: "Authentication", EventTypes: eventTypesForCategory(audit.CategoryAuth)},
		{Value: audit.CategoryAdmin, Label: "Administration", EventTypes: eventTypesForCategory(audit.CategoryAdmin)},
		{Value: audit.CategoryActivity, Label: "Activity", EventTypes: eventTypesForCategory(audit.CategoryActivity)},
	}
}

// eventTypesForCategory returns the event types for a given category.
// If category is empty, returns all event types.
func eventTypesForCategory(category string) []string {
	authEvents := []string{
		audit.EventLoginSuccess,
		audit.EventLoginFailedUserNotFound,
		audit.EventLoginFailedWrongPassword,
		audit.EventLoginFailedUserDisabled,
		audit.EventLoginFailedRateLimit,
		audit.EventLogout,
		audit.EventRegistered,
		audit.EventPasswordChanged,
	}

	adminEvents := []string{
		audit.EventUserDisabled,
		audit.EventUserEnabled,
		audit.EventRoleChanged,
		audit.EventDisputeResolved,
		audit.EventChallengeCreated,
		audit.EventChallengeClosed,
		audit.EventSubmissionReview,
	}

	activityEvents := []string{
		audit.EventTradeTransition,
		audit.EventProposalDecision,
		audit.EventCollaborationTransition,
		audit.EventApplicationDecision,
		audit.EventXPAwarded,
	}

	switch category {
	case audit.CategoryAuth:
		return authEvents
	case audit.CategoryAdmin:
		return adminEvents
	case audit.CategoryActivity:
		return activityEvents
	case "":
		all := make([]string, 0, len(authEvents)+len(adminEvents)+len(activityEvents))
		all = append(all, authEvents...)
		all = append(all, adminEvents...)
		all = append(all, activityEvents...)
		return all
	default:
		return nil
	}
}
