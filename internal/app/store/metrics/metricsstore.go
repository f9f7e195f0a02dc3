package metricsstore

import (
	"context"

	"github.com/tradeya/tradeya/internal/domain/lifecycle"
	"github.com/tradeya/tradeya/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

// Counts is the set of platform totals shown on the admin stats endpoint.
type Counts struct {
	Users               int64                           `json:"users"`
	ActiveUsers         int64                           `json:"active_users"`
	Trades              int64                           `json:"trades"`
	TradesByStatus      map[lifecycle.TradeStatus]int64 `json:"trades_by_status"`
	Collaborations      int64                           `json:"collaborations"`
	OpenCollaborations  int64                           `json:"open_collaborations"`
	PendingApplications int64                           `json:"pending_applications"`
	ActiveChallenges    int64                           `json:"active_challenges"`
	CompletedChallenges int64                           `json:"completed_challenges"`
	UnreadNotifications int64                           `json:"unread_notifications"`
}

// FetchPlatformCounts returns the high-level counts used by the admin stats view.
// Intentionally tolerant: on error it returns 0 for that counter.
func FetchPlatformCounts(ctx context.Context, db *mongo.Database) Counts {
	out := Counts{TradesByStatus: make(map[lifecycle.TradeStatus]int64, len(lifecycle.TradeStatuses))}

	count := func(coll string, filter bson.M) int64 {
		n, err := db.Collection(coll).CountDocuments(ctx, filter)
		if err != nil {
			return 0
		}
		return n
	}

	out.Users = count("users", bson.M{})
	out.ActiveUsers = count("users", bson.M{"status": "active"})

	for _, s := range lifecycle.TradeStatuses {
		n := count("trades", bson.M{"status": s})
		out.TradesByStatus[s] = n
		out.Trades += n
	}

	out.Collaborations = count("collaborations", bson.M{})
	out.OpenCollaborations = count("collaborations", bson.M{
		"status": bson.M{"$in": bson.A{lifecycle.CollabRecruiting, lifecycle.CollabInProgress}},
	})
	out.PendingApplications = count("role_applications", bson.M{"status": lifecycle.DecisionPending})

	out.ActiveChallenges = count("challenges", bson.M{"status": models.ChallengeActive})
	out.CompletedChallenges = count("challenge_participants", bson.M{"status": lifecycle.ParticipationCompleted})

	out.UnreadNotifications = count("notifications", bson.M{"read": false})

	return out
}
