// internal/app/workflow/xp.go
package workflow

import (
	"context"
	"fmt"

	"github.com/tradeya/tradeya/internal/app/system/notify"
	"github.com/tradeya/tradeya/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// AwardXP records an award in the ledger and, the first time it is seen,
// adds it to the user's total. Awards are keyed on (user, source, sourceID)
// so repeating a completion never pays twice. A level-up sends a
// notification. Failures are logged; the triggering operation has already
// committed.
func (s *Service) AwardXP(ctx context.Context, userID primitive.ObjectID, amount int64, source string, sourceID primitive.ObjectID, reason string) {
	if amount <= 0 {
		return
	}
	_, created, err := s.XP.Award(ctx, models.XPTransaction{
		UserID:   userID,
		Amount:   amount,
		Source:   source,
		SourceID: sourceID,
		Reason:   reason,
	})
	if err != nil {
		s.Log.Error("xp award failed",
			zap.String("user_id", userID.Hex()), zap.String("source", source),
			zap.String("source_id", sourceID.Hex()), zap.Error(err))
		return
	}
	if !created {
		return
	}

	res, err := s.Users.AddXP(ctx, userID, amount)
	if err != nil {
		// Ledger and total disagree until an operator reconciles them with
		// TotalByUser.
		s.Log.Error("xp total update failed",
			zap.String("user_id", userID.Hex()), zap.Int64("amount", amount), zap.Error(err))
		return
	}
	s.Audit.XPAwarded(ctx, userID, amount, source, sourceID, res.NewLevel)

	if res.LeveledUp() {
		s.send(ctx, notify.Input{
			RecipientID: userID,
			Type:        models.NotifyLevelUp,
			Title:       fmt.Sprintf("Level %d reached", res.NewLevel),
			Message:     fmt.Sprintf("You reached level %d with %d XP.", res.NewLevel, res.XP),
			EntityKind:  "user",
			EntityID:    oid(userID),
			DedupeKey:   fmt.Sprintf("level:%d", res.NewLevel),
		})
	}
}
