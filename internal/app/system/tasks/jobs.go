// internal/app/system/tasks/jobs.go
package tasks

import (
	"context"
	"time"

	challengestore "github.com/tradeya/tradeya/internal/app/store/challenges"
	notificationstore "github.com/tradeya/tradeya/internal/app/store/notifications"
	"github.com/tradeya/tradeya/internal/app/store/oauthstate"
	"go.uber.org/zap"
)

// TradeSweeper moves trades that have waited too long in pending_confirmation.
// Implemented by the trade workflow so sweeps notify, award XP and audit the
// same way user actions do.
type TradeSweeper interface {
	AutoCompleteStale(ctx context.Context, requestedBefore time.Time) (int, error)
	RemindPending(ctx context.Context, requestedBefore time.Time) (int, error)
}

// TradeAutoCompleteJob completes trades whose completion request is older than after.
func TradeAutoCompleteJob(sw TradeSweeper, after time.Duration, logger *zap.Logger) Job {
	return Job{
		Name:     "trade-auto-complete",
		Interval: 1 * time.Hour,
		Run: func(ctx context.Context) error {
			n, err := sw.AutoCompleteStale(ctx, time.Now().UTC().Add(-after))
			if err != nil {
				return err
			}
			if n > 0 {
				logger.Info("auto-completed stale trades",
					zap.Int("count", n),
					zap.Duration("after", after))
			}
			return nil
		},
	}
}

// TradeReminderJob reminds the responding party of completion requests older than after.
// Each trade is reminded at most once.
func TradeReminderJob(sw TradeSweeper, after time.Duration, logger *zap.Logger) Job {
	return Job{
		Name:     "trade-confirmation-reminder",
		Interval: 30 * time.Minute,
		Run: func(ctx context.Context) error {
			n, err := sw.RemindPending(ctx, time.Now().UTC().Add(-after))
			if err != nil {
				return err
			}
			if n > 0 {
				logger.Info("sent trade confirmation reminders", zap.Int("count", n))
			}
			return nil
		},
	}
}

// CloseExpiredChallengesJob closes active challenges whose end time has passed.
func CloseExpiredChallengesJob(store *challengestore.Store, logger *zap.Logger) Job {
	return Job{
		Name:     "close-expired-challenges",
		Interval: 15 * time.Minute,
		Run: func(ctx context.Context) error {
			n, err := store.CloseExpired(ctx, time.Now().UTC())
			if err != nil {
				return err
			}
			if n > 0 {
				logger.Info("closed expired challenges", zap.Int64("count", n))
			}
			return nil
		},
	}
}

// PurgeReadNotificationsJob deletes notifications read more than retention ago.
func PurgeReadNotificationsJob(store *notificationstore.Store, retention time.Duration, logger *zap.Logger) Job {
	return Job{
		Name:     "purge-read-notifications",
		Interval: 6 * time.Hour,
		Run: func(ctx context.Context) error {
			n, err := store.DeleteReadOlderThan(ctx, time.Now().UTC().Add(-retention))
			if err != nil {
				return err
			}
			if n > 0 {
				logger.Info("purged read notifications",
					zap.Int64("count", n),
					zap.Duration("retention", retention))
			}
			return nil
		},
	}
}

// OAuthStateCleanupJob creates a job that removes expired OAuth state tokens.
// This is a backup for when MongoDB's TTL index cleanup is delayed.
func OAuthStateCleanupJob(stateStore *oauthstate.Store, logger *zap.Logger) Job {
	return Job{
		Name:     "oauth-state-cleanup",
		Interval: 1 * time.Hour,
		Run: func(ctx context.Context) error {
			count, err := stateStore.CleanupExpired(ctx)
			if err != nil {
				return err
			}
			if count > 0 {
				logger.Debug("cleaned up expired OAuth states", zap.Int64("count", count))
			}
			return nil
		},
	}
}
