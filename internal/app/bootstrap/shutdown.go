// internal/app/bootstrap/shutdown.go
package bootstrap

import (
	"context"

	"github.com/dalemusser/waffle/config"
	"go.uber.org/zap"
)

// Shutdown stops background work, closes realtime streams and disconnects
// MongoDB. Jobs and queued profile updates finish before the client goes away.
func Shutdown(ctx context.Context, coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) error {
	if s := deps.Services; s != nil {
		if s.Scheduler != nil {
			if err := s.Scheduler.Stop(ctx); err != nil {
				logger.Warn("scheduler did not stop cleanly", zap.Error(err))
			}
		}
		if s.ProfileSync != nil {
			s.ProfileSync.Stop()
		}
		if s.Hub != nil {
			s.Hub.Close()
		}
	}

	if deps.MongoClient != nil {
		logger.Info("disconnecting MongoDB client")
		if err := deps.MongoClient.Disconnect(ctx); err != nil {
			logger.Error("MongoDB disconnect failed", zap.Error(err))
			return err
		}
	}
	return nil
}
