package store

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// RunSweeper deletes expired items every interval until ctx is done.
// Reads already hide expired items; sweeping only reclaims space.
func RunSweeper(ctx context.Context, s Sweeper, interval time.Duration, logger *zap.Logger) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			n, err := s.Sweep(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return nil
				}
				logger.Warn("sweep expired rooms", zap.Error(err))
				continue
			}
			if n > 0 {
				logger.Info("swept expired rooms", zap.Int64("count", n))
			}
		}
	}
}
