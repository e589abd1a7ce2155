package worker

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Pruner drops ticket records whose channel is gone.
type Pruner interface {
	Prune(ctx context.Context) (int, error)
}

// RunPruneWorker prunes once and then every interval until ctx is done. A
// non-positive interval prunes only once. It blocks; run it in a goroutine.
func RunPruneWorker(ctx context.Context, pruner Pruner, interval time.Duration, logger *zap.Logger) {
	if logger == nil {
		logger = zap.NewNop()
	}
	prune(ctx, pruner, logger)
	if interval <= 0 {
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			prune(ctx, pruner, logger)
		}
	}
}

func prune(ctx context.Context, pruner Pruner, logger *zap.Logger) {
	removed, err := pruner.Prune(ctx)
	if err != nil {
		logger.Warn("prune failed", zap.Error(err))
		return
	}
	if removed > 0 {
		logger.Info("pruned orphaned tickets", zap.Int("removed", removed))
	}
}
