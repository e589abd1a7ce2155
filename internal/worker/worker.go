// Package worker runs the bot's background jobs.
package worker

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Subscriber attaches event handlers to the dispatcher.
type Subscriber interface {
	RegisterHandlers()
}

// Jobs lists the background work started with the bot.
type Jobs struct {
	Notifications Subscriber
	Pruner        Pruner
	PruneInterval time.Duration
	Logger        *zap.Logger
}

// Start subscribes the notification handlers and launches the prune loop.
// The loop stops when ctx is done.
func Start(ctx context.Context, jobs Jobs) {
	if jobs.Logger == nil {
		jobs.Logger = zap.NewNop()
	}
	if jobs.Notifications != nil {
		jobs.Notifications.RegisterHandlers()
	}
	if jobs.Pruner != nil {
		go RunPruneWorker(ctx, jobs.Pruner, jobs.PruneInterval, jobs.Logger.Named("prune"))
	}
}
