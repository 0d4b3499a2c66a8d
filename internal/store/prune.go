package store

import (
	"context"
	"log/slog"
	"time"
)

const pruneWorkerInterval = time.Hour

// StartPruneWorker runs a background goroutine that periodically deletes
// history records older than maxAge.
func StartPruneWorker(ctx context.Context, rec Recorder, maxAge time.Duration) {
	ticker := time.NewTicker(pruneWorkerInterval)
	go func() {
		defer ticker.Stop()
		slog.Info("History prune worker started", "interval", pruneWorkerInterval, "max_age", maxAge)

		for {
			select {
			case <-ticker.C:
				pruneOnce(ctx, rec, maxAge)
			case <-ctx.Done():
				slog.Info("History prune worker shutting down", "reason", ctx.Err())
				return
			}
		}
	}()
}

func pruneOnce(ctx context.Context, rec Recorder, maxAge time.Duration) {
	sessions, statuses, err := rec.PruneHistory(ctx, maxAge)
	if err != nil {
		slog.Error("History prune failed", "error", err)
		return
	}
	if sessions > 0 || statuses > 0 {
		slog.Info("History pruned", "sessions", sessions, "status_updates", statuses)
	}
}
