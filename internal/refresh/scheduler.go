package refresh

// scheduler.go triggers refresh cycles on a daily wall-clock schedule.
//
// The runner itself knows nothing about scheduling; Start is a thin
// collaborator that computes the next HH:MM occurrence, sleeps until then,
// and invokes Run. It stops when the context is cancelled.

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

// Start runs refresh cycles daily at the given local wall-clock time until
// ctx is cancelled. It is meant to run in its own goroutine.
func (r *Runner) Start(ctx context.Context, hour, minute int) {
	slog.Info("refresh scheduler started", "hour", hour, "minute", minute)

	for {
		next := nextRun(r.now(), hour, minute)
		timer := time.NewTimer(time.Until(next))
		slog.Debug("next scheduled refresh", "at", next)

		select {
		case <-ctx.Done():
			timer.Stop()
			slog.Info("refresh scheduler stopped")
			return
		case <-timer.C:
		}

		// Run logs and alerts its own failures.
		if err := r.Run(ctx); errors.Is(err, ErrInProgress) {
			slog.Warn("scheduled refresh skipped, previous cycle still running")
		}
	}
}

// nextRun returns the next occurrence of hour:minute strictly after now.
func nextRun(now time.Time, hour, minute int) time.Time {
	next := time.Date(now.Year(), now.Month(), now.Day(), hour, minute, 0, 0, now.Location())
	if !next.After(now) {
		next = next.AddDate(0, 0, 1)
	}
	return next
}
