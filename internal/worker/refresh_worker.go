// Package worker runs the periodic background refresh that keeps the
// displayed snapshot close to the upstream report feed.
package worker

import (
	"context"
	"log/slog"
	"time"
)

// Refresher triggers one snapshot refresh. Satisfied by
// provider.Provider.
type Refresher interface {
	Refresh(ctx context.Context, useMemoization bool) error
}

type RefreshWorker struct {
	refresher Refresher
	interval  time.Duration
}

func NewRefreshWorker(refresher Refresher, interval time.Duration) *RefreshWorker {
	return &RefreshWorker{
		refresher: refresher,
		interval:  interval,
	}
}

// Run refreshes once immediately, then on every tick until ctx is
// cancelled. Refresh failures are logged and retried on the next tick,
// they never stop the loop.
func (w *RefreshWorker) Run(ctx context.Context) error {
	w.refresh(ctx)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.InfoContext(ctx, "Refresh worker stopping", "reason", ctx.Err())
			return ctx.Err()
		case <-ticker.C:
			w.refresh(ctx)
		}
	}
}

func (w *RefreshWorker) refresh(ctx context.Context) {
	start := time.Now()
	// Periodic refreshes bypass memoization, the point is new data.
	if err := w.refresher.Refresh(ctx, false); err != nil {
		slog.ErrorContext(ctx, "Scheduled refresh failed",
			"error", err,
			"duration_ms", time.Since(start).Milliseconds())
		return
	}
	slog.InfoContext(ctx, "Scheduled refresh completed",
		"duration_ms", time.Since(start).Milliseconds())
}
