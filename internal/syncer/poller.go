package syncer

import (
	"context"
	"time"

	"github.com/luke-gs/cadsync/internal/cad"
)

const (
	// DefaultPollInterval is used when Run is given a non-positive interval.
	DefaultPollInterval = 15 * time.Second
	maxBackoff          = 30 * time.Second
)

// Run syncs scope at a fixed cadence until ctx is cancelled, backing off
// while the dispatch service keeps failing. A Nudge triggers an immediate
// sync.
func (c *Coordinator) Run(ctx context.Context, scope cad.SyncScope, interval time.Duration) {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	failures := 0
	for {
		if _, err := c.Sync(ctx, scope); err != nil {
			if ctx.Err() != nil {
				return
			}
			failures++
		} else {
			failures = 0
		}

		timer := time.NewTimer(calculateBackoff(failures, interval))
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-c.nudge:
			timer.Stop()
		case <-timer.C:
		}
	}
}

// Start runs the poll loop in a background goroutine. It returns immediately.
func (c *Coordinator) Start(ctx context.Context, scope cad.SyncScope, interval time.Duration) {
	go c.Run(ctx, scope, interval)
}

// calculateBackoff doubles base per consecutive failure, capped at
// maxBackoff. Intervals already above the cap are left alone.
func calculateBackoff(failures int, base time.Duration) time.Duration {
	if failures <= 0 || base >= maxBackoff {
		return base
	}
	d := base
	for i := 0; i < failures; i++ {
		d *= 2
		if d >= maxBackoff {
			return maxBackoff
		}
	}
	return d
}
