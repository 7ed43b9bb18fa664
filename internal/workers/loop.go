// Package workers implements the independent polling loops: the FTC, Reversal, TSQ, Timeout, and Client Callback Dispatcher
// workers. Each owns its own cadence and shares only the [store.Store].
package workers

import (
	"context"
	"time"

	"github.com/relaypay/switchcore/log"
)

// Run ticks every interval and calls tick, stopping cleanly when ctx is
// canceled. Run only checks for cancellation between ticks, so a tick
// that has started returns before Run does and no further batch is
// claimed. tick receives ctx itself, so calls inside it that honour ctx
// (such as Gateway requests) see the cancellation.
func Run(ctx context.Context, name string, interval time.Duration, tick func(context.Context) error) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.LoggerFromValues(ctx).Info("worker stopping", "worker", name)
			return
		case <-ticker.C:
			if err := tick(ctx); err != nil {
				log.LoggerFromValues(ctx).Error("worker tick failed", "worker", name, "error", err)
			}
		}
	}
}
