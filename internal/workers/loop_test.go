package workers_test

import (
	"context"
	"testing"
	"time"

	"go.uber.org/goleak"

	"github.com/relaypay/switchcore/internal/workers"
)

func TestRun_StopsCleanlyAndLeaksNoGoroutines(t *testing.T) {
	defer goleak.VerifyNone(t)

	ctx, cancel := context.WithCancel(t.Context())
	ticks := make(chan struct{}, 8)
	done := make(chan struct{})

	go func() {
		workers.Run(ctx, "test", time.Millisecond, func(context.Context) error {
			select {
			case ticks <- struct{}{}:
			default:
			}
			return nil
		})
		close(done)
	}()

	<-ticks
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not stop after context cancellation")
	}
}
