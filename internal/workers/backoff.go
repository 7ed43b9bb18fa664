package workers

import (
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/relaypay/switchcore/internal/config"
)

// nextDelay computes the client callback dispatcher's retry delay, where
// attempts is the number of delivery attempts made so far (including the
// one that just failed):
// delay = min(baseDelay * multiplier^(attempts-1), maxDelay), and
// baseDelay for attempts of 0 or 1. It is built
// on [backoff.ExponentialBackOff] with randomization disabled so the
// result matches that deterministic formula exactly, rather than
// reimplementing exponential backoff by hand.
func nextDelay(cfg config.Backoff, attempts int) time.Duration {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = cfg.BaseDelay
	bo.Multiplier = cfg.Multiplier
	bo.MaxInterval = cfg.MaxDelay
	bo.MaxElapsedTime = 0
	bo.RandomizationFactor = 0
	bo.Reset()

	delay := cfg.BaseDelay
	for i := 0; i < attempts; i++ {
		delay = bo.NextBackOff()
	}
	if delay > cfg.MaxDelay {
		delay = cfg.MaxDelay
	}
	return delay
}
