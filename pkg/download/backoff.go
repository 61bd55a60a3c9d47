package download

import (
	"github.com/cenkalti/backoff/v4"

	"github.com/marmos91/offlinekit/pkg/region"
)

// newBackOff returns the delay sequence of one failing request:
// base, 2*base, 4*base, ... capped at max, without jitter and without an
// elapsed-time limit. The attempt cap is enforced by the engine.
func newBackOff(cfg RetryConfig) *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = cfg.BaseDelay
	b.Multiplier = 2
	b.RandomizationFactor = 0
	b.MaxInterval = cfg.MaxDelay
	b.MaxElapsedTime = 0
	b.Reset()
	return b
}

// maxAttempts returns the attempt cap for a transient failure reason.
func (c RetryConfig) maxAttempts(reason region.Reason) int {
	if reason == region.ReasonOther {
		return c.OtherMaxAttempts
	}
	return c.MaxAttempts
}
