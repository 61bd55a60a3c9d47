package download

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/marmos91/offlinekit/pkg/region"
)

func TestBackOff_DoublesAndCaps(t *testing.T) {
	b := newBackOff(RetryConfig{BaseDelay: time.Second, MaxDelay: 5 * time.Minute})

	want := []time.Duration{
		1 * time.Second,
		2 * time.Second,
		4 * time.Second,
		8 * time.Second,
		16 * time.Second,
		32 * time.Second,
		64 * time.Second,
		128 * time.Second,
		256 * time.Second,
		5 * time.Minute,
		5 * time.Minute,
	}
	var prev time.Duration
	for i, w := range want {
		d := b.NextBackOff()
		assert.Equal(t, w, d, "delay %d", i)
		assert.GreaterOrEqual(t, d, prev)
		prev = d
	}
}

func TestRetryConfig_MaxAttempts(t *testing.T) {
	cfg := DefaultConfig().Retry
	assert.Equal(t, 6, cfg.maxAttempts(region.ReasonServer))
	assert.Equal(t, 6, cfg.maxAttempts(region.ReasonConnection))
	assert.Equal(t, 3, cfg.maxAttempts(region.ReasonOther))
}

func TestConfig_ApplyDefaults(t *testing.T) {
	var cfg Config
	cfg.Retry.BaseDelay = time.Minute
	cfg.Retry.MaxDelay = time.Second
	cfg.applyDefaults()

	assert.Equal(t, DefaultWorkers, cfg.Workers)
	assert.Equal(t, DefaultMaxInflightPerRegion, cfg.MaxInflightPerRegion)
	assert.Equal(t, time.Minute, cfg.Retry.MaxDelay)
	assert.Equal(t, DefaultMaxAttempts, cfg.Retry.MaxAttempts)
	assert.Equal(t, DefaultOtherMaxAttempts, cfg.Retry.OtherMaxAttempts)
}
