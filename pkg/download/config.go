package download

import "time"

// Default engine settings.
const (
	DefaultWorkers              = 8
	DefaultMaxInflightPerRegion = 4
	DefaultMaxTileCount         = 6000
	DefaultFetchTimeout         = 30 * time.Second

	DefaultBaseDelay        = time.Second
	DefaultMaxDelay         = 5 * time.Minute
	DefaultMaxAttempts      = 6
	DefaultOtherMaxAttempts = 3
)

// Config configures the download engine.
type Config struct {
	// Workers is the number of fetch goroutines shared by all regions.
	Workers int

	// MaxInflightPerRegion caps concurrent fetches of one region so a large
	// region cannot starve the others.
	MaxInflightPerRegion int

	// MaxTileCount is the initial Mapbox tile count limit.
	MaxTileCount uint64

	// FetchTimeout bounds a single fetch. Zero disables the timeout.
	FetchTimeout time.Duration

	Retry RetryConfig
}

// RetryConfig configures the transient failure backoff.
type RetryConfig struct {
	// BaseDelay is the delay after the first failure. Each further failure
	// doubles it, up to MaxDelay.
	BaseDelay time.Duration
	MaxDelay  time.Duration

	// MaxAttempts is the number of failed attempts after which a server or
	// connection failure is reported and parked.
	MaxAttempts int

	// OtherMaxAttempts is the same cap for unclassified failures.
	OtherMaxAttempts int
}

// DefaultConfig returns the default engine configuration.
func DefaultConfig() Config {
	return Config{
		Workers:              DefaultWorkers,
		MaxInflightPerRegion: DefaultMaxInflightPerRegion,
		MaxTileCount:         DefaultMaxTileCount,
		FetchTimeout:         DefaultFetchTimeout,
		Retry: RetryConfig{
			BaseDelay:        DefaultBaseDelay,
			MaxDelay:         DefaultMaxDelay,
			MaxAttempts:      DefaultMaxAttempts,
			OtherMaxAttempts: DefaultOtherMaxAttempts,
		},
	}
}

func (c *Config) applyDefaults() {
	if c.Workers <= 0 {
		c.Workers = DefaultWorkers
	}
	if c.MaxInflightPerRegion <= 0 {
		c.MaxInflightPerRegion = DefaultMaxInflightPerRegion
	}
	if c.Retry.BaseDelay <= 0 {
		c.Retry.BaseDelay = DefaultBaseDelay
	}
	if c.Retry.MaxDelay <= 0 {
		c.Retry.MaxDelay = DefaultMaxDelay
	}
	if c.Retry.MaxDelay < c.Retry.BaseDelay {
		c.Retry.MaxDelay = c.Retry.BaseDelay
	}
	if c.Retry.MaxAttempts <= 0 {
		c.Retry.MaxAttempts = DefaultMaxAttempts
	}
	if c.Retry.OtherMaxAttempts <= 0 {
		c.Retry.OtherMaxAttempts = DefaultOtherMaxAttempts
	}
}
