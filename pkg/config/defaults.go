package config

import (
	"path/filepath"
	"strings"
	"time"

	"github.com/marmos91/offlinekit/internal/bytesize"
	"github.com/marmos91/offlinekit/pkg/download"
	"github.com/marmos91/offlinekit/pkg/eviction"
	"github.com/marmos91/offlinekit/pkg/offline"
	"github.com/marmos91/offlinekit/pkg/transport"
)

// Defaults that have no home in the package they configure.
const (
	DefaultShutdownTimeout   = 30 * time.Second
	DefaultTransportTimeout  = 30 * time.Second
	DefaultMetricsPort       = 9090
	DefaultTelemetryEndpoint = "localhost:4317"
	DefaultProfilingEndpoint = "http://localhost:4040"
)

// defaultProfileTypes leaves out the mutex and block profiles, which change
// runtime sampling rates.
var defaultProfileTypes = []string{
	"cpu", "alloc_objects", "alloc_space", "inuse_objects", "inuse_space", "goroutines",
}

// orDefault stores def in *p when *p is the zero value.
func orDefault[T comparable](p *T, def T) {
	var zero T
	if *p == zero {
		*p = def
	}
}

// ApplyDefaults replaces zero values with defaults and normalizes the log
// level. Explicit values are kept, so validation still sees them.
func ApplyDefaults(cfg *Config) {
	orDefault(&cfg.ShutdownTimeout, DefaultShutdownTimeout)

	l := &cfg.Logging
	orDefault(&l.Level, "INFO")
	l.Level = strings.ToUpper(l.Level)
	orDefault(&l.Format, "text")
	orDefault(&l.Output, "stdout")

	t := &cfg.Telemetry
	orDefault(&t.Endpoint, DefaultTelemetryEndpoint)
	orDefault(&t.SampleRate, 1.0)
	orDefault(&t.Profiling.Endpoint, DefaultProfilingEndpoint)
	if len(t.Profiling.ProfileTypes) == 0 {
		t.Profiling.ProfileTypes = append([]string(nil), defaultProfileTypes...)
	}

	// The metrics port only matters, and only collides with the API port,
	// when metrics are on.
	if cfg.Metrics.Enabled {
		orDefault(&cfg.Metrics.Port, DefaultMetricsPort)
	}

	cfg.API.ApplyDefaults()
	applyStoreDefaults(&cfg.Store)
	applyDownloadDefaults(&cfg.Download)

	orDefault(&cfg.Transport.Timeout, DefaultTransportTimeout)
	orDefault(&cfg.Transport.UserAgent, transport.DefaultUserAgent)
}

// applyStoreDefaults picks badger and fills the settings of the selected
// backend only.
func applyStoreDefaults(s *StoreConfig) {
	orDefault(&s.Type, StoreTypeBadger)
	orDefault(&s.HighWaterMark, bytesize.ByteSize(eviction.DefaultHighWaterMark))

	switch s.Type {
	case StoreTypeBadger:
		orDefault(&s.Badger.Path, filepath.Join(dataDir(), "badger"))
	case StoreTypeSQLite:
		orDefault(&s.SQLite.Path, filepath.Join(dataDir(), "offline.db"))
	case StoreTypePostgres:
		p := &s.Postgres
		orDefault(&p.Port, 5432)
		orDefault(&p.SSLMode, "disable")
		orDefault(&p.MaxOpenConns, 25)
		orDefault(&p.MaxIdleConns, 5)
	}
}

// applyDownloadDefaults leaves MaxTileCount alone: an explicit 0 blocks
// Mapbox tiles, so its default is applied while loading instead.
func applyDownloadDefaults(d *DownloadConfig) {
	orDefault(&d.Workers, download.DefaultWorkers)
	orDefault(&d.MaxInflightPerRegion, download.DefaultMaxInflightPerRegion)
	orDefault(&d.FetchTimeout, download.DefaultFetchTimeout)
	orDefault(&d.DeleteTimeout, offline.DefaultDeleteTimeout)

	r := &d.Retry
	orDefault(&r.BaseDelay, download.DefaultBaseDelay)
	orDefault(&r.MaxDelay, download.DefaultMaxDelay)
	orDefault(&r.MaxAttempts, download.DefaultMaxAttempts)
	orDefault(&r.OtherMaxAttempts, download.DefaultOtherMaxAttempts)
}

// GetDefaultConfig returns the configuration used when no file exists, as
// written by Sample.
func GetDefaultConfig() *Config {
	cfg := &Config{
		Download: DownloadConfig{MaxTileCount: download.DefaultMaxTileCount},
	}
	ApplyDefaults(cfg)
	return cfg
}
