package config

import (
	"time"

	"github.com/marmos91/offlinekit/internal/bytesize"
	"github.com/marmos91/offlinekit/pkg/api"
)

// Config represents the offlinekit daemon configuration.
//
// It covers the static aspects of the daemon:
//   - Logging, tracing and profiling
//   - Metrics and the control API servers
//   - The persistence backend holding resources and region records
//   - The download engine and network transports
//
// Regions themselves are created through the control API and persisted by the
// backend.
//
// Configuration sources (in order of precedence):
//  1. Environment variables (OFFLINEKIT_*)
//  2. Configuration file (YAML or TOML)
//  3. Default values (lowest priority)
type Config struct {
	// Logging controls log output behavior
	Logging LoggingConfig `mapstructure:"logging" yaml:"logging"`

	// Telemetry controls OpenTelemetry distributed tracing
	Telemetry TelemetryConfig `mapstructure:"telemetry" yaml:"telemetry"`

	// ShutdownTimeout is the maximum time to wait for graceful shutdown
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" validate:"required,gt=0" yaml:"shutdown_timeout"`

	// Metrics contains Prometheus metrics server configuration
	Metrics MetricsConfig `mapstructure:"metrics" yaml:"metrics"`

	// API contains control API server configuration
	API api.Config `mapstructure:"api" yaml:"api"`

	// Store selects and configures the persistence backend
	Store StoreConfig `mapstructure:"store" yaml:"store"`

	// Download configures the download engine
	Download DownloadConfig `mapstructure:"download" yaml:"download"`

	// Transport configures how resources are fetched
	Transport TransportConfig `mapstructure:"transport" yaml:"transport"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	// Level is the minimum log level to output
	// Valid values: DEBUG, INFO, WARN, ERROR (case-insensitive, normalized to uppercase)
	Level string `mapstructure:"level" validate:"required,oneof=DEBUG INFO WARN ERROR debug info warn error" yaml:"level" jsonschema:"enum=DEBUG,enum=INFO,enum=WARN,enum=ERROR"`

	// Format specifies the log output format
	// Valid values: text, json
	Format string `mapstructure:"format" validate:"required,oneof=text json" yaml:"format" jsonschema:"enum=text,enum=json"`

	// Output specifies where logs are written
	// Valid values: stdout, stderr, or a file path
	Output string `mapstructure:"output" validate:"required" yaml:"output"`
}

// TelemetryConfig controls OpenTelemetry distributed tracing.
// When enabled, trace data is exported to an OTLP-compatible collector
// (e.g., Jaeger, Tempo, or any OTLP receiver).
type TelemetryConfig struct {
	// Enabled controls whether distributed tracing is enabled
	// Default: false (opt-in for telemetry)
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`

	// Endpoint is the OTLP collector endpoint (host:port)
	// Default: "localhost:4317" (standard OTLP gRPC port)
	Endpoint string `mapstructure:"endpoint" yaml:"endpoint"`

	// Insecure controls whether to use insecure (non-TLS) connection
	Insecure bool `mapstructure:"insecure" yaml:"insecure"`

	// SampleRate controls the trace sampling rate (0.0 to 1.0)
	// Default: 1.0 (sample all)
	SampleRate float64 `mapstructure:"sample_rate" validate:"omitempty,gte=0,lte=1" yaml:"sample_rate"`

	// Profiling contains Pyroscope continuous profiling configuration
	Profiling ProfilingConfig `mapstructure:"profiling" yaml:"profiling"`
}

// ProfilingConfig controls Pyroscope continuous profiling.
type ProfilingConfig struct {
	// Enabled controls whether continuous profiling is enabled
	// Default: false (opt-in for profiling)
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`

	// Endpoint is the Pyroscope server endpoint (URL)
	// Default: "http://localhost:4040" (standard Pyroscope port)
	Endpoint string `mapstructure:"endpoint" yaml:"endpoint"`

	// ProfileTypes specifies which profile types to collect
	// Valid values: cpu, alloc_objects, alloc_space, inuse_objects, inuse_space,
	//               goroutines, mutex_count, mutex_duration, block_count, block_duration
	ProfileTypes []string `mapstructure:"profile_types" yaml:"profile_types"`
}

// MetricsConfig configures the Prometheus metrics HTTP server.
// When Enabled is false, no metrics are collected (zero overhead).
type MetricsConfig struct {
	// Enabled controls whether metrics collection and HTTP server are enabled
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`

	// Port is the HTTP port for the metrics endpoint
	// Default: 9090
	Port int `mapstructure:"port" validate:"omitempty,min=1,max=65535" yaml:"port"`
}

// Store backend types.
const (
	StoreTypeMemory   = "memory"
	StoreTypeBadger   = "badger"
	StoreTypeSQLite   = "sqlite"
	StoreTypePostgres = "postgres"
)

// StoreConfig selects the persistence backend for resources and regions.
type StoreConfig struct {
	// Type is the backend: memory, badger, sqlite or postgres
	// Default: badger
	Type string `mapstructure:"type" validate:"required,oneof=memory badger sqlite postgres" yaml:"type" jsonschema:"enum=memory,enum=badger,enum=sqlite,enum=postgres"`

	// HighWaterMark is the store size above which resources no longer used
	// by any region are removed when a region is deleted.
	// Supports human-readable formats: "50MiB", "1GB"
	// Default: 50MiB
	HighWaterMark bytesize.ByteSize `mapstructure:"high_water_mark" yaml:"high_water_mark"`

	Badger   BadgerConfig   `mapstructure:"badger" yaml:"badger"`
	SQLite   SQLiteConfig   `mapstructure:"sqlite" yaml:"sqlite"`
	Postgres PostgresConfig `mapstructure:"postgres" yaml:"postgres"`
}

// BadgerConfig configures the BadgerDB backend.
type BadgerConfig struct {
	// Path is the database directory
	// Default: $XDG_DATA_HOME/offlinekit/badger
	Path string `mapstructure:"path" yaml:"path"`

	// SyncWrites fsyncs every transaction
	SyncWrites bool `mapstructure:"sync_writes" yaml:"sync_writes"`
}

// SQLiteConfig configures the SQLite backend.
type SQLiteConfig struct {
	// Path is the database file
	// Default: $XDG_DATA_HOME/offlinekit/offline.db
	Path string `mapstructure:"path" yaml:"path"`
}

// PostgresConfig configures the PostgreSQL backend.
type PostgresConfig struct {
	Host         string `mapstructure:"host" yaml:"host"`
	Port         int    `mapstructure:"port" validate:"omitempty,min=1,max=65535" yaml:"port"`
	Database     string `mapstructure:"database" yaml:"database"`
	User         string `mapstructure:"user" yaml:"user"`
	Password     string `mapstructure:"password" yaml:"password,omitempty"`
	SSLMode      string `mapstructure:"sslmode" validate:"omitempty,oneof=disable require verify-ca verify-full" yaml:"sslmode"`
	MaxOpenConns int    `mapstructure:"max_open_conns" yaml:"max_open_conns"`
	MaxIdleConns int    `mapstructure:"max_idle_conns" yaml:"max_idle_conns"`
}

// DownloadConfig configures the download engine.
type DownloadConfig struct {
	// Workers is the number of concurrent fetches across all regions
	// Default: 8
	Workers int `mapstructure:"workers" validate:"omitempty,min=1,max=256" yaml:"workers"`

	// MaxInflightPerRegion caps the concurrent fetches of one region
	// Default: 4
	MaxInflightPerRegion int `mapstructure:"max_inflight_per_region" validate:"omitempty,min=1" yaml:"max_inflight_per_region"`

	// MaxTileCount is the process-wide limit on stored Mapbox tiles
	// Default: 6000
	MaxTileCount uint64 `mapstructure:"max_tile_count" yaml:"max_tile_count"`

	// FetchTimeout bounds a single fetch
	// Default: 30s
	FetchTimeout time.Duration `mapstructure:"fetch_timeout" yaml:"fetch_timeout"`

	// DeleteTimeout bounds the deletion of a region
	// Default: 1m
	DeleteTimeout time.Duration `mapstructure:"delete_timeout" yaml:"delete_timeout"`

	Retry RetryConfig `mapstructure:"retry" yaml:"retry"`
}

// RetryConfig configures the backoff of transient fetch failures.
type RetryConfig struct {
	// BaseDelay is the delay after the first failure, doubled on each retry
	// Default: 1s
	BaseDelay time.Duration `mapstructure:"base_delay" yaml:"base_delay"`

	// MaxDelay caps the delay between attempts
	// Default: 5m
	MaxDelay time.Duration `mapstructure:"max_delay" yaml:"max_delay"`

	// MaxAttempts is the number of server or connection failures after which
	// the error is reported and the resource waits for connectivity
	// Default: 6
	MaxAttempts int `mapstructure:"max_attempts" validate:"omitempty,min=1" yaml:"max_attempts"`

	// OtherMaxAttempts is the same cap for unclassified failures
	// Default: 3
	OtherMaxAttempts int `mapstructure:"other_max_attempts" validate:"omitempty,min=1" yaml:"other_max_attempts"`
}

// TransportConfig configures the resource fetchers.
type TransportConfig struct {
	// Timeout is the HTTP client timeout
	// Default: 30s
	Timeout time.Duration `mapstructure:"timeout" yaml:"timeout"`

	// UserAgent is sent with every HTTP request
	UserAgent string `mapstructure:"user_agent" yaml:"user_agent,omitempty"`

	// MapboxAccessToken is appended to mapbox:// URLs
	// Override: OFFLINEKIT_TRANSPORT_MAPBOX_ACCESS_TOKEN
	MapboxAccessToken string `mapstructure:"mapbox_access_token" yaml:"mapbox_access_token,omitempty"`

	// MapboxAPIURL overrides the Mapbox API base URL
	MapboxAPIURL string `mapstructure:"mapbox_api_url" validate:"omitempty,url" yaml:"mapbox_api_url,omitempty"`

	// S3 enables s3://bucket/key resources served from an S3 mirror
	S3 S3Config `mapstructure:"s3" yaml:"s3"`
}

// S3Config configures the S3 mirror fetcher.
type S3Config struct {
	// Enabled registers the s3:// scheme
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`

	// Region is the AWS region (optional, uses SDK default if empty)
	Region string `mapstructure:"region" yaml:"region,omitempty"`

	// Endpoint is the S3 endpoint URL (optional, for S3-compatible services)
	Endpoint string `mapstructure:"endpoint" validate:"omitempty,url" yaml:"endpoint,omitempty"`

	// ForcePathStyle forces path-style addressing (required for Localstack/MinIO)
	ForcePathStyle bool `mapstructure:"force_path_style" yaml:"force_path_style"`

	// AccessKeyID and SecretAccessKey override the default credential chain
	AccessKeyID     string `mapstructure:"access_key_id" yaml:"access_key_id,omitempty"`
	SecretAccessKey string `mapstructure:"secret_access_key" yaml:"secret_access_key,omitempty"`
}
