package config

import (
	"context"
	"fmt"
	"os"

	"github.com/marmos91/offlinekit/internal/logger"
	"github.com/marmos91/offlinekit/internal/telemetry"
	"github.com/marmos91/offlinekit/pkg/download"
	"github.com/marmos91/offlinekit/pkg/offline"
	"github.com/marmos91/offlinekit/pkg/resource"
	"github.com/marmos91/offlinekit/pkg/resource/badger"
	"github.com/marmos91/offlinekit/pkg/resource/gormstore"
	"github.com/marmos91/offlinekit/pkg/resource/memory"
	"github.com/marmos91/offlinekit/pkg/transport"
)

// OpenBackend opens the persistence backend selected by cfg.Type.
func OpenBackend(ctx context.Context, cfg StoreConfig) (resource.Backend, error) {
	ctx, span := telemetry.StartStoreSpan(ctx, "open", telemetry.StoreType(cfg.Type))
	defer span.End()

	logger.DebugCtx(ctx, "Opening store", logger.KeyStoreType, cfg.Type)

	switch cfg.Type {
	case StoreTypeMemory:
		return memory.New(), nil

	case StoreTypeBadger:
		if err := os.MkdirAll(cfg.Badger.Path, 0755); err != nil {
			return nil, fmt.Errorf("failed to create badger directory: %w", err)
		}
		s, err := badger.Open(ctx, badger.Config{
			Path:       cfg.Badger.Path,
			SyncWrites: cfg.Badger.SyncWrites,
		})
		if err != nil {
			return nil, err
		}
		return s, nil

	case StoreTypeSQLite:
		return sqlBackend(gormstore.OpenSQLite(cfg.SQLite.Path))

	case StoreTypePostgres:
		p := cfg.Postgres
		return sqlBackend(gormstore.OpenPostgres(gormstore.PostgresConfig{
			Host:         p.Host,
			Port:         p.Port,
			Database:     p.Database,
			User:         p.User,
			Password:     p.Password,
			SSLMode:      p.SSLMode,
			MaxOpenConns: p.MaxOpenConns,
			MaxIdleConns: p.MaxIdleConns,
		}))

	default:
		return nil, fmt.Errorf("unsupported store type: %s", cfg.Type)
	}
}

// sqlBackend keeps a failed open from yielding a non-nil Backend.
func sqlBackend(s *gormstore.Store, err error) (resource.Backend, error) {
	if err != nil {
		return nil, err
	}
	return s, nil
}

// NewFetcher builds the fetcher for http(s)://, mapbox:// and, when
// enabled, s3:// resources.
func NewFetcher(ctx context.Context, cfg TransportConfig) (transport.Fetcher, error) {
	mux := transport.NewMux()

	httpFetcher := transport.NewHTTP(transport.HTTPConfig{
		Timeout:   cfg.Timeout,
		UserAgent: cfg.UserAgent,
		Mapbox: transport.MapboxResolver{
			BaseURL:     cfg.MapboxAPIURL,
			AccessToken: cfg.MapboxAccessToken,
		},
	})
	mux.Handle(httpFetcher, "http", "https", "mapbox")

	if cfg.S3.Enabled {
		s3Fetcher, err := transport.NewS3FromConfig(ctx, transport.S3Config{
			Region:          cfg.S3.Region,
			Endpoint:        cfg.S3.Endpoint,
			ForcePathStyle:  cfg.S3.ForcePathStyle,
			AccessKeyID:     cfg.S3.AccessKeyID,
			SecretAccessKey: cfg.S3.SecretAccessKey,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create s3 fetcher: %w", err)
		}
		mux.Handle(s3Fetcher, "s3")
	}

	return mux, nil
}

// ManagerConfig converts the download and store sections to the offline
// manager settings.
func (c *Config) ManagerConfig() offline.Config {
	d := c.Download
	return offline.Config{
		Download: download.Config{
			Workers:              d.Workers,
			MaxInflightPerRegion: d.MaxInflightPerRegion,
			MaxTileCount:         d.MaxTileCount,
			FetchTimeout:         d.FetchTimeout,
			Retry: download.RetryConfig{
				BaseDelay:        d.Retry.BaseDelay,
				MaxDelay:         d.Retry.MaxDelay,
				MaxAttempts:      d.Retry.MaxAttempts,
				OtherMaxAttempts: d.Retry.OtherMaxAttempts,
			},
		},
		HighWaterMark: c.Store.HighWaterMark.Int64(),
		DeleteTimeout: d.DeleteTimeout,
		StopTimeout:   c.ShutdownTimeout,
	}
}
