package config

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	"github.com/marmos91/offlinekit/internal/telemetry"
)

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

func getValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
	})
	return validate
}

// Validate checks the configuration against its struct tags and the rules
// spanning several fields. It does not modify cfg.
func Validate(cfg *Config) error {
	if cfg == nil {
		return errors.New("configuration is nil")
	}

	if err := getValidator().Struct(cfg); err != nil {
		return err
	}

	if cfg.Telemetry.Enabled && cfg.Telemetry.Endpoint == "" {
		return errors.New("telemetry.endpoint is required when telemetry is enabled")
	}
	if cfg.Telemetry.Profiling.Enabled && cfg.Telemetry.Profiling.Endpoint == "" {
		return errors.New("telemetry.profiling.endpoint is required when profiling is enabled")
	}
	if _, err := telemetry.ParseProfileTypes(cfg.Telemetry.Profiling.ProfileTypes); err != nil {
		return fmt.Errorf("telemetry.profiling.profile_types: %w (valid: %s)",
			err, strings.Join(telemetry.ProfileTypeNames(), ", "))
	}
	if cfg.Metrics.Enabled && cfg.Metrics.Port == cfg.API.Port {
		return fmt.Errorf("metrics.port and api.port must differ (both %d)", cfg.API.Port)
	}
	if err := validateStore(&cfg.Store); err != nil {
		return err
	}

	r := cfg.Download.Retry
	if r.MaxDelay > 0 && r.BaseDelay > r.MaxDelay {
		return fmt.Errorf("download.retry.base_delay %s exceeds max_delay %s", r.BaseDelay, r.MaxDelay)
	}
	return nil
}

func validateStore(cfg *StoreConfig) error {
	switch cfg.Type {
	case StoreTypeBadger:
		if cfg.Badger.Path == "" {
			return errors.New("store.badger.path is required for the badger store")
		}
	case StoreTypeSQLite:
		if cfg.SQLite.Path == "" {
			return errors.New("store.sqlite.path is required for the sqlite store")
		}
	case StoreTypePostgres:
		p := cfg.Postgres
		switch {
		case p.Host == "":
			return errors.New("store.postgres.host is required for the postgres store")
		case p.Database == "":
			return errors.New("store.postgres.database is required for the postgres store")
		case p.User == "":
			return errors.New("store.postgres.user is required for the postgres store")
		}
	}
	return nil
}
