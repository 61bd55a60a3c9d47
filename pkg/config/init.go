package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

const sampleHeader = `# offlinekit configuration
#
# Every key can be overridden with an OFFLINEKIT_* environment variable:
#   OFFLINEKIT_LOGGING_LEVEL=DEBUG
#   OFFLINEKIT_TRANSPORT_MAPBOX_ACCESS_TOKEN=pk.xxx
#
# Sizes take units ("50MiB"), durations Go syntax ("30s").

`

// ErrConfigExists is returned by WriteSample when the target exists and
// force is not set.
var ErrConfigExists = errors.New("configuration file already exists")

// Sample renders the default configuration for the given store type. An
// empty storeType keeps the default badger store.
func Sample(storeType string) ([]byte, error) {
	cfg := GetDefaultConfig()
	if storeType != "" && storeType != cfg.Store.Type {
		switch storeType {
		case StoreTypeMemory, StoreTypeBadger, StoreTypeSQLite, StoreTypePostgres:
		default:
			return nil, fmt.Errorf("unknown store type %q", storeType)
		}
		cfg.Store = StoreConfig{Type: storeType, HighWaterMark: cfg.Store.HighWaterMark}
		applyStoreDefaults(&cfg.Store)
		if storeType == StoreTypePostgres {
			cfg.Store.Postgres.Host = "localhost"
			cfg.Store.Postgres.Database = "offlinekit"
			cfg.Store.Postgres.User = "offlinekit"
		}
	}

	body, err := yaml.Marshal(cfg)
	if err != nil {
		return nil, fmt.Errorf("marshal config: %w", err)
	}
	return append([]byte(sampleHeader), body...), nil
}

// WriteSample writes Sample(storeType) to path, or to the default location
// when path is empty, and returns the path written.
func WriteSample(path, storeType string, force bool) (string, error) {
	if path == "" {
		path = GetDefaultConfigPath()
	}
	if _, err := os.Stat(path); err == nil && !force {
		return "", fmt.Errorf("%w: %s (use --force to overwrite)", ErrConfigExists, path)
	}

	data, err := Sample(storeType)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("create config directory: %w", err)
	}
	// The file may end up holding credentials.
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return "", fmt.Errorf("write config file: %w", err)
	}
	return path, nil
}
