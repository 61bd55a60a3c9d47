package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"reflect"
	"strings"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/marmos91/offlinekit/pkg/download"
)

const (
	appName   = "offlinekit"
	envPrefix = "OFFLINEKIT"
)

// Load reads the configuration at configPath, or at the default location
// when configPath is empty, then applies OFFLINEKIT_* overrides and
// defaults and validates the result.
//
// A missing file is not an error: the defaults, with environment
// overrides, are used instead. YAML and TOML files are accepted.
func Load(configPath string) (*Config, error) {
	v := newViper(configPath)

	if err := v.ReadInConfig(); err != nil && !isNotFound(err) {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, viper.DecodeHook(decodeHook())); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	ApplyDefaults(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return &cfg, nil
}

// MustLoad is Load for the daemon: the file has to exist, and the error
// explains how to create it.
func MustLoad(configPath string) (*Config, error) {
	hint := "  offlinekit init"
	if configPath == "" {
		configPath = GetDefaultConfigPath()
	} else {
		hint += " --config " + configPath
	}

	if _, err := os.Stat(configPath); errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("configuration file not found: %s\n\nCreate one with:\n%s", configPath, hint)
	}

	cfg, err := Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return cfg, nil
}

// SaveConfig writes cfg as YAML to path. The file is private to the owner
// since it may hold passwords and access tokens.
func SaveConfig(cfg *Config, path string) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

func newViper(configPath string) *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	// AutomaticEnv only covers keys viper already knows about; binding every
	// key makes overrides work without a file.
	bindEnv(v, reflect.TypeOf(Config{}), "")

	// An explicit 0 blocks Mapbox tiles, so this default cannot wait for
	// ApplyDefaults.
	v.SetDefault("download.max_tile_count", download.DefaultMaxTileCount)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.AddConfigPath(configDir())
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}
	return v
}

// bindEnv binds the env variable of every leaf key of t.
func bindEnv(v *viper.Viper, t reflect.Type, prefix string) {
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		name, _, _ := strings.Cut(f.Tag.Get("mapstructure"), ",")
		if name == "" || name == "-" {
			continue
		}
		key := name
		if prefix != "" {
			key = prefix + "." + name
		}

		ft := f.Type
		if ft.Kind() == reflect.Pointer {
			ft = ft.Elem()
		}
		if ft.Kind() == reflect.Struct {
			bindEnv(v, ft, key)
			continue
		}
		_ = v.BindEnv(key)
	}
}

func isNotFound(err error) bool {
	var notFound viper.ConfigFileNotFoundError
	return errors.As(err, &notFound) || errors.Is(err, fs.ErrNotExist)
}

// decodeHook parses sizes through bytesize.ByteSize's UnmarshalText,
// durations in Go syntax and comma-separated lists from the environment.
// Plain numbers decode natively.
func decodeHook() mapstructure.DecodeHookFunc {
	return mapstructure.ComposeDecodeHookFunc(
		mapstructure.TextUnmarshallerHookFunc(),
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	)
}

// xdgDir returns $<env>/offlinekit, or ~/<fallback>/offlinekit. Without a
// home directory it falls back to the working directory.
func xdgDir(env, fallback string) string {
	if base := os.Getenv(env); base != "" {
		return filepath.Join(base, appName)
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, fallback, appName)
}

func configDir() string {
	return xdgDir("XDG_CONFIG_HOME", ".config")
}

func dataDir() string {
	return xdgDir("XDG_DATA_HOME", filepath.Join(".local", "share"))
}

// GetDefaultConfigPath returns $XDG_CONFIG_HOME/offlinekit/config.yaml.
func GetDefaultConfigPath() string {
	return filepath.Join(configDir(), "config.yaml")
}
