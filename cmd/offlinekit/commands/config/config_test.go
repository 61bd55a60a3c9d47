package config

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/marmos91/offlinekit/pkg/config"
)

func TestConfigWarnings(t *testing.T) {
	tests := []struct {
		name   string
		modify func(cfg *config.Config)
		want   string
	}{
		{
			name:   "missing mapbox token",
			modify: func(cfg *config.Config) { cfg.Transport.MapboxAccessToken = "" },
			want:   "Mapbox access token",
		},
		{
			name:   "memory store",
			modify: func(cfg *config.Config) { cfg.Store.Type = config.StoreTypeMemory },
			want:   "Memory store",
		},
		{
			name:   "zero tile limit",
			modify: func(cfg *config.Config) { cfg.Download.MaxTileCount = 0 },
			want:   "Tile count limit is 0",
		},
		{
			name: "api disabled",
			modify: func(cfg *config.Config) {
				disabled := false
				cfg.API.Enabled = &disabled
			},
			want: "Control API disabled",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.GetDefaultConfig()
			cfg.Transport.MapboxAccessToken = "pk.test"
			tt.modify(cfg)

			warnings := configWarnings(cfg)
			found := false
			for _, w := range warnings {
				if strings.Contains(w, tt.want) {
					found = true
				}
			}
			if !found {
				t.Errorf("configWarnings() = %v, want a warning containing %q", warnings, tt.want)
			}
		})
	}
}

func TestConfigWarnings_CleanConfig(t *testing.T) {
	cfg := config.GetDefaultConfig()
	cfg.Transport.MapboxAccessToken = "pk.test"
	cfg.Store.Type = config.StoreTypeBadger

	if warnings := configWarnings(cfg); len(warnings) != 0 {
		t.Errorf("Expected no warnings, got %v", warnings)
	}
}

func TestGenerateSchema(t *testing.T) {
	data, err := generateSchema()
	if err != nil {
		t.Fatalf("generateSchema() error = %v", err)
	}

	var schema struct {
		Title      string                     `json:"title"`
		Properties map[string]json.RawMessage `json:"properties"`
	}
	if err := json.Unmarshal(data, &schema); err != nil {
		t.Fatalf("Schema is not valid JSON: %v", err)
	}

	if schema.Title != "offlinekit Configuration" {
		t.Errorf("Expected title 'offlinekit Configuration', got %q", schema.Title)
	}
	for _, section := range []string{"logging", "store", "download", "transport", "api"} {
		if _, ok := schema.Properties[section]; !ok {
			t.Errorf("Expected schema property %q", section)
		}
	}
}

func TestGenerateSchema_StringTypes(t *testing.T) {
	data, err := generateSchema()
	if err != nil {
		t.Fatalf("generateSchema() error = %v", err)
	}
	out := string(data)

	for _, want := range []string{
		`"$id": "` + schemaID + `"`,
		`"oneOf"`,
		"Go duration",
		`"enum": [`,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("Schema is missing %s", want)
		}
	}
}

func TestRedact(t *testing.T) {
	cfg := config.GetDefaultConfig()
	cfg.Transport.MapboxAccessToken = "pk.secret"
	cfg.Store.Postgres.Password = "hunter2"
	cfg.Transport.S3.SecretAccessKey = ""

	got := redact(cfg)

	if got.Transport.MapboxAccessToken != redactedValue || got.Store.Postgres.Password != redactedValue {
		t.Errorf("Secrets not redacted: %+v %+v", got.Transport, got.Store.Postgres)
	}
	if got.Transport.S3.SecretAccessKey != "" {
		t.Errorf("Unset secret should stay empty, got %q", got.Transport.S3.SecretAccessKey)
	}
	if cfg.Transport.MapboxAccessToken != "pk.secret" {
		t.Error("redact must not modify its input")
	}
}
