package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestWriteSample_DefaultLocation(t *testing.T) {
	tmpDir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", tmpDir)
	t.Setenv("XDG_DATA_HOME", filepath.Join(tmpDir, "data"))

	path, err := WriteSample("", "", false)
	if err != nil {
		t.Fatalf("WriteSample() error = %v", err)
	}
	if want := filepath.Join(tmpDir, "offlinekit", "config.yaml"); path != want {
		t.Errorf("path = %q, want %q", path, want)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0o600 {
		t.Errorf("mode = %o, want 600", perm)
	}

	content, _ := os.ReadFile(path)
	for _, section := range []string{"# offlinekit configuration", "logging:", "store:", "download:", "transport:", "api:"} {
		if !strings.Contains(string(content), section) {
			t.Errorf("sample is missing %q", section)
		}
	}
}

func TestWriteSample_Exists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("garbage"), 0o600); err != nil {
		t.Fatal(err)
	}

	_, err := WriteSample(path, "", false)
	if !errors.Is(err, ErrConfigExists) {
		t.Fatalf("WriteSample() error = %v, want ErrConfigExists", err)
	}

	if _, err := WriteSample(path, "", true); err != nil {
		t.Fatalf("WriteSample(force) error = %v", err)
	}
	content, _ := os.ReadFile(path)
	if strings.Contains(string(content), "garbage") {
		t.Error("forced write kept the old content")
	}
}

func TestSample_LoadsForEveryStore(t *testing.T) {
	tmpDir := t.TempDir()
	t.Setenv("XDG_DATA_HOME", filepath.Join(tmpDir, "data"))

	for _, store := range []string{StoreTypeMemory, StoreTypeBadger, StoreTypeSQLite, StoreTypePostgres} {
		t.Run(store, func(t *testing.T) {
			path := filepath.Join(tmpDir, store+".yaml")
			if _, err := WriteSample(path, store, false); err != nil {
				t.Fatalf("WriteSample() error = %v", err)
			}

			cfg, err := Load(path)
			if err != nil {
				t.Fatalf("sample does not load: %v", err)
			}
			if cfg.Store.Type != store {
				t.Errorf("store type = %q, want %q", cfg.Store.Type, store)
			}
			if cfg.Download.MaxTileCount == 0 {
				t.Error("sample lost the tile limit")
			}
		})
	}
}

func TestSample_UnknownStore(t *testing.T) {
	if _, err := Sample("etcd"); err == nil {
		t.Fatal("Sample(etcd) should fail")
	}
}
