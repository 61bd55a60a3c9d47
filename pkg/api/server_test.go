package api

import (
	"context"
	"net/http"
	"testing"
	"time"
)

func TestServer_ServesHealthUntilCancelled(t *testing.T) {
	mgr, _ := newTestManager(t)

	srv := NewServer(Config{}, mgr)
	// Any free port.
	srv.HTTPServer().Addr = "127.0.0.1:0"
	if err := srv.Listen(); err != nil {
		t.Fatalf("Listen() = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Start(ctx) }()

	resp, err := http.Get("http://" + srv.Addr() + "/health")
	if err != nil {
		t.Fatalf("GET /health: %v", err)
	}
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q", ct)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Start() after cancel = %v, want nil", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}

func TestNewServer_Defaults(t *testing.T) {
	srv := NewServer(Config{}, nil)

	if got := srv.Addr(); got != "127.0.0.1:8080" {
		t.Errorf("Addr() = %q, want 127.0.0.1:8080", got)
	}
	hs := srv.HTTPServer()
	if hs.ReadTimeout != DefaultReadTimeout || hs.WriteTimeout != DefaultWriteTimeout || hs.IdleTimeout != DefaultIdleTimeout {
		t.Errorf("timeouts = %v/%v/%v", hs.ReadTimeout, hs.WriteTimeout, hs.IdleTimeout)
	}
}

func TestConfig(t *testing.T) {
	var cfg Config
	if !cfg.IsEnabled() {
		t.Error("unset Enabled should mean enabled")
	}
	off := false
	cfg.Enabled = &off
	if cfg.IsEnabled() {
		t.Error("Enabled=false should disable the API")
	}

	cfg = Config{Address: "::1", Port: 9000}
	if got := cfg.ListenAddr(); got != "[::1]:9000" {
		t.Errorf("ListenAddr() = %q", got)
	}

	cfg = Config{Port: 70000}
	cfg.ApplyDefaults()
	if cfg.Port != 70000 {
		t.Error("ApplyDefaults must not clamp an invalid port")
	}
}
