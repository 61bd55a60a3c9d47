package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/marmos91/offlinekit/pkg/download"
	"github.com/marmos91/offlinekit/pkg/offline"
	"github.com/marmos91/offlinekit/pkg/resource/memory"
	"github.com/marmos91/offlinekit/pkg/transport/transporttest"
)

// probe runs fn against a recorder and decodes the envelope, filling data
// from the "data" member when it is set.
func probe(t *testing.T, fn http.HandlerFunc, path string, data any) (int, Response) {
	t.Helper()
	w := httptest.NewRecorder()
	fn(w, httptest.NewRequest(http.MethodGet, path, nil))

	var raw struct {
		Response
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &raw); err != nil {
		t.Fatalf("%s: decode body %q: %v", path, w.Body.String(), err)
	}
	if data != nil && len(raw.Data) > 0 {
		if err := json.Unmarshal(raw.Data, data); err != nil {
			t.Fatalf("%s: decode data: %v", path, err)
		}
	}
	return w.Code, raw.Response
}

func openManager(t *testing.T) *offline.Manager {
	t.Helper()
	ctx := context.Background()
	backend := memory.New()
	t.Cleanup(func() { _ = backend.Close() })

	cfg := offline.Config{Download: download.DefaultConfig()}
	mgr, err := offline.Open(ctx, backend, transporttest.New(), cfg)
	if err != nil {
		t.Fatalf("offline.Open() error = %v", err)
	}
	t.Cleanup(func() { _ = mgr.Close(ctx) })
	return mgr
}

func TestLiveness(t *testing.T) {
	var live LivenessResponse
	code, resp := probe(t, NewHealthHandler(nil).Liveness, "/health", &live)

	if code != http.StatusOK || resp.Status != "healthy" {
		t.Errorf("GET /health = %d %q, want 200 healthy", code, resp.Status)
	}
	if live.Service != "offlinekit" || live.Version == "" {
		t.Errorf("payload = %+v", live)
	}
}

func TestReadiness(t *testing.T) {
	t.Run("without manager", func(t *testing.T) {
		code, resp := probe(t, NewHealthHandler(nil).Readiness, "/health/ready", nil)

		if code != http.StatusServiceUnavailable || resp.Status != "unhealthy" {
			t.Errorf("GET /health/ready = %d %q, want 503 unhealthy", code, resp.Status)
		}
		if resp.Error != errNoManager.Error() {
			t.Errorf("error = %q", resp.Error)
		}
	})

	t.Run("with manager", func(t *testing.T) {
		mgr := openManager(t)
		mgr.SetMaxTileCountLimit(42)

		var ready ReadinessResponse
		code, resp := probe(t, NewHealthHandler(mgr).Readiness, "/health/ready", &ready)

		if code != http.StatusOK || resp.Status != "healthy" {
			t.Fatalf("GET /health/ready = %d %q, want 200 healthy", code, resp.Status)
		}
		if ready.Regions != 0 || ready.StoreSize != 0 || ready.TileLimit != 42 || ready.TilesUsed != 0 {
			t.Errorf("payload = %+v", ready)
		}
		if ready.Latency == "" {
			t.Error("latency missing")
		}
	})
}
