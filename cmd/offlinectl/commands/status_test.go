package commands

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/marmos91/offlinekit/pkg/apiclient"
)

func TestProbeServer(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/health/ready":
			_, _ = w.Write([]byte(`{"status":"healthy"}`))
		case "/api/v1/store":
			_, _ = w.Write([]byte(`{"size":2048,"high_water_mark":4096}`))
		case "/api/v1/limits/tiles":
			_, _ = w.Write([]byte(`{"limit":6000,"used":12}`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	got := probeServer(apiclient.New(srv.URL, apiclient.WithRetries(0)), srv.URL)

	want := ServerStatus{Server: srv.URL, Healthy: true, StoreSize: 2048, HighWaterMark: 4096, TileLimit: 6000, TilesUsed: 12}
	if got != want {
		t.Errorf("probeServer() = %+v, want %+v", got, want)
	}
	if rows := got.Rows(); len(rows) != 5 {
		t.Errorf("Rows() = %d rows, want 5", len(rows))
	}
}

func TestProbeServer_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	got := probeServer(apiclient.New(url, apiclient.WithRetries(0)), url)
	if got.Healthy || got.Error == "" {
		t.Errorf("probeServer() = %+v, want an unhealthy report", got)
	}
	if rows := got.Rows(); rows[len(rows)-1][0] != "Error" {
		t.Errorf("last row = %v, want the error", rows[len(rows)-1])
	}
}
