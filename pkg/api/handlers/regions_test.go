package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/marmos91/offlinekit/pkg/download"
	"github.com/marmos91/offlinekit/pkg/offline"
	"github.com/marmos91/offlinekit/pkg/region"
	"github.com/marmos91/offlinekit/pkg/resource/memory"
	"github.com/marmos91/offlinekit/pkg/transport/transporttest"
)

func withRegionID(req *http.Request, id int64) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add("id", strconv.FormatInt(id, 10))
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
}

// stalledRegion returns an active region whose first fetch never returns
// until the test ends, so its deletion cannot finish.
func stalledRegion(t *testing.T) (*offline.Manager, *offline.Region) {
	t.Helper()
	ctx := context.Background()
	backend := memory.New()
	t.Cleanup(func() { _ = backend.Close() })

	fetcher := transporttest.New()
	fetcher.Block()

	mgr, err := offline.Open(ctx, backend, fetcher, offline.Config{Download: download.DefaultConfig()})
	if err != nil {
		t.Fatalf("offline.Open() error = %v", err)
	}
	t.Cleanup(func() {
		fetcher.Unblock()
		_ = mgr.Close(ctx)
	})

	rg, err := mgr.CreateRegion(ctx, region.Definition{
		Bounds:     region.Bounds{North: 1, South: 0, East: 1, West: 0},
		MaxZoom:    1,
		StyleURL:   "https://example.com/style.json",
		PixelRatio: 1,
	}, nil)
	if err != nil {
		t.Fatalf("CreateRegion() error = %v", err)
	}
	if err := rg.SetDownloadState(region.Active); err != nil {
		t.Fatalf("SetDownloadState() error = %v", err)
	}

	deadline := time.Now().Add(5 * time.Second)
	for fetcher.Total() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("style fetch never started")
		}
		time.Sleep(time.Millisecond)
	}
	return mgr, rg
}

func TestDelete_AcceptedWhenWaitPasses(t *testing.T) {
	mgr, rg := stalledRegion(t)
	h := NewRegionHandler(mgr, 20*time.Millisecond)

	// The request has no deadline; the handler's own wait must end it.
	req := withRegionID(httptest.NewRequest(http.MethodDelete, "/api/v1/regions/1", nil), rg.ID())
	w := httptest.NewRecorder()

	done := make(chan struct{})
	go func() {
		h.Delete(w, req)
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("DELETE did not answer after its wait")
	}

	if w.Code != http.StatusAccepted {
		t.Errorf("DELETE = %d, want 202", w.Code)
	}
	if _, err := mgr.Region(rg.ID()); err == nil {
		t.Error("region should not be reachable while it is being deleted")
	}
}

func TestStatus_AnswersFromDispatcher(t *testing.T) {
	mgr, rg := stalledRegion(t)
	h := NewRegionHandler(mgr, 0)

	req := withRegionID(httptest.NewRequest(http.MethodGet, "/api/v1/regions/1/status", nil), rg.ID())
	w := httptest.NewRecorder()
	h.Status(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("GET status = %d, want 200: %s", w.Code, w.Body.String())
	}
	if h.wait != DefaultCallbackWait {
		t.Errorf("wait = %v, want %v", h.wait, DefaultCallbackWait)
	}
}
