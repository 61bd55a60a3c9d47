package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/marmos91/offlinekit/internal/buildinfo"
	"github.com/marmos91/offlinekit/pkg/offline"
)

// readinessTimeout bounds the store probe of /health/ready.
const readinessTimeout = 5 * time.Second

var errNoManager = errors.New("manager not initialized")

// HealthHandler serves the liveness and readiness probes.
type HealthHandler struct {
	mgr *offline.Manager
}

// NewHealthHandler returns probes for mgr. With a nil mgr the daemon is
// live but never ready.
func NewHealthHandler(mgr *offline.Manager) *HealthHandler {
	return &HealthHandler{mgr: mgr}
}

// LivenessResponse is the payload of GET /health.
type LivenessResponse struct {
	Service string `json:"service"`
	Version string `json:"version"`
}

// Liveness handles GET /health. It answers as long as the process serves
// HTTP.
func (h *HealthHandler) Liveness(w http.ResponseWriter, r *http.Request) {
	writeHealth(w, LivenessResponse{Service: "offlinekit", Version: buildinfo.Version}, nil)
}

// ReadinessResponse is the payload of a healthy GET /health/ready.
type ReadinessResponse struct {
	Regions       int    `json:"regions"`
	StoreSize     int64  `json:"store_size"`
	HighWaterMark int64  `json:"high_water_mark"`
	TileLimit     uint64 `json:"tile_limit"`
	TilesUsed     uint64 `json:"tiles_used"`
	Latency       string `json:"latency"`
}

// Readiness handles GET /health/ready. It fails with 503 without a manager
// or when the store cannot report its size in time.
func (h *HealthHandler) Readiness(w http.ResponseWriter, r *http.Request) {
	if h.mgr == nil {
		writeHealth(w, nil, errNoManager)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), readinessTimeout)
	defer cancel()

	start := time.Now()
	size, hwm, err := h.mgr.StoreSize(ctx)
	if err != nil {
		writeHealth(w, nil, err)
		return
	}
	limit, used := h.mgr.TileCountLimit()

	writeHealth(w, ReadinessResponse{
		Regions:       len(h.mgr.ListRegions()),
		StoreSize:     size,
		HighWaterMark: hwm,
		TileLimit:     limit,
		TilesUsed:     used,
		Latency:       time.Since(start).String(),
	}, nil)
}
