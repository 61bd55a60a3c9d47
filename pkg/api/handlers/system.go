package handlers

import (
	"net/http"

	"github.com/marmos91/offlinekit/pkg/offline"
)

// SystemHandler handles the process-wide settings of the offline manager.
type SystemHandler struct {
	mgr *offline.Manager
}

// NewSystemHandler creates a new SystemHandler.
func NewSystemHandler(mgr *offline.Manager) *SystemHandler {
	return &SystemHandler{mgr: mgr}
}

// TileLimitResponse is the response body for the tile limit endpoints.
type TileLimitResponse struct {
	Limit uint64 `json:"limit"`
	Used  uint64 `json:"used"`
}

// SetTileLimitRequest is the request body for PUT /api/v1/limits/tiles.
type SetTileLimitRequest struct {
	Limit *uint64 `json:"limit"`
}

// StoreResponse is the response body for GET /api/v1/store.
type StoreResponse struct {
	Size          int64 `json:"size"`
	HighWaterMark int64 `json:"high_water_mark"`
}

// TileLimit handles GET /api/v1/limits/tiles.
func (h *SystemHandler) TileLimit(w http.ResponseWriter, r *http.Request) {
	limit, used := h.mgr.TileCountLimit()
	writeJSON(w, http.StatusOK, TileLimitResponse{Limit: limit, Used: used})
}

// SetTileLimit handles PUT /api/v1/limits/tiles.
func (h *SystemHandler) SetTileLimit(w http.ResponseWriter, r *http.Request) {
	var req SetTileLimitRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}
	if req.Limit == nil {
		BadRequest(w, "Limit is required")
		return
	}

	h.mgr.SetMaxTileCountLimit(*req.Limit)

	limit, used := h.mgr.TileCountLimit()
	writeJSON(w, http.StatusOK, TileLimitResponse{Limit: limit, Used: used})
}

// NetworkReachable handles POST /api/v1/network/reachable.
func (h *SystemHandler) NetworkReachable(w http.ResponseWriter, r *http.Request) {
	h.mgr.NetworkReachable()
	w.WriteHeader(http.StatusNoContent)
}

// Store handles GET /api/v1/store.
func (h *SystemHandler) Store(w http.ResponseWriter, r *http.Request) {
	size, hwm, err := h.mgr.StoreSize(r.Context())
	if err != nil {
		writeError(w, err, "Failed to read store size")
		return
	}
	writeJSON(w, http.StatusOK, StoreResponse{Size: size, HighWaterMark: hwm})
}
