package handlers

import (
	"net/http"
	"time"

	"github.com/marmos91/offlinekit/pkg/offline"
	"github.com/marmos91/offlinekit/pkg/region"
)

// RegionHandler handles offline region API endpoints.
type RegionHandler struct {
	mgr  *offline.Manager
	wait time.Duration
}

// DefaultCallbackWait bounds how long Status and Delete wait for the
// manager's callback.
const DefaultCallbackWait = 30 * time.Second

// NewRegionHandler creates a new RegionHandler. Status and Delete answer
// on their own once wait passes; a non-positive wait uses
// DefaultCallbackWait.
func NewRegionHandler(mgr *offline.Manager, wait time.Duration) *RegionHandler {
	if wait <= 0 {
		wait = DefaultCallbackWait
	}
	return &RegionHandler{mgr: mgr, wait: wait}
}

// CreateRegionRequest is the request body for POST /api/v1/regions.
type CreateRegionRequest struct {
	Definition region.Definition `json:"definition"`
	Metadata   []byte            `json:"metadata,omitempty"`
	// Activate starts downloading right after creation.
	Activate bool `json:"activate,omitempty"`
}

// SetStateRequest is the request body for PUT /api/v1/regions/{id}/state.
type SetStateRequest struct {
	State string `json:"state"`
}

// UpdateMetadataRequest is the request body for PUT /api/v1/regions/{id}/metadata.
type UpdateMetadataRequest struct {
	Metadata []byte `json:"metadata"`
}

// RegionResponse is the response body for region endpoints.
type RegionResponse struct {
	ID         int64             `json:"id"`
	Definition region.Definition `json:"definition"`
	Metadata   []byte            `json:"metadata,omitempty"`
	CreatedAt  time.Time         `json:"created_at"`
	State      string            `json:"state"`
	Status     *region.Status    `json:"status,omitempty"`
}

// StatusResponse is the response body for GET /api/v1/regions/{id}/status.
type StatusResponse struct {
	region.Status
	State    string `json:"state"`
	Complete bool   `json:"complete"`
}

// Create handles POST /api/v1/regions.
func (h *RegionHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateRegionRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}

	rg, err := h.mgr.CreateRegion(r.Context(), req.Definition, req.Metadata)
	if err != nil {
		writeError(w, err, "Failed to create region")
		return
	}

	if req.Activate {
		if err := rg.SetDownloadState(region.Active); err != nil {
			writeError(w, err, "Failed to activate region")
			return
		}
	}

	writeJSON(w, http.StatusCreated, regionToResponse(rg))
}

// List handles GET /api/v1/regions.
func (h *RegionHandler) List(w http.ResponseWriter, r *http.Request) {
	regions := h.mgr.ListRegions()

	response := make([]RegionResponse, len(regions))
	for i, rg := range regions {
		response[i] = regionToResponse(rg)
	}

	writeJSON(w, http.StatusOK, response)
}

// Get handles GET /api/v1/regions/{id}.
func (h *RegionHandler) Get(w http.ResponseWriter, r *http.Request) {
	rg, ok := regionFromPath(w, r, h.mgr)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, regionToResponse(rg))
}

// Status handles GET /api/v1/regions/{id}/status.
//
// The snapshot is delivered through the manager's dispatcher, so it is
// ordered after every observer event already queued for the region.
func (h *RegionHandler) Status(w http.ResponseWriter, r *http.Request) {
	rg, ok := regionFromPath(w, r, h.mgr)
	if !ok {
		return
	}

	type result struct {
		status region.Status
		err    string
	}
	done := make(chan result, 1)
	rg.GetStatus(offline.StatusFuncs{
		Status: func(st region.Status) { done <- result{status: st} },
		Error:  func(msg string) { done <- result{err: msg} },
	})

	timer := time.NewTimer(h.wait)
	defer timer.Stop()

	select {
	case res := <-done:
		if res.err != "" {
			NotFound(w, res.err)
			return
		}
		writeJSON(w, http.StatusOK, StatusResponse{
			Status:   res.status,
			State:    res.status.DownloadState.String(),
			Complete: res.status.IsComplete(),
		})
	case <-timer.C:
		newProblem(http.StatusServiceUnavailable, CodeTimeout, "Timed out waiting for region status").Write(w)
	case <-r.Context().Done():
	}
}

// SetState handles PUT /api/v1/regions/{id}/state.
func (h *RegionHandler) SetState(w http.ResponseWriter, r *http.Request) {
	rg, ok := regionFromPath(w, r, h.mgr)
	if !ok {
		return
	}

	var req SetStateRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}

	state, err := region.ParseDownloadState(req.State)
	if err != nil {
		BadRequest(w, err.Error())
		return
	}

	if err := rg.SetDownloadState(state); err != nil {
		writeError(w, err, "Failed to change download state")
		return
	}

	writeJSON(w, http.StatusOK, regionToResponse(rg))
}

// UpdateMetadata handles PUT /api/v1/regions/{id}/metadata.
func (h *RegionHandler) UpdateMetadata(w http.ResponseWriter, r *http.Request) {
	rg, ok := regionFromPath(w, r, h.mgr)
	if !ok {
		return
	}

	var req UpdateMetadataRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}

	if err := rg.UpdateMetadata(r.Context(), req.Metadata); err != nil {
		writeError(w, err, "Failed to update metadata")
		return
	}

	writeJSON(w, http.StatusOK, regionToResponse(rg))
}

// Delete handles DELETE /api/v1/regions/{id}.
//
// The handler waits for the deletion to finish. When the handler's wait
// passes first it answers 202 Accepted and the deletion carries on.
func (h *RegionHandler) Delete(w http.ResponseWriter, r *http.Request) {
	rg, ok := regionFromPath(w, r, h.mgr)
	if !ok {
		return
	}

	done := make(chan string, 1)
	rg.Delete(offline.DeleteFuncs{
		Deleted: func() { done <- "" },
		Error:   func(msg string) { done <- msg },
	})

	timer := time.NewTimer(h.wait)
	defer timer.Stop()

	select {
	case msg := <-done:
		if msg != "" {
			newProblem(http.StatusConflict, CodeDeleteFailed, msg).Write(w)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	case <-timer.C:
		writeJSON(w, http.StatusAccepted, map[string]any{
			"id":     rg.ID(),
			"status": "deleting",
		})
	case <-r.Context().Done():
	}
}

func regionToResponse(rg *offline.Region) RegionResponse {
	resp := RegionResponse{
		ID:         rg.ID(),
		Definition: rg.Definition(),
		Metadata:   rg.Metadata(),
		CreatedAt:  rg.CreatedAt(),
		State:      rg.DownloadState().String(),
	}
	if st, err := rg.Status(); err == nil {
		resp.Status = &st
	}
	return resp
}
