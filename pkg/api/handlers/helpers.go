package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/marmos91/offlinekit/pkg/offline"
)

// decodeJSONBody decodes the request body into v, answering 400 on failure.
func decodeJSONBody(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		BadRequest(w, "Invalid request body")
		return false
	}
	return true
}

// parseRegionID reads a positive region id from the {id} URL parameter.
func parseRegionID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("region ID must be a positive integer")
	}
	return id, nil
}

// regionFromPath resolves the {id} URL parameter to a live region, answering
// 400 or 404 when it cannot.
func regionFromPath(w http.ResponseWriter, r *http.Request, mgr *offline.Manager) (*offline.Region, bool) {
	id, err := parseRegionID(r)
	if err != nil {
		BadRequest(w, "Region ID must be a positive integer")
		return nil, false
	}

	rg, err := mgr.Region(id)
	if err != nil {
		NotFound(w, fmt.Sprintf("Region %d not found", id))
		return nil, false
	}
	return rg, true
}
