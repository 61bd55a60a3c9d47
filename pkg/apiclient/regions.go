package apiclient

import (
	"net/http"
	"time"

	"github.com/marmos91/offlinekit/pkg/region"
)

// Region is an offline region as reported by the API.
type Region struct {
	ID         int64             `json:"id"`
	Definition region.Definition `json:"definition"`
	Metadata   []byte            `json:"metadata,omitempty"`
	CreatedAt  time.Time         `json:"created_at"`
	State      string            `json:"state"`
	Status     *region.Status    `json:"status,omitempty"`
}

// Status is a region status snapshot.
type Status struct {
	region.Status
	State    string `json:"state"`
	Complete bool   `json:"complete"`
}

// CreateRegionRequest is the request to create a region.
type CreateRegionRequest struct {
	Definition region.Definition `json:"definition"`
	Metadata   []byte            `json:"metadata,omitempty"`
	Activate   bool              `json:"activate,omitempty"`
}

// ListRegions returns all regions ordered by id.
func (c *Client) ListRegions() ([]Region, error) {
	regions, err := get[[]Region](c, apiPrefix+"/regions")
	if err != nil {
		return nil, err
	}
	return *regions, nil
}

// GetRegion returns a region by id.
func (c *Client) GetRegion(id int64) (*Region, error) {
	return get[Region](c, regionPath(id, ""))
}

// CreateRegion creates a region.
func (c *Client) CreateRegion(req *CreateRegionRequest) (*Region, error) {
	return query[Region](c, http.MethodPost, apiPrefix+"/regions", req)
}

// RegionStatus returns the latest status snapshot of a region.
func (c *Client) RegionStatus(id int64) (*Status, error) {
	return get[Status](c, regionPath(id, "status"))
}

// SetDownloadState activates or pauses a region.
func (c *Client) SetDownloadState(id int64, state region.DownloadState) (*Region, error) {
	return query[Region](c, http.MethodPut, regionPath(id, "state"),
		map[string]string{"state": state.String()})
}

// UpdateMetadata replaces the client metadata of a region.
func (c *Client) UpdateMetadata(id int64, metadata []byte) (*Region, error) {
	return query[Region](c, http.MethodPut, regionPath(id, "metadata"),
		map[string][]byte{"metadata": metadata})
}

// DeleteRegion deletes a region. The server may answer before the deletion
// finishes if it takes longer than the request timeout.
func (c *Client) DeleteRegion(id int64) error {
	return c.send(http.MethodDelete, regionPath(id, ""), nil)
}
