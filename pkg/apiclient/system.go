package apiclient

import "net/http"

// TileLimit is the process-wide Mapbox tile count limit and its usage.
type TileLimit struct {
	Limit uint64 `json:"limit"`
	Used  uint64 `json:"used"`
}

// StoreUsage is the resource store size and its high-water mark.
type StoreUsage struct {
	Size          int64 `json:"size"`
	HighWaterMark int64 `json:"high_water_mark"`
}

// GetTileLimit returns the Mapbox tile count limit.
func (c *Client) GetTileLimit() (*TileLimit, error) {
	return get[TileLimit](c, apiPrefix+"/limits/tiles")
}

// SetTileLimit changes the Mapbox tile count limit.
func (c *Client) SetTileLimit(limit uint64) (*TileLimit, error) {
	return query[TileLimit](c, http.MethodPut, apiPrefix+"/limits/tiles", map[string]uint64{"limit": limit})
}

// NetworkReachable tells the server the network is back.
func (c *Client) NetworkReachable() error {
	return c.send(http.MethodPost, apiPrefix+"/network/reachable", nil)
}

// StoreUsage returns the resource store size.
func (c *Client) StoreUsage() (*StoreUsage, error) {
	return get[StoreUsage](c, apiPrefix+"/store")
}

// Health returns nil when the server answers its readiness probe.
func (c *Client) Health() error {
	return c.send(http.MethodGet, "/health/ready", nil)
}
