package tileset

import (
	"encoding/json"
	"fmt"
)

// Zoom limits applied when a TileJSON omits them.
const (
	DefaultMinZoom = 0
	DefaultMaxZoom = 22
)

// TileJSON is the subset of a TileJSON document needed to enumerate tiles.
type TileJSON struct {
	Tiles   []string `json:"tiles"`
	MinZoom float64  `json:"minzoom"`
	MaxZoom float64  `json:"maxzoom"`
	Scheme  string   `json:"scheme"`
}

// ParseTileJSON decodes a TileJSON document.
func ParseTileJSON(data []byte) (*TileJSON, error) {
	var doc struct {
		Tiles   []string `json:"tiles"`
		MinZoom *float64 `json:"minzoom"`
		MaxZoom *float64 `json:"maxzoom"`
		Scheme  string   `json:"scheme"`
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("invalid tilejson: %w", err)
	}
	if len(doc.Tiles) == 0 {
		return nil, fmt.Errorf("tilejson has no tile urls")
	}
	tj := &TileJSON{
		Tiles:   doc.Tiles,
		MinZoom: DefaultMinZoom,
		MaxZoom: DefaultMaxZoom,
		Scheme:  doc.Scheme,
	}
	if doc.MinZoom != nil {
		tj.MinZoom = *doc.MinZoom
	}
	if doc.MaxZoom != nil {
		tj.MaxZoom = *doc.MaxZoom
	}
	return tj, nil
}

// TileJSONOf builds the TileJSON equivalent of a source that lists its tile
// templates inline.
func TileJSONOf(src Source) *TileJSON {
	tj := &TileJSON{
		Tiles:   src.Tiles,
		MinZoom: DefaultMinZoom,
		MaxZoom: DefaultMaxZoom,
		Scheme:  src.Scheme,
	}
	if src.MinZoom != nil {
		tj.MinZoom = *src.MinZoom
	}
	if src.MaxZoom != nil {
		tj.MaxZoom = *src.MaxZoom
	}
	return tj
}
