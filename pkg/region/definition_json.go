package region

import (
	"encoding/json"
	"math"
)

// definitionJSON encodes an unbounded max zoom as null, since JSON has no
// representation for +Inf.
type definitionJSON struct {
	Bounds            Bounds   `json:"bounds"`
	MinZoom           float64  `json:"min_zoom"`
	MaxZoom           *float64 `json:"max_zoom"`
	StyleURL          string   `json:"style_url"`
	PixelRatio        float32  `json:"pixel_ratio"`
	IncludeIdeographs bool     `json:"include_ideographs"`
}

// MarshalJSON implements json.Marshaler.
func (d Definition) MarshalJSON() ([]byte, error) {
	out := definitionJSON{
		Bounds:            d.Bounds,
		MinZoom:           d.MinZoom,
		StyleURL:          d.StyleURL,
		PixelRatio:        d.PixelRatio,
		IncludeIdeographs: d.IncludeIdeographs,
	}
	if !math.IsInf(d.MaxZoom, 1) {
		mz := d.MaxZoom
		out.MaxZoom = &mz
	}
	return json.Marshal(out)
}

// UnmarshalJSON implements json.Unmarshaler. A missing or null max_zoom
// decodes to +Inf and a missing pixel_ratio to 1.
func (d *Definition) UnmarshalJSON(data []byte) error {
	var in definitionJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	*d = Definition{
		Bounds:            in.Bounds,
		MinZoom:           in.MinZoom,
		MaxZoom:           math.Inf(1),
		StyleURL:          in.StyleURL,
		PixelRatio:        in.PixelRatio,
		IncludeIdeographs: in.IncludeIdeographs,
	}
	if in.MaxZoom != nil {
		d.MaxZoom = *in.MaxZoom
	}
	if d.PixelRatio == 0 {
		d.PixelRatio = 1
	}
	return nil
}
