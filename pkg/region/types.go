package region

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"
)

// ErrRegionNotFound is returned for operations on a region that does not exist
// or whose deletion has already started.
var ErrRegionNotFound = errors.New("region not found")

// ErrInvalidDefinition is returned when a region definition fails validation.
var ErrInvalidDefinition = errors.New("invalid region definition")

// MaxLatitude is the northernmost latitude covered by Web Mercator tiles.
const MaxLatitude = 85.051128779806604

// DownloadState controls whether a region is downloading.
type DownloadState int

const (
	// Inactive regions issue no new requests. Regions are created Inactive.
	Inactive DownloadState = 0
	// Active regions enumerate and fetch missing resources.
	Active DownloadState = 1
)

// String returns the lowercase state name.
func (s DownloadState) String() string {
	switch s {
	case Inactive:
		return "inactive"
	case Active:
		return "active"
	default:
		return fmt.Sprintf("DownloadState(%d)", int(s))
	}
}

// ParseDownloadState parses "active"/"inactive" (case-insensitive) or the
// numeric values 0 and 1.
func ParseDownloadState(s string) (DownloadState, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "inactive", "0", "paused":
		return Inactive, nil
	case "active", "1":
		return Active, nil
	default:
		return Inactive, fmt.Errorf("unknown download state %q", s)
	}
}

// Bounds is a geographic bounding box in degrees.
type Bounds struct {
	North float64 `json:"north"`
	South float64 `json:"south"`
	East  float64 `json:"east"`
	West  float64 `json:"west"`
}

// Definition describes what an offline region covers. It is immutable once
// the region has been created.
type Definition struct {
	Bounds     Bounds  `json:"bounds"`
	MinZoom    float64 `json:"min_zoom"`
	MaxZoom    float64 `json:"max_zoom"` // +Inf means the style sources' maximum
	StyleURL   string  `json:"style_url"`
	PixelRatio float32 `json:"pixel_ratio"`

	// IncludeIdeographs downloads CJK glyph ranges. When false those glyphs
	// are expected to be rendered from a local font.
	IncludeIdeographs bool `json:"include_ideographs"`
}

// Validate checks the definition for values that cannot produce a tile
// pyramid. The returned error wraps ErrInvalidDefinition.
func (d Definition) Validate() error {
	b := d.Bounds
	switch {
	case strings.TrimSpace(d.StyleURL) == "":
		return fmt.Errorf("%w: style url is required", ErrInvalidDefinition)
	case math.IsNaN(b.North) || math.IsNaN(b.South) || math.IsNaN(b.East) || math.IsNaN(b.West):
		return fmt.Errorf("%w: bounds contain NaN", ErrInvalidDefinition)
	case b.North > MaxLatitude || b.South < -MaxLatitude:
		return fmt.Errorf("%w: latitude outside [-%.6f, %.6f]", ErrInvalidDefinition, MaxLatitude, MaxLatitude)
	case b.South > b.North:
		return fmt.Errorf("%w: south %.6f is above north %.6f", ErrInvalidDefinition, b.South, b.North)
	case b.West < -180 || b.East > 180 || b.West > b.East:
		return fmt.Errorf("%w: longitude range [%.6f, %.6f] is invalid", ErrInvalidDefinition, b.West, b.East)
	case d.MinZoom < 0 || math.IsNaN(d.MinZoom) || math.IsNaN(d.MaxZoom):
		return fmt.Errorf("%w: min zoom must be >= 0", ErrInvalidDefinition)
	case d.MaxZoom < d.MinZoom:
		return fmt.Errorf("%w: max zoom %.2f is below min zoom %.2f", ErrInvalidDefinition, d.MaxZoom, d.MinZoom)
	case d.PixelRatio <= 0:
		return fmt.Errorf("%w: pixel ratio must be positive", ErrInvalidDefinition)
	}
	return nil
}

// Record is the persisted form of a region: identity, definition and the
// client metadata blob.
type Record struct {
	ID         int64      `json:"id"`
	Definition Definition `json:"definition"`
	Metadata   []byte     `json:"metadata,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
}

// Status is a snapshot of a region's download progress.
type Status struct {
	DownloadState DownloadState `json:"download_state"`

	CompletedResourceCount uint64 `json:"completed_resource_count"`
	CompletedResourceSize  uint64 `json:"completed_resource_size"`
	CompletedTileCount     uint64 `json:"completed_tile_count"`
	CompletedTileSize      uint64 `json:"completed_tile_size"`

	// RequiredResourceCount grows while the style and its sources are
	// walked. It is final once RequiredResourceCountIsPrecise is set.
	RequiredResourceCount          uint64 `json:"required_resource_count"`
	RequiredResourceCountIsPrecise bool   `json:"required_resource_count_is_precise"`

	ExpiredResourceCount   uint64 `json:"expired_resource_count"`
	TileCountLimitExceeded bool   `json:"tile_count_limit_exceeded"`
}

// IsComplete reports whether every required resource has been downloaded.
func (s Status) IsComplete() bool {
	return s.RequiredResourceCountIsPrecise && s.CompletedResourceCount == s.RequiredResourceCount
}

// Reason classifies a resource fetch outcome.
type Reason int

const (
	ReasonSuccess    Reason = 1
	ReasonNotFound   Reason = 2
	ReasonServer     Reason = 3
	ReasonConnection Reason = 4
	ReasonOther      Reason = 6
)

// String returns the reason name.
func (r Reason) String() string {
	switch r {
	case ReasonSuccess:
		return "success"
	case ReasonNotFound:
		return "not_found"
	case ReasonServer:
		return "server"
	case ReasonConnection:
		return "connection"
	case ReasonOther:
		return "other"
	default:
		return fmt.Sprintf("Reason(%d)", int(r))
	}
}

// Transient reports whether a failure with this reason is retried.
func (r Reason) Transient() bool {
	return r == ReasonServer || r == ReasonConnection || r == ReasonOther
}

// Error is a resource download error reported to a region's observer.
// It does not stop the region from downloading other resources.
type Error struct {
	Reason  Reason `json:"reason"`
	Message string `json:"message"`
}

// Error implements the error interface.
func (e Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Reason, e.Message)
}
