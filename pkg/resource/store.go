package resource

import (
	"context"
	"time"

	"github.com/marmos91/offlinekit/pkg/region"
)

// Store is the shared resource table.
//
// Implementations must make each method atomic for the resources it touches
// and must not serialize unrelated resources behind one lock.
type Store interface {
	// Get returns the resource with its payload, or ErrResourceNotFound.
	Get(ctx context.Context, key Key) (*Resource, error)

	// Put inserts or replaces a resource payload. The reference count of an
	// existing resource is kept; a new resource starts at zero.
	Put(ctx context.Context, res *Resource) error

	// Refresh updates the validity of a stored resource after a
	// not-modified revalidation.
	Refresh(ctx context.Context, key Key, expires, modified time.Time, etag string) error

	// AddReference records that regionID requires key and returns the new
	// count. A region is counted once per resource; repeated calls return the
	// current count unchanged. It also bumps the resource's last-requested
	// time. Returns ErrResourceNotFound if key is not stored.
	AddReference(ctx context.Context, regionID int64, key Key) (uint32, error)

	// ReleaseRegion drops every reference held by regionID and returns the
	// keys whose count reached zero.
	ReleaseRegion(ctx context.Context, regionID int64) ([]Key, error)

	// RegionResources lists the resources referenced by regionID.
	RegionResources(ctx context.Context, regionID int64) ([]Entry, error)

	// ReferencingRegions returns the ids of regions holding at least one
	// reference, ascending.
	ReferencingRegions(ctx context.Context) ([]int64, error)

	// Reclaimable lists resources with a zero reference count.
	Reclaimable(ctx context.Context) ([]Entry, error)

	// Remove deletes a zero-count resource and returns it. It returns
	// ErrResourceReferenced if the count is above zero and
	// ErrResourceNotFound if key is not stored.
	Remove(ctx context.Context, key Key) (Entry, error)

	// Size returns the sum of all stored payload sizes.
	Size(ctx context.Context) (int64, error)

	// MapboxTileCount returns the number of stored Mapbox tiles.
	MapboxTileCount(ctx context.Context) (uint64, error)

	Close() error
}

// Catalog persists region records.
type Catalog interface {
	// CreateRegion stores a new region and returns it with its assigned id.
	CreateRegion(ctx context.Context, def region.Definition, metadata []byte) (region.Record, error)

	// GetRegion returns the record for id or region.ErrRegionNotFound.
	GetRegion(ctx context.Context, id int64) (region.Record, error)

	// ListRegions returns all records ordered by id.
	ListRegions(ctx context.Context) ([]region.Record, error)

	// UpdateMetadata replaces the metadata blob of a region.
	UpdateMetadata(ctx context.Context, id int64, metadata []byte) error

	// DeleteRegion removes a region record.
	DeleteRegion(ctx context.Context, id int64) error
}

// Backend is a persistence substrate providing both the resource store and
// the region catalog.
type Backend interface {
	Store
	Catalog
}

// UsageOf sums the resources referenced by regionID.
func UsageOf(ctx context.Context, s Store, regionID int64) (Usage, error) {
	entries, err := s.RegionResources(ctx, regionID)
	if err != nil {
		return Usage{}, err
	}
	var u Usage
	for _, e := range entries {
		u.Add(e)
	}
	return u, nil
}
