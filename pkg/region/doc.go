// Package region defines offline regions and their download state machine.
//
// A region is a geographic extent plus a zoom range and a style whose map
// resources are downloaded for use without network access. The Machine type
// tracks one region's lifecycle: its download state (Inactive or Active), the
// progress counters reported through Status, the tile-count limit flag and the
// terminal deletion phase after which every region-scoped operation fails with
// ErrRegionNotFound.
//
// Regions do not own resources. Resources live in the shared store and are
// reference counted per region.
package region
