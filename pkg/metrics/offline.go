package metrics

import (
	"time"
)

// OfflineMetrics provides observability for region downloads and eviction.
//
// This interface is optional - pass nil to disable metrics collection with
// zero overhead.
//
// Example usage:
//
//	// With metrics enabled
//	metrics.InitRegistry()
//	m := metrics.NewOfflineMetrics()
//	engine := download.New(store, fetcher, listener, cfg, download.WithMetrics(m))
//
//	// Without metrics
//	engine := download.New(store, fetcher, listener, cfg)
type OfflineMetrics interface {
	// ObserveFetch records one network fetch.
	//
	// Parameters:
	//   - kind: resource kind (e.g., "tile", "style", "glyphs")
	//   - reason: outcome (e.g., "success", "not_found", "connection")
	//   - duration: time spent fetching
	//   - bytes: payload size, 0 on failure or not-modified
	ObserveFetch(kind, reason string, duration time.Duration, bytes int64)

	// RecordCacheHit records a resource satisfied from the store.
	RecordCacheHit(kind string)

	// RecordTileLimitExceeded records a Mapbox tile that was halted by the
	// tile count limit.
	RecordTileLimitExceeded()

	// SetStoreSize records the aggregate size of the resource store.
	SetStoreSize(bytes int64)

	// RecordEviction records resources removed by an eviction pass.
	RecordEviction(count int, bytes int64)

	// SetActiveRegions records the number of regions in the Active state.
	SetActiveRegions(n int)

	// SetMapboxTileCount records the number of stored Mapbox tiles.
	SetMapboxTileCount(n uint64)
}

// NewOfflineMetrics creates a new Prometheus-backed OfflineMetrics instance.
//
// Returns nil if metrics are not enabled (InitRegistry not called) or if the
// prometheus package has not been imported.
func NewOfflineMetrics() OfflineMetrics {
	if !IsEnabled() || newPrometheusOfflineMetrics == nil {
		return nil
	}
	return newPrometheusOfflineMetrics()
}

// newPrometheusOfflineMetrics is implemented in pkg/metrics/prometheus/offline.go
// This indirection avoids import cycles while keeping the API clean
var newPrometheusOfflineMetrics func() OfflineMetrics

// RegisterOfflineMetricsConstructor registers the Prometheus offline metrics constructor.
// Called by pkg/metrics/prometheus/offline.go during package initialization.
func RegisterOfflineMetricsConstructor(constructor func() OfflineMetrics) {
	newPrometheusOfflineMetrics = constructor
}

// ObserveFetch records a fetch on m if it is not nil.
//
// Example usage:
//
//	start := time.Now()
//	resp, err := fetcher.Fetch(ctx, req)
//	metrics.ObserveFetch(m, "tile", reason, time.Since(start), int64(len(resp.Data)))
func ObserveFetch(m OfflineMetrics, kind, reason string, duration time.Duration, bytes int64) {
	if m != nil {
		m.ObserveFetch(kind, reason, duration, bytes)
	}
}

// RecordCacheHit records a store hit on m if it is not nil.
func RecordCacheHit(m OfflineMetrics, kind string) {
	if m != nil {
		m.RecordCacheHit(kind)
	}
}

// RecordTileLimitExceeded records a halted Mapbox tile on m if it is not nil.
func RecordTileLimitExceeded(m OfflineMetrics) {
	if m != nil {
		m.RecordTileLimitExceeded()
	}
}

// SetStoreSize records the store size on m if it is not nil.
func SetStoreSize(m OfflineMetrics, bytes int64) {
	if m != nil {
		m.SetStoreSize(bytes)
	}
}

// RecordEviction records an eviction pass on m if it is not nil.
func RecordEviction(m OfflineMetrics, count int, bytes int64) {
	if m != nil {
		m.RecordEviction(count, bytes)
	}
}

// SetActiveRegions records the active region count on m if it is not nil.
func SetActiveRegions(m OfflineMetrics, n int) {
	if m != nil {
		m.SetActiveRegions(n)
	}
}

// SetMapboxTileCount records the Mapbox tile count on m if it is not nil.
func SetMapboxTileCount(m OfflineMetrics, n uint64) {
	if m != nil {
		m.SetMapboxTileCount(n)
	}
}
