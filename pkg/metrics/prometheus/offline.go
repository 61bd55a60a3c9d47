package prometheus

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/marmos91/offlinekit/pkg/metrics"
)

func init() {
	metrics.RegisterOfflineMetricsConstructor(func() metrics.OfflineMetrics {
		m := NewOfflineMetrics()
		if m == nil {
			return nil
		}
		return m
	})
}

// offlineMetrics is the Prometheus implementation of metrics.OfflineMetrics.
type offlineMetrics struct {
	fetchesTotal      *prometheus.CounterVec
	fetchDuration     *prometheus.HistogramVec
	bytesDownloaded   *prometheus.CounterVec
	cacheHits         *prometheus.CounterVec
	tileLimitExceeded prometheus.Counter
	storeSize         prometheus.Gauge
	evictedResources  prometheus.Counter
	evictedBytes      prometheus.Counter
	evictionPasses    prometheus.Counter
	activeRegions     prometheus.Gauge
	mapboxTiles       prometheus.Gauge
}

// NewOfflineMetrics creates a new Prometheus-backed OfflineMetrics instance.
//
// Returns nil if metrics are not enabled (InitRegistry not called).
func NewOfflineMetrics() *offlineMetrics {
	if !metrics.IsEnabled() {
		return nil
	}

	reg := metrics.GetRegistry()

	return &offlineMetrics{
		fetchesTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "offlinekit_fetches_total",
				Help: "Total number of resource fetches by kind and outcome",
			},
			[]string{"kind", "reason"},
		),
		fetchDuration: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Name: "offlinekit_fetch_duration_milliseconds",
				Help: "Duration of resource fetches in milliseconds",
				Buckets: []float64{
					10,    // 10ms - cached at the edge
					50,    // 50ms
					100,   // 100ms - typical tile
					250,   // 250ms
					500,   // 500ms
					1000,  // 1s - large raster tiles
					5000,  // 5s
					30000, // 30s - timeouts
				},
			},
			[]string{"kind"},
		),
		bytesDownloaded: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "offlinekit_bytes_downloaded_total",
				Help: "Total payload bytes downloaded by resource kind",
			},
			[]string{"kind"},
		),
		cacheHits: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "offlinekit_cache_hits_total",
				Help: "Total number of resources satisfied from the store",
			},
			[]string{"kind"},
		),
		tileLimitExceeded: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Name: "offlinekit_tile_limit_exceeded_total",
				Help: "Total number of Mapbox tile requests halted by the tile count limit",
			},
		),
		storeSize: promauto.With(reg).NewGauge(
			prometheus.GaugeOpts{
				Name: "offlinekit_store_size_bytes",
				Help: "Aggregate size of stored resources",
			},
		),
		evictedResources: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Name: "offlinekit_evicted_resources_total",
				Help: "Total number of resources removed by eviction",
			},
		),
		evictedBytes: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Name: "offlinekit_evicted_bytes_total",
				Help: "Total bytes reclaimed by eviction",
			},
		),
		evictionPasses: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Name: "offlinekit_eviction_passes_total",
				Help: "Total number of eviction passes",
			},
		),
		activeRegions: promauto.With(reg).NewGauge(
			prometheus.GaugeOpts{
				Name: "offlinekit_active_regions",
				Help: "Current number of regions in the Active download state",
			},
		),
		mapboxTiles: promauto.With(reg).NewGauge(
			prometheus.GaugeOpts{
				Name: "offlinekit_mapbox_tiles",
				Help: "Current number of stored Mapbox tiles",
			},
		),
	}
}

func (m *offlineMetrics) ObserveFetch(kind, reason string, duration time.Duration, bytes int64) {
	if m == nil {
		return
	}

	m.fetchesTotal.WithLabelValues(kind, reason).Inc()
	m.fetchDuration.WithLabelValues(kind).Observe(duration.Seconds() * 1000)
	if bytes > 0 {
		m.bytesDownloaded.WithLabelValues(kind).Add(float64(bytes))
	}
}

func (m *offlineMetrics) RecordCacheHit(kind string) {
	if m == nil {
		return
	}
	m.cacheHits.WithLabelValues(kind).Inc()
}

func (m *offlineMetrics) RecordTileLimitExceeded() {
	if m == nil {
		return
	}
	m.tileLimitExceeded.Inc()
}

func (m *offlineMetrics) SetStoreSize(bytes int64) {
	if m == nil {
		return
	}
	m.storeSize.Set(float64(bytes))
}

func (m *offlineMetrics) RecordEviction(count int, bytes int64) {
	if m == nil {
		return
	}
	m.evictionPasses.Inc()
	if count > 0 {
		m.evictedResources.Add(float64(count))
	}
	if bytes > 0 {
		m.evictedBytes.Add(float64(bytes))
	}
}

func (m *offlineMetrics) SetActiveRegions(n int) {
	if m == nil {
		return
	}
	m.activeRegions.Set(float64(n))
}

func (m *offlineMetrics) SetMapboxTileCount(n uint64) {
	if m == nil {
		return
	}
	m.mapboxTiles.Set(float64(n))
}
