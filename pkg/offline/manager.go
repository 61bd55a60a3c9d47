// Package offline is the entry point for offline regions.
//
// A Manager owns the regions of one persistence backend. It creates and
// restores regions, binds them to the shared download engine and routes
// their events to client observers through a single dispatcher goroutine.
// Deleting a region detaches its downloads, drops its resource references
// and reclaims storage no other region needs.
package offline

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/marmos91/offlinekit/internal/bytesize"
	"github.com/marmos91/offlinekit/internal/logger"
	"github.com/marmos91/offlinekit/internal/telemetry"
	"github.com/marmos91/offlinekit/pkg/download"
	"github.com/marmos91/offlinekit/pkg/eviction"
	"github.com/marmos91/offlinekit/pkg/metrics"
	"github.com/marmos91/offlinekit/pkg/notify"
	"github.com/marmos91/offlinekit/pkg/region"
	"github.com/marmos91/offlinekit/pkg/resource"
	"github.com/marmos91/offlinekit/pkg/transport"
)

// Default manager settings.
const (
	DefaultDeleteTimeout = time.Minute
	DefaultStopTimeout   = 10 * time.Second
)

// ErrManagerClosed is returned by operations on a closed Manager.
var ErrManagerClosed = errors.New("offline manager is closed")

// Config configures a Manager.
type Config struct {
	Download download.Config

	// HighWaterMark is the store size above which unreferenced resources are
	// removed when a region is deleted.
	HighWaterMark int64

	// DeleteTimeout bounds the wait for a deleted region's in-flight fetches
	// plus the eviction pass.
	DeleteTimeout time.Duration

	// StopTimeout bounds the wait for in-flight fetches on Close.
	StopTimeout time.Duration

	// EventBuffer is the per-subscriber buffer of the event hub.
	EventBuffer int
}

// PlannerFunc builds the download plan of a region.
type PlannerFunc func(def region.Definition) download.Planner

// Option configures a Manager.
type Option func(*Manager)

// WithMetrics sets the metrics sink. Nil disables metrics.
func WithMetrics(m metrics.OfflineMetrics) Option {
	return func(mgr *Manager) {
		mgr.metrics = m
	}
}

// WithPlanner replaces the style-driven planner.
func WithPlanner(fn PlannerFunc) Option {
	return func(mgr *Manager) {
		mgr.planner = fn
	}
}

// WithEngineOptions passes options to the download engine.
func WithEngineOptions(opts ...download.Option) Option {
	return func(mgr *Manager) {
		mgr.engineOpts = append(mgr.engineOpts, opts...)
	}
}

// Manager creates, restores and deletes offline regions.
type Manager struct {
	backend    resource.Backend
	cfg        Config
	metrics    metrics.OfflineMetrics
	planner    PlannerFunc
	engineOpts []download.Option

	engine     *download.Engine
	evictor    *eviction.Evictor
	dispatcher *notify.Dispatcher
	notifier   *notify.Notifier
	hub        *notify.Hub

	// ctx lives until Close and parents background deletions.
	ctx    context.Context
	cancel context.CancelFunc
	tasks  sync.WaitGroup

	mu      sync.RWMutex
	regions map[int64]*Region
	closed  bool

	// orphaned is set while references of deleted regions may remain.
	orphaned atomic.Bool
}

// Open creates a Manager on backend, restores the regions found in its
// catalog in the Inactive state and starts the download engine.
func Open(ctx context.Context, backend resource.Backend, fetcher transport.Fetcher, cfg Config, opts ...Option) (*Manager, error) {
	if cfg.DeleteTimeout <= 0 {
		cfg.DeleteTimeout = DefaultDeleteTimeout
	}
	if cfg.StopTimeout <= 0 {
		cfg.StopTimeout = DefaultStopTimeout
	}

	m := &Manager{
		backend: backend,
		cfg:     cfg,
		planner: download.NewStylePlanner,
		regions: make(map[int64]*Region),
	}
	for _, opt := range opts {
		opt(m)
	}

	m.dispatcher = notify.NewDispatcher()
	m.hub = notify.NewHub(cfg.EventBuffer)
	m.notifier = notify.NewNotifier(m.dispatcher, m.hub)
	m.evictor = eviction.New(backend, cfg.HighWaterMark, eviction.WithMetrics(m.metrics))

	engineOpts := append([]download.Option{download.WithMetrics(m.metrics)}, m.engineOpts...)
	m.engine = download.New(backend, fetcher, m.notifier, cfg.Download, engineOpts...)
	m.ctx, m.cancel = context.WithCancel(context.Background())

	if err := m.restore(ctx); err != nil {
		m.shutdown()
		return nil, err
	}
	if err := m.engine.Start(ctx); err != nil {
		m.shutdown()
		return nil, &StoreError{Op: "start", Err: err}
	}

	size, err := backend.Size(ctx)
	if err == nil {
		metrics.SetStoreSize(m.metrics, size)
	}

	logger.Info("Offline manager opened",
		"regions", len(m.regions),
		logger.KeyStoreSize, bytesize.ByteSize(size).String(),
		logger.KeyHighWaterMark, bytesize.ByteSize(m.evictor.HighWaterMark()).String())
	return m, nil
}

func (m *Manager) restore(ctx context.Context) error {
	records, err := m.backend.ListRegions(ctx)
	if err != nil {
		return &StoreError{Op: "list regions", Err: err}
	}

	for _, rec := range records {
		usage, err := resource.UsageOf(ctx, m.backend, rec.ID)
		if err != nil {
			return &StoreError{Op: "restore", RegionID: rec.ID, Err: err}
		}
		machine := region.RestoreMachine(rec.ID, usage.Count, usage.Size, usage.TileCount, usage.TileSize)
		m.attach(rec, machine)

		logger.Debug("Region restored",
			logger.RegionID(rec.ID),
			logger.KeyCompleted, usage.Count,
			logger.Bytes(int64(usage.Size)))
	}

	// A deletion interrupted after removing its record leaves references.
	m.orphaned.Store(true)
	m.releaseOrphans(ctx)
	return nil
}

// releaseOrphans drops references held by regions that no longer exist. A
// failure is retried by the next deletion.
func (m *Manager) releaseOrphans(ctx context.Context) {
	if !m.orphaned.CompareAndSwap(true, false) {
		return
	}
	ids, err := m.evictor.ReleaseOrphans(ctx, m.isLive)
	if err != nil {
		m.orphaned.Store(true)
		logger.WarnCtx(ctx, "Releasing orphaned references failed", logger.Err(err))
		return
	}
	if len(ids) > 0 {
		logger.InfoCtx(ctx, "Released orphaned references", "regions", ids)
	}
}

func (m *Manager) isLive(id int64) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.regions[id]
	return ok
}

func (m *Manager) attach(rec region.Record, machine *region.Machine) *Region {
	r := &Region{
		mgr:      m,
		id:       rec.ID,
		def:      rec.Definition,
		created:  rec.CreatedAt,
		metadata: slices.Clone(rec.Metadata),
		machine:  machine,
	}
	m.engine.Attach(machine, m.planner(rec.Definition))

	m.mu.Lock()
	m.regions[rec.ID] = r
	m.mu.Unlock()
	return r
}

// CreateRegion validates def, persists it with metadata and returns the new
// region in the Inactive state.
func (m *Manager) CreateRegion(ctx context.Context, def region.Definition, metadata []byte) (*Region, error) {
	ctx, span := telemetry.StartSpan(ctx, telemetry.SpanCreate)
	defer span.End()

	if m.isClosed() {
		return nil, ErrManagerClosed
	}
	if err := def.Validate(); err != nil {
		return nil, err
	}

	rec, err := m.backend.CreateRegion(ctx, def, metadata)
	if err != nil {
		telemetry.RecordError(ctx, err)
		return nil, &StoreError{Op: "create", Err: err}
	}
	telemetry.SetAttributes(ctx, telemetry.RegionID(rec.ID))

	r := m.attach(rec, region.NewMachine(rec.ID))

	logger.InfoCtx(ctx, "Region created",
		logger.RegionID(rec.ID),
		logger.KeyStyleURL, def.StyleURL,
		logger.KeyMinZoom, def.MinZoom,
		logger.KeyMaxZoom, def.MaxZoom)
	return r, nil
}

// Region returns the region with the given id. Regions being deleted are not
// found.
func (m *Manager) Region(id int64) (*Region, error) {
	m.mu.RLock()
	r, ok := m.regions[id]
	m.mu.RUnlock()

	if !ok || r.machine.Deleted() {
		return nil, fmt.Errorf("region %d: %w", id, region.ErrRegionNotFound)
	}
	return r, nil
}

// ListRegions returns the live regions ordered by id.
func (m *Manager) ListRegions() []*Region {
	m.mu.RLock()
	regions := make([]*Region, 0, len(m.regions))
	for _, r := range m.regions {
		if !r.machine.Deleted() {
			regions = append(regions, r)
		}
	}
	m.mu.RUnlock()

	slices.SortFunc(regions, func(a, b *Region) int {
		switch {
		case a.id < b.id:
			return -1
		case a.id > b.id:
			return 1
		}
		return 0
	})
	return regions
}

// SetMaxTileCountLimit changes the process-wide Mapbox tile count limit.
// Raising it resumes tiles halted by the previous limit.
func (m *Manager) SetMaxTileCountLimit(limit uint64) {
	m.engine.SetTileLimit(limit)
}

// TileCountLimit returns the Mapbox tile count limit and the number of stored
// Mapbox tiles.
func (m *Manager) TileCountLimit() (limit, used uint64) {
	return m.engine.TileLimit()
}

// NetworkReachable retries failed resources of the active regions now.
func (m *Manager) NetworkReachable() {
	m.engine.NetworkReachable()
}

// Hub returns the event hub mirroring every region event.
func (m *Manager) Hub() *notify.Hub {
	return m.hub
}

// StoreSize returns the total size of stored resources and the high-water mark.
func (m *Manager) StoreSize(ctx context.Context) (size, highWaterMark int64, err error) {
	size, err = m.backend.Size(ctx)
	if err != nil {
		return 0, 0, &StoreError{Op: "size", Err: err}
	}
	return size, m.evictor.HighWaterMark(), nil
}

// Sync waits until every callback posted so far has run.
func (m *Manager) Sync(ctx context.Context) error {
	return m.dispatcher.Sync(ctx)
}

// Close waits for pending deletions, stops the engine and delivers the
// callbacks already queued. The backend is not closed.
func (m *Manager) Close(ctx context.Context) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	m.mu.Unlock()

	done := make(chan struct{})
	go func() {
		m.tasks.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		logger.Warn("Offline manager closing with deletions pending")
	}

	m.cancel()
	m.engine.Stop(m.cfg.StopTimeout)
	err := m.dispatcher.Close(ctx)
	m.hub.Close()

	logger.Info("Offline manager closed")
	return err
}

func (m *Manager) shutdown() {
	m.cancel()
	m.engine.Stop(0)
	_ = m.dispatcher.Close(context.Background())
	m.hub.Close()
}

func (m *Manager) isClosed() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.closed
}

// postOr runs fn on the dispatcher. Once the dispatcher is closed it runs
// closed on the calling goroutine instead.
func (m *Manager) postOr(regionID int64, fn, closed func()) {
	if err := m.dispatcher.Post(fn); err != nil {
		logger.Debug("Dispatcher closed, answering inline", logger.RegionID(regionID), logger.Err(err))
		closed()
	}
}

// goTask runs fn in the background unless the manager is closed.
func (m *Manager) goTask(fn func(ctx context.Context)) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return false
	}
	m.tasks.Add(1)
	go func() {
		defer m.tasks.Done()
		fn(m.ctx)
	}()
	return true
}

func (m *Manager) forget(id int64) {
	m.mu.Lock()
	delete(m.regions, id)
	m.mu.Unlock()
}
