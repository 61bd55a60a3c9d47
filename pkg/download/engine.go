// Package download drives the resource fetches of offline regions.
//
// One Engine serves every region of the process. Each attached region owns a
// FIFO queue of pending resources; a fixed pool of workers takes requests
// from the active regions in round-robin order, bounded per region, so that
// one large region does not starve the others.
//
// A request is satisfied from the resource store when a valid copy exists.
// Otherwise it is fetched, once per key across all regions, and stored.
// Failures are classified by region.Reason: not-found is permanent, the
// others are retried with exponential backoff until the attempt cap, after
// which the request parks until NetworkReachable or reactivation.
//
// Mapbox-hosted tiles are counted against a process-wide limit. A tile that
// would exceed it is halted until SetTileLimit raises the limit.
package download

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"golang.org/x/sync/singleflight"

	"github.com/marmos91/offlinekit/internal/logger"
	"github.com/marmos91/offlinekit/internal/telemetry"
	"github.com/marmos91/offlinekit/pkg/metrics"
	"github.com/marmos91/offlinekit/pkg/region"
	"github.com/marmos91/offlinekit/pkg/resource"
	"github.com/marmos91/offlinekit/pkg/transport"
)

// tileLimitError is returned by a fetch that was not issued because the
// Mapbox tile count limit had been reached.
type tileLimitError struct {
	limit uint64
}

func (e *tileLimitError) Error() string {
	return fmt.Sprintf("mapbox tile count limit %d reached", e.limit)
}

// request is one pending resource of a region.
type request struct {
	key     resource.Key
	gen     uint64
	attempt int
	backoff *backoff.ExponentialBackOff

	// reported is set once the failure episode has been reported.
	reported bool
	// expired is set when the stored copy was found expired.
	expired bool
	// timerSeq identifies the current retry timer.
	timerSeq uint64
}

func (r *request) resetEpisode() {
	r.attempt = 0
	r.backoff = nil
	r.reported = false
}

// job is the download state of one attached region.
type job struct {
	id      int64
	machine *region.Machine
	planner Planner

	// gen is bumped on every activation; results of older generations are
	// stored but not counted.
	gen      uint64
	active   bool
	detached bool

	queue     []*request
	seen      map[string]struct{}
	inflight  int
	expanding int

	timers map[*request]*time.Timer
	parked []*request
	halted []*request

	limitNotified bool
	notifiedLimit uint64

	wg sync.WaitGroup
}

func (j *job) stopTimersLocked() []*request {
	reqs := make([]*request, 0, len(j.timers))
	for r, t := range j.timers {
		t.Stop()
		reqs = append(reqs, r)
	}
	clear(j.timers)
	return reqs
}

// Option configures an Engine.
type Option func(*Engine)

// WithMetrics sets the metrics sink. Nil disables metrics.
func WithMetrics(m metrics.OfflineMetrics) Option {
	return func(e *Engine) {
		e.metrics = m
	}
}

// WithClock replaces time.Now for expiry checks.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		e.now = now
	}
}

// Engine schedules and executes resource fetches for attached regions.
type Engine struct {
	store    resource.Store
	fetcher  transport.Fetcher
	listener Listener
	cfg      Config
	metrics  metrics.OfflineMetrics
	now      func() time.Time

	budget *tileBudget
	group  singleflight.Group

	mu     sync.Mutex
	cond   *sync.Cond
	jobs   map[int64]*job
	order  []int64
	cursor int

	// Worker management
	wg        sync.WaitGroup
	started   bool
	stopped   bool
	stoppedCh chan struct{}
	ctx       context.Context
	cancel    context.CancelFunc
}

// New creates an engine. Call Start before attaching regions.
func New(store resource.Store, fetcher transport.Fetcher, listener Listener, cfg Config, opts ...Option) *Engine {
	cfg.applyDefaults()

	ctx, cancel := context.WithCancel(context.Background())
	e := &Engine{
		store:     store,
		fetcher:   fetcher,
		listener:  listener,
		cfg:       cfg,
		now:       time.Now,
		budget:    newTileBudget(cfg.MaxTileCount),
		jobs:      make(map[int64]*job),
		stoppedCh: make(chan struct{}),
		ctx:       ctx,
		cancel:    cancel,
	}
	e.cond = sync.NewCond(&e.mu)
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Start loads the stored Mapbox tile count and starts the workers.
func (e *Engine) Start(ctx context.Context) error {
	e.mu.Lock()
	if e.started {
		e.mu.Unlock()
		return nil
	}
	e.started = true
	e.mu.Unlock()

	count, err := e.store.MapboxTileCount(ctx)
	if err != nil {
		return err
	}
	e.budget.setUsed(count)
	metrics.SetMapboxTileCount(e.metrics, count)

	logger.Info("Starting download engine",
		"workers", e.cfg.Workers,
		"max_inflight_per_region", e.cfg.MaxInflightPerRegion,
		logger.KeyTileCount, count,
		logger.KeyTileLimit, e.cfg.MaxTileCount)

	for i := 0; i < e.cfg.Workers; i++ {
		e.wg.Add(1)
		go e.worker()
	}

	go func() {
		e.wg.Wait()
		close(e.stoppedCh)
	}()
	return nil
}

// Stop stops scheduling and waits up to timeout for in-flight fetches.
// Fetches still running after the timeout are cancelled.
func (e *Engine) Stop(timeout time.Duration) {
	e.mu.Lock()
	if !e.started || e.stopped {
		e.mu.Unlock()
		return
	}
	e.stopped = true
	for _, j := range e.jobs {
		j.stopTimersLocked()
	}
	e.cond.Broadcast()
	e.mu.Unlock()

	select {
	case <-e.stoppedCh:
		logger.Info("Download engine stopped gracefully")
	case <-time.After(timeout):
		logger.Warn("Download engine stop timed out, cancelling in-flight fetches")
		e.cancel()
		<-e.stoppedCh
	}
	e.cancel()
}

// Attach registers a region with the engine in the inactive state.
func (e *Engine) Attach(m *region.Machine, p Planner) {
	e.mu.Lock()
	defer e.mu.Unlock()

	id := m.ID()
	if _, ok := e.jobs[id]; ok {
		return
	}
	e.jobs[id] = &job{
		id:      id,
		machine: m,
		planner: p,
		seen:    make(map[string]struct{}),
		timers:  make(map[*request]*time.Timer),
	}
	e.order = append(e.order, id)
}

// Detach removes a region and waits until its in-flight fetches are done or
// ctx is cancelled. Results of those fetches are stored but not counted.
func (e *Engine) Detach(ctx context.Context, id int64) error {
	e.mu.Lock()
	j, ok := e.jobs[id]
	if !ok {
		e.mu.Unlock()
		return nil
	}
	j.detached = true
	j.active = false
	j.stopTimersLocked()
	j.queue = nil
	j.parked = nil
	j.halted = nil

	delete(e.jobs, id)
	if i := slices.Index(e.order, id); i >= 0 {
		e.order = slices.Delete(e.order, i, i+1)
		if e.cursor > i {
			e.cursor--
		}
		if e.cursor >= len(e.order) {
			e.cursor = 0
		}
	}
	active := e.activeCountLocked()
	e.mu.Unlock()

	metrics.SetActiveRegions(e.metrics, active)

	done := make(chan struct{})
	go func() {
		j.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Activate starts downloading a region. The region's resources are walked
// again from the roots and its progress counters restart from zero; resources
// already stored are counted without network access.
func (e *Engine) Activate(id int64) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	j, ok := e.jobs[id]
	if !ok || j.detached {
		return region.ErrRegionNotFound
	}
	if j.active {
		return nil
	}

	j.active = true
	j.gen++
	j.stopTimersLocked()
	j.queue = nil
	j.parked = nil
	j.halted = nil
	j.expanding = 0
	j.limitNotified = false
	clear(j.seen)

	j.machine.ResetProgress()
	n := e.enqueueLocked(j, j.planner.Roots())
	st := j.machine.AddRequired(uint64(n))
	if j.expanding == 0 {
		st = j.machine.MarkRequiredPrecise()
	}

	logger.Debug("Region activated",
		logger.RegionID(id),
		logger.KeyRequired, st.RequiredResourceCount)

	e.listener.StatusChanged(id, st)
	metrics.SetActiveRegions(e.metrics, e.activeCountLocked())
	e.cond.Broadcast()
	return nil
}

// Deactivate stops scheduling new requests for a region. Fetches already in
// flight finish, and their results are stored and counted.
func (e *Engine) Deactivate(id int64) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	j, ok := e.jobs[id]
	if !ok || j.detached {
		return region.ErrRegionNotFound
	}
	if !j.active {
		return nil
	}
	j.active = false
	j.stopTimersLocked()

	logger.Debug("Region deactivated", logger.RegionID(id))

	e.listener.StatusChanged(id, j.machine.Snapshot())
	metrics.SetActiveRegions(e.metrics, e.activeCountLocked())
	return nil
}

// NetworkReachable resets the backoff of every failed request of the active
// regions and requeues them immediately.
func (e *Engine) NetworkReachable() {
	e.mu.Lock()
	defer e.mu.Unlock()

	requeued := 0
	for _, j := range e.jobs {
		if !j.active || j.detached {
			continue
		}
		reqs := append(j.stopTimersLocked(), j.parked...)
		j.parked = nil
		for _, r := range reqs {
			r.resetEpisode()
			j.queue = append(j.queue, r)
		}
		requeued += len(reqs)
	}
	if requeued > 0 {
		logger.Info("Network reachable, retrying failed resources", "requests", requeued)
		e.cond.Broadcast()
	}
}

// SetTileLimit changes the Mapbox tile count limit. When the new limit leaves
// room for more tiles, halted tiles are requeued and the limit flags cleared.
func (e *Engine) SetTileLimit(limit uint64) {
	e.budget.setLimit(limit)
	_, used := e.budget.snapshot()

	e.mu.Lock()
	defer e.mu.Unlock()

	for _, j := range e.jobs {
		if j.detached {
			continue
		}
		if used < limit {
			j.queue = append(j.queue, j.halted...)
			j.halted = nil
			j.limitNotified = false
			if st, changed := j.machine.SetTileCountLimitExceeded(false); changed {
				e.listener.StatusChanged(j.id, st)
			}
			continue
		}
		if len(j.halted) > 0 && j.notifiedLimit != limit {
			j.notifiedLimit = limit
			j.limitNotified = true
			e.listener.TileLimitExceeded(j.id, limit)
		}
	}
	logger.Info("Mapbox tile count limit set", logger.KeyTileLimit, limit, logger.KeyTileCount, used)
	e.cond.Broadcast()
}

// TileLimit returns the Mapbox tile count limit and the number of stored
// Mapbox tiles.
func (e *Engine) TileLimit() (limit, used uint64) {
	return e.budget.snapshot()
}

// ReleaseTiles records that n Mapbox tiles were removed from the store.
func (e *Engine) ReleaseTiles(n uint64) {
	if n == 0 {
		return
	}
	used := e.budget.reduce(n)
	metrics.SetMapboxTileCount(e.metrics, used)
}

func (e *Engine) activeCountLocked() int {
	n := 0
	for _, j := range e.jobs {
		if j.active {
			n++
		}
	}
	return n
}

// enqueueLocked appends the keys not yet seen by the current generation and
// returns how many were added.
func (e *Engine) enqueueLocked(j *job, keys []resource.Key) int {
	added := 0
	for _, k := range keys {
		id := k.ID()
		if _, ok := j.seen[id]; ok {
			continue
		}
		j.seen[id] = struct{}{}
		j.queue = append(j.queue, &request{key: k, gen: j.gen})
		if isDocument(k) {
			j.expanding++
		}
		added++
	}
	return added
}

// ============================================================================
// Workers
// ============================================================================

func (e *Engine) worker() {
	defer e.wg.Done()

	for {
		j, r, ok := e.next()
		if !ok {
			return
		}
		e.process(j, r)
	}
}

// next blocks until a request is ready or the engine stops.
func (e *Engine) next() (*job, *request, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	for {
		if e.stopped {
			return nil, nil, false
		}
		if j, r := e.pickLocked(); j != nil {
			j.inflight++
			j.wg.Add(1)
			return j, r, true
		}
		e.cond.Wait()
	}
}

// pickLocked takes the next request in round-robin order over the regions
// that are active and below their in-flight cap.
func (e *Engine) pickLocked() (*job, *request) {
	n := len(e.order)
	for i := 0; i < n; i++ {
		idx := (e.cursor + i) % n
		j := e.jobs[e.order[idx]]
		if !j.active || len(j.queue) == 0 || j.inflight >= e.cfg.MaxInflightPerRegion {
			continue
		}
		r := j.queue[0]
		j.queue[0] = nil
		j.queue = j.queue[1:]
		e.cursor = (idx + 1) % n
		return j, r
	}
	return nil, nil
}

func (e *Engine) done(j *job) {
	e.mu.Lock()
	j.inflight--
	e.cond.Broadcast()
	e.mu.Unlock()
	j.wg.Done()
}

// process resolves one request and applies its outcome to the region.
func (e *Engine) process(j *job, r *request) {
	defer e.done(j)

	ctx := logger.WithContext(e.ctx, logger.NewLogContext(j.id, "fetch"))

	res, err := e.resolve(ctx, j, r)
	if e.ctx.Err() != nil {
		return
	}

	if err == nil {
		_, err = e.store.AddReference(ctx, j.id, r.key)
		if errors.Is(err, resource.ErrResourceNotFound) {
			// Evicted between store and reference: fetch again.
			e.requeue(j, r)
			return
		}
	}

	var limitErr *tileLimitError
	switch {
	case err == nil:
		e.succeeded(ctx, j, r, res)
	case errors.As(err, &limitErr):
		e.halted(j, r, limitErr.limit)
	default:
		e.failed(ctx, j, r, err)
	}
}

// resolve returns the resource for r from the store or the network.
func (e *Engine) resolve(ctx context.Context, j *job, r *request) (*resource.Resource, error) {
	stored, err := e.store.Get(ctx, r.key)
	switch {
	case err == nil && !stored.Expired(e.now()):
		metrics.RecordCacheHit(e.metrics, r.key.Kind.String())
		return stored, nil
	case err == nil:
		e.markExpired(j, r)
	case !errors.Is(err, resource.ErrResourceNotFound):
		return nil, err
	}

	v, err, _ := e.group.Do(r.key.ID(), func() (any, error) {
		return e.fetch(ctx, j.id, r)
	})
	if err != nil {
		return nil, err
	}
	return v.(*resource.Resource), nil
}

// fetch downloads and stores one resource. It runs once per key at a time,
// on behalf of every region waiting for it.
func (e *Engine) fetch(ctx context.Context, regionID int64, r *request) (*resource.Resource, error) {
	key := r.key

	// Another flight may have stored it since the caller looked.
	stored, err := e.store.Get(ctx, key)
	if err != nil && !errors.Is(err, resource.ErrResourceNotFound) {
		return nil, err
	}
	if err == nil && !stored.Expired(e.now()) {
		return stored, nil
	}
	present := err == nil

	mapbox := key.Kind == resource.KindTile && transport.IsMapboxURL(key.URL)
	reserved := false
	if mapbox && !present {
		if ok, limit := e.budget.tryReserve(); !ok {
			return nil, &tileLimitError{limit: limit}
		}
		reserved = true
	}
	release := func() {
		if reserved {
			e.budget.release()
		}
	}

	req := &transport.Request{Key: key}
	if present {
		req.ETag = stored.ETag
		req.Modified = stored.Modified
	}

	ctx, span := telemetry.StartFetchSpan(ctx, regionID, key.Kind.String(), key.URL,
		telemetry.Attempt(r.attempt+1),
		telemetry.CacheHit(false))
	defer span.End()

	fctx := ctx
	if e.cfg.FetchTimeout > 0 {
		var cancel context.CancelFunc
		fctx, cancel = context.WithTimeout(ctx, e.cfg.FetchTimeout)
		defer cancel()
	}

	start := time.Now()
	resp, err := e.fetcher.Fetch(fctx, req)
	if err != nil {
		release()
		reason := transport.ReasonOf(err)
		metrics.ObserveFetch(e.metrics, key.Kind.String(), reason.String(), time.Since(start), 0)
		telemetry.SetAttributes(ctx, telemetry.ResourceReason(reason.String()))
		telemetry.RecordError(ctx, err)
		return nil, err
	}
	metrics.ObserveFetch(e.metrics, key.Kind.String(), region.ReasonSuccess.String(), time.Since(start), int64(len(resp.Data)))

	if resp.NotModified {
		release()
		telemetry.SetAttributes(ctx, telemetry.NotModified(true))
		if !present {
			return nil, &transport.FetchError{Reason: region.ReasonOther, URL: key.URL, Err: errors.New("not modified without a stored copy")}
		}
		etag := resp.ETag
		if etag == "" {
			etag = stored.ETag
		}
		modified := resp.Modified
		if modified.IsZero() {
			modified = stored.Modified
		}
		if err := e.store.Refresh(ctx, key, resp.Expires, modified, etag); err != nil {
			return nil, err
		}
		stored.Expires, stored.Modified, stored.ETag = resp.Expires, modified, etag
		return stored, nil
	}

	res := &resource.Resource{
		Key:        key,
		Data:       resp.Data,
		ETag:       resp.ETag,
		Modified:   resp.Modified,
		Expires:    resp.Expires,
		MapboxTile: mapbox,
	}
	if err := e.store.Put(ctx, res); err != nil {
		release()
		return nil, err
	}
	if reserved {
		metrics.SetMapboxTileCount(e.metrics, e.budget.commit())
	}
	telemetry.SetAttributes(ctx, telemetry.ResourceSize(uint64(res.Size())))

	logger.DebugCtx(ctx, "Resource downloaded",
		logger.ResourceKind(key.Kind.String()),
		logger.ResourceURL(key.URL),
		logger.Bytes(res.Size()),
		logger.DurationMs(logger.Duration(start)))
	return res, nil
}

// ============================================================================
// Outcomes
// ============================================================================

// stale reports whether the result of r must not be counted.
func stale(j *job, r *request) bool {
	return j.detached || r.gen != j.gen
}

func (e *Engine) markExpired(j *job, r *request) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if stale(j, r) || r.expired {
		return
	}
	r.expired = true
	e.listener.StatusChanged(j.id, j.machine.AddExpired(1))
}

func (e *Engine) requeue(j *job, r *request) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if stale(j, r) {
		return
	}
	j.queue = append(j.queue, r)
	e.cond.Broadcast()
}

func (e *Engine) succeeded(ctx context.Context, j *job, r *request, res *resource.Resource) {
	var (
		keys      []resource.Key
		expandErr error
	)
	if isDocument(r.key) {
		keys, expandErr = j.planner.Expand(r.key, res.Data)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if stale(j, r) {
		return
	}

	if r.expired {
		r.expired = false
		j.machine.AddExpired(-1)
	}
	if n := e.enqueueLocked(j, keys); n > 0 {
		j.machine.AddRequired(uint64(n))
		e.cond.Broadcast()
	}
	st := j.machine.Complete(uint64(res.Size()), r.key.Kind == resource.KindTile)
	if isDocument(r.key) {
		st = e.documentDoneLocked(j)
	}

	if expandErr != nil {
		logger.WarnCtx(ctx, "Failed to expand resource", logger.ResourceURL(r.key.URL), logger.Err(expandErr))
		e.listener.ResourceError(j.id, region.Error{Reason: region.ReasonOther, Message: expandErr.Error()})
	}
	e.listener.StatusChanged(j.id, st)
}

// documentDoneLocked records that a document will not add more resources.
func (e *Engine) documentDoneLocked(j *job) region.Status {
	j.expanding--
	if j.expanding == 0 {
		return j.machine.MarkRequiredPrecise()
	}
	return j.machine.Snapshot()
}

func (e *Engine) halted(j *job, r *request, rejectedAt uint64) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if stale(j, r) {
		return
	}
	metrics.RecordTileLimitExceeded(e.metrics)

	limit, _ := e.budget.snapshot()
	if limit != rejectedAt {
		// The limit changed while this request was in flight.
		j.queue = append(j.queue, r)
		e.cond.Broadcast()
		return
	}
	j.halted = append(j.halted, r)

	if st, changed := j.machine.SetTileCountLimitExceeded(true); changed {
		e.listener.StatusChanged(j.id, st)
	}
	if !j.limitNotified || j.notifiedLimit != limit {
		j.limitNotified = true
		j.notifiedLimit = limit
		logger.Warn("Mapbox tile count limit exceeded",
			logger.RegionID(j.id),
			logger.KeyTileLimit, limit)
		e.listener.TileLimitExceeded(j.id, limit)
	}
}

func (e *Engine) failed(ctx context.Context, j *job, r *request, err error) {
	reason := transport.ReasonOf(err)

	e.mu.Lock()
	defer e.mu.Unlock()

	if stale(j, r) {
		return
	}

	if !reason.Transient() {
		// Permanent: the resource is unobtainable for this activation and
		// counts as attempted so the region can still complete.
		logger.DebugCtx(ctx, "Resource not found", logger.ResourceURL(r.key.URL))
		e.listener.ResourceError(j.id, region.Error{Reason: reason, Message: err.Error()})
		st := j.machine.Complete(0, false)
		if isDocument(r.key) {
			st = e.documentDoneLocked(j)
		}
		e.listener.StatusChanged(j.id, st)
		return
	}

	r.attempt++
	if r.attempt >= e.cfg.Retry.maxAttempts(reason) {
		j.parked = append(j.parked, r)
		if !r.reported {
			r.reported = true
			logger.WarnCtx(ctx, "Resource failed, parking until network is reachable",
				logger.ResourceURL(r.key.URL),
				logger.Attempt(r.attempt),
				logger.Reason(reason.String()),
				logger.Err(err))
			e.listener.ResourceError(j.id, region.Error{Reason: reason, Message: err.Error()})
		}
		return
	}

	if r.backoff == nil {
		r.backoff = newBackOff(e.cfg.Retry)
	}
	delay := r.backoff.NextBackOff()

	logger.DebugCtx(ctx, "Resource failed, retrying",
		logger.ResourceURL(r.key.URL),
		logger.Attempt(r.attempt),
		logger.Delay(delay),
		logger.Reason(reason.String()))

	r.timerSeq++
	seq := r.timerSeq
	j.timers[r] = time.AfterFunc(delay, func() {
		e.retry(j, r, seq)
	})
}

// retry moves a request whose backoff elapsed back into its queue.
func (e *Engine) retry(j *job, r *request, seq uint64) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, ok := j.timers[r]; !ok || r.timerSeq != seq {
		return
	}
	delete(j.timers, r)
	if stale(j, r) || !j.active {
		return
	}
	j.queue = append(j.queue, r)
	e.cond.Broadcast()
}
