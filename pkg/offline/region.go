package offline

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/marmos91/offlinekit/internal/bytesize"
	"github.com/marmos91/offlinekit/internal/logger"
	"github.com/marmos91/offlinekit/internal/telemetry"
	"github.com/marmos91/offlinekit/pkg/eviction"
	"github.com/marmos91/offlinekit/pkg/notify"
	"github.com/marmos91/offlinekit/pkg/region"
)

// Region is a handle on one offline region. It stays valid until Delete
// succeeds; afterwards every operation fails with region.ErrRegionNotFound.
type Region struct {
	mgr     *Manager
	id      int64
	def     region.Definition
	created time.Time
	machine *region.Machine

	// mu orders state changes against the start of a deletion.
	mu       sync.Mutex
	metadata []byte
	deleting bool
	waiters  []DeleteCallback
}

// ID returns the region id.
func (r *Region) ID() int64 {
	return r.id
}

// Definition returns the immutable region definition.
func (r *Region) Definition() region.Definition {
	return r.def
}

// CreatedAt returns the creation time.
func (r *Region) CreatedAt() time.Time {
	return r.created
}

// Metadata returns a copy of the client metadata.
func (r *Region) Metadata() []byte {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.metadata)
}

// Record returns the persisted form of the region.
func (r *Region) Record() region.Record {
	return region.Record{
		ID:         r.id,
		Definition: r.def,
		Metadata:   r.Metadata(),
		CreatedAt:  r.created,
	}
}

// DownloadState returns the current download state.
func (r *Region) DownloadState() region.DownloadState {
	return r.machine.DownloadState()
}

// SetObserver binds o to the region, replacing any previous observer. A nil
// o removes the binding.
func (r *Region) SetObserver(o notify.Observer) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.machine.Deleted() {
		return region.ErrRegionNotFound
	}
	r.mgr.notifier.SetObserver(r.id, o)
	return nil
}

// SetDownloadState starts or pauses the region's downloads. Pausing lets
// in-flight fetches finish.
func (r *Region) SetDownloadState(state region.DownloadState) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	changed, err := r.machine.SetDownloadState(state)
	if err != nil || !changed {
		return err
	}

	if state == region.Active {
		err = r.mgr.engine.Activate(r.id)
	} else {
		err = r.mgr.engine.Deactivate(r.id)
	}
	if err != nil {
		return err
	}

	logger.Info("Region download state changed",
		logger.RegionID(r.id),
		logger.DownloadState(state.String()))
	return nil
}

// Status returns the latest status snapshot.
func (r *Region) Status() (region.Status, error) {
	return r.machine.Status()
}

// GetStatus reports the latest status snapshot to cb on the dispatcher. The
// snapshot is taken now; it never waits for the network. After Close, cb
// receives the error on the caller's goroutine.
func (r *Region) GetStatus(cb StatusCallback) {
	st, err := r.machine.Status()
	r.mgr.postOr(r.id, func() {
		if err != nil {
			cb.OnError(fmt.Sprintf("region %d: %v", r.id, err))
			return
		}
		cb.OnStatus(st)
	}, func() {
		cb.OnError(fmt.Sprintf("region %d: %v", r.id, ErrManagerClosed))
	})
}

// UpdateMetadata replaces the client metadata.
func (r *Region) UpdateMetadata(ctx context.Context, metadata []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.machine.Deleted() {
		return region.ErrRegionNotFound
	}
	if err := r.mgr.backend.UpdateMetadata(ctx, r.id, metadata); err != nil {
		return &StoreError{Op: "update metadata", RegionID: r.id, Err: err}
	}
	r.metadata = slices.Clone(metadata)
	return nil
}

// Delete removes the region and reports the outcome to cb on the dispatcher.
//
// Calls made while a deletion is running join it and receive its outcome.
// Once deletion has started, other region operations fail with
// region.ErrRegionNotFound. Removing the catalog record commits the
// deletion: if it fails, the region is left intact, Inactive, and cb
// receives the error. Later failures to release references or reclaim
// storage are logged; the region stays deleted and the leftovers are
// released by a later deletion or the next Open.
func (r *Region) Delete(cb DeleteCallback) {
	r.mu.Lock()
	if r.deleting {
		r.waiters = append(r.waiters, cb)
		r.mu.Unlock()
		return
	}
	if !r.machine.BeginDelete() {
		r.mu.Unlock()
		notFound := func() {
			cb.OnError(fmt.Sprintf("region %d: %v", r.id, region.ErrRegionNotFound))
		}
		r.mgr.postOr(r.id, notFound, notFound)
		return
	}
	r.deleting = true
	r.waiters = []DeleteCallback{cb}
	r.mu.Unlock()

	// Stop issuing requests now; the detach runs in the background.
	_ = r.mgr.engine.Deactivate(r.id)

	if !r.mgr.goTask(r.delete) {
		r.finishDelete(ErrManagerClosed)
	}
}

func (r *Region) delete(parent context.Context) {
	ctx, cancel := context.WithTimeout(parent, r.mgr.cfg.DeleteTimeout)
	defer cancel()
	ctx = logger.WithContext(ctx, logger.NewLogContext(r.id, "delete"))
	ctx, span := telemetry.StartRegionSpan(ctx, telemetry.SpanDelete, r.id)
	defer span.End()

	start := time.Now()
	err := r.evict(ctx)
	if err != nil {
		telemetry.RecordError(ctx, err)
		logger.WarnCtx(ctx, "Region deletion failed", logger.Err(err))
	} else {
		logger.InfoCtx(ctx, "Region deleted", logger.DurationMs(logger.Duration(start)))
	}
	r.finishDelete(err)
}

// evict detaches the region, removes its record and then its references.
// An error means nothing was removed.
func (r *Region) evict(ctx context.Context) error {
	m := r.mgr
	if err := m.engine.Detach(ctx, r.id); err != nil {
		return fmt.Errorf("wait for in-flight requests: %w", err)
	}

	if err := m.backend.DeleteRegion(ctx, r.id); err != nil && !errors.Is(err, region.ErrRegionNotFound) {
		return &StoreError{Op: "delete", RegionID: r.id, Err: err}
	}

	// The record is gone; from here the deletion only moves forward.
	m.releaseOrphans(ctx)

	stats, err := m.evictor.Release(ctx, r.id)
	m.engine.ReleaseTiles(stats.MapboxTiles)
	switch {
	case errors.Is(err, eviction.ErrReclaimIncomplete):
		logger.WarnCtx(ctx, "Region storage only partly reclaimed", logger.Err(err))
	case err != nil:
		m.orphaned.Store(true)
		logger.WarnCtx(ctx, "Region references kept, will be released later", logger.Err(err))
		return nil
	}

	logger.DebugCtx(ctx, "Region storage reclaimed",
		logger.Evicted(stats.Removed),
		logger.KeyFreed, bytesize.ByteSize(stats.Freed).String(),
		logger.KeyStoreSize, bytesize.ByteSize(stats.SizeAfter).String())
	return nil
}

// finishDelete completes or rolls back a deletion and answers every waiter.
func (r *Region) finishDelete(err error) {
	m := r.mgr

	r.mu.Lock()
	waiters := r.waiters
	r.waiters = nil
	r.deleting = false
	if err != nil {
		r.machine.AbortDelete()
		// The region is usable again, paused.
		m.engine.Attach(r.machine, m.planner(r.def))
	} else {
		r.machine.FinishDelete()
		m.notifier.ClearObserver(r.id)
		m.notifier.Deleted(r.id)
		m.forget(r.id)
	}
	r.mu.Unlock()

	for _, cb := range waiters {
		answer := func() {
			if err != nil {
				cb.OnError(err.Error())
				return
			}
			cb.OnDelete()
		}
		m.postOr(r.id, answer, answer)
	}
}
