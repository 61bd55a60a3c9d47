// Package eviction reclaims storage when regions are deleted.
//
// Deleting a region drops its references. Resources no longer referenced by
// any region become reclaimable and are removed, least recently requested
// first, only while the store is above its high-water mark. A resource still
// referenced by another region is never removed: Remove re-checks the count
// inside the store's own transaction.
package eviction

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/marmos91/offlinekit/internal/bytesize"
	"github.com/marmos91/offlinekit/internal/logger"
	"github.com/marmos91/offlinekit/internal/telemetry"
	"github.com/marmos91/offlinekit/pkg/metrics"
	"github.com/marmos91/offlinekit/pkg/resource"
)

// DefaultHighWaterMark is the store size above which unreferenced resources
// are removed.
const DefaultHighWaterMark = 50 * bytesize.MiB

// Release retry defaults.
const (
	DefaultReleaseRetries    = 3
	DefaultReleaseRetryDelay = 50 * time.Millisecond
)

// ErrReclaimIncomplete marks a Release that dropped the region's references
// but could not finish the eviction pass. The next pass picks up where it
// stopped.
var ErrReclaimIncomplete = errors.New("eviction pass incomplete")

// ============================================================================
// Types
// ============================================================================

// Stats summarizes one eviction pass.
type Stats struct {
	Released    int   // Resources whose count reached zero on release
	Candidates  int   // Reclaimable resources considered
	Removed     int   // Resources removed
	Freed       int64 // Bytes removed
	MapboxTiles uint64
	SizeBefore  int64
	SizeAfter   int64
	Skipped     int // Candidates referenced again or already gone
}

// Option configures an Evictor.
type Option func(*Evictor)

// WithMetrics sets the metrics sink. Nil disables metrics.
func WithMetrics(m metrics.OfflineMetrics) Option {
	return func(e *Evictor) {
		e.metrics = m
	}
}

// WithReleaseRetry sets how often a failed ReleaseRegion is retried and the
// first retry delay. Later delays double.
func WithReleaseRetry(retries uint64, delay time.Duration) Option {
	return func(e *Evictor) {
		e.releaseRetries = retries
		e.releaseDelay = delay
	}
}

// Evictor releases region references and removes unreferenced resources.
type Evictor struct {
	store          resource.Store
	highWaterMark  int64
	metrics        metrics.OfflineMetrics
	releaseRetries uint64
	releaseDelay   time.Duration
}

// New creates an evictor. A non-positive highWaterMark uses the default.
func New(store resource.Store, highWaterMark int64, opts ...Option) *Evictor {
	if highWaterMark <= 0 {
		highWaterMark = int64(DefaultHighWaterMark)
	}
	e := &Evictor{
		store:          store,
		highWaterMark:  highWaterMark,
		releaseRetries: DefaultReleaseRetries,
		releaseDelay:   DefaultReleaseRetryDelay,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// HighWaterMark returns the configured high-water mark in bytes.
func (e *Evictor) HighWaterMark() int64 {
	return e.highWaterMark
}

// ============================================================================
// Eviction
// ============================================================================

// Release drops every reference held by regionID, then runs a reclaim pass.
//
// The caller must ensure the region no longer adds references (its downloads
// are detached) before calling Release. A failed release is retried; each
// attempt only sees the memberships earlier attempts left. Errors from the
// reclaim pass wrap ErrReclaimIncomplete.
func (e *Evictor) Release(ctx context.Context, regionID int64) (Stats, error) {
	ctx, span := telemetry.StartRegionSpan(ctx, telemetry.SpanRelease, regionID)
	defer span.End()

	released, err := e.releaseRegion(ctx, regionID)
	if err != nil {
		telemetry.RecordError(ctx, err)
		return Stats{}, fmt.Errorf("release region %d: %w", regionID, err)
	}

	stats, err := e.Reclaim(ctx)
	stats.Released = len(released)
	if err != nil {
		return stats, fmt.Errorf("%w: %w", ErrReclaimIncomplete, err)
	}

	logger.InfoCtx(ctx, "Region references released",
		"released", stats.Released,
		logger.Evicted(stats.Removed),
		logger.KeyFreed, bytesize.ByteSize(stats.Freed).String())
	return stats, nil
}

func (e *Evictor) releaseRegion(ctx context.Context, regionID int64) ([]resource.Key, error) {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = e.releaseDelay
	b.RandomizationFactor = 0
	b.Multiplier = 2

	var released []resource.Key
	op := func() error {
		keys, err := e.store.ReleaseRegion(ctx, regionID)
		released = append(released, keys...)
		if errors.Is(err, resource.ErrStoreClosed) {
			return backoff.Permanent(err)
		}
		return err
	}
	notify := func(err error, d time.Duration) {
		logger.WarnCtx(ctx, "Region release failed, retrying", logger.Delay(d), logger.Err(err))
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(b, e.releaseRetries), ctx)
	err := backoff.RetryNotify(op, policy, notify)
	return released, err
}

// ReleaseOrphans drops the references of every region for which live
// reports false and returns their ids. Such references are left behind when
// a deletion removed the region record but could not release them.
func (e *Evictor) ReleaseOrphans(ctx context.Context, live func(id int64) bool) ([]int64, error) {
	ids, err := e.store.ReferencingRegions(ctx)
	if err != nil {
		return nil, fmt.Errorf("list referencing regions: %w", err)
	}

	var released []int64
	for _, id := range ids {
		if live(id) {
			continue
		}
		if _, err := e.store.ReleaseRegion(ctx, id); err != nil {
			return released, fmt.Errorf("release orphaned region %d: %w", id, err)
		}
		released = append(released, id)
	}
	return released, nil
}

// Reclaim removes unreferenced resources, least recently requested first,
// until the store is at or below the high-water mark or none remain.
func (e *Evictor) Reclaim(ctx context.Context) (Stats, error) {
	ctx, span := telemetry.StartSpan(ctx, telemetry.SpanEvict)
	defer span.End()

	start := time.Now()
	var stats Stats

	size, err := e.store.Size(ctx)
	if err != nil {
		return stats, fmt.Errorf("read store size: %w", err)
	}
	stats.SizeBefore = size
	stats.SizeAfter = size

	if size <= e.highWaterMark {
		metrics.SetStoreSize(e.metrics, size)
		return stats, nil
	}

	candidates, err := e.store.Reclaimable(ctx)
	if err != nil {
		return stats, fmt.Errorf("list reclaimable resources: %w", err)
	}
	stats.Candidates = len(candidates)

	slices.SortStableFunc(candidates, func(a, b resource.Entry) int {
		return a.LastRequested.Compare(b.LastRequested)
	})

	for _, c := range candidates {
		if size <= e.highWaterMark {
			break
		}
		if err := ctx.Err(); err != nil {
			return stats, err
		}

		removed, err := e.store.Remove(ctx, c.Key)
		switch {
		case errors.Is(err, resource.ErrResourceReferenced), errors.Is(err, resource.ErrResourceNotFound):
			stats.Skipped++
			continue
		case err != nil:
			telemetry.RecordError(ctx, err)
			return stats, fmt.Errorf("remove %s: %w", c.Key, err)
		}

		size -= removed.Size
		stats.Removed++
		stats.Freed += removed.Size
		if removed.MapboxTile {
			stats.MapboxTiles++
		}
	}
	stats.SizeAfter = size

	telemetry.SetAttributes(ctx,
		telemetry.Reclaimed(uint64(stats.Freed)),
		telemetry.StoreSize(uint64(size)))
	metrics.RecordEviction(e.metrics, stats.Removed, stats.Freed)
	metrics.SetStoreSize(e.metrics, size)

	logger.DebugCtx(ctx, "Eviction pass complete",
		logger.Evicted(stats.Removed),
		logger.KeyFreed, stats.Freed,
		logger.KeyStoreSize, size,
		logger.KeyHighWaterMark, e.highWaterMark,
		logger.DurationMs(logger.Duration(start)))
	return stats, nil
}
