package eviction

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/offlinekit/pkg/resource"
	"github.com/marmos91/offlinekit/pkg/resource/memory"
)

// stepClock advances one second on every call.
type stepClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *stepClock) now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(time.Second)
	return c.t
}

func newStore(t *testing.T) *memory.Store {
	t.Helper()
	clock := &stepClock{t: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	s := memory.New(memory.WithClock(clock.now))
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func tile(name string) resource.Key {
	return resource.Key{Kind: resource.KindTile, URL: "https://tiles.example.com/" + name}
}

func put(t *testing.T, s resource.Store, key resource.Key, size int) {
	t.Helper()
	require.NoError(t, s.Put(context.Background(), &resource.Resource{
		Key:  key,
		Data: bytes.Repeat([]byte{'x'}, size),
	}))
}

func ref(t *testing.T, s resource.Store, regionID int64, key resource.Key) {
	t.Helper()
	_, err := s.AddReference(context.Background(), regionID, key)
	require.NoError(t, err)
}

func exists(t *testing.T, s resource.Store, key resource.Key) bool {
	t.Helper()
	_, err := s.Get(context.Background(), key)
	if errors.Is(err, resource.ErrResourceNotFound) {
		return false
	}
	require.NoError(t, err)
	return true
}

func TestReclaim_BelowHighWaterMark(t *testing.T) {
	s := newStore(t)
	for i := 0; i < 3; i++ {
		put(t, s, tile(fmt.Sprint(i)), 100)
	}

	stats, err := New(s, 1000).Reclaim(context.Background())
	require.NoError(t, err)
	assert.Zero(t, stats.Removed)
	assert.Equal(t, int64(300), stats.SizeAfter)
	for i := 0; i < 3; i++ {
		assert.True(t, exists(t, s, tile(fmt.Sprint(i))))
	}
}

func TestReclaim_LeastRecentlyRequestedFirst(t *testing.T) {
	s := newStore(t)
	put(t, s, tile("a"), 100)
	put(t, s, tile("b"), 100)
	put(t, s, tile("c"), 100)

	// Touch a so that b becomes the oldest.
	ref(t, s, 1, tile("a"))
	_, err := s.ReleaseRegion(context.Background(), 1)
	require.NoError(t, err)

	stats, err := New(s, 250).Reclaim(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Removed)
	assert.Equal(t, int64(100), stats.Freed)
	assert.Equal(t, int64(200), stats.SizeAfter)

	assert.True(t, exists(t, s, tile("a")))
	assert.False(t, exists(t, s, tile("b")))
	assert.True(t, exists(t, s, tile("c")))
}

func TestReclaim_StopsWhenNoCandidates(t *testing.T) {
	s := newStore(t)
	put(t, s, tile("held"), 500)
	put(t, s, tile("free"), 100)
	ref(t, s, 1, tile("held"))

	stats, err := New(s, 10).Reclaim(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Removed)
	assert.Equal(t, int64(500), stats.SizeAfter)
	assert.True(t, exists(t, s, tile("held")))
}

func TestRelease_SharedResourceSurvives(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	ev := New(s, 1)

	put(t, s, tile("shared"), 100)
	put(t, s, tile("only-r1"), 100)
	put(t, s, tile("only-r2"), 100)
	ref(t, s, 1, tile("shared"))
	ref(t, s, 1, tile("only-r1"))
	ref(t, s, 2, tile("shared"))
	ref(t, s, 2, tile("only-r2"))

	stats, err := ev.Release(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Released)
	assert.Equal(t, 1, stats.Removed)
	assert.True(t, exists(t, s, tile("shared")))
	assert.False(t, exists(t, s, tile("only-r1")))

	res, err := s.Get(ctx, tile("shared"))
	require.NoError(t, err)
	assert.Equal(t, uint32(1), res.RefCount)

	stats, err = ev.Release(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Removed)
	assert.False(t, exists(t, s, tile("shared")))

	size, err := s.Size(ctx)
	require.NoError(t, err)
	assert.Zero(t, size)

	// Releasing again finds nothing and never drives a count negative.
	stats, err = ev.Release(ctx, 2)
	require.NoError(t, err)
	assert.Zero(t, stats.Released)
}

// racingStore references the first candidate between listing and removal.
type racingStore struct {
	*memory.Store
}

func (r racingStore) Reclaimable(ctx context.Context) ([]resource.Entry, error) {
	entries, err := r.Store.Reclaimable(ctx)
	if err != nil || len(entries) == 0 {
		return entries, err
	}
	for _, e := range entries {
		if e.Key == tile("raced") {
			if _, err := r.Store.AddReference(ctx, 99, e.Key); err != nil {
				return nil, err
			}
		}
	}
	return entries, nil
}

func TestReclaim_NeverRemovesReferenced(t *testing.T) {
	s := newStore(t)
	put(t, s, tile("raced"), 100)
	put(t, s, tile("other"), 100)

	stats, err := New(racingStore{s}, 1).Reclaim(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Skipped)
	assert.Equal(t, 1, stats.Removed)
	assert.True(t, exists(t, s, tile("raced")))
	assert.False(t, exists(t, s, tile("other")))
}

func TestReclaim_CountsMapboxTiles(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	key := resource.Key{Kind: resource.KindTile, URL: "https://api.mapbox.com/v4/a/1/0/0.pbf"}
	require.NoError(t, s.Put(ctx, &resource.Resource{Key: key, Data: []byte("tile"), MapboxTile: true}))

	stats, err := New(s, 1).Reclaim(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), stats.MapboxTiles)

	n, err := s.MapboxTileCount(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestNew_DefaultHighWaterMark(t *testing.T) {
	ev := New(newStore(t), 0)
	assert.Equal(t, int64(DefaultHighWaterMark), ev.HighWaterMark())
}

// flakyStore fails ReleaseRegion failures times, then Remove while
// failRemove is set.
type flakyStore struct {
	*memory.Store
	mu         sync.Mutex
	failures   int
	calls      int
	failRemove bool
}

func (f *flakyStore) ReleaseRegion(ctx context.Context, regionID int64) ([]resource.Key, error) {
	f.mu.Lock()
	f.calls++
	fail := f.calls <= f.failures
	f.mu.Unlock()
	if fail {
		return nil, errors.New("io error")
	}
	return f.Store.ReleaseRegion(ctx, regionID)
}

func (f *flakyStore) Remove(ctx context.Context, key resource.Key) (resource.Entry, error) {
	if f.failRemove {
		return resource.Entry{}, errors.New("io error")
	}
	return f.Store.Remove(ctx, key)
}

func TestRelease_RetriesFailedRelease(t *testing.T) {
	s := newStore(t)
	put(t, s, tile("a"), 100)
	ref(t, s, 1, tile("a"))

	fs := &flakyStore{Store: s, failures: 2}
	stats, err := New(fs, 1, WithReleaseRetry(3, time.Millisecond)).Release(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, 3, fs.calls)
	assert.Equal(t, 1, stats.Released)
	assert.False(t, exists(t, s, tile("a")))
}

func TestRelease_GivesUpAfterRetries(t *testing.T) {
	s := newStore(t)
	put(t, s, tile("a"), 100)
	ref(t, s, 1, tile("a"))

	fs := &flakyStore{Store: s, failures: 10}
	_, err := New(fs, 1, WithReleaseRetry(2, time.Millisecond)).Release(context.Background(), 1)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrReclaimIncomplete)
	assert.Equal(t, 3, fs.calls)
	assert.True(t, exists(t, s, tile("a")))
}

func TestRelease_ReclaimFailureKeepsRelease(t *testing.T) {
	s := newStore(t)
	put(t, s, tile("a"), 100)
	put(t, s, tile("b"), 100)
	ref(t, s, 1, tile("a"))
	ref(t, s, 2, tile("b"))

	fs := &flakyStore{Store: s, failRemove: true}
	stats, err := New(fs, 1).Release(context.Background(), 1)
	require.ErrorIs(t, err, ErrReclaimIncomplete)
	assert.Equal(t, 1, stats.Released)

	// Region 1 is released even though nothing was removed.
	ids, err := s.ReferencingRegions(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []int64{2}, ids)
	assert.True(t, exists(t, s, tile("a")))
}

func TestReleaseOrphans(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	put(t, s, tile("live"), 100)
	put(t, s, tile("gone"), 100)
	ref(t, s, 1, tile("live"))
	ref(t, s, 2, tile("gone"))
	ref(t, s, 3, tile("live"))

	live := func(id int64) bool { return id == 1 }
	released, err := New(s, 1).ReleaseOrphans(ctx, live)
	require.NoError(t, err)
	assert.Equal(t, []int64{2, 3}, released)

	ids, err := s.ReferencingRegions(ctx)
	require.NoError(t, err)
	assert.Equal(t, []int64{1}, ids)

	got, err := s.Get(ctx, tile("live"))
	require.NoError(t, err)
	assert.Equal(t, uint32(1), got.RefCount)
}
