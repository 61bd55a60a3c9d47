package offline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/offlinekit/internal/logger"
	"github.com/marmos91/offlinekit/pkg/download"
	"github.com/marmos91/offlinekit/pkg/notify"
	"github.com/marmos91/offlinekit/pkg/region"
	"github.com/marmos91/offlinekit/pkg/resource"
	"github.com/marmos91/offlinekit/pkg/resource/memory"
	"github.com/marmos91/offlinekit/pkg/transport/transporttest"
)

const waitTimeout = 5 * time.Second

// ============================================================================
// Test helpers
// ============================================================================

// plans maps a style URL to the resources of the regions using it.
type plans map[string]download.StaticPlanner

func (p plans) planner(def region.Definition) download.Planner {
	return p[def.StyleURL]
}

func tiles(host string, names ...string) download.StaticPlanner {
	keys := make(download.StaticPlanner, len(names))
	for i, name := range names {
		keys[i] = tileKey(host, name)
	}
	return keys
}

func tileKey(host, name string) resource.Key {
	return resource.Key{Kind: resource.KindTile, URL: fmt.Sprintf("https://%s/v4/tiles/%s.pbf", host, name)}
}

func numbered(n int) []string {
	names := make([]string, n)
	for i := range names {
		names[i] = fmt.Sprintf("10/%d/0", i)
	}
	return names
}

func definition(style string) region.Definition {
	return region.Definition{
		Bounds:     region.Bounds{North: 1, South: 0, East: 1, West: 0},
		MinZoom:    0,
		MaxZoom:    2,
		StyleURL:   "https://example.com/" + style + ".json",
		PixelRatio: 1,
	}
}

func testConfig() Config {
	cfg := Config{Download: download.DefaultConfig()}
	cfg.Download.Retry.BaseDelay = time.Millisecond
	cfg.Download.Retry.MaxDelay = 4 * time.Millisecond
	cfg.Download.FetchTimeout = 0
	cfg.HighWaterMark = 1
	return cfg
}

// observer records every event of one region.
type observer struct {
	mu       sync.Mutex
	statuses []region.Status
	errs     []region.Error
	limits   []uint64
}

func (o *observer) OnStatusChanged(st region.Status) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.statuses = append(o.statuses, st)
}

func (o *observer) OnError(err region.Error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.errs = append(o.errs, err)
}

func (o *observer) OnTileCountLimitExceeded(limit uint64) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.limits = append(o.limits, limit)
}

func (o *observer) last() region.Status {
	o.mu.Lock()
	defer o.mu.Unlock()
	if len(o.statuses) == 0 {
		return region.Status{}
	}
	return o.statuses[len(o.statuses)-1]
}

func (o *observer) limitEvents() []uint64 {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]uint64(nil), o.limits...)
}

// result captures one callback outcome.
type result struct {
	status  region.Status
	deleted bool
	err     string
}

func deleteInto(ch chan<- result) DeleteFuncs {
	return DeleteFuncs{
		Deleted: func() { ch <- result{deleted: true} },
		Error:   func(msg string) { ch <- result{err: msg} },
	}
}

func statusInto(ch chan<- result) StatusFuncs {
	return StatusFuncs{
		Status: func(st region.Status) { ch <- result{status: st} },
		Error:  func(msg string) { ch <- result{err: msg} },
	}
}

func await(t *testing.T, ch <-chan result) result {
	t.Helper()
	select {
	case r := <-ch:
		return r
	case <-time.After(waitTimeout):
		t.Fatal("callback not delivered")
		return result{}
	}
}

type testEnv struct {
	mgr     *Manager
	backend resource.Backend
	fetcher *transporttest.Fake
	plans   plans
}

func newTestEnv(t *testing.T, backend resource.Backend, cfg Config, p plans) *testEnv {
	t.Helper()

	env := &testEnv{backend: backend, fetcher: transporttest.New(), plans: p}
	mgr, err := Open(context.Background(), backend, env.fetcher, cfg, WithPlanner(p.planner))
	require.NoError(t, err)
	env.mgr = mgr

	t.Cleanup(func() {
		env.fetcher.Unblock()
		_ = env.mgr.Close(context.Background())
	})
	return env
}

func newMemoryBackend(t *testing.T) *memory.Store {
	t.Helper()
	s := memory.New()
	t.Cleanup(func() { _ = s.Close() })
	return s
}

// start creates a region for style, binds an observer and activates it.
func (env *testEnv) start(t *testing.T, style string) (*Region, *observer) {
	t.Helper()
	r, err := env.mgr.CreateRegion(context.Background(), definition(style), []byte(style))
	require.NoError(t, err)

	obs := &observer{}
	require.NoError(t, r.SetObserver(obs))
	require.NoError(t, r.SetDownloadState(region.Active))
	return r, obs
}

func waitComplete(t *testing.T, obs *observer) region.Status {
	t.Helper()
	require.Eventually(t, func() bool {
		return obs.last().IsComplete()
	}, waitTimeout, 5*time.Millisecond)
	return obs.last()
}

func stored(t *testing.T, s resource.Store, key resource.Key) bool {
	t.Helper()
	_, err := s.Get(context.Background(), key)
	if errors.Is(err, resource.ErrResourceNotFound) {
		return false
	}
	require.NoError(t, err)
	return true
}

// ============================================================================
// Download scenarios
// ============================================================================

func TestManager_TenTilesComplete(t *testing.T) {
	env := newTestEnv(t, newMemoryBackend(t), testConfig(), plans{
		"https://example.com/ten.json": tiles("tiles.example.com", numbered(10)...),
	})

	r, obs := env.start(t, "ten")
	st := waitComplete(t, obs)
	assert.Equal(t, uint64(10), st.CompletedResourceCount)
	assert.Equal(t, uint64(10), st.RequiredResourceCount)
	assert.Equal(t, uint64(10), st.CompletedTileCount)
	assert.Equal(t, region.Active, st.DownloadState)

	ch := make(chan result, 1)
	r.GetStatus(statusInto(ch))
	got := await(t, ch)
	assert.Empty(t, got.err)
	assert.True(t, got.status.IsComplete())
	assert.Equal(t, uint64(10), got.status.CompletedResourceCount)
}

func TestManager_StatusNeverExceedsRequired(t *testing.T) {
	env := newTestEnv(t, newMemoryBackend(t), testConfig(), plans{
		"https://example.com/many.json": tiles("tiles.example.com", numbered(40)...),
	})

	_, obs := env.start(t, "many")
	waitComplete(t, obs)

	obs.mu.Lock()
	defer obs.mu.Unlock()
	for _, st := range obs.statuses {
		assert.LessOrEqual(t, st.CompletedResourceCount, st.RequiredResourceCount)
		if st.RequiredResourceCountIsPrecise && st.CompletedResourceCount == st.RequiredResourceCount {
			assert.True(t, st.IsComplete())
		}
	}
}

func TestManager_TileCountLimit(t *testing.T) {
	cfg := testConfig()
	cfg.Download.MaxTileCount = 5
	env := newTestEnv(t, newMemoryBackend(t), cfg, plans{
		"https://example.com/mapbox.json": tiles("api.mapbox.com", numbered(10)...),
	})

	_, obs := env.start(t, "mapbox")

	require.Eventually(t, func() bool {
		return len(obs.limitEvents()) > 0
	}, waitTimeout, 5*time.Millisecond)
	require.NoError(t, env.mgr.Sync(context.Background()))

	assert.Equal(t, uint64(5), obs.limitEvents()[0])
	require.Eventually(t, func() bool {
		return env.fetcher.Total() == 5
	}, waitTimeout, time.Millisecond)
	assert.True(t, obs.last().TileCountLimitExceeded)
	assert.False(t, obs.last().IsComplete())

	require.Eventually(t, func() bool {
		_, used := env.mgr.TileCountLimit()
		return used == 5
	}, waitTimeout, time.Millisecond)
	limit, _ := env.mgr.TileCountLimit()
	assert.Equal(t, uint64(5), limit)

	// No further Mapbox fetches while the limit holds.
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, 5, env.fetcher.Total())

	env.mgr.SetMaxTileCountLimit(20)
	st := waitComplete(t, obs)
	assert.Equal(t, uint64(10), st.CompletedTileCount)
	assert.False(t, st.TileCountLimitExceeded)
	assert.Equal(t, 10, env.fetcher.Total())
}

func TestManager_TileCountLimitHaltsEveryRegion(t *testing.T) {
	cfg := testConfig()
	cfg.Download.MaxTileCount = 5
	env := newTestEnv(t, newMemoryBackend(t), cfg, plans{
		"https://example.com/first.json":  tiles("api.mapbox.com", numbered(10)...),
		"https://example.com/second.json": tiles("api.mapbox.com", "12/0/0", "12/1/0", "12/2/0"),
	})

	_, firstObs := env.start(t, "first")
	require.Eventually(t, func() bool {
		return len(firstObs.limitEvents()) > 0
	}, waitTimeout, 5*time.Millisecond)
	require.Eventually(t, func() bool {
		return env.fetcher.Total() == 5
	}, waitTimeout, time.Millisecond)

	_, secondObs := env.start(t, "second")
	require.Eventually(t, func() bool {
		return len(secondObs.limitEvents()) > 0
	}, waitTimeout, 5*time.Millisecond)
	require.NoError(t, env.mgr.Sync(context.Background()))

	assert.Equal(t, []uint64{5}, secondObs.limitEvents())
	assert.True(t, secondObs.last().TileCountLimitExceeded)
	assert.Zero(t, secondObs.last().CompletedResourceCount)

	// Neither region issues Mapbox requests while the limit holds.
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, 5, env.fetcher.Total())

	env.mgr.SetMaxTileCountLimit(20)
	waitComplete(t, firstObs)
	st := waitComplete(t, secondObs)
	assert.Equal(t, uint64(3), st.CompletedTileCount)
	assert.False(t, st.TileCountLimitExceeded)
	assert.Equal(t, 13, env.fetcher.Total())
}

// ============================================================================
// Deletion
// ============================================================================

func TestManager_DeleteKeepsSharedTile(t *testing.T) {
	backend := newMemoryBackend(t)
	env := newTestEnv(t, backend, testConfig(), plans{
		"https://example.com/r1.json": tiles("tiles.example.com", "shared", "only-r1"),
		"https://example.com/r2.json": tiles("tiles.example.com", "shared", "only-r2"),
	})
	shared := tileKey("tiles.example.com", "shared")

	r1, obs1 := env.start(t, "r1")
	waitComplete(t, obs1)
	r2, obs2 := env.start(t, "r2")
	waitComplete(t, obs2)

	ch := make(chan result, 1)
	r1.Delete(deleteInto(ch))
	got := await(t, ch)
	require.Empty(t, got.err)
	assert.True(t, got.deleted)

	assert.True(t, stored(t, backend, shared))
	assert.False(t, stored(t, backend, tileKey("tiles.example.com", "only-r1")))
	assert.True(t, stored(t, backend, tileKey("tiles.example.com", "only-r2")))

	_, err := env.mgr.Region(r1.ID())
	assert.ErrorIs(t, err, region.ErrRegionNotFound)
	_, err = backend.GetRegion(context.Background(), r1.ID())
	assert.ErrorIs(t, err, region.ErrRegionNotFound)

	r2.Delete(deleteInto(ch))
	got = await(t, ch)
	require.Empty(t, got.err)
	assert.False(t, stored(t, backend, shared))

	size, _, err := env.mgr.StoreSize(context.Background())
	require.NoError(t, err)
	assert.Zero(t, size)
	assert.Empty(t, env.mgr.ListRegions())
}

func TestManager_DeleteBelowHighWaterMarkKeepsResources(t *testing.T) {
	backend := newMemoryBackend(t)
	cfg := testConfig()
	cfg.HighWaterMark = 1 << 20
	env := newTestEnv(t, backend, cfg, plans{
		"https://example.com/small.json": tiles("tiles.example.com", "a", "b"),
	})

	r, obs := env.start(t, "small")
	waitComplete(t, obs)

	ch := make(chan result, 1)
	r.Delete(deleteInto(ch))
	require.True(t, await(t, ch).deleted)

	// Unreferenced but kept: the store is below the high-water mark.
	res, err := backend.Get(context.Background(), tileKey("tiles.example.com", "a"))
	require.NoError(t, err)
	assert.Zero(t, res.RefCount)
}

func TestManager_DeleteRacesWithOtherOperations(t *testing.T) {
	env := newTestEnv(t, newMemoryBackend(t), testConfig(), plans{
		"https://example.com/slow.json": tiles("tiles.example.com", numbered(3)...),
	})
	env.fetcher.Block()

	r, _ := env.start(t, "slow")
	require.Eventually(t, func() bool {
		return env.fetcher.Total() > 0
	}, waitTimeout, time.Millisecond)

	first := make(chan result, 1)
	second := make(chan result, 1)
	r.Delete(deleteInto(first))
	r.Delete(deleteInto(second))

	// Issued after deletion started.
	assert.ErrorIs(t, r.SetDownloadState(region.Active), region.ErrRegionNotFound)
	assert.ErrorIs(t, r.UpdateMetadata(context.Background(), []byte("x")), region.ErrRegionNotFound)
	statusCh := make(chan result, 1)
	r.GetStatus(statusInto(statusCh))
	assert.Contains(t, await(t, statusCh).err, "not found")

	// Deletion waits for the in-flight fetch.
	select {
	case <-first:
		t.Fatal("deletion finished with a fetch in flight")
	case <-time.After(20 * time.Millisecond):
	}

	env.fetcher.Unblock()
	assert.True(t, await(t, first).deleted)
	assert.True(t, await(t, second).deleted)

	third := make(chan result, 1)
	r.Delete(deleteInto(third))
	assert.Contains(t, await(t, third).err, "not found")
}

func TestManager_DeletePublishesEvent(t *testing.T) {
	env := newTestEnv(t, newMemoryBackend(t), testConfig(), plans{
		"https://example.com/ev.json": tiles("tiles.example.com", "a"),
	})

	r, err := env.mgr.CreateRegion(context.Background(), definition("ev"), nil)
	require.NoError(t, err)
	sub := env.mgr.Hub().Subscribe(r.ID())
	defer env.mgr.Hub().Unsubscribe(sub.ID)

	ch := make(chan result, 1)
	r.Delete(deleteInto(ch))
	require.True(t, await(t, ch).deleted)

	timeout := time.After(waitTimeout)
	for {
		select {
		case ev := <-sub.C:
			if ev.Type == notify.EventDeleted {
				assert.Equal(t, r.ID(), ev.RegionID)
				return
			}
		case <-timeout:
			t.Fatal("deleted event not published")
		}
	}
}

// failingBackend fails the named store operations with "disk full".
type failingBackend struct {
	*memory.Store
	mu   sync.Mutex
	fail map[string]bool
}

func newFailingBackend(t *testing.T) *failingBackend {
	return &failingBackend{Store: newMemoryBackend(t), fail: make(map[string]bool)}
}

func (b *failingBackend) setFail(op string, v bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.fail[op] = v
}

func (b *failingBackend) failing(op string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.fail[op]
}

var errDiskFull = errors.New("disk full")

func (b *failingBackend) DeleteRegion(ctx context.Context, id int64) error {
	if b.failing("DeleteRegion") {
		return errDiskFull
	}
	return b.Store.DeleteRegion(ctx, id)
}

func (b *failingBackend) ReleaseRegion(ctx context.Context, regionID int64) ([]resource.Key, error) {
	if b.failing("ReleaseRegion") {
		return nil, errDiskFull
	}
	return b.Store.ReleaseRegion(ctx, regionID)
}

func (b *failingBackend) Remove(ctx context.Context, key resource.Key) (resource.Entry, error) {
	if b.failing("Remove") {
		return resource.Entry{}, errDiskFull
	}
	return b.Store.Remove(ctx, key)
}

func refCount(t *testing.T, s resource.Store, key resource.Key) uint32 {
	t.Helper()
	res, err := s.Get(context.Background(), key)
	require.NoError(t, err)
	return res.RefCount
}

func TestManager_DeleteStoreFailureLeavesRegion(t *testing.T) {
	backend := newFailingBackend(t)
	env := newTestEnv(t, backend, testConfig(), plans{
		"https://example.com/keep.json":  tiles("tiles.example.com", "a", "b"),
		"https://example.com/other.json": tiles("tiles.example.com", "c"),
	})

	r, obs := env.start(t, "keep")
	waitComplete(t, obs)
	other, otherObs := env.start(t, "other")
	waitComplete(t, otherObs)

	backend.setFail("DeleteRegion", true)
	ch := make(chan result, 1)
	r.Delete(deleteInto(ch))
	got := await(t, ch)
	assert.False(t, got.deleted)
	assert.Contains(t, got.err, "disk full")
	backend.setFail("DeleteRegion", false)

	found, err := env.mgr.Region(r.ID())
	require.NoError(t, err)
	assert.Same(t, r, found)
	assert.Equal(t, region.Inactive, r.DownloadState())
	assert.Equal(t, uint32(1), refCount(t, backend, tileKey("tiles.example.com", "a")))

	// Another deletion must not reclaim tiles of the restored region.
	other.Delete(deleteInto(ch))
	require.True(t, await(t, ch).deleted)
	assert.True(t, stored(t, backend, tileKey("tiles.example.com", "a")))
	assert.True(t, stored(t, backend, tileKey("tiles.example.com", "b")))
	assert.False(t, stored(t, backend, tileKey("tiles.example.com", "c")))

	// The region is usable again.
	require.NoError(t, r.SetDownloadState(region.Active))
	require.Eventually(t, func() bool {
		st := obs.last()
		return st.DownloadState == region.Active && st.IsComplete()
	}, waitTimeout, 5*time.Millisecond)

	r.Delete(deleteInto(ch))
	assert.True(t, await(t, ch).deleted)
}

func TestManager_DeleteReclaimFailureStillDeletes(t *testing.T) {
	backend := newFailingBackend(t)
	env := newTestEnv(t, backend, testConfig(), plans{
		"https://example.com/first.json":  tiles("tiles.example.com", "a", "b"),
		"https://example.com/second.json": tiles("tiles.example.com", "c"),
	})

	first, obs := env.start(t, "first")
	waitComplete(t, obs)
	second, secondObs := env.start(t, "second")
	waitComplete(t, secondObs)

	backend.setFail("Remove", true)
	ch := make(chan result, 1)
	first.Delete(deleteInto(ch))
	require.True(t, await(t, ch).deleted)
	backend.setFail("Remove", false)

	_, err := env.mgr.Region(first.ID())
	assert.ErrorIs(t, err, region.ErrRegionNotFound)
	_, err = backend.GetRegion(context.Background(), first.ID())
	assert.ErrorIs(t, err, region.ErrRegionNotFound)

	// The deleted region's tiles are unreferenced, the live one's are not.
	assert.Zero(t, refCount(t, backend, tileKey("tiles.example.com", "a")))
	assert.Equal(t, uint32(1), refCount(t, backend, tileKey("tiles.example.com", "c")))

	// The next pass finishes the reclaim.
	second.Delete(deleteInto(ch))
	require.True(t, await(t, ch).deleted)
	for _, name := range []string{"a", "b", "c"} {
		assert.False(t, stored(t, backend, tileKey("tiles.example.com", name)), name)
	}
}

func TestManager_DeleteReleaseFailureReleasedLater(t *testing.T) {
	backend := newFailingBackend(t)
	env := newTestEnv(t, backend, testConfig(), plans{
		"https://example.com/first.json":  tiles("tiles.example.com", "a"),
		"https://example.com/second.json": tiles("tiles.example.com", "b"),
	})

	first, obs := env.start(t, "first")
	waitComplete(t, obs)
	second, secondObs := env.start(t, "second")
	waitComplete(t, secondObs)

	backend.setFail("ReleaseRegion", true)
	ch := make(chan result, 1)
	first.Delete(deleteInto(ch))
	require.True(t, await(t, ch).deleted)
	backend.setFail("ReleaseRegion", false)

	_, err := env.mgr.Region(first.ID())
	assert.ErrorIs(t, err, region.ErrRegionNotFound)
	assert.Equal(t, uint32(1), refCount(t, backend, tileKey("tiles.example.com", "a")))

	// The next deletion releases the leftovers first.
	second.Delete(deleteInto(ch))
	require.True(t, await(t, ch).deleted)
	assert.False(t, stored(t, backend, tileKey("tiles.example.com", "a")))
	assert.False(t, stored(t, backend, tileKey("tiles.example.com", "b")))

	ids, err := backend.ReferencingRegions(context.Background())
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestManager_OpenReleasesOrphanedReferences(t *testing.T) {
	backend := newMemoryBackend(t)
	ctx := context.Background()

	kept, err := backend.CreateRegion(ctx, definition("kept"), nil)
	require.NoError(t, err)

	keptTile := tileKey("tiles.example.com", "kept")
	orphanTile := tileKey("tiles.example.com", "orphan")
	for _, key := range []resource.Key{keptTile, orphanTile} {
		require.NoError(t, backend.Put(ctx, &resource.Resource{Key: key, Data: []byte("tile")}))
	}
	_, err = backend.AddReference(ctx, kept.ID, keptTile)
	require.NoError(t, err)
	// References of a region whose record is already gone.
	_, err = backend.AddReference(ctx, 42, orphanTile)
	require.NoError(t, err)

	newTestEnv(t, backend, testConfig(), plans{})

	assert.Equal(t, uint32(1), refCount(t, backend, keptTile))
	assert.Zero(t, refCount(t, backend, orphanTile))
	ids, err := backend.ReferencingRegions(ctx)
	require.NoError(t, err)
	assert.Equal(t, []int64{kept.ID}, ids)
}

// lockedBuffer is a bytes.Buffer safe for concurrent writers.
type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) lines() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return strings.Split(b.buf.String(), "\n")
}

func TestManager_DeleteLogsRegionOnce(t *testing.T) {
	out := &lockedBuffer{}
	logger.InitWithWriter(out, "DEBUG", "text", false)
	t.Cleanup(func() { logger.InitWithWriter(io.Discard, "INFO", "text", false) })

	env := newTestEnv(t, newMemoryBackend(t), testConfig(), plans{
		"https://example.com/logged.json": tiles("tiles.example.com", "a"),
	})
	r, obs := env.start(t, "logged")
	waitComplete(t, obs)

	ch := make(chan result, 1)
	r.Delete(deleteInto(ch))
	require.True(t, await(t, ch).deleted)

	var found bool
	for _, line := range out.lines() {
		if !strings.Contains(line, "Region deleted") &&
			!strings.Contains(line, "Region references released") &&
			!strings.Contains(line, "Region storage reclaimed") {
			continue
		}
		found = true
		assert.Equal(t, 1, strings.Count(line, logger.KeyRegionID+"="), line)
	}
	assert.True(t, found, "delete was not logged")
}

func TestManager_CallbacksAfterClose(t *testing.T) {
	env := newTestEnv(t, newMemoryBackend(t), testConfig(), plans{
		"https://example.com/late.json": tiles("tiles.example.com", "a"),
	})
	r, err := env.mgr.CreateRegion(context.Background(), definition("late"), nil)
	require.NoError(t, err)
	require.NoError(t, env.mgr.Close(context.Background()))

	ch := make(chan result, 1)
	r.GetStatus(statusInto(ch))
	got := await(t, ch)
	assert.Contains(t, got.err, ErrManagerClosed.Error())

	r.Delete(deleteInto(ch))
	got = await(t, ch)
	assert.False(t, got.deleted)
	assert.Contains(t, got.err, ErrManagerClosed.Error())
}

// ============================================================================
// Catalog
// ============================================================================

func TestManager_CreateRejectsInvalidDefinition(t *testing.T) {
	env := newTestEnv(t, newMemoryBackend(t), testConfig(), plans{})

	def := definition("bad")
	def.MaxZoom = -1
	_, err := env.mgr.CreateRegion(context.Background(), def, nil)
	assert.ErrorIs(t, err, region.ErrInvalidDefinition)
	assert.Empty(t, env.mgr.ListRegions())
}

func TestManager_UpdateMetadata(t *testing.T) {
	backend := newMemoryBackend(t)
	env := newTestEnv(t, backend, testConfig(), plans{})

	r, err := env.mgr.CreateRegion(context.Background(), definition("meta"), []byte("v1"))
	require.NoError(t, err)
	assert.Equal(t, []byte("v1"), r.Metadata())

	require.NoError(t, r.UpdateMetadata(context.Background(), []byte("v2")))
	assert.Equal(t, []byte("v2"), r.Metadata())

	rec, err := backend.GetRegion(context.Background(), r.ID())
	require.NoError(t, err)
	assert.Equal(t, []byte("v2"), rec.Metadata)
}

func TestManager_RestoresRegionsOnOpen(t *testing.T) {
	backend := newMemoryBackend(t)
	p := plans{
		"https://example.com/persist.json": tiles("tiles.example.com", numbered(4)...),
	}
	env := newTestEnv(t, backend, testConfig(), p)

	r, obs := env.start(t, "persist")
	waitComplete(t, obs)
	require.NoError(t, env.mgr.Close(context.Background()))

	reopened := newTestEnv(t, backend, testConfig(), p)
	regions := reopened.mgr.ListRegions()
	require.Len(t, regions, 1)

	got := regions[0]
	assert.Equal(t, r.ID(), got.ID())
	assert.Equal(t, []byte("persist"), got.Metadata())
	assert.Equal(t, definition("persist"), got.Definition())

	st, err := got.Status()
	require.NoError(t, err)
	assert.Equal(t, region.Inactive, st.DownloadState)
	assert.Equal(t, uint64(4), st.CompletedResourceCount)
	assert.Equal(t, uint64(4), st.CompletedTileCount)

	// Reactivating is satisfied from the store.
	obs2 := &observer{}
	require.NoError(t, got.SetObserver(obs2))
	require.NoError(t, got.SetDownloadState(region.Active))
	waitComplete(t, obs2)
	assert.Zero(t, reopened.fetcher.Total())
}

func TestManager_ClosedRejectsCreate(t *testing.T) {
	env := newTestEnv(t, newMemoryBackend(t), testConfig(), plans{})
	require.NoError(t, env.mgr.Close(context.Background()))

	_, err := env.mgr.CreateRegion(context.Background(), definition("late"), nil)
	assert.ErrorIs(t, err, ErrManagerClosed)
}
