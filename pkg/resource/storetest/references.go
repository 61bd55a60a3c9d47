package storetest

import (
	"errors"
	"slices"
	"sync"
	"testing"

	"github.com/marmos91/offlinekit/pkg/resource"
)

func runReferenceTests(t *testing.T, factory StoreFactory) {
	t.Run("AddReferenceCountsRegionOnce", func(t *testing.T) { testAddReferenceOnce(t, factory) })
	t.Run("AddReferenceMissing", func(t *testing.T) { testAddReferenceMissing(t, factory) })
	t.Run("SharedResource", func(t *testing.T) { testSharedResource(t, factory) })
	t.Run("ReleaseUnknownRegion", func(t *testing.T) { testReleaseUnknownRegion(t, factory) })
	t.Run("RemoveReferenced", func(t *testing.T) { testRemoveReferenced(t, factory) })
	t.Run("Reclaimable", func(t *testing.T) { testReclaimable(t, factory) })
	t.Run("RegionResources", func(t *testing.T) { testRegionResources(t, factory) })
	t.Run("ReferencingRegions", func(t *testing.T) { testReferencingRegions(t, factory) })
	t.Run("ConcurrentRegions", func(t *testing.T) { testConcurrentRegions(t, factory) })
}

func testAddReferenceOnce(t *testing.T, factory StoreFactory) {
	store := factory(t)
	ctx := t.Context()

	key := tileKey(1)
	putResource(t, store, key, 10)

	if n := addRef(t, store, 7, key); n != 1 {
		t.Errorf("first AddReference() = %d, want 1", n)
	}
	if n := addRef(t, store, 7, key); n != 1 {
		t.Errorf("repeated AddReference() = %d, want 1", n)
	}

	got, err := store.Get(ctx, key)
	if err != nil {
		t.Fatalf("Get() failed: %v", err)
	}
	if got.RefCount != 1 {
		t.Errorf("RefCount = %d, want 1", got.RefCount)
	}
	if got.LastRequested.IsZero() {
		t.Error("LastRequested should be set")
	}
}

func testAddReferenceMissing(t *testing.T, factory StoreFactory) {
	store := factory(t)

	_, err := store.AddReference(t.Context(), 1, tileKey(9))
	if !errors.Is(err, resource.ErrResourceNotFound) {
		t.Fatalf("AddReference() error = %v, want ErrResourceNotFound", err)
	}
}

func testSharedResource(t *testing.T, factory StoreFactory) {
	store := factory(t)
	ctx := t.Context()

	shared := tileKey(1)
	onlyA := tileKey(2)
	putResource(t, store, shared, 10)
	putResource(t, store, onlyA, 10)

	addRef(t, store, 1, shared)
	addRef(t, store, 1, onlyA)
	if n := addRef(t, store, 2, shared); n != 2 {
		t.Fatalf("AddReference(region 2) = %d, want 2", n)
	}

	zero, err := store.ReleaseRegion(ctx, 1)
	if err != nil {
		t.Fatalf("ReleaseRegion(1) failed: %v", err)
	}
	if len(zero) != 1 || zero[0] != onlyA {
		t.Fatalf("ReleaseRegion(1) = %v, want [%v]", zero, onlyA)
	}

	got, err := store.Get(ctx, shared)
	if err != nil {
		t.Fatalf("Get(shared) failed: %v", err)
	}
	if got.RefCount != 1 {
		t.Errorf("shared RefCount = %d, want 1", got.RefCount)
	}

	zero, err = store.ReleaseRegion(ctx, 2)
	if err != nil {
		t.Fatalf("ReleaseRegion(2) failed: %v", err)
	}
	if len(zero) != 1 || zero[0] != shared {
		t.Errorf("ReleaseRegion(2) = %v, want [%v]", zero, shared)
	}

	zero, err = store.ReleaseRegion(ctx, 2)
	if err != nil {
		t.Fatalf("second ReleaseRegion(2) failed: %v", err)
	}
	if len(zero) != 0 {
		t.Errorf("second ReleaseRegion(2) = %v, want none", zero)
	}
}

func testReleaseUnknownRegion(t *testing.T, factory StoreFactory) {
	store := factory(t)

	zero, err := store.ReleaseRegion(t.Context(), 99)
	if err != nil {
		t.Fatalf("ReleaseRegion() failed: %v", err)
	}
	if len(zero) != 0 {
		t.Errorf("ReleaseRegion() = %v, want none", zero)
	}
}

func testRemoveReferenced(t *testing.T, factory StoreFactory) {
	store := factory(t)
	ctx := t.Context()

	key := tileKey(1)
	putResource(t, store, key, 64)
	addRef(t, store, 3, key)

	if _, err := store.Remove(ctx, key); !errors.Is(err, resource.ErrResourceReferenced) {
		t.Fatalf("Remove(referenced) error = %v, want ErrResourceReferenced", err)
	}

	if _, err := store.ReleaseRegion(ctx, 3); err != nil {
		t.Fatalf("ReleaseRegion() failed: %v", err)
	}

	entry, err := store.Remove(ctx, key)
	if err != nil {
		t.Fatalf("Remove() failed: %v", err)
	}
	if entry.Size != 64 {
		t.Errorf("removed Size = %d, want 64", entry.Size)
	}
	if _, err := store.Get(ctx, key); !errors.Is(err, resource.ErrResourceNotFound) {
		t.Errorf("Get(removed) error = %v, want ErrResourceNotFound", err)
	}
	if _, err := store.Remove(ctx, key); !errors.Is(err, resource.ErrResourceNotFound) {
		t.Errorf("Remove(removed) error = %v, want ErrResourceNotFound", err)
	}
}

func testReclaimable(t *testing.T, factory StoreFactory) {
	store := factory(t)
	ctx := t.Context()

	for i := range 4 {
		putResource(t, store, tileKey(i), 10)
	}
	addRef(t, store, 1, tileKey(0))
	addRef(t, store, 1, tileKey(2))

	entries, err := store.Reclaimable(ctx)
	if err != nil {
		t.Fatalf("Reclaimable() failed: %v", err)
	}

	var got []string
	for _, e := range entries {
		if e.RefCount != 0 {
			t.Errorf("Reclaimable() returned %v with count %d", e.Key, e.RefCount)
		}
		got = append(got, e.Key.URL)
	}
	slices.Sort(got)
	want := []string{tileKey(1).URL, tileKey(3).URL}
	slices.Sort(want)
	if !slices.Equal(got, want) {
		t.Errorf("Reclaimable() = %v, want %v", got, want)
	}
}

func testRegionResources(t *testing.T, factory StoreFactory) {
	store := factory(t)
	ctx := t.Context()

	style := resource.Key{Kind: resource.KindStyle, URL: "https://api.example.com/style.json"}
	putResource(t, store, style, 50)
	addRef(t, store, 5, style)
	for i := range 3 {
		putResource(t, store, tileKey(i), 100)
		addRef(t, store, 5, tileKey(i))
	}
	putResource(t, store, tileKey(10), 1000)
	addRef(t, store, 6, tileKey(10))

	usage, err := resource.UsageOf(ctx, store, 5)
	if err != nil {
		t.Fatalf("UsageOf() failed: %v", err)
	}
	want := resource.Usage{Count: 4, Size: 350, TileCount: 3, TileSize: 300}
	if usage != want {
		t.Errorf("UsageOf() = %+v, want %+v", usage, want)
	}

	entries, err := store.RegionResources(ctx, 404)
	if err != nil {
		t.Fatalf("RegionResources(unknown) failed: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("RegionResources(unknown) = %d entries, want 0", len(entries))
	}
}

func testReferencingRegions(t *testing.T, factory StoreFactory) {
	store := factory(t)
	ctx := t.Context()

	putResource(t, store, tileKey(1), 8)
	putResource(t, store, tileKey(2), 8)
	addRef(t, store, 12, tileKey(1))
	addRef(t, store, 3, tileKey(1))
	addRef(t, store, 3, tileKey(2))
	addRef(t, store, 120, tileKey(2))

	ids, err := store.ReferencingRegions(ctx)
	if err != nil {
		t.Fatalf("ReferencingRegions() failed: %v", err)
	}
	if !slices.Equal(ids, []int64{3, 12, 120}) {
		t.Errorf("ReferencingRegions() = %v, want [3 12 120]", ids)
	}

	if _, err := store.ReleaseRegion(ctx, 12); err != nil {
		t.Fatalf("ReleaseRegion() failed: %v", err)
	}
	ids, err = store.ReferencingRegions(ctx)
	if err != nil {
		t.Fatalf("ReferencingRegions() failed: %v", err)
	}
	if !slices.Equal(ids, []int64{3, 120}) {
		t.Errorf("ReferencingRegions() after release = %v, want [3 120]", ids)
	}
}

func testConcurrentRegions(t *testing.T, factory StoreFactory) {
	store := factory(t)
	ctx := t.Context()

	const regions = 8
	const tiles = 16
	for i := range tiles {
		putResource(t, store, tileKey(i), 8)
	}

	var wg sync.WaitGroup
	errs := make(chan error, regions*tiles)
	for r := range regions {
		wg.Add(1)
		go func(regionID int64) {
			defer wg.Done()
			for i := range tiles {
				if _, err := store.AddReference(ctx, regionID, tileKey(i)); err != nil {
					errs <- err
				}
			}
		}(int64(r + 1))
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatalf("concurrent AddReference() failed: %v", err)
	}

	for i := range tiles {
		got, err := store.Get(ctx, tileKey(i))
		if err != nil {
			t.Fatalf("Get() failed: %v", err)
		}
		if got.RefCount != regions {
			t.Errorf("tile %d RefCount = %d, want %d", i, got.RefCount, regions)
		}
	}
}
