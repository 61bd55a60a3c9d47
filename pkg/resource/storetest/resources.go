package storetest

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"github.com/marmos91/offlinekit/pkg/resource"
)

func runResourceTests(t *testing.T, factory StoreFactory) {
	t.Run("PutGet", func(t *testing.T) { testPutGet(t, factory) })
	t.Run("GetNotFound", func(t *testing.T) { testGetNotFound(t, factory) })
	t.Run("PutReplaceKeepsCount", func(t *testing.T) { testPutReplaceKeepsCount(t, factory) })
	t.Run("Refresh", func(t *testing.T) { testRefresh(t, factory) })
	t.Run("SizeAccounting", func(t *testing.T) { testSizeAccounting(t, factory) })
	t.Run("MapboxTileCount", func(t *testing.T) { testMapboxTileCount(t, factory) })
	t.Run("KindsAreDistinct", func(t *testing.T) { testKindsAreDistinct(t, factory) })
}

func testPutGet(t *testing.T, factory StoreFactory) {
	store := factory(t)
	ctx := t.Context()

	key := tileKey(1)
	want := putResource(t, store, key, 1024)

	got, err := store.Get(ctx, key)
	if err != nil {
		t.Fatalf("Get() failed: %v", err)
	}
	if !bytes.Equal(got.Data, want.Data) {
		t.Errorf("Data mismatch: got %d bytes, want %d", len(got.Data), len(want.Data))
	}
	if got.ETag != want.ETag {
		t.Errorf("ETag = %q, want %q", got.ETag, want.ETag)
	}
	if !got.Modified.Equal(want.Modified) {
		t.Errorf("Modified = %v, want %v", got.Modified, want.Modified)
	}
	if got.Key != key {
		t.Errorf("Key = %v, want %v", got.Key, key)
	}
	if got.RefCount != 0 {
		t.Errorf("RefCount = %d, want 0", got.RefCount)
	}
}

func testGetNotFound(t *testing.T, factory StoreFactory) {
	store := factory(t)

	_, err := store.Get(t.Context(), tileKey(42))
	if !errors.Is(err, resource.ErrResourceNotFound) {
		t.Fatalf("Get() error = %v, want ErrResourceNotFound", err)
	}
}

func testPutReplaceKeepsCount(t *testing.T, factory StoreFactory) {
	store := factory(t)
	ctx := t.Context()

	key := tileKey(1)
	putResource(t, store, key, 100)
	addRef(t, store, 1, key)

	putResource(t, store, key, 300)

	got, err := store.Get(ctx, key)
	if err != nil {
		t.Fatalf("Get() failed: %v", err)
	}
	if got.RefCount != 1 {
		t.Errorf("RefCount = %d, want 1", got.RefCount)
	}
	if len(got.Data) != 300 {
		t.Errorf("len(Data) = %d, want 300", len(got.Data))
	}
	if size := mustSize(t, store); size != 300 {
		t.Errorf("Size() = %d, want 300", size)
	}
}

func testRefresh(t *testing.T, factory StoreFactory) {
	store := factory(t)
	ctx := t.Context()

	key := tileKey(1)
	putResource(t, store, key, 10)

	expires := time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)
	if err := store.Refresh(ctx, key, expires, time.Time{}, `"v2"`); err != nil {
		t.Fatalf("Refresh() failed: %v", err)
	}

	got, err := store.Get(ctx, key)
	if err != nil {
		t.Fatalf("Get() failed: %v", err)
	}
	if !got.Expires.Equal(expires) {
		t.Errorf("Expires = %v, want %v", got.Expires, expires)
	}
	if got.ETag != `"v2"` {
		t.Errorf("ETag = %q, want %q", got.ETag, `"v2"`)
	}
	if got.Modified.IsZero() {
		t.Error("Modified should be kept when refresh passes a zero time")
	}

	err = store.Refresh(ctx, tileKey(2), expires, time.Time{}, "")
	if !errors.Is(err, resource.ErrResourceNotFound) {
		t.Errorf("Refresh(missing) error = %v, want ErrResourceNotFound", err)
	}
}

func testSizeAccounting(t *testing.T, factory StoreFactory) {
	store := factory(t)
	ctx := t.Context()

	for i := range 5 {
		putResource(t, store, tileKey(i), 100*(i+1))
	}
	if size := mustSize(t, store); size != 1500 {
		t.Fatalf("Size() = %d, want 1500", size)
	}

	if _, err := store.Remove(ctx, tileKey(4)); err != nil {
		t.Fatalf("Remove() failed: %v", err)
	}
	if size := mustSize(t, store); size != 1000 {
		t.Errorf("Size() after remove = %d, want 1000", size)
	}
}

func testMapboxTileCount(t *testing.T, factory StoreFactory) {
	store := factory(t)
	ctx := t.Context()

	for i := range 3 {
		res := &resource.Resource{Key: tileKey(i), Data: []byte{1}, MapboxTile: i != 1}
		if err := store.Put(ctx, res); err != nil {
			t.Fatalf("Put() failed: %v", err)
		}
	}

	n, err := store.MapboxTileCount(ctx)
	if err != nil {
		t.Fatalf("MapboxTileCount() failed: %v", err)
	}
	if n != 2 {
		t.Errorf("MapboxTileCount() = %d, want 2", n)
	}
}

func testKindsAreDistinct(t *testing.T, factory StoreFactory) {
	store := factory(t)
	ctx := t.Context()

	url := "https://api.example.com/resource"
	style := resource.Key{Kind: resource.KindStyle, URL: url}
	source := resource.Key{Kind: resource.KindSource, URL: url}

	putResource(t, store, style, 10)

	if _, err := store.Get(ctx, source); !errors.Is(err, resource.ErrResourceNotFound) {
		t.Errorf("Get(source) error = %v, want ErrResourceNotFound", err)
	}
}
