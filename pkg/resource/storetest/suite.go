package storetest

import (
	"fmt"
	"testing"
	"time"

	"github.com/marmos91/offlinekit/pkg/resource"
)

// StoreFactory creates a fresh backend for each test.
type StoreFactory func(t *testing.T) resource.Backend

// RunConformanceSuite runs the full conformance suite against factory. Each
// test gets its own backend instance.
//
// The suite covers:
//   - Resources: put, get, refresh, size accounting
//   - References: counting, release, removal of unreferenced resources
//   - Catalog: region records
func RunConformanceSuite(t *testing.T, factory StoreFactory) {
	t.Helper()

	t.Run("Resources", func(t *testing.T) {
		runResourceTests(t, factory)
	})

	t.Run("References", func(t *testing.T) {
		runReferenceTests(t, factory)
	})

	t.Run("Catalog", func(t *testing.T) {
		runCatalogTests(t, factory)
	})
}

// tileKey returns a distinct tile key for n.
func tileKey(n int) resource.Key {
	return resource.Key{
		Kind: resource.KindTile,
		URL:  fmt.Sprintf("https://tiles.example.com/v1/10/%d/%d.pbf", n, n+1),
	}
}

// putResource stores a resource of the given size and fails the test on error.
func putResource(t *testing.T, store resource.Store, key resource.Key, size int) *resource.Resource {
	t.Helper()

	data := make([]byte, size)
	for i := range data {
		data[i] = byte(i % 251)
	}
	res := &resource.Resource{
		Key:      key,
		Data:     data,
		ETag:     `"v1"`,
		Modified: time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC),
	}
	if err := store.Put(t.Context(), res); err != nil {
		t.Fatalf("Put(%s) failed: %v", key, err)
	}
	return res
}

// addRef adds a reference and fails the test on error.
func addRef(t *testing.T, store resource.Store, regionID int64, key resource.Key) uint32 {
	t.Helper()

	n, err := store.AddReference(t.Context(), regionID, key)
	if err != nil {
		t.Fatalf("AddReference(%d, %s) failed: %v", regionID, key, err)
	}
	return n
}

// mustSize returns the store size and fails the test on error.
func mustSize(t *testing.T, store resource.Store) int64 {
	t.Helper()

	n, err := store.Size(t.Context())
	if err != nil {
		t.Fatalf("Size() failed: %v", err)
	}
	return n
}
