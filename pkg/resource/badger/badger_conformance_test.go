package badger_test

import (
	"testing"

	"github.com/marmos91/offlinekit/pkg/resource"
	"github.com/marmos91/offlinekit/pkg/resource/badger"
	"github.com/marmos91/offlinekit/pkg/resource/storetest"
)

func TestConformance(t *testing.T) {
	storetest.RunConformanceSuite(t, func(t *testing.T) resource.Backend {
		store, err := badger.Open(t.Context(), badger.Config{Path: t.TempDir()})
		if err != nil {
			t.Fatalf("Open() failed: %v", err)
		}
		t.Cleanup(func() {
			store.Close()
		})
		return store
	})
}
