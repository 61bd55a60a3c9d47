// Package storetest provides a conformance test suite for resource backends.
//
// Every resource.Backend implementation (memory, badger, gormstore) should
// pass these tests. The suite pins down the reference-counting contract the
// download and eviction engines rely on.
//
// Usage:
//
//	func TestConformance(t *testing.T) {
//	    storetest.RunConformanceSuite(t, func(t *testing.T) resource.Backend {
//	        return memory.New()
//	    })
//	}
//
// The factory receives *testing.T so it can call t.TempDir() for backends that
// need a filesystem path and t.Cleanup for teardown.
package storetest
