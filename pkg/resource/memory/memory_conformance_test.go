package memory_test

import (
	"testing"

	"github.com/marmos91/offlinekit/pkg/resource"
	"github.com/marmos91/offlinekit/pkg/resource/memory"
	"github.com/marmos91/offlinekit/pkg/resource/storetest"
)

func TestConformance(t *testing.T) {
	storetest.RunConformanceSuite(t, func(t *testing.T) resource.Backend {
		return memory.New()
	})
}
