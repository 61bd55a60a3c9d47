package download

import "github.com/marmos91/offlinekit/pkg/region"

// Listener receives the events of attached regions.
//
// Methods are called with the engine's state locked, so events of one region
// arrive in the order they happened. Implementations must not block and must
// not call back into the Engine.
type Listener interface {
	StatusChanged(id int64, status region.Status)
	ResourceError(id int64, err region.Error)
	TileLimitExceeded(id int64, limit uint64)
}
