// Package notify delivers region events to client observers.
//
// All callbacks of the process run on one Dispatcher goroutine, in the order
// they were posted, so observers never see overlapping or reordered calls.
// Posting never blocks: the download engine's workers hand events over and
// continue.
package notify

import "github.com/marmos91/offlinekit/pkg/region"

// Observer receives the events of one region.
type Observer interface {
	OnStatusChanged(status region.Status)

	// OnError reports a resource that could not be downloaded. The region
	// keeps downloading other resources.
	OnError(err region.Error)

	// OnTileCountLimitExceeded reports that the region needs more Mapbox
	// tiles than the process-wide limit allows.
	OnTileCountLimitExceeded(limit uint64)
}

// ObserverFuncs adapts functions to Observer. Nil fields ignore the event.
type ObserverFuncs struct {
	Status    func(region.Status)
	Error     func(region.Error)
	TileLimit func(uint64)
}

func (f ObserverFuncs) OnStatusChanged(status region.Status) {
	if f.Status != nil {
		f.Status(status)
	}
}

func (f ObserverFuncs) OnError(err region.Error) {
	if f.Error != nil {
		f.Error(err)
	}
}

func (f ObserverFuncs) OnTileCountLimitExceeded(limit uint64) {
	if f.TileLimit != nil {
		f.TileLimit(limit)
	}
}
