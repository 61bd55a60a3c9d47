package notify

import (
	"sync"
	"time"

	"github.com/marmos91/offlinekit/internal/logger"
	"github.com/marmos91/offlinekit/pkg/region"
)

// Notifier routes region events to the observer bound to each region and to
// an optional Hub. At most one observer is bound per region; binding a new one
// replaces the previous. The observer is looked up when the event is
// delivered, so events still queued at the time of a swap reach the new one.
type Notifier struct {
	dispatcher *Dispatcher
	hub        *Hub
	now        func() time.Time

	mu        sync.RWMutex
	observers map[int64]Observer
}

// NewNotifier creates a notifier delivering on d. hub may be nil.
func NewNotifier(d *Dispatcher, hub *Hub) *Notifier {
	return &Notifier{
		dispatcher: d,
		hub:        hub,
		now:        time.Now,
		observers:  make(map[int64]Observer),
	}
}

// Dispatcher returns the dispatcher events are delivered on.
func (n *Notifier) Dispatcher() *Dispatcher {
	return n.dispatcher
}

// SetObserver binds o to region id. A nil o clears the binding.
func (n *Notifier) SetObserver(id int64, o Observer) {
	n.mu.Lock()
	defer n.mu.Unlock()

	if o == nil {
		delete(n.observers, id)
		return
	}
	n.observers[id] = o
}

// ClearObserver removes the binding of region id.
func (n *Notifier) ClearObserver(id int64) {
	n.SetObserver(id, nil)
}

func (n *Notifier) observer(id int64) Observer {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.observers[id]
}

// StatusChanged delivers a status snapshot.
func (n *Notifier) StatusChanged(id int64, status region.Status) {
	n.post(Event{Type: EventStatus, RegionID: id, Status: &status}, func(o Observer) {
		o.OnStatusChanged(status)
	})
}

// ResourceError delivers a resource error.
func (n *Notifier) ResourceError(id int64, err region.Error) {
	n.post(Event{Type: EventError, RegionID: id, Error: &err}, func(o Observer) {
		o.OnError(err)
	})
}

// TileLimitExceeded delivers a tile count limit notification.
func (n *Notifier) TileLimitExceeded(id int64, limit uint64) {
	n.post(Event{Type: EventTileLimit, RegionID: id, Limit: limit}, func(o Observer) {
		o.OnTileCountLimitExceeded(limit)
	})
}

// Deleted publishes the deletion of a region to the hub. Observers are not
// called: deletion is reported through the delete callback.
func (n *Notifier) Deleted(id int64) {
	n.post(Event{Type: EventDeleted, RegionID: id}, nil)
}

func (n *Notifier) post(ev Event, deliver func(Observer)) {
	ev.Time = n.now()
	err := n.dispatcher.Post(func() {
		if deliver != nil {
			if o := n.observer(ev.RegionID); o != nil {
				deliver(o)
			}
		}
		if n.hub != nil {
			n.hub.Publish(ev)
		}
	})
	if err != nil {
		logger.Debug("Dropping region event", logger.RegionID(ev.RegionID), "type", string(ev.Type), logger.Err(err))
	}
}
