package notify

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/marmos91/offlinekit/internal/logger"
	"github.com/marmos91/offlinekit/pkg/region"
)

// EventType identifies the kind of Event.
type EventType string

const (
	EventStatus    EventType = "status"
	EventError     EventType = "error"
	EventTileLimit EventType = "tile_limit"
	EventDeleted   EventType = "deleted"
)

// Event is a region event as published to hub subscribers.
type Event struct {
	Type     EventType      `json:"type"`
	RegionID int64          `json:"region_id"`
	Status   *region.Status `json:"status,omitempty"`
	Error    *region.Error  `json:"error,omitempty"`
	Limit    uint64         `json:"limit,omitempty"`
	Time     time.Time      `json:"time"`
}

// DefaultSubscriberBuffer is the channel capacity of a subscription.
const DefaultSubscriberBuffer = 256

// Subscription receives hub events until it is unsubscribed.
type Subscription struct {
	ID uuid.UUID
	C  <-chan Event

	regionID int64
	ch       chan Event
}

// Hub fans region events out to any number of subscribers. Publish never
// blocks: a subscriber whose buffer is full misses the event.
type Hub struct {
	buffer int

	mu     sync.RWMutex
	subs   map[uuid.UUID]*Subscription
	closed bool
}

// NewHub creates a hub whose subscriptions buffer up to buffer events.
func NewHub(buffer int) *Hub {
	if buffer <= 0 {
		buffer = DefaultSubscriberBuffer
	}
	return &Hub{
		buffer: buffer,
		subs:   make(map[uuid.UUID]*Subscription),
	}
}

// Subscribe registers a subscriber for the events of regionID, or of every
// region when regionID is 0. The channel is closed by Unsubscribe or Close.
func (h *Hub) Subscribe(regionID int64) *Subscription {
	ch := make(chan Event, h.buffer)
	sub := &Subscription{ID: uuid.New(), C: ch, regionID: regionID, ch: ch}

	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		close(ch)
		return sub
	}
	h.subs[sub.ID] = sub
	return sub
}

// Unsubscribe removes a subscriber and closes its channel.
func (h *Hub) Unsubscribe(id uuid.UUID) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if sub, ok := h.subs[id]; ok {
		delete(h.subs, id)
		close(sub.ch)
	}
}

// Subscribers returns the number of active subscriptions.
func (h *Hub) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// Publish delivers ev to every matching subscriber.
func (h *Hub) Publish(ev Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, sub := range h.subs {
		if sub.regionID != 0 && sub.regionID != ev.RegionID {
			continue
		}
		select {
		case sub.ch <- ev:
		default:
			logger.Debug("Subscriber buffer full, dropping event",
				"subscriber", sub.ID.String(),
				logger.RegionID(ev.RegionID))
		}
	}
}

// Close closes every subscription. Later subscriptions are closed at once.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return
	}
	h.closed = true
	for id, sub := range h.subs {
		close(sub.ch)
		delete(h.subs, id)
	}
}
