package notify

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHub_FiltersByRegion(t *testing.T) {
	h := NewHub(4)
	one := h.Subscribe(1)
	all := h.Subscribe(0)
	assert.Equal(t, 2, h.Subscribers())

	h.Publish(Event{Type: EventStatus, RegionID: 1})
	h.Publish(Event{Type: EventStatus, RegionID: 2})

	assert.Len(t, one.C, 1)
	assert.Len(t, all.C, 2)
}

func TestHub_DropsWhenFull(t *testing.T) {
	h := NewHub(2)
	sub := h.Subscribe(0)

	for i := 0; i < 5; i++ {
		h.Publish(Event{Type: EventStatus, RegionID: int64(i + 1)})
	}
	require.Len(t, sub.C, 2)
	ev := <-sub.C
	assert.Equal(t, int64(1), ev.RegionID)
}

func TestHub_UnsubscribeClosesChannel(t *testing.T) {
	h := NewHub(1)
	sub := h.Subscribe(0)
	h.Unsubscribe(sub.ID)

	_, ok := <-sub.C
	assert.False(t, ok)
	assert.Zero(t, h.Subscribers())

	// Unknown ids are ignored.
	h.Unsubscribe(sub.ID)
}

func TestHub_Close(t *testing.T) {
	h := NewHub(1)
	sub := h.Subscribe(0)
	h.Close()

	_, ok := <-sub.C
	assert.False(t, ok)

	late := h.Subscribe(0)
	_, ok = <-late.C
	assert.False(t, ok)
	assert.NotPanics(t, func() { h.Publish(Event{}) })
}
