package notify

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestDispatcher(t *testing.T) *Dispatcher {
	t.Helper()
	d := NewDispatcher()
	t.Cleanup(func() {
		_ = d.Close(context.Background())
	})
	return d
}

func TestDispatcher_RunsInOrder(t *testing.T) {
	d := newTestDispatcher(t)

	var (
		mu  sync.Mutex
		got []int
	)
	for i := 0; i < 1000; i++ {
		require.NoError(t, d.Post(func() {
			mu.Lock()
			got = append(got, i)
			mu.Unlock()
		}))
	}
	require.NoError(t, d.Sync(context.Background()))

	require.Len(t, got, 1000)
	for i, v := range got {
		assert.Equal(t, i, v)
	}
}

func TestDispatcher_NeverOverlaps(t *testing.T) {
	d := newTestDispatcher(t)

	var running, overlaps atomic.Int32
	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				_ = d.Post(func() {
					if running.Add(1) > 1 {
						overlaps.Add(1)
					}
					time.Sleep(10 * time.Microsecond)
					running.Add(-1)
				})
			}
		}()
	}
	wg.Wait()
	require.NoError(t, d.Sync(context.Background()))
	assert.Zero(t, overlaps.Load())
}

func TestDispatcher_PostDoesNotBlock(t *testing.T) {
	d := newTestDispatcher(t)

	release := make(chan struct{})
	require.NoError(t, d.Post(func() { <-release }))

	done := make(chan struct{})
	go func() {
		for i := 0; i < 10000; i++ {
			_ = d.Post(func() {})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Post blocked behind a running task")
	}
	close(release)
}

func TestDispatcher_RecoversPanics(t *testing.T) {
	d := newTestDispatcher(t)

	ran := make(chan struct{})
	require.NoError(t, d.Post(func() { panic("boom") }))
	require.NoError(t, d.Post(func() { close(ran) }))

	select {
	case <-ran:
	case <-time.After(time.Second):
		t.Fatal("dispatcher stopped after a panic")
	}
}

func TestDispatcher_CloseDrains(t *testing.T) {
	d := NewDispatcher()

	var n atomic.Int32
	for i := 0; i < 50; i++ {
		require.NoError(t, d.Post(func() { n.Add(1) }))
	}
	require.NoError(t, d.Close(context.Background()))
	assert.Equal(t, int32(50), n.Load())

	assert.ErrorIs(t, d.Post(func() {}), ErrDispatcherClosed)
	assert.ErrorIs(t, d.Sync(context.Background()), ErrDispatcherClosed)
}
