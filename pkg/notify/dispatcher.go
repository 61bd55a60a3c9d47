package notify

import (
	"context"
	"errors"
	"runtime/debug"
	"sync"

	"github.com/marmos91/offlinekit/internal/logger"
)

// ErrDispatcherClosed is returned when posting to a closed dispatcher.
var ErrDispatcherClosed = errors.New("dispatcher is closed")

// Dispatcher runs tasks one at a time, in posting order, on its own
// goroutine. The queue is unbounded so Post never blocks.
type Dispatcher struct {
	mu     sync.Mutex
	cond   *sync.Cond
	tasks  []func()
	closed bool
	done   chan struct{}
}

// NewDispatcher creates a dispatcher and starts its goroutine.
func NewDispatcher() *Dispatcher {
	d := &Dispatcher{done: make(chan struct{})}
	d.cond = sync.NewCond(&d.mu)
	go d.run()
	return d
}

// Post queues task. It returns ErrDispatcherClosed after Close.
func (d *Dispatcher) Post(task func()) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return ErrDispatcherClosed
	}
	d.tasks = append(d.tasks, task)
	d.cond.Signal()
	return nil
}

// Sync waits until every task posted before the call has run.
func (d *Dispatcher) Sync(ctx context.Context) error {
	reached := make(chan struct{})
	if err := d.Post(func() { close(reached) }); err != nil {
		return err
	}
	select {
	case <-reached:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops accepting tasks and waits until the queued ones have run or
// ctx is done.
func (d *Dispatcher) Close(ctx context.Context) error {
	d.mu.Lock()
	d.closed = true
	d.cond.Signal()
	d.mu.Unlock()

	select {
	case <-d.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (d *Dispatcher) run() {
	defer close(d.done)

	for {
		d.mu.Lock()
		for len(d.tasks) == 0 && !d.closed {
			d.cond.Wait()
		}
		if len(d.tasks) == 0 {
			d.mu.Unlock()
			return
		}
		batch := d.tasks
		d.tasks = nil
		d.mu.Unlock()

		for _, task := range batch {
			d.execute(task)
		}
	}
}

// execute runs one task. A panicking callback is logged and does not stop
// the dispatcher.
func (d *Dispatcher) execute(task func()) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("Observer callback panicked", "panic", r, "stack", string(debug.Stack()))
		}
	}()
	task()
}
