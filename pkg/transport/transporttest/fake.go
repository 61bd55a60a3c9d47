// Package transporttest provides an in-memory transport.Fetcher for tests.
package transporttest

import (
	"context"
	"sync"

	"github.com/marmos91/offlinekit/pkg/region"
	"github.com/marmos91/offlinekit/pkg/transport"
)

// Handler answers one request. call is the 1-based number of requests seen
// for the URL, including this one.
type Handler func(req *transport.Request, call int) (*transport.Response, error)

// Fake is a scriptable fetcher. URLs without a handler are served by Default,
// or answered with their own URL as payload when Default is nil.
type Fake struct {
	Default Handler

	mu          sync.Mutex
	handlers    map[string]Handler
	calls       map[string]int
	total       int
	inflight    int
	maxInflight int
	gate        chan struct{}
}

// New creates a Fake that answers every URL with its own URL as payload.
func New() *Fake {
	return &Fake{
		handlers: make(map[string]Handler),
		calls:    make(map[string]int),
	}
}

// Handle sets the handler for url.
func (f *Fake) Handle(url string, h Handler) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.handlers[url] = h
}

// Serve answers url with data.
func (f *Fake) Serve(url string, data []byte) {
	f.Handle(url, func(*transport.Request, int) (*transport.Response, error) {
		return &transport.Response{Data: data}, nil
	})
}

// Fail answers url with a classified failure.
func (f *Fake) Fail(url string, reason region.Reason) {
	f.Handle(url, func(*transport.Request, int) (*transport.Response, error) {
		return nil, &transport.FetchError{Reason: reason, URL: url}
	})
}

// Block makes every Fetch wait until Unblock is called or its context ends.
func (f *Fake) Block() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.gate == nil {
		f.gate = make(chan struct{})
	}
}

// Unblock releases blocked and future fetches.
func (f *Fake) Unblock() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.gate != nil {
		close(f.gate)
		f.gate = nil
	}
}

// Calls returns how many times url was fetched.
func (f *Fake) Calls(url string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[url]
}

// Total returns the number of fetches.
func (f *Fake) Total() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.total
}

// MaxInflight returns the highest number of concurrent fetches observed.
func (f *Fake) MaxInflight() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.maxInflight
}

// Fetch implements transport.Fetcher.
func (f *Fake) Fetch(ctx context.Context, req *transport.Request) (*transport.Response, error) {
	url := req.Key.URL

	f.mu.Lock()
	f.calls[url]++
	f.total++
	call := f.calls[url]
	h, ok := f.handlers[url]
	if !ok {
		h = f.Default
	}
	gate := f.gate
	f.inflight++
	if f.inflight > f.maxInflight {
		f.maxInflight = f.inflight
	}
	f.mu.Unlock()

	defer func() {
		f.mu.Lock()
		f.inflight--
		f.mu.Unlock()
	}()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, &transport.FetchError{Reason: region.ReasonOther, URL: url, Err: ctx.Err()}
		}
	}

	if h == nil {
		return &transport.Response{Data: []byte(url)}, nil
	}
	return h(req, call)
}

var _ transport.Fetcher = (*Fake)(nil)
