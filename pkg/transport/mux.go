package transport

import (
	"context"
	"fmt"
	"strings"

	"github.com/marmos91/offlinekit/pkg/region"
)

// Mux routes requests to fetchers by URL scheme.
type Mux struct {
	fetchers map[string]Fetcher
}

// NewMux creates an empty Mux.
func NewMux() *Mux {
	return &Mux{fetchers: make(map[string]Fetcher)}
}

// Handle registers f for the given schemes (without "://").
func (m *Mux) Handle(f Fetcher, schemes ...string) {
	for _, s := range schemes {
		m.fetchers[strings.ToLower(s)] = f
	}
}

// Fetch dispatches req by the scheme of its URL.
func (m *Mux) Fetch(ctx context.Context, req *Request) (*Response, error) {
	scheme, _, ok := strings.Cut(req.Key.URL, "://")
	if !ok {
		return nil, &FetchError{Reason: region.ReasonOther, URL: req.Key.URL, Err: fmt.Errorf("url has no scheme")}
	}
	f, ok := m.fetchers[strings.ToLower(scheme)]
	if !ok {
		return nil, &FetchError{Reason: region.ReasonOther, URL: req.Key.URL, Err: fmt.Errorf("unsupported scheme %q", scheme)}
	}
	return f.Fetch(ctx, req)
}

var _ Fetcher = (*Mux)(nil)
