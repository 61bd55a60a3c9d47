package download

import (
	"fmt"
	"sync"

	"github.com/marmos91/offlinekit/pkg/region"
	"github.com/marmos91/offlinekit/pkg/resource"
	"github.com/marmos91/offlinekit/pkg/tileset"
)

// Planner enumerates the resources of one region. Roots are requested first;
// every fetched document (style or source) is passed to Expand, which returns
// the resources it makes necessary. Expand may be called concurrently.
type Planner interface {
	Roots() []resource.Key
	Expand(key resource.Key, data []byte) ([]resource.Key, error)
}

// isDocument reports whether key may expand into further resources.
func isDocument(key resource.Key) bool {
	return key.Kind == resource.KindStyle || key.Kind == resource.KindSource
}

// stylePlanner walks a style: style, then its sources, sprites and glyphs,
// then the tiles of each source.
type stylePlanner struct {
	walker tileset.Walker

	mu      sync.Mutex
	sources map[string]tileset.Source
}

// NewStylePlanner returns the planner for a region definition.
func NewStylePlanner(def region.Definition) Planner {
	return &stylePlanner{
		walker:  tileset.NewWalker(def),
		sources: make(map[string]tileset.Source),
	}
}

func (p *stylePlanner) Roots() []resource.Key {
	return []resource.Key{p.walker.Style()}
}

func (p *stylePlanner) Expand(key resource.Key, data []byte) ([]resource.Key, error) {
	switch key.Kind {
	case resource.KindStyle:
		style, err := tileset.ParseStyle(data)
		if err != nil {
			return nil, fmt.Errorf("parse style %s: %w", key.URL, err)
		}
		p.mu.Lock()
		for _, src := range style.Sources {
			if src.HasTiles() && src.URL != "" {
				p.sources[src.URL] = src
			}
		}
		p.mu.Unlock()
		return p.walker.StyleResources(style), nil

	case resource.KindSource:
		p.mu.Lock()
		src, ok := p.sources[key.URL]
		p.mu.Unlock()
		if !ok {
			// GeoJSON data: nothing further to fetch.
			return nil, nil
		}
		tj, err := tileset.ParseTileJSON(data)
		if err != nil {
			return nil, fmt.Errorf("parse source %s: %w", key.URL, err)
		}
		return p.walker.SourceTiles(src, tj), nil
	}
	return nil, nil
}

// StaticPlanner requests a fixed list of resources.
type StaticPlanner []resource.Key

func (p StaticPlanner) Roots() []resource.Key {
	return p
}

func (p StaticPlanner) Expand(resource.Key, []byte) ([]resource.Key, error) {
	return nil, nil
}
