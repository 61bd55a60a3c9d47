// Package memory provides an in-memory resource store and region catalog.
//
// Resources are spread over fixed lock stripes selected by key id, so
// mutations of unrelated resources never contend. Region membership sets have
// their own per-region locks. Nothing survives a restart; the backend is meant
// for tests and ephemeral daemons.
package memory

import (
	"context"
	"hash/fnv"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/marmos91/offlinekit/pkg/region"
	"github.com/marmos91/offlinekit/pkg/resource"
)

const stripeCount = 256

type item struct {
	res *resource.Resource
}

type stripe struct {
	mu    sync.Mutex
	items map[string]*item
}

type regionRefs struct {
	mu       sync.Mutex
	keys     map[string]resource.Key
	released bool
}

// Store is an in-memory resource.Backend.
type Store struct {
	stripes [stripeCount]stripe

	regionsMu sync.Mutex
	regions   map[int64]*regionRefs

	size   atomic.Int64
	closed atomic.Bool

	catalogMu sync.RWMutex
	records   map[int64]region.Record
	nextID    int64

	now func() time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithClock sets the clock used for last-requested times.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

// New creates an empty in-memory store.
func New(opts ...Option) *Store {
	s := &Store{
		regions: make(map[int64]*regionRefs),
		records: make(map[int64]region.Record),
		now:     time.Now,
	}
	for i := range s.stripes {
		s.stripes[i].items = make(map[string]*item)
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) stripeFor(id string) *stripe {
	h := fnv.New32a()
	_, _ = h.Write([]byte(id))
	return &s.stripes[h.Sum32()%stripeCount]
}

func copyResource(r *resource.Resource) *resource.Resource {
	c := *r
	c.Data = append([]byte(nil), r.Data...)
	return &c
}

func entryOf(r *resource.Resource) resource.Entry {
	return resource.Entry{
		Key:           r.Key,
		Size:          r.Size(),
		RefCount:      r.RefCount,
		LastRequested: r.LastRequested,
		MapboxTile:    r.MapboxTile,
	}
}

// Get returns a copy of the stored resource.
func (s *Store) Get(ctx context.Context, key resource.Key) (*resource.Resource, error) {
	if s.closed.Load() {
		return nil, resource.ErrStoreClosed
	}
	id := key.ID()
	st := s.stripeFor(id)
	st.mu.Lock()
	defer st.mu.Unlock()

	it, ok := st.items[id]
	if !ok {
		return nil, resource.ErrResourceNotFound
	}
	return copyResource(it.res), nil
}

// Put inserts or replaces a resource payload, keeping its reference count.
func (s *Store) Put(ctx context.Context, res *resource.Resource) error {
	if s.closed.Load() {
		return resource.ErrStoreClosed
	}
	id := res.Key.ID()
	st := s.stripeFor(id)
	st.mu.Lock()
	defer st.mu.Unlock()

	stored := copyResource(res)
	stored.LastRequested = s.now()
	if it, ok := st.items[id]; ok {
		stored.RefCount = it.res.RefCount
		s.size.Add(stored.Size() - it.res.Size())
		it.res = stored
		return nil
	}
	stored.RefCount = 0
	st.items[id] = &item{res: stored}
	s.size.Add(stored.Size())
	return nil
}

// Refresh updates the validity fields of a stored resource.
func (s *Store) Refresh(ctx context.Context, key resource.Key, expires, modified time.Time, etag string) error {
	if s.closed.Load() {
		return resource.ErrStoreClosed
	}
	id := key.ID()
	st := s.stripeFor(id)
	st.mu.Lock()
	defer st.mu.Unlock()

	it, ok := st.items[id]
	if !ok {
		return resource.ErrResourceNotFound
	}
	it.res.Expires = expires
	if !modified.IsZero() {
		it.res.Modified = modified
	}
	if etag != "" {
		it.res.ETag = etag
	}
	return nil
}

// refsFor returns the live membership set of regionID, creating it if needed.
// The returned set is locked.
func (s *Store) refsFor(regionID int64) *regionRefs {
	for {
		s.regionsMu.Lock()
		refs, ok := s.regions[regionID]
		if !ok {
			refs = &regionRefs{keys: make(map[string]resource.Key)}
			s.regions[regionID] = refs
		}
		s.regionsMu.Unlock()

		refs.mu.Lock()
		if !refs.released {
			return refs
		}
		refs.mu.Unlock()
	}
}

// AddReference counts regionID as a holder of key.
func (s *Store) AddReference(ctx context.Context, regionID int64, key resource.Key) (uint32, error) {
	if s.closed.Load() {
		return 0, resource.ErrStoreClosed
	}
	id := key.ID()

	refs := s.refsFor(regionID)
	defer refs.mu.Unlock()

	st := s.stripeFor(id)
	st.mu.Lock()
	defer st.mu.Unlock()

	it, ok := st.items[id]
	if !ok {
		return 0, resource.ErrResourceNotFound
	}
	it.res.LastRequested = s.now()
	if _, counted := refs.keys[id]; counted {
		return it.res.RefCount, nil
	}
	it.res.RefCount++
	refs.keys[id] = key
	return it.res.RefCount, nil
}

// ReleaseRegion drops all references of regionID.
func (s *Store) ReleaseRegion(ctx context.Context, regionID int64) ([]resource.Key, error) {
	if s.closed.Load() {
		return nil, resource.ErrStoreClosed
	}

	s.regionsMu.Lock()
	refs, ok := s.regions[regionID]
	delete(s.regions, regionID)
	s.regionsMu.Unlock()
	if !ok {
		return nil, nil
	}

	refs.mu.Lock()
	defer refs.mu.Unlock()
	refs.released = true

	var zero []resource.Key
	for id, key := range refs.keys {
		st := s.stripeFor(id)
		st.mu.Lock()
		if it, ok := st.items[id]; ok && it.res.RefCount > 0 {
			it.res.RefCount--
			if it.res.RefCount == 0 {
				zero = append(zero, key)
			}
		}
		st.mu.Unlock()
	}
	refs.keys = nil
	return zero, nil
}

// RegionResources lists the resources referenced by regionID.
func (s *Store) RegionResources(ctx context.Context, regionID int64) ([]resource.Entry, error) {
	if s.closed.Load() {
		return nil, resource.ErrStoreClosed
	}

	s.regionsMu.Lock()
	refs, ok := s.regions[regionID]
	s.regionsMu.Unlock()
	if !ok {
		return nil, nil
	}

	refs.mu.Lock()
	ids := make([]string, 0, len(refs.keys))
	for id := range refs.keys {
		ids = append(ids, id)
	}
	refs.mu.Unlock()

	entries := make([]resource.Entry, 0, len(ids))
	for _, id := range ids {
		st := s.stripeFor(id)
		st.mu.Lock()
		if it, ok := st.items[id]; ok {
			entries = append(entries, entryOf(it.res))
		}
		st.mu.Unlock()
	}
	return entries, nil
}

// ReferencingRegions returns the ids of regions holding references.
func (s *Store) ReferencingRegions(ctx context.Context) ([]int64, error) {
	if s.closed.Load() {
		return nil, resource.ErrStoreClosed
	}

	s.regionsMu.Lock()
	all := make(map[int64]*regionRefs, len(s.regions))
	for id, refs := range s.regions {
		all[id] = refs
	}
	s.regionsMu.Unlock()

	ids := make([]int64, 0, len(all))
	for id, refs := range all {
		refs.mu.Lock()
		if len(refs.keys) > 0 {
			ids = append(ids, id)
		}
		refs.mu.Unlock()
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

// Reclaimable lists resources with a zero reference count.
func (s *Store) Reclaimable(ctx context.Context) ([]resource.Entry, error) {
	if s.closed.Load() {
		return nil, resource.ErrStoreClosed
	}

	var out []resource.Entry
	for i := range s.stripes {
		st := &s.stripes[i]
		st.mu.Lock()
		for _, it := range st.items {
			if it.res.RefCount == 0 {
				out = append(out, entryOf(it.res))
			}
		}
		st.mu.Unlock()
	}
	return out, nil
}

// Remove deletes a zero-count resource.
func (s *Store) Remove(ctx context.Context, key resource.Key) (resource.Entry, error) {
	if s.closed.Load() {
		return resource.Entry{}, resource.ErrStoreClosed
	}
	id := key.ID()
	st := s.stripeFor(id)
	st.mu.Lock()
	defer st.mu.Unlock()

	it, ok := st.items[id]
	if !ok {
		return resource.Entry{}, resource.ErrResourceNotFound
	}
	if it.res.RefCount > 0 {
		return resource.Entry{}, resource.ErrResourceReferenced
	}
	delete(st.items, id)
	s.size.Add(-it.res.Size())
	return entryOf(it.res), nil
}

// Size returns the aggregate payload size.
func (s *Store) Size(ctx context.Context) (int64, error) {
	if s.closed.Load() {
		return 0, resource.ErrStoreClosed
	}
	return s.size.Load(), nil
}

// MapboxTileCount counts stored Mapbox tiles.
func (s *Store) MapboxTileCount(ctx context.Context) (uint64, error) {
	if s.closed.Load() {
		return 0, resource.ErrStoreClosed
	}
	var n uint64
	for i := range s.stripes {
		st := &s.stripes[i]
		st.mu.Lock()
		for _, it := range st.items {
			if it.res.MapboxTile {
				n++
			}
		}
		st.mu.Unlock()
	}
	return n, nil
}

// Close marks the store closed. Subsequent calls fail with ErrStoreClosed.
func (s *Store) Close() error {
	s.closed.Store(true)
	return nil
}

// ============================================================================
// Catalog
// ============================================================================

// CreateRegion stores a new region record.
func (s *Store) CreateRegion(ctx context.Context, def region.Definition, metadata []byte) (region.Record, error) {
	if s.closed.Load() {
		return region.Record{}, resource.ErrStoreClosed
	}
	s.catalogMu.Lock()
	defer s.catalogMu.Unlock()

	s.nextID++
	rec := region.Record{
		ID:         s.nextID,
		Definition: def,
		Metadata:   append([]byte(nil), metadata...),
		CreatedAt:  s.now().UTC(),
	}
	s.records[rec.ID] = rec
	return rec, nil
}

// GetRegion returns a region record.
func (s *Store) GetRegion(ctx context.Context, id int64) (region.Record, error) {
	if s.closed.Load() {
		return region.Record{}, resource.ErrStoreClosed
	}
	s.catalogMu.RLock()
	defer s.catalogMu.RUnlock()

	rec, ok := s.records[id]
	if !ok {
		return region.Record{}, region.ErrRegionNotFound
	}
	rec.Metadata = append([]byte(nil), rec.Metadata...)
	return rec, nil
}

// ListRegions returns all region records ordered by id.
func (s *Store) ListRegions(ctx context.Context) ([]region.Record, error) {
	if s.closed.Load() {
		return nil, resource.ErrStoreClosed
	}
	s.catalogMu.RLock()
	defer s.catalogMu.RUnlock()

	out := make([]region.Record, 0, len(s.records))
	for _, rec := range s.records {
		rec.Metadata = append([]byte(nil), rec.Metadata...)
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// UpdateMetadata replaces the metadata of a region.
func (s *Store) UpdateMetadata(ctx context.Context, id int64, metadata []byte) error {
	if s.closed.Load() {
		return resource.ErrStoreClosed
	}
	s.catalogMu.Lock()
	defer s.catalogMu.Unlock()

	rec, ok := s.records[id]
	if !ok {
		return region.ErrRegionNotFound
	}
	rec.Metadata = append([]byte(nil), metadata...)
	s.records[id] = rec
	return nil
}

// DeleteRegion removes a region record.
func (s *Store) DeleteRegion(ctx context.Context, id int64) error {
	if s.closed.Load() {
		return resource.ErrStoreClosed
	}
	s.catalogMu.Lock()
	defer s.catalogMu.Unlock()

	if _, ok := s.records[id]; !ok {
		return region.ErrRegionNotFound
	}
	delete(s.records, id)
	return nil
}

var _ resource.Backend = (*Store)(nil)
