// Package badger provides a persistent resource backend on BadgerDB.
//
// Reference counts live in small per-resource meta records, separate from the
// compressed payloads, so counting never rewrites payload bytes. Every
// mutation runs in its own optimistic transaction and is retried on conflict;
// Badger's conflict detection makes each resource's update atomic without a
// store-wide lock.
package badger

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"slices"
	"sync/atomic"
	"time"

	badgerdb "github.com/dgraph-io/badger/v4"

	"github.com/marmos91/offlinekit/internal/logger"
	"github.com/marmos91/offlinekit/pkg/resource"
)

const (
	// releaseBatchSize bounds the number of memberships dropped per
	// transaction during ReleaseRegion.
	releaseBatchSize = 256

	maxConflictRetries = 64
)

// Config configures a BadgerDB backend.
type Config struct {
	// Path is the database directory. Ignored when InMemory is set.
	Path string

	InMemory   bool
	SyncWrites bool
}

// Store is a BadgerDB resource.Backend.
type Store struct {
	db     *badgerdb.DB
	seq    *badgerdb.Sequence
	size   atomic.Int64
	closed atomic.Bool
	now    func() time.Time
}

// Open opens (or creates) the database and computes the aggregate resource
// size from the stored meta records.
func Open(ctx context.Context, cfg Config) (*Store, error) {
	opts := badgerdb.DefaultOptions(cfg.Path).
		WithSyncWrites(cfg.SyncWrites).
		WithLogger(nil)
	if cfg.InMemory {
		opts = opts.WithInMemory(true)
	} else if cfg.Path == "" {
		return nil, errors.New("badger: path is required")
	}

	db, err := badgerdb.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger database: %w", err)
	}

	seq, err := db.GetSequence([]byte(keyRegionSeq), 16)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to open region sequence: %w", err)
	}

	s := &Store{db: db, seq: seq, now: time.Now}
	if err := s.loadSize(ctx); err != nil {
		_ = seq.Release()
		_ = db.Close()
		return nil, err
	}

	logger.Debug("Badger resource store opened",
		logger.KeyStoreType, "badger",
		logger.KeyStoreSize, s.size.Load(),
		"in_memory", cfg.InMemory)
	return s, nil
}

func (s *Store) loadSize(ctx context.Context) error {
	var total int64
	err := s.db.View(func(txn *badgerdb.Txn) error {
		it := txn.NewIterator(badgerdb.IteratorOptions{Prefix: []byte(prefixMeta), PrefetchValues: true})
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			err := it.Item().Value(func(val []byte) error {
				m, err := decodeMeta(val)
				if err != nil {
					return err
				}
				total += m.Size
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to compute store size: %w", err)
	}
	s.size.Store(total)
	return nil
}

// update runs fn in a read-write transaction, retrying on conflict. fn must
// reset any state it accumulates since it may run more than once.
func (s *Store) update(ctx context.Context, fn func(txn *badgerdb.Txn) error) error {
	for attempt := 0; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		err := s.db.Update(fn)
		if !errors.Is(err, badgerdb.ErrConflict) || attempt >= maxConflictRetries {
			return err
		}
	}
}

func (s *Store) check(ctx context.Context) error {
	if s.closed.Load() {
		return resource.ErrStoreClosed
	}
	return ctx.Err()
}

func getMeta(txn *badgerdb.Txn, id string) (*resourceMeta, error) {
	item, err := txn.Get(keyMeta(id))
	if errors.Is(err, badgerdb.ErrKeyNotFound) {
		return nil, resource.ErrResourceNotFound
	}
	if err != nil {
		return nil, err
	}
	var m *resourceMeta
	err = item.Value(func(val []byte) error {
		m, err = decodeMeta(val)
		return err
	})
	return m, err
}

func setMeta(txn *badgerdb.Txn, id string, m *resourceMeta) error {
	data, err := encodeMeta(m)
	if err != nil {
		return err
	}
	return txn.Set(keyMeta(id), data)
}

// Get returns the stored resource with its decompressed payload.
func (s *Store) Get(ctx context.Context, key resource.Key) (*resource.Resource, error) {
	if err := s.check(ctx); err != nil {
		return nil, err
	}
	id := key.ID()

	var res *resource.Resource
	err := s.db.View(func(txn *badgerdb.Txn) error {
		m, err := getMeta(txn, id)
		if err != nil {
			return err
		}
		item, err := txn.Get(keyData(id))
		if err != nil {
			return fmt.Errorf("failed to read payload of %s: %w", key, err)
		}
		compressed, err := item.ValueCopy(nil)
		if err != nil {
			return err
		}
		data, err := decompressPayload(compressed)
		if err != nil {
			return err
		}
		res = &resource.Resource{
			Key:           m.key(),
			Data:          data,
			ETag:          m.ETag,
			Modified:      m.Modified,
			Expires:       m.Expires,
			MapboxTile:    m.MapboxTile,
			RefCount:      m.RefCount,
			LastRequested: m.LastRequested,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// Put inserts or replaces a resource, keeping the reference count of an
// existing one.
func (s *Store) Put(ctx context.Context, res *resource.Resource) error {
	if err := s.check(ctx); err != nil {
		return err
	}
	id := res.Key.ID()
	payload := compressPayload(res.Data)

	var delta int64
	err := s.update(ctx, func(txn *badgerdb.Txn) error {
		delta = res.Size()
		m := &resourceMeta{
			Kind:          res.Key.Kind,
			URL:           res.Key.URL,
			Size:          res.Size(),
			ETag:          res.ETag,
			Modified:      res.Modified,
			Expires:       res.Expires,
			MapboxTile:    res.MapboxTile,
			LastRequested: s.now(),
		}
		old, err := getMeta(txn, id)
		switch {
		case err == nil:
			m.RefCount = old.RefCount
			delta -= old.Size
		case !errors.Is(err, resource.ErrResourceNotFound):
			return err
		}
		if err := setMeta(txn, id, m); err != nil {
			return err
		}
		return txn.Set(keyData(id), payload)
	})
	if err != nil {
		return fmt.Errorf("failed to put %s: %w", res.Key, err)
	}
	s.size.Add(delta)
	return nil
}

// Refresh updates the validity fields of a stored resource.
func (s *Store) Refresh(ctx context.Context, key resource.Key, expires, modified time.Time, etag string) error {
	if err := s.check(ctx); err != nil {
		return err
	}
	id := key.ID()
	return s.update(ctx, func(txn *badgerdb.Txn) error {
		m, err := getMeta(txn, id)
		if err != nil {
			return err
		}
		m.Expires = expires
		if !modified.IsZero() {
			m.Modified = modified
		}
		if etag != "" {
			m.ETag = etag
		}
		return setMeta(txn, id, m)
	})
}

// AddReference records regionID as a holder of key. The membership key makes
// the increment idempotent per region.
func (s *Store) AddReference(ctx context.Context, regionID int64, key resource.Key) (uint32, error) {
	if err := s.check(ctx); err != nil {
		return 0, err
	}
	id := key.ID()

	var count uint32
	err := s.update(ctx, func(txn *badgerdb.Txn) error {
		m, err := getMeta(txn, id)
		if err != nil {
			return err
		}
		m.LastRequested = s.now()

		mk := keyMembership(regionID, id)
		_, err = txn.Get(mk)
		switch {
		case errors.Is(err, badgerdb.ErrKeyNotFound):
			m.RefCount++
			if err := txn.Set(mk, nil); err != nil {
				return err
			}
		case err != nil:
			return err
		}
		count = m.RefCount
		return setMeta(txn, id, m)
	})
	if err != nil {
		return 0, err
	}
	return count, nil
}

func (s *Store) membershipIDs(regionID int64) ([]string, error) {
	prefix := keyMembershipPrefix(regionID)
	var ids []string
	err := s.db.View(func(txn *badgerdb.Txn) error {
		it := txn.NewIterator(badgerdb.IteratorOptions{Prefix: prefix})
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			ids = append(ids, string(bytes.TrimPrefix(it.Item().Key(), prefix)))
		}
		return nil
	})
	return ids, err
}

// ReleaseRegion drops every membership of regionID in batches. Each batch
// deletes memberships and decrements counts in one transaction, so a release
// interrupted midway is completed by calling it again.
func (s *Store) ReleaseRegion(ctx context.Context, regionID int64) ([]resource.Key, error) {
	if err := s.check(ctx); err != nil {
		return nil, err
	}
	ids, err := s.membershipIDs(regionID)
	if err != nil {
		return nil, fmt.Errorf("failed to list region %d resources: %w", regionID, err)
	}

	var zero []resource.Key
	for start := 0; start < len(ids); start += releaseBatchSize {
		batch := ids[start:min(start+releaseBatchSize, len(ids))]

		var batchZero []resource.Key
		err := s.update(ctx, func(txn *badgerdb.Txn) error {
			batchZero = batchZero[:0]
			for _, id := range batch {
				mk := keyMembership(regionID, id)
				if _, err := txn.Get(mk); errors.Is(err, badgerdb.ErrKeyNotFound) {
					continue
				} else if err != nil {
					return err
				}
				if err := txn.Delete(mk); err != nil {
					return err
				}

				m, err := getMeta(txn, id)
				if errors.Is(err, resource.ErrResourceNotFound) {
					continue
				}
				if err != nil {
					return err
				}
				if m.RefCount > 0 {
					m.RefCount--
				}
				if m.RefCount == 0 {
					batchZero = append(batchZero, m.key())
				}
				if err := setMeta(txn, id, m); err != nil {
					return err
				}
			}
			return nil
		})
		if err != nil {
			return zero, fmt.Errorf("failed to release region %d: %w", regionID, err)
		}
		zero = append(zero, batchZero...)
	}
	return zero, nil
}

// RegionResources lists the resources referenced by regionID.
func (s *Store) RegionResources(ctx context.Context, regionID int64) ([]resource.Entry, error) {
	if err := s.check(ctx); err != nil {
		return nil, err
	}
	prefix := keyMembershipPrefix(regionID)

	var out []resource.Entry
	err := s.db.View(func(txn *badgerdb.Txn) error {
		it := txn.NewIterator(badgerdb.IteratorOptions{Prefix: prefix})
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			id := string(bytes.TrimPrefix(it.Item().Key(), prefix))
			m, err := getMeta(txn, id)
			if errors.Is(err, resource.ErrResourceNotFound) {
				continue
			}
			if err != nil {
				return err
			}
			out = append(out, m.entry())
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list region %d resources: %w", regionID, err)
	}
	return out, nil
}

func (s *Store) scanMeta(ctx context.Context, fn func(m *resourceMeta)) error {
	return s.db.View(func(txn *badgerdb.Txn) error {
		it := txn.NewIterator(badgerdb.IteratorOptions{Prefix: []byte(prefixMeta), PrefetchValues: true})
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			err := it.Item().Value(func(val []byte) error {
				m, err := decodeMeta(val)
				if err != nil {
					return err
				}
				fn(m)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
}

// ReferencingRegions scans the membership keys for region ids.
func (s *Store) ReferencingRegions(ctx context.Context) ([]int64, error) {
	if err := s.check(ctx); err != nil {
		return nil, err
	}

	seen := make(map[int64]struct{})
	err := s.db.View(func(txn *badgerdb.Txn) error {
		it := txn.NewIterator(badgerdb.IteratorOptions{Prefix: []byte(prefixMembership)})
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			if id, ok := membershipRegion(it.Item().Key()); ok {
				seen[id] = struct{}{}
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list referencing regions: %w", err)
	}

	ids := make([]int64, 0, len(seen))
	for id := range seen {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids, nil
}

// Reclaimable lists resources with a zero reference count.
func (s *Store) Reclaimable(ctx context.Context) ([]resource.Entry, error) {
	if err := s.check(ctx); err != nil {
		return nil, err
	}
	var out []resource.Entry
	err := s.scanMeta(ctx, func(m *resourceMeta) {
		if m.RefCount == 0 {
			out = append(out, m.entry())
		}
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan reclaimable resources: %w", err)
	}
	return out, nil
}

// Remove deletes a zero-count resource.
func (s *Store) Remove(ctx context.Context, key resource.Key) (resource.Entry, error) {
	if err := s.check(ctx); err != nil {
		return resource.Entry{}, err
	}
	id := key.ID()

	var removed resource.Entry
	err := s.update(ctx, func(txn *badgerdb.Txn) error {
		m, err := getMeta(txn, id)
		if err != nil {
			return err
		}
		if m.RefCount > 0 {
			return resource.ErrResourceReferenced
		}
		if err := txn.Delete(keyMeta(id)); err != nil {
			return err
		}
		if err := txn.Delete(keyData(id)); err != nil {
			return err
		}
		removed = m.entry()
		return nil
	})
	if err != nil {
		return resource.Entry{}, err
	}
	s.size.Add(-removed.Size)
	return removed, nil
}

// Size returns the aggregate payload size.
func (s *Store) Size(ctx context.Context) (int64, error) {
	if err := s.check(ctx); err != nil {
		return 0, err
	}
	return s.size.Load(), nil
}

// MapboxTileCount counts stored Mapbox tiles.
func (s *Store) MapboxTileCount(ctx context.Context) (uint64, error) {
	if err := s.check(ctx); err != nil {
		return 0, err
	}
	var n uint64
	err := s.scanMeta(ctx, func(m *resourceMeta) {
		if m.MapboxTile {
			n++
		}
	})
	if err != nil {
		return 0, fmt.Errorf("failed to count mapbox tiles: %w", err)
	}
	return n, nil
}

// Close releases the region sequence and closes the database.
func (s *Store) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}
	if err := errors.Join(s.seq.Release(), s.db.Close()); err != nil {
		return fmt.Errorf("failed to close badger store: %w", err)
	}
	return nil
}

var _ resource.Backend = (*Store)(nil)
