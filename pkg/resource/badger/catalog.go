package badger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	badgerdb "github.com/dgraph-io/badger/v4"

	"github.com/marmos91/offlinekit/pkg/region"
	"github.com/marmos91/offlinekit/pkg/resource"
)

// ============================================================================
// Catalog
// ============================================================================

func getRecord(txn *badgerdb.Txn, id int64) (region.Record, error) {
	item, err := txn.Get(keyRegion(id))
	if errors.Is(err, badgerdb.ErrKeyNotFound) {
		return region.Record{}, region.ErrRegionNotFound
	}
	if err != nil {
		return region.Record{}, err
	}
	var rec region.Record
	err = item.Value(func(val []byte) error {
		return json.Unmarshal(val, &rec)
	})
	if err != nil {
		return region.Record{}, fmt.Errorf("failed to decode region %d: %w", id, err)
	}
	return rec, nil
}

func setRecord(txn *badgerdb.Txn, rec region.Record) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to encode region %d: %w", rec.ID, err)
	}
	return txn.Set(keyRegion(rec.ID), data)
}

// CreateRegion assigns the next id from the region sequence and stores the
// record.
func (s *Store) CreateRegion(ctx context.Context, def region.Definition, metadata []byte) (region.Record, error) {
	if err := s.check(ctx); err != nil {
		return region.Record{}, err
	}
	next, err := s.seq.Next()
	if err != nil {
		return region.Record{}, fmt.Errorf("failed to allocate region id: %w", err)
	}

	rec := region.Record{
		// Sequences start at zero; region ids start at one.
		ID:         int64(next) + 1,
		Definition: def,
		Metadata:   append([]byte(nil), metadata...),
		CreatedAt:  s.now().UTC(),
	}
	err = s.update(ctx, func(txn *badgerdb.Txn) error {
		return setRecord(txn, rec)
	})
	if err != nil {
		return region.Record{}, err
	}
	return rec, nil
}

// GetRegion returns a region record.
func (s *Store) GetRegion(ctx context.Context, id int64) (region.Record, error) {
	if err := s.check(ctx); err != nil {
		return region.Record{}, err
	}
	var rec region.Record
	err := s.db.View(func(txn *badgerdb.Txn) error {
		var err error
		rec, err = getRecord(txn, id)
		return err
	})
	return rec, err
}

// ListRegions returns all region records ordered by id.
func (s *Store) ListRegions(ctx context.Context) ([]region.Record, error) {
	if err := s.check(ctx); err != nil {
		return nil, err
	}
	var out []region.Record
	err := s.db.View(func(txn *badgerdb.Txn) error {
		it := txn.NewIterator(badgerdb.IteratorOptions{Prefix: []byte(prefixRegion), PrefetchValues: true})
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			var rec region.Record
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &rec)
			}); err != nil {
				return fmt.Errorf("failed to decode region %q: %w", it.Item().Key(), err)
			}
			out = append(out, rec)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// UpdateMetadata replaces the metadata of a region.
func (s *Store) UpdateMetadata(ctx context.Context, id int64, metadata []byte) error {
	if err := s.check(ctx); err != nil {
		return err
	}
	return s.update(ctx, func(txn *badgerdb.Txn) error {
		rec, err := getRecord(txn, id)
		if err != nil {
			return err
		}
		rec.Metadata = append([]byte(nil), metadata...)
		return setRecord(txn, rec)
	})
}

// DeleteRegion removes a region record. Memberships are dropped by
// ReleaseRegion, not here.
func (s *Store) DeleteRegion(ctx context.Context, id int64) error {
	if err := s.check(ctx); err != nil {
		return err
	}
	return s.update(ctx, func(txn *badgerdb.Txn) error {
		if _, err := txn.Get(keyRegion(id)); errors.Is(err, badgerdb.ErrKeyNotFound) {
			return region.ErrRegionNotFound
		} else if err != nil {
			return err
		}
		return txn.Delete(keyRegion(id))
	})
}

var _ resource.Catalog = (*Store)(nil)
