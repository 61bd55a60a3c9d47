package gormstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/marmos91/offlinekit/pkg/resource"
)

// releaseBatchSize bounds the IN lists issued by ReleaseRegion.
const releaseBatchSize = 500

var nowFunc = time.Now

// convertNotFoundError converts gorm.ErrRecordNotFound to the appropriate domain error.
func convertNotFoundError(err error, notFoundErr error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return notFoundErr
	}
	return err
}

// Get returns the stored resource.
func (s *Store) Get(ctx context.Context, key resource.Key) (*resource.Resource, error) {
	var row ResourceRow
	if err := s.db.WithContext(ctx).Where("id = ?", key.ID()).First(&row).Error; err != nil {
		return nil, convertNotFoundError(err, resource.ErrResourceNotFound)
	}
	return &resource.Resource{
		Key:           resource.Key{Kind: row.Kind, URL: row.URL},
		Data:          row.Data,
		ETag:          row.ETag,
		Modified:      row.Modified,
		Expires:       row.Expires,
		MapboxTile:    row.MapboxTile,
		RefCount:      row.RefCount,
		LastRequested: row.LastRequested,
	}, nil
}

// Put upserts a resource. The upsert never touches ref_count, so an existing
// resource keeps its holders.
func (s *Store) Put(ctx context.Context, res *resource.Resource) error {
	row := ResourceRow{
		ID:            res.Key.ID(),
		Kind:          res.Key.Kind,
		URL:           res.Key.URL,
		Data:          res.Data,
		Size:          res.Size(),
		ETag:          res.ETag,
		Modified:      res.Modified,
		Expires:       res.Expires,
		MapboxTile:    res.MapboxTile,
		LastRequested: nowFunc(),
	}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"data", "size", "e_tag", "modified", "expires", "mapbox_tile", "last_requested",
		}),
	}).Create(&row).Error
	if err != nil {
		return fmt.Errorf("failed to put %s: %w", res.Key, err)
	}
	return nil
}

// Refresh updates the validity fields of a stored resource.
func (s *Store) Refresh(ctx context.Context, key resource.Key, expires, modified time.Time, etag string) error {
	updates := map[string]any{"expires": expires}
	if !modified.IsZero() {
		updates["modified"] = modified
	}
	if etag != "" {
		updates["e_tag"] = etag
	}
	result := s.db.WithContext(ctx).Model(&ResourceRow{}).Where("id = ?", key.ID()).Updates(updates)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return resource.ErrResourceNotFound
	}
	return nil
}

// AddReference records regionID as a holder of key. The count is bumped only
// when the membership row is new.
func (s *Store) AddReference(ctx context.Context, regionID int64, key resource.Key) (uint32, error) {
	id := key.ID()
	var count uint32
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// Touching the row first locks it on PostgreSQL and detects absence.
		touched := tx.Model(&ResourceRow{}).Where("id = ?", id).Update("last_requested", nowFunc())
		if touched.Error != nil {
			return touched.Error
		}
		if touched.RowsAffected == 0 {
			return resource.ErrResourceNotFound
		}

		inserted := tx.Clauses(clause.OnConflict{DoNothing: true}).
			Create(&Membership{RegionID: regionID, ResourceID: id})
		if inserted.Error != nil {
			return inserted.Error
		}
		if inserted.RowsAffected == 1 {
			if err := tx.Model(&ResourceRow{}).Where("id = ?", id).
				Update("ref_count", gorm.Expr("ref_count + 1")).Error; err != nil {
				return err
			}
		}

		var row ResourceRow
		if err := tx.Select("ref_count").Where("id = ?", id).First(&row).Error; err != nil {
			return err
		}
		count = row.RefCount
		return nil
	})
	if err != nil {
		return 0, err
	}
	return count, nil
}

// ReleaseRegion drops the memberships of regionID batch by batch. Each batch
// runs in one transaction so an interrupted release resumes where it stopped.
func (s *Store) ReleaseRegion(ctx context.Context, regionID int64) ([]resource.Key, error) {
	var zero []resource.Key
	for {
		var ids []string
		if err := s.db.WithContext(ctx).Model(&Membership{}).
			Where("region_id = ?", regionID).
			Limit(releaseBatchSize).
			Pluck("resource_id", &ids).Error; err != nil {
			return zero, fmt.Errorf("failed to list region %d resources: %w", regionID, err)
		}
		if len(ids) == 0 {
			return zero, nil
		}

		var released []entryRow
		err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			if err := tx.Where("region_id = ? AND resource_id IN ?", regionID, ids).
				Delete(&Membership{}).Error; err != nil {
				return err
			}
			if err := tx.Model(&ResourceRow{}).
				Where("id IN ? AND ref_count > 0", ids).
				Update("ref_count", gorm.Expr("ref_count - 1")).Error; err != nil {
				return err
			}
			return tx.Model(&ResourceRow{}).Select(entryColumns).
				Where("id IN ? AND ref_count = 0", ids).
				Scan(&released).Error
		})
		if err != nil {
			return zero, fmt.Errorf("failed to release region %d: %w", regionID, err)
		}
		for _, r := range released {
			zero = append(zero, resource.Key{Kind: r.Kind, URL: r.URL})
		}
	}
}

// RegionResources lists the resources referenced by regionID.
func (s *Store) RegionResources(ctx context.Context, regionID int64) ([]resource.Entry, error) {
	var rows []entryRow
	err := s.db.WithContext(ctx).Model(&ResourceRow{}).
		Select(entryColumns).
		Joins("JOIN region_resources ON region_resources.resource_id = resources.id").
		Where("region_resources.region_id = ?", regionID).
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list region %d resources: %w", regionID, err)
	}
	return entries(rows), nil
}

// ReferencingRegions returns the distinct region ids of the membership table.
func (s *Store) ReferencingRegions(ctx context.Context) ([]int64, error) {
	var ids []int64
	err := s.db.WithContext(ctx).Model(&Membership{}).
		Distinct("region_id").
		Order("region_id").
		Pluck("region_id", &ids).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list referencing regions: %w", err)
	}
	return ids, nil
}

// Reclaimable lists resources with a zero reference count, oldest first.
func (s *Store) Reclaimable(ctx context.Context) ([]resource.Entry, error) {
	var rows []entryRow
	err := s.db.WithContext(ctx).Model(&ResourceRow{}).
		Select(entryColumns).
		Where("ref_count = 0").
		Order("last_requested").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list reclaimable resources: %w", err)
	}
	return entries(rows), nil
}

// Remove deletes a zero-count resource. The DELETE is conditional on the
// count, so a reference added after the read wins.
func (s *Store) Remove(ctx context.Context, key resource.Key) (resource.Entry, error) {
	id := key.ID()
	db := s.db.WithContext(ctx)

	var row entryRow
	if err := db.Model(&ResourceRow{}).Select(entryColumns).
		Where("id = ?", id).Take(&row).Error; err != nil {
		return resource.Entry{}, convertNotFoundError(err, resource.ErrResourceNotFound)
	}
	if row.RefCount > 0 {
		return resource.Entry{}, resource.ErrResourceReferenced
	}

	deleted := db.Where("id = ? AND ref_count = 0", id).Delete(&ResourceRow{})
	if deleted.Error != nil {
		return resource.Entry{}, deleted.Error
	}
	if deleted.RowsAffected == 0 {
		var n int64
		if err := db.Model(&ResourceRow{}).Where("id = ?", id).Count(&n).Error; err != nil {
			return resource.Entry{}, err
		}
		if n == 0 {
			return resource.Entry{}, resource.ErrResourceNotFound
		}
		return resource.Entry{}, resource.ErrResourceReferenced
	}
	return row.entry(), nil
}

// Size returns the aggregate payload size.
func (s *Store) Size(ctx context.Context) (int64, error) {
	var total int64
	err := s.db.WithContext(ctx).Model(&ResourceRow{}).
		Select("COALESCE(SUM(size), 0)").
		Scan(&total).Error
	if err != nil {
		return 0, fmt.Errorf("failed to sum resource sizes: %w", err)
	}
	return total, nil
}

// MapboxTileCount counts stored Mapbox tiles.
func (s *Store) MapboxTileCount(ctx context.Context) (uint64, error) {
	var n int64
	if err := s.db.WithContext(ctx).Model(&ResourceRow{}).
		Where("mapbox_tile = ?", true).
		Count(&n).Error; err != nil {
		return 0, fmt.Errorf("failed to count mapbox tiles: %w", err)
	}
	return uint64(n), nil
}

func entries(rows []entryRow) []resource.Entry {
	out := make([]resource.Entry, len(rows))
	for i, r := range rows {
		out[i] = r.entry()
	}
	return out
}

var _ resource.Backend = (*Store)(nil)
