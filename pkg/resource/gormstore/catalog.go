package gormstore

import (
	"context"
	"encoding/json"
	"fmt"

	"gorm.io/gorm"

	"github.com/marmos91/offlinekit/pkg/region"
)

func toRecord(row RegionRow) (region.Record, error) {
	var def region.Definition
	if err := json.Unmarshal([]byte(row.Definition), &def); err != nil {
		return region.Record{}, fmt.Errorf("failed to decode region %d definition: %w", row.ID, err)
	}
	return region.Record{
		ID:         row.ID,
		Definition: def,
		Metadata:   row.Metadata,
		CreatedAt:  row.CreatedAt.UTC(),
	}, nil
}

// CreateRegion inserts a region and returns it with its database id.
func (s *Store) CreateRegion(ctx context.Context, def region.Definition, metadata []byte) (region.Record, error) {
	data, err := json.Marshal(def)
	if err != nil {
		return region.Record{}, fmt.Errorf("failed to encode region definition: %w", err)
	}
	row := RegionRow{Definition: string(data), Metadata: metadata}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return region.Record{}, fmt.Errorf("failed to create region: %w", err)
	}
	return toRecord(row)
}

// GetRegion returns a region record.
func (s *Store) GetRegion(ctx context.Context, id int64) (region.Record, error) {
	var row RegionRow
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&row).Error; err != nil {
		return region.Record{}, convertNotFoundError(err, region.ErrRegionNotFound)
	}
	return toRecord(row)
}

// ListRegions returns all region records ordered by id.
func (s *Store) ListRegions(ctx context.Context) ([]region.Record, error) {
	var rows []RegionRow
	if err := s.db.WithContext(ctx).Order("id").Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]region.Record, 0, len(rows))
	for _, row := range rows {
		rec, err := toRecord(row)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}

// UpdateMetadata replaces the metadata of a region.
func (s *Store) UpdateMetadata(ctx context.Context, id int64, metadata []byte) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var row RegionRow
		if err := tx.Select("id").Where("id = ?", id).First(&row).Error; err != nil {
			return convertNotFoundError(err, region.ErrRegionNotFound)
		}
		return tx.Model(&RegionRow{}).Where("id = ?", id).Update("metadata", metadata).Error
	})
}

// DeleteRegion removes a region record.
func (s *Store) DeleteRegion(ctx context.Context, id int64) error {
	result := s.db.WithContext(ctx).Where("id = ?", id).Delete(&RegionRow{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return region.ErrRegionNotFound
	}
	return nil
}
