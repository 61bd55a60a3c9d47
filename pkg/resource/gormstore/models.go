package gormstore

import (
	"time"

	"github.com/marmos91/offlinekit/pkg/resource"
)

// ResourceRow is a stored resource.
type ResourceRow struct {
	ID            string        `gorm:"primaryKey;size:64"`
	Kind          resource.Kind `gorm:"not null"`
	URL           string        `gorm:"not null"`
	Data          []byte
	Size          int64  `gorm:"not null"`
	ETag          string `gorm:"size:255"`
	Modified      time.Time
	Expires       time.Time
	MapboxTile    bool      `gorm:"not null;default:false;index"`
	RefCount      uint32    `gorm:"not null;default:0;index"`
	LastRequested time.Time `gorm:"index"`
}

// TableName returns the table name for ResourceRow.
func (ResourceRow) TableName() string {
	return "resources"
}

// Membership records that a region holds a reference to a resource.
type Membership struct {
	RegionID   int64  `gorm:"primaryKey;autoIncrement:false"`
	ResourceID string `gorm:"primaryKey;size:64;index"`
}

// TableName returns the table name for Membership.
func (Membership) TableName() string {
	return "region_resources"
}

// RegionRow is a persisted region. The definition is stored as JSON.
type RegionRow struct {
	ID         int64  `gorm:"primaryKey;autoIncrement"`
	Definition string `gorm:"type:text;not null"`
	Metadata   []byte
	CreatedAt  time.Time
}

// TableName returns the table name for RegionRow.
func (RegionRow) TableName() string {
	return "regions"
}

// entryRow is the payload-free projection of ResourceRow.
type entryRow struct {
	ID            string
	Kind          resource.Kind
	URL           string
	Size          int64
	RefCount      uint32
	LastRequested time.Time
	MapboxTile    bool
}

const entryColumns = "resources.id, resources.kind, resources.url, resources.size, resources.ref_count, resources.last_requested, resources.mapbox_tile"

func (r entryRow) entry() resource.Entry {
	return resource.Entry{
		Key:           resource.Key{Kind: r.Kind, URL: r.URL},
		Size:          r.Size,
		RefCount:      r.RefCount,
		LastRequested: r.LastRequested,
		MapboxTile:    r.MapboxTile,
	}
}

func allModels() []any {
	return []any{
		&ResourceRow{},
		&Membership{},
		&RegionRow{},
	}
}
