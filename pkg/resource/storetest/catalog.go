package storetest

import (
	"bytes"
	"errors"
	"math"
	"testing"

	"github.com/marmos91/offlinekit/pkg/region"
)

func runCatalogTests(t *testing.T, factory StoreFactory) {
	t.Run("CreateGet", func(t *testing.T) { testCreateGet(t, factory) })
	t.Run("ListOrdered", func(t *testing.T) { testListOrdered(t, factory) })
	t.Run("UpdateMetadata", func(t *testing.T) { testUpdateMetadata(t, factory) })
	t.Run("DeleteRegion", func(t *testing.T) { testDeleteRegion(t, factory) })
}

func testDefinition() region.Definition {
	return region.Definition{
		Bounds:     region.Bounds{South: 37.7, West: -122.5, North: 37.8, East: -122.4},
		MinZoom:    10,
		MaxZoom:    math.Inf(1),
		StyleURL:   "mapbox://styles/mapbox/streets-v12",
		PixelRatio: 2,
	}
}

func testCreateGet(t *testing.T, factory StoreFactory) {
	store := factory(t)
	ctx := t.Context()

	def := testDefinition()
	rec, err := store.CreateRegion(ctx, def, []byte("downtown"))
	if err != nil {
		t.Fatalf("CreateRegion() failed: %v", err)
	}
	if rec.ID <= 0 {
		t.Errorf("ID = %d, want > 0", rec.ID)
	}

	got, err := store.GetRegion(ctx, rec.ID)
	if err != nil {
		t.Fatalf("GetRegion() failed: %v", err)
	}
	if got.Definition.StyleURL != def.StyleURL {
		t.Errorf("StyleURL = %q, want %q", got.Definition.StyleURL, def.StyleURL)
	}
	if !math.IsInf(got.Definition.MaxZoom, 1) {
		t.Errorf("MaxZoom = %v, want +Inf", got.Definition.MaxZoom)
	}
	if got.Definition.Bounds != def.Bounds {
		t.Errorf("Bounds = %+v, want %+v", got.Definition.Bounds, def.Bounds)
	}
	if got.Definition.PixelRatio != 2 {
		t.Errorf("PixelRatio = %v, want 2", got.Definition.PixelRatio)
	}
	if !bytes.Equal(got.Metadata, []byte("downtown")) {
		t.Errorf("Metadata = %q, want %q", got.Metadata, "downtown")
	}

	if _, err := store.GetRegion(ctx, rec.ID+100); !errors.Is(err, region.ErrRegionNotFound) {
		t.Errorf("GetRegion(missing) error = %v, want ErrRegionNotFound", err)
	}
}

func testListOrdered(t *testing.T, factory StoreFactory) {
	store := factory(t)
	ctx := t.Context()

	var ids []int64
	for range 3 {
		rec, err := store.CreateRegion(ctx, testDefinition(), nil)
		if err != nil {
			t.Fatalf("CreateRegion() failed: %v", err)
		}
		ids = append(ids, rec.ID)
	}

	recs, err := store.ListRegions(ctx)
	if err != nil {
		t.Fatalf("ListRegions() failed: %v", err)
	}
	if len(recs) != 3 {
		t.Fatalf("ListRegions() = %d records, want 3", len(recs))
	}
	for i, rec := range recs {
		if rec.ID != ids[i] {
			t.Errorf("recs[%d].ID = %d, want %d", i, rec.ID, ids[i])
		}
	}
	if ids[0] == ids[1] || ids[1] == ids[2] {
		t.Errorf("ids not unique: %v", ids)
	}
}

func testUpdateMetadata(t *testing.T, factory StoreFactory) {
	store := factory(t)
	ctx := t.Context()

	rec, err := store.CreateRegion(ctx, testDefinition(), []byte("old"))
	if err != nil {
		t.Fatalf("CreateRegion() failed: %v", err)
	}
	if err := store.UpdateMetadata(ctx, rec.ID, []byte("new")); err != nil {
		t.Fatalf("UpdateMetadata() failed: %v", err)
	}

	got, err := store.GetRegion(ctx, rec.ID)
	if err != nil {
		t.Fatalf("GetRegion() failed: %v", err)
	}
	if string(got.Metadata) != "new" {
		t.Errorf("Metadata = %q, want %q", got.Metadata, "new")
	}

	if err := store.UpdateMetadata(ctx, rec.ID+100, nil); !errors.Is(err, region.ErrRegionNotFound) {
		t.Errorf("UpdateMetadata(missing) error = %v, want ErrRegionNotFound", err)
	}
}

func testDeleteRegion(t *testing.T, factory StoreFactory) {
	store := factory(t)
	ctx := t.Context()

	rec, err := store.CreateRegion(ctx, testDefinition(), nil)
	if err != nil {
		t.Fatalf("CreateRegion() failed: %v", err)
	}
	if err := store.DeleteRegion(ctx, rec.ID); err != nil {
		t.Fatalf("DeleteRegion() failed: %v", err)
	}
	if _, err := store.GetRegion(ctx, rec.ID); !errors.Is(err, region.ErrRegionNotFound) {
		t.Errorf("GetRegion(deleted) error = %v, want ErrRegionNotFound", err)
	}
	if err := store.DeleteRegion(ctx, rec.ID); !errors.Is(err, region.ErrRegionNotFound) {
		t.Errorf("DeleteRegion(deleted) error = %v, want ErrRegionNotFound", err)
	}
}
