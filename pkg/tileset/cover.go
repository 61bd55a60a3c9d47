package tileset

import (
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/maptile"

	"github.com/marmos91/offlinekit/pkg/region"
)

// baseTileSize is the tile size zoom levels are defined against.
const baseTileSize = 512

// coveringZoom maps a camera zoom to the tile zoom that covers it for tiles
// of the given size. Raster tiles round, vector tiles floor.
func coveringZoom(zoom float64, tileSize int, raster bool) float64 {
	if tileSize <= 0 {
		tileSize = baseTileSize
	}
	z := zoom + math.Log2(float64(baseTileSize)/float64(tileSize))
	if raster {
		return math.Round(z)
	}
	return math.Floor(z)
}

// ZoomRange returns the tile zooms to download for a source whose tiles
// exist on [srcMin, srcMax]. An unbounded definition max zoom means the
// source maximum. ok is false when the ranges do not intersect.
func ZoomRange(def region.Definition, srcMin, srcMax float64, tileSize int, raster bool) (lo, hi int, ok bool) {
	minZ := math.Max(coveringZoom(def.MinZoom, tileSize, raster), math.Ceil(srcMin))
	maxZ := math.Floor(srcMax)
	if !math.IsInf(def.MaxZoom, 1) {
		maxZ = math.Min(coveringZoom(def.MaxZoom, tileSize, raster), maxZ)
	}
	if minZ < 0 {
		minZ = 0
	}
	if maxZ < minZ {
		return 0, 0, false
	}
	return int(minZ), int(maxZ), true
}

// Cover returns the tiles intersecting bounds at zoom levels lo..hi, in zoom
// ascending then row-major order.
func Cover(bounds region.Bounds, lo, hi int) []maptile.Tile {
	var tiles []maptile.Tile
	for z := lo; z <= hi; z++ {
		zoom := maptile.Zoom(z)
		nw := maptile.At(orb.Point{bounds.West, bounds.North}, zoom)
		se := maptile.At(orb.Point{bounds.East, bounds.South}, zoom)

		last := uint32(1)<<uint32(z) - 1
		minX, maxX := min(nw.X, last), min(se.X, last)
		minY, maxY := min(nw.Y, last), min(se.Y, last)

		for y := minY; y <= maxY; y++ {
			for x := minX; x <= maxX; x++ {
				tiles = append(tiles, maptile.New(x, y, zoom))
			}
		}
	}
	return tiles
}

// CountCover returns len(Cover(bounds, lo, hi)) without materializing tiles.
func CountCover(bounds region.Bounds, lo, hi int) uint64 {
	var n uint64
	for z := lo; z <= hi; z++ {
		zoom := maptile.Zoom(z)
		nw := maptile.At(orb.Point{bounds.West, bounds.North}, zoom)
		se := maptile.At(orb.Point{bounds.East, bounds.South}, zoom)
		last := uint32(1)<<uint32(z) - 1
		w := uint64(min(se.X, last)-min(nw.X, last)) + 1
		h := uint64(min(se.Y, last)-min(nw.Y, last)) + 1
		n += w * h
	}
	return n
}
