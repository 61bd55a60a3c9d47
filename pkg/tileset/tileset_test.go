package tileset

import (
	"math"
	"strings"
	"testing"

	"github.com/paulmach/orb/maptile"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/offlinekit/pkg/region"
	"github.com/marmos91/offlinekit/pkg/resource"
)

const testStyle = `{
  "version": 8,
  "sprite": "mapbox://sprites/mapbox/streets-v12",
  "glyphs": "mapbox://fonts/mapbox/{fontstack}/{range}.pbf",
  "sources": {
    "streets": {"type": "vector", "url": "mapbox://mapbox.mapbox-streets-v8"},
    "hillshade": {"type": "raster", "tiles": ["https://tiles.example.com/hs/{z}/{x}/{y}{ratio}.png"], "maxzoom": 1, "tileSize": 256},
    "points": {"type": "geojson", "data": "https://data.example.com/points.geojson"},
    "inline": {"type": "geojson", "data": {"type": "FeatureCollection", "features": []}},
    "overlay": {"type": "image", "url": "https://img.example.com/overlay.png", "coordinates": []}
  },
  "layers": [
    {"id": "bg", "type": "background"},
    {"id": "labels", "type": "symbol", "layout": {"text-field": "{name}", "text-font": ["DIN Pro Medium", "Arial Unicode MS Regular"]}},
    {"id": "labels2", "type": "symbol", "layout": {"text-field": "{name}", "text-font": ["literal", ["DIN Pro Medium", "Arial Unicode MS Regular"]]}},
    {"id": "poi", "type": "symbol", "layout": {"text-field": "{name}"}},
    {"id": "icons", "type": "symbol", "layout": {"icon-image": "marker"}}
  ]
}`

func TestParseStyle(t *testing.T) {
	style, err := ParseStyle([]byte(testStyle))
	require.NoError(t, err)

	var names []string
	for _, s := range style.Sources {
		names = append(names, s.Name)
	}
	assert.Equal(t, []string{"hillshade", "inline", "overlay", "points", "streets"}, names)
	assert.Equal(t, []string{"mapbox://sprites/mapbox/streets-v12"}, style.Sprites)
	assert.Equal(t, []FontStack{
		{"DIN Pro Medium", "Arial Unicode MS Regular"},
		DefaultFontStack,
	}, style.FontStacks)

	for _, s := range style.Sources {
		switch s.Name {
		case "points":
			assert.Equal(t, "https://data.example.com/points.geojson", s.Data)
		case "inline":
			assert.Empty(t, s.Data)
		}
	}
}

func TestParseStyle_SpriteArray(t *testing.T) {
	style, err := ParseStyle([]byte(`{"version":8,"sources":{},"layers":[],
		"sprite":[{"id":"default","url":"https://s.example.com/a"},{"id":"x","url":"https://s.example.com/b"}]}`))
	require.NoError(t, err)
	assert.Equal(t, []string{"https://s.example.com/a", "https://s.example.com/b"}, style.Sprites)
}

func TestParseStyle_Invalid(t *testing.T) {
	_, err := ParseStyle([]byte(`not json`))
	assert.Error(t, err)

	_, err = ParseStyle([]byte(`{"version": 7}`))
	assert.Error(t, err)
}

func TestParseTileJSON(t *testing.T) {
	tj, err := ParseTileJSON([]byte(`{"tiles":["https://t.example.com/{z}/{x}/{y}.pbf"],"maxzoom":14}`))
	require.NoError(t, err)
	assert.Equal(t, float64(0), tj.MinZoom)
	assert.Equal(t, float64(14), tj.MaxZoom)

	_, err = ParseTileJSON([]byte(`{"tiles":[]}`))
	assert.Error(t, err)
}

func TestZoomRange(t *testing.T) {
	def := region.Definition{MinZoom: 2.5, MaxZoom: 4.7}

	lo, hi, ok := ZoomRange(def, 0, 22, 512, false)
	require.True(t, ok)
	assert.Equal(t, 2, lo)
	assert.Equal(t, 4, hi)

	// 256px raster tiles sit one zoom level deeper and round.
	lo, hi, ok = ZoomRange(def, 0, 22, 256, true)
	require.True(t, ok)
	assert.Equal(t, 4, lo)
	assert.Equal(t, 6, hi)

	// Clamped by the source.
	lo, hi, ok = ZoomRange(def, 3, 3, 512, false)
	require.True(t, ok)
	assert.Equal(t, 3, lo)
	assert.Equal(t, 3, hi)

	// Unbounded max zoom means the source max.
	def.MaxZoom = math.Inf(1)
	_, hi, ok = ZoomRange(def, 0, 14, 512, false)
	require.True(t, ok)
	assert.Equal(t, 14, hi)

	// Disjoint.
	_, _, ok = ZoomRange(region.Definition{MinZoom: 10, MaxZoom: 12}, 0, 5, 512, false)
	assert.False(t, ok)
}

func TestCover(t *testing.T) {
	world := region.Bounds{North: region.MaxLatitude, South: -region.MaxLatitude, West: -180, East: 180}

	tiles := Cover(world, 0, 2)
	assert.Len(t, tiles, 1+4+16)
	assert.Equal(t, uint64(21), CountCover(world, 0, 2))
	assert.Equal(t, maptile.New(0, 0, 0), tiles[0])

	for i := 1; i < len(tiles); i++ {
		assert.LessOrEqual(t, tiles[i-1].Z, tiles[i].Z, "tiles must be zoom ascending")
	}

	// A small box around one point stays one tile per zoom.
	box := region.Bounds{North: 37.7750, South: 37.7749, West: -122.4195, East: -122.4194}
	assert.Len(t, Cover(box, 10, 12), 3)
}

func TestExpandTile(t *testing.T) {
	tile := maptile.New(3, 5, 3)

	assert.Equal(t, "https://t/3/3/5@2x.png", ExpandTile("https://t/{z}/{x}/{y}{ratio}.png", tile, 2, ""))
	assert.Equal(t, "https://t/3/3/5.png", ExpandTile("https://t/{z}/{x}/{y}{ratio}.png", tile, 1, ""))
	assert.Equal(t, "https://t/3/3/2", ExpandTile("https://t/{z}/{x}/{y}", tile, 1, "tms"))
	assert.Equal(t, "https://t/35/q", ExpandTile("https://t/{prefix}/q", tile, 1, ""))
	assert.Equal(t, "https://t/213", ExpandTile("https://t/{quadkey}", tile, 1, ""))

	bbox := ExpandTile("{bbox-epsg-3857}", maptile.New(0, 0, 0), 1, "")
	parts := strings.Split(bbox, ",")
	require.Len(t, parts, 4)
	assert.True(t, strings.HasPrefix(parts[0], "-20037508"))
}

func TestSpriteURLs(t *testing.T) {
	j, i := SpriteURLs("mapbox://sprites/mapbox/streets-v12", 2)
	assert.Equal(t, "mapbox://sprites/mapbox/streets-v12@2x.json", j)
	assert.Equal(t, "mapbox://sprites/mapbox/streets-v12@2x.png", i)

	j, i = SpriteURLs("https://s.example.com/sprite?key=1", 1)
	assert.Equal(t, "https://s.example.com/sprite.json?key=1", j)
	assert.Equal(t, "https://s.example.com/sprite.png?key=1", i)
}

func TestGlyphURLs(t *testing.T) {
	stack := FontStack{"Open Sans Regular", "Arial Unicode MS Regular"}

	all := GlyphURLs("https://g/{fontstack}/{range}.pbf", stack, true)
	assert.Len(t, all, 256)
	assert.Equal(t, "https://g/Open%20Sans%20Regular%2CArial%20Unicode%20MS%20Regular/0-255.pbf", all[0])
	assert.True(t, strings.HasSuffix(all[255], "/65280-65535.pbf"))

	// 0x4E00..0x9FFF covers ranges starting at 19968 through 40704.
	latin := GlyphURLs("https://g/{fontstack}/{range}.pbf", stack, false)
	assert.Len(t, latin, 256-82)
	for _, u := range latin {
		assert.NotContains(t, u, "/19968-20223.pbf")
	}
}

func TestWalker(t *testing.T) {
	def := region.Definition{
		Bounds:     region.Bounds{North: 10, South: -10, West: -10, East: 10},
		MinZoom:    0,
		MaxZoom:    math.Inf(1),
		StyleURL:   "mapbox://styles/mapbox/streets-v12",
		PixelRatio: 2,
	}
	w := NewWalker(def)
	assert.Equal(t, resource.Key{Kind: resource.KindStyle, URL: def.StyleURL}, w.Style())

	style, err := ParseStyle([]byte(testStyle))
	require.NoError(t, err)
	keys := w.StyleResources(style)

	var kinds []resource.Kind
	for _, k := range keys {
		if len(kinds) == 0 || kinds[len(kinds)-1] != k.Kind {
			kinds = append(kinds, k.Kind)
		}
	}
	// hillshade lists its tiles inline, so they come after the glyphs.
	assert.Equal(t, []resource.Kind{
		resource.KindImage,
		resource.KindSource,
		resource.KindSpriteJSON,
		resource.KindSpriteImage,
		resource.KindGlyphs,
		resource.KindTile,
	}, kinds)

	assert.Equal(t, "https://img.example.com/overlay.png", keys[0].URL)
	assert.Equal(t, "https://data.example.com/points.geojson", keys[1].URL)
	assert.Equal(t, "mapbox://mapbox.mapbox-streets-v8", keys[2].URL)
	assert.Equal(t, "mapbox://sprites/mapbox/streets-v12@2x.json", keys[3].URL)

	// Two font stacks, ideograph ranges skipped.
	glyphs := 0
	var tiles []string
	for _, k := range keys {
		switch k.Kind {
		case resource.KindGlyphs:
			glyphs++
		case resource.KindTile:
			tiles = append(tiles, k.URL)
		}
	}
	assert.Equal(t, 2*174, glyphs)

	// 256px raster with maxzoom 1: one zoom level, four tiles around the origin.
	assert.Equal(t, []string{
		"https://tiles.example.com/hs/1/0/0@2x.png",
		"https://tiles.example.com/hs/1/1/0@2x.png",
		"https://tiles.example.com/hs/1/0/1@2x.png",
		"https://tiles.example.com/hs/1/1/1@2x.png",
	}, tiles)
}

func TestWalker_SourceTiles(t *testing.T) {
	def := region.Definition{
		Bounds:     region.Bounds{North: 1, South: -1, West: -1, East: 1},
		MinZoom:    0,
		MaxZoom:    2,
		StyleURL:   "https://example.com/style.json",
		PixelRatio: 1,
	}
	w := NewWalker(def)
	src := Source{Name: "s", Type: "vector", URL: "https://example.com/tiles.json"}
	tj := &TileJSON{Tiles: []string{"https://t/{z}/{x}/{y}.pbf"}, MinZoom: 0, MaxZoom: 14}

	keys := w.SourceTiles(src, tj)
	assert.Len(t, keys, 1+4+4)
	assert.Equal(t, uint64(len(keys)), w.CountSourceTiles(src, tj))
	assert.Equal(t, "https://t/0/0/0.pbf", keys[0].URL)
	for _, k := range keys {
		assert.Equal(t, resource.KindTile, k.Kind)
	}
}
