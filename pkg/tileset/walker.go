package tileset

import (
	"github.com/marmos91/offlinekit/pkg/region"
	"github.com/marmos91/offlinekit/pkg/resource"
)

// Walker enumerates the resources a region definition requires. The style is
// fetched first; StyleResources and SourceTiles are then applied to the
// documents as they arrive.
type Walker struct {
	def region.Definition
}

// NewWalker creates a walker for def.
func NewWalker(def region.Definition) Walker {
	return Walker{def: def}
}

// Style returns the key of the style document.
func (w Walker) Style() resource.Key {
	return resource.Key{Kind: resource.KindStyle, URL: w.def.StyleURL}
}

// StyleResources lists what a parsed style requires, in download order:
// source documents, images, sprites, glyphs, then tiles of sources that
// declare their templates inline.
func (w Walker) StyleResources(style *Style) []resource.Key {
	var keys []resource.Key

	for _, src := range style.Sources {
		switch {
		case src.HasTiles() && src.URL != "":
			keys = append(keys, resource.Key{Kind: resource.KindSource, URL: src.URL})
		case src.Type == "geojson" && src.Data != "":
			keys = append(keys, resource.Key{Kind: resource.KindSource, URL: src.Data})
		case src.Type == "image" && src.URL != "":
			keys = append(keys, resource.Key{Kind: resource.KindImage, URL: src.URL})
		}
	}

	for _, base := range style.Sprites {
		jsonURL, imageURL := SpriteURLs(base, w.def.PixelRatio)
		keys = append(keys,
			resource.Key{Kind: resource.KindSpriteJSON, URL: jsonURL},
			resource.Key{Kind: resource.KindSpriteImage, URL: imageURL},
		)
	}

	if style.Glyphs != "" {
		for _, stack := range style.FontStacks {
			for _, u := range GlyphURLs(style.Glyphs, stack, w.def.IncludeIdeographs) {
				keys = append(keys, resource.Key{Kind: resource.KindGlyphs, URL: u})
			}
		}
	}

	for _, src := range style.Sources {
		if src.HasTiles() && src.URL == "" && len(src.Tiles) > 0 {
			keys = append(keys, w.SourceTiles(src, TileJSONOf(src))...)
		}
	}
	return keys
}

// SourceTiles lists the tiles of a source within the region, by zoom
// ascending. The first template of the TileJSON is used so that equal tiles
// requested by different regions share one key.
func (w Walker) SourceTiles(src Source, tj *TileJSON) []resource.Key {
	if len(tj.Tiles) == 0 {
		return nil
	}
	lo, hi, ok := w.zoomRange(src, tj)
	if !ok {
		return nil
	}

	scheme := tj.Scheme
	if scheme == "" {
		scheme = src.Scheme
	}
	tiles := Cover(w.def.Bounds, lo, hi)
	keys := make([]resource.Key, len(tiles))
	for i, t := range tiles {
		keys[i] = resource.Key{
			Kind: resource.KindTile,
			URL:  ExpandTile(tj.Tiles[0], t, w.def.PixelRatio, scheme),
		}
	}
	return keys
}

// CountSourceTiles returns len(SourceTiles(src, tj)).
func (w Walker) CountSourceTiles(src Source, tj *TileJSON) uint64 {
	if len(tj.Tiles) == 0 {
		return 0
	}
	lo, hi, ok := w.zoomRange(src, tj)
	if !ok {
		return 0
	}
	return CountCover(w.def.Bounds, lo, hi)
}

func (w Walker) zoomRange(src Source, tj *TileJSON) (int, int, bool) {
	raster := src.Type == "raster" || src.Type == "raster-dem"
	return ZoomRange(w.def, tj.MinZoom, tj.MaxZoom, src.TileSize, raster)
}
