package tileset

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/maptile"
	"github.com/paulmach/orb/project"
)

// ratioSuffix is "@2x" for high density displays.
func ratioSuffix(pixelRatio float32) string {
	if pixelRatio > 1 {
		return "@2x"
	}
	return ""
}

// ExpandTile fills a tile URL template. Supported tokens are {z}, {x}, {y},
// {ratio}, {prefix}, {quadkey} and {bbox-epsg-3857}. TMS sources count rows
// from the south.
func ExpandTile(template string, t maptile.Tile, pixelRatio float32, scheme string) string {
	y := t.Y
	if scheme == "tms" {
		y = uint32(1)<<uint32(t.Z) - 1 - t.Y
	}
	r := strings.NewReplacer(
		"{z}", strconv.FormatUint(uint64(t.Z), 10),
		"{x}", strconv.FormatUint(uint64(t.X), 10),
		"{y}", strconv.FormatUint(uint64(y), 10),
		"{ratio}", ratioSuffix(pixelRatio),
		"{prefix}", fmt.Sprintf("%x%x", t.X%16, t.Y%16),
		"{quadkey}", quadkey(t),
		"{bbox-epsg-3857}", bbox3857(t),
	)
	return r.Replace(template)
}

func quadkey(t maptile.Tile) string {
	var b strings.Builder
	for i := int(t.Z); i > 0; i-- {
		digit := byte('0')
		mask := uint32(1) << uint32(i-1)
		if t.X&mask != 0 {
			digit++
		}
		if t.Y&mask != 0 {
			digit += 2
		}
		b.WriteByte(digit)
	}
	return b.String()
}

func bbox3857(t maptile.Tile) string {
	b := t.Bound()
	sw := project.WGS84.ToMercator(orb.Point{b.Min[0], b.Min[1]})
	ne := project.WGS84.ToMercator(orb.Point{b.Max[0], b.Max[1]})
	return fmt.Sprintf("%f,%f,%f,%f", sw[0], sw[1], ne[0], ne[1])
}

// insertBeforeQuery appends suffix to the path of raw, keeping any query.
func insertBeforeQuery(raw, suffix string) string {
	if i := strings.IndexByte(raw, '?'); i >= 0 {
		return raw[:i] + suffix + raw[i:]
	}
	return raw + suffix
}

// SpriteURLs returns the sprite sheet metadata and image URLs for base.
func SpriteURLs(base string, pixelRatio float32) (jsonURL, imageURL string) {
	r := ratioSuffix(pixelRatio)
	return insertBeforeQuery(base, r+".json"), insertBeforeQuery(base, r+".png")
}

// Glyph ranges are 256 code points wide and cover the Basic Multilingual Plane.
const (
	glyphRangeSize  = 256
	glyphRangeCount = 256

	ideographStart = 0x4E00
	ideographEnd   = 0x9FFF
)

// GlyphURLs expands a glyphs template for every range of stack. Ranges that
// start inside the CJK Unified Ideographs block are skipped unless
// includeIdeographs is set.
func GlyphURLs(template string, stack FontStack, includeIdeographs bool) []string {
	fonts := url.PathEscape(stack.String())
	out := make([]string, 0, glyphRangeCount)
	for i := 0; i < glyphRangeCount; i++ {
		start := i * glyphRangeSize
		if !includeIdeographs && start >= ideographStart && start <= ideographEnd {
			continue
		}
		rng := fmt.Sprintf("%d-%d", start, start+glyphRangeSize-1)
		out = append(out, strings.NewReplacer("{fontstack}", fonts, "{range}", rng).Replace(template))
	}
	return out
}
