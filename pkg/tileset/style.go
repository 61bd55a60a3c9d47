// Package tileset turns a region definition and the documents it references
// (style, TileJSON) into the ordered list of resources to download.
package tileset

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// DefaultFontStack is used by symbol layers that set text-field without
// text-font.
var DefaultFontStack = FontStack{"Open Sans Regular", "Arial Unicode MS Regular"}

// FontStack is an ordered list of font names.
type FontStack []string

// String joins the fonts the way glyph URLs expect them.
func (f FontStack) String() string {
	return strings.Join(f, ",")
}

// Source is a style source.
type Source struct {
	Name     string
	Type     string   `json:"type"`
	URL      string   `json:"url"`
	Tiles    []string `json:"tiles"`
	MinZoom  *float64 `json:"minzoom"`
	MaxZoom  *float64 `json:"maxzoom"`
	TileSize int      `json:"tileSize"`
	Scheme   string   `json:"scheme"`

	// Data is set for geojson sources that reference their data by URL.
	Data string `json:"-"`
}

// HasTiles reports whether the source is a tiled source.
func (s Source) HasTiles() bool {
	switch s.Type {
	case "vector", "raster", "raster-dem":
		return true
	}
	return false
}

// Style is the subset of a style document needed for offline download.
type Style struct {
	Sources    []Source
	Sprites    []string
	Glyphs     string
	FontStacks []FontStack
}

type styleDoc struct {
	Version int                        `json:"version"`
	Sources map[string]json.RawMessage `json:"sources"`
	Sprite  json.RawMessage            `json:"sprite"`
	Glyphs  string                     `json:"glyphs"`
	Layers  []struct {
		Type   string                     `json:"type"`
		Layout map[string]json.RawMessage `json:"layout"`
	} `json:"layers"`
}

// ParseStyle decodes a style document. Sources are returned sorted by name
// so that enumeration order is stable.
func ParseStyle(data []byte) (*Style, error) {
	var doc styleDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("invalid style: %w", err)
	}
	if doc.Version != 0 && doc.Version != 8 {
		return nil, fmt.Errorf("unsupported style version %d", doc.Version)
	}

	style := &Style{Glyphs: doc.Glyphs}

	names := make([]string, 0, len(doc.Sources))
	for name := range doc.Sources {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		src, err := parseSource(name, doc.Sources[name])
		if err != nil {
			return nil, err
		}
		style.Sources = append(style.Sources, src)
	}

	sprites, err := parseSprite(doc.Sprite)
	if err != nil {
		return nil, err
	}
	style.Sprites = sprites

	seen := make(map[string]bool)
	for _, layer := range doc.Layers {
		if layer.Type != "symbol" {
			continue
		}
		stack, ok := textFont(layer.Layout["text-font"])
		if !ok {
			if _, hasText := layer.Layout["text-field"]; !hasText {
				continue
			}
			stack = DefaultFontStack
		}
		if key := stack.String(); !seen[key] {
			seen[key] = true
			style.FontStacks = append(style.FontStacks, stack)
		}
	}
	return style, nil
}

func parseSource(name string, raw json.RawMessage) (Source, error) {
	var src Source
	if err := json.Unmarshal(raw, &src); err != nil {
		return Source{}, fmt.Errorf("invalid source %q: %w", name, err)
	}
	src.Name = name
	if src.Type == "geojson" {
		var g struct {
			Data json.RawMessage `json:"data"`
		}
		if err := json.Unmarshal(raw, &g); err == nil {
			var url string
			if json.Unmarshal(g.Data, &url) == nil {
				src.Data = url
			}
		}
	}
	return src, nil
}

// parseSprite accepts both the single URL form and the array of
// {"id","url"} objects.
func parseSprite(raw json.RawMessage) ([]string, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}
	var single string
	if err := json.Unmarshal(raw, &single); err == nil {
		if single == "" {
			return nil, nil
		}
		return []string{single}, nil
	}
	var multi []struct {
		URL string `json:"url"`
	}
	if err := json.Unmarshal(raw, &multi); err != nil {
		return nil, fmt.Errorf("invalid sprite: %w", err)
	}
	var out []string
	for _, s := range multi {
		if s.URL != "" {
			out = append(out, s.URL)
		}
	}
	return out, nil
}

// textFont reads a text-font value: either a literal array of font names or
// a ["literal", [...]] expression. Data-driven values are not resolvable
// offline and are ignored.
func textFont(raw json.RawMessage) (FontStack, bool) {
	if len(raw) == 0 {
		return nil, false
	}
	var stack []string
	if err := json.Unmarshal(raw, &stack); err == nil && len(stack) > 0 {
		return stack, true
	}
	var expr []json.RawMessage
	if err := json.Unmarshal(raw, &expr); err != nil || len(expr) != 2 {
		return nil, false
	}
	var op string
	if err := json.Unmarshal(expr[0], &op); err != nil || op != "literal" {
		return nil, false
	}
	if err := json.Unmarshal(expr[1], &stack); err != nil || len(stack) == 0 {
		return nil, false
	}
	return stack, true
}
