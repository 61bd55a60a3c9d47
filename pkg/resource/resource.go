// Package resource defines the shared, reference-counted store of downloaded
// map resources and the catalog of persisted regions.
//
// Every resource is keyed by its kind and URL and is shared by all regions
// that need it. A region increments a resource's reference count at most
// once. Resources whose count drops to zero become reclaimable and are removed
// by the eviction engine in least-recently-requested order.
//
// Backends live in subpackages (memory, badger, gormstore). All of them update
// a single resource atomically with respect to other regions and to eviction,
// without a store-wide lock.
package resource

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	// ErrResourceNotFound is returned when a resource is not in the store.
	ErrResourceNotFound = errors.New("resource not found")

	// ErrResourceReferenced is returned by Remove when the resource is still
	// referenced by at least one region.
	ErrResourceReferenced = errors.New("resource is still referenced")

	// ErrStoreClosed is returned by operations on a closed store.
	ErrStoreClosed = errors.New("resource store is closed")
)

// Kind is the type of a map resource.
type Kind uint8

const (
	KindUnknown Kind = iota
	KindStyle
	KindSource
	KindTile
	KindGlyphs
	KindSpriteImage
	KindSpriteJSON
	KindImage
)

var kindNames = [...]string{
	KindUnknown:     "unknown",
	KindStyle:       "style",
	KindSource:      "source",
	KindTile:        "tile",
	KindGlyphs:      "glyphs",
	KindSpriteImage: "sprite_image",
	KindSpriteJSON:  "sprite_json",
	KindImage:       "image",
}

// String returns the kind name.
func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("Kind(%d)", k)
}

// ParseKind parses a kind name produced by Kind.String.
func ParseKind(s string) (Kind, error) {
	for k, name := range kindNames {
		if strings.EqualFold(s, name) {
			return Kind(k), nil
		}
	}
	return KindUnknown, fmt.Errorf("unknown resource kind %q", s)
}

// Key identifies a resource by what was requested.
type Key struct {
	Kind Kind
	URL  string
}

// ID returns the content address of the key: a hex sha256 of kind and URL.
func (k Key) ID() string {
	sum := sha256.Sum256([]byte(k.Kind.String() + "|" + k.URL))
	return hex.EncodeToString(sum[:])
}

// String returns "kind:url".
func (k Key) String() string {
	return k.Kind.String() + ":" + k.URL
}

// Resource is a stored resource.
type Resource struct {
	Key  Key
	Data []byte

	ETag     string
	Modified time.Time
	Expires  time.Time // zero means never expires

	// MapboxTile marks tiles that count toward the Mapbox tile budget.
	MapboxTile bool

	// RefCount and LastRequested are maintained by the store.
	RefCount      uint32
	LastRequested time.Time
}

// Size returns the payload size in bytes.
func (r *Resource) Size() int64 {
	return int64(len(r.Data))
}

// Expired reports whether the resource should be revalidated at now.
func (r *Resource) Expired(now time.Time) bool {
	return !r.Expires.IsZero() && !now.Before(r.Expires)
}

// Entry describes a stored resource without its payload.
type Entry struct {
	Key           Key
	Size          int64
	RefCount      uint32
	LastRequested time.Time
	MapboxTile    bool
}

// Usage summarizes the resources referenced by one region.
type Usage struct {
	Count     uint64
	Size      uint64
	TileCount uint64
	TileSize  uint64
}

// Add accumulates one resource into u.
func (u *Usage) Add(e Entry) {
	u.Count++
	u.Size += uint64(e.Size)
	if e.Key.Kind == KindTile {
		u.TileCount++
		u.TileSize += uint64(e.Size)
	}
}
