package badger

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/klauspost/compress/zstd"

	"github.com/marmos91/offlinekit/pkg/resource"
)

// ============================================================================
// Key Namespace
// ============================================================================
//
// Data Type          Prefix   Key Format                 Value
// =================================================================
// Resource meta      "r:"     r:<key-id>                 resourceMeta (JSON)
// Resource payload   "d:"     d:<key-id>                 payload (zstd)
// Membership         "m:"     m:<region-id>:<key-id>     empty
// Region record      "g:"     g:<region-id>              region.Record (JSON)
// Region sequence    "seq:"   seq:region                 badger sequence

const (
	prefixMeta       = "r:"
	prefixData       = "d:"
	prefixMembership = "m:"
	prefixRegion     = "g:"
	keyRegionSeq     = "seq:region"
)

func keyMeta(id string) []byte {
	return []byte(prefixMeta + id)
}

func keyData(id string) []byte {
	return []byte(prefixData + id)
}

func keyMembershipPrefix(regionID int64) []byte {
	return []byte(prefixMembership + strconv.FormatInt(regionID, 10) + ":")
}

func keyMembership(regionID int64, id string) []byte {
	return append(keyMembershipPrefix(regionID), id...)
}

// membershipRegion extracts the region id from a membership key.
func membershipRegion(key []byte) (int64, bool) {
	rest, ok := bytes.CutPrefix(key, []byte(prefixMembership))
	if !ok {
		return 0, false
	}
	idPart, _, ok := bytes.Cut(rest, []byte(":"))
	if !ok {
		return 0, false
	}
	id, err := strconv.ParseInt(string(idPart), 10, 64)
	return id, err == nil
}

// keyRegion zero-pads the id so that prefix iteration yields ids in order.
func keyRegion(id int64) []byte {
	return []byte(fmt.Sprintf("%s%020d", prefixRegion, id))
}

// ============================================================================
// Values
// ============================================================================

// resourceMeta is everything about a resource except its payload, so that
// reference counting never rewrites the payload.
type resourceMeta struct {
	Kind          resource.Kind `json:"kind"`
	URL           string        `json:"url"`
	Size          int64         `json:"size"`
	ETag          string        `json:"etag,omitempty"`
	Modified      time.Time     `json:"modified"`
	Expires       time.Time     `json:"expires"`
	MapboxTile    bool          `json:"mapbox_tile,omitempty"`
	RefCount      uint32        `json:"ref_count"`
	LastRequested time.Time     `json:"last_requested"`
}

func (m *resourceMeta) key() resource.Key {
	return resource.Key{Kind: m.Kind, URL: m.URL}
}

func (m *resourceMeta) entry() resource.Entry {
	return resource.Entry{
		Key:           m.key(),
		Size:          m.Size,
		RefCount:      m.RefCount,
		LastRequested: m.LastRequested,
		MapboxTile:    m.MapboxTile,
	}
}

func encodeMeta(m *resourceMeta) ([]byte, error) {
	data, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("failed to encode resource meta: %w", err)
	}
	return data, nil
}

func decodeMeta(data []byte) (*resourceMeta, error) {
	var m resourceMeta
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to decode resource meta: %w", err)
	}
	return &m, nil
}

// Payloads are compressed with shared zstd codecs; EncodeAll and DecodeAll
// are safe for concurrent use.
var (
	zstdEncoder *zstd.Encoder
	zstdDecoder *zstd.Decoder
)

func init() {
	var err error
	zstdEncoder, err = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedFastest))
	if err != nil {
		panic("badger: zstd encoder initialization failed: " + err.Error())
	}
	zstdDecoder, err = zstd.NewReader(nil)
	if err != nil {
		panic("badger: zstd decoder initialization failed: " + err.Error())
	}
}

func compressPayload(data []byte) []byte {
	return zstdEncoder.EncodeAll(data, make([]byte, 0, len(data)/2))
}

func decompressPayload(data []byte) ([]byte, error) {
	out, err := zstdDecoder.DecodeAll(data, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to decompress payload: %w", err)
	}
	return out, nil
}
