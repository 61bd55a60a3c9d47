// Package bytesize parses and formats the human-readable sizes used in the
// offlinekit configuration ("50Mi", "1GB", "1048576").
package bytesize

import (
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"
)

// ByteSize is a size in bytes. It decodes from text (config files, env
// variables, flags) and encodes back to the binary-unit form.
//
// Binary suffixes (Ki, Mi, Gi, Ti with or without a trailing B) multiply by
// 1024, decimal suffixes (K, M, G, T with or without a trailing B) by 1000.
// Suffixes are case-insensitive and a bare number is a byte count.
type ByteSize uint64

const (
	B  ByteSize = 1
	KB ByteSize = 1000
	MB ByteSize = 1000 * KB
	GB ByteSize = 1000 * MB
	TB ByteSize = 1000 * GB

	KiB ByteSize = 1024
	MiB ByteSize = 1024 * KiB
	GiB ByteSize = 1024 * MiB
	TiB ByteSize = 1024 * GiB
)

// ParseByteSize parses s into a ByteSize.
func ParseByteSize(s string) (ByteSize, error) {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return 0, fmt.Errorf("empty byte size string")
	}
	if strings.HasPrefix(trimmed, "-") {
		return 0, fmt.Errorf("invalid byte size format: %q", s)
	}

	n, err := humanize.ParseBytes(trimmed)
	if err != nil {
		return 0, fmt.Errorf("invalid byte size %q: %w", s, err)
	}
	return ByteSize(n), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (b *ByteSize) UnmarshalText(text []byte) error {
	size, err := ParseByteSize(string(text))
	if err != nil {
		return err
	}
	*b = size
	return nil
}

// MarshalText implements encoding.TextMarshaler, so JSON carries the same
// human-readable form as YAML.
func (b ByteSize) MarshalText() ([]byte, error) {
	return []byte(b.String()), nil
}

// Set implements pflag.Value.
func (b *ByteSize) Set(s string) error {
	return b.UnmarshalText([]byte(s))
}

// Type implements pflag.Value.
func (b *ByteSize) Type() string {
	return "bytes"
}

// MarshalYAML writes the size in binary units so saved configs stay readable.
func (b ByteSize) MarshalYAML() (any, error) {
	return b.String(), nil
}

// String returns the size in binary units, e.g. "50 MiB".
func (b ByteSize) String() string {
	return humanize.IBytes(uint64(b))
}

// Uint64 returns the size as a uint64.
func (b ByteSize) Uint64() uint64 {
	return uint64(b)
}

// Int64 returns the size as an int64. Values above math.MaxInt64 overflow.
func (b ByteSize) Int64() int64 {
	return int64(b)
}
