package logger

import (
	"log/slog"
	"time"
)

// Standard field keys for structured logging.
// Use these keys consistently so region and resource activity can be
// correlated across the download engine, the store and the control API.
const (
	// Tracing
	KeyTraceID = "trace_id"
	KeySpanID  = "span_id"

	// Region lifecycle
	KeyRegionID      = "region_id"
	KeyDownloadState = "download_state"
	KeyStyleURL      = "style_url"
	KeyMinZoom       = "min_zoom"
	KeyMaxZoom       = "max_zoom"
	KeyCompleted     = "completed"
	KeyRequired      = "required"
	KeyOperation     = "operation"

	// Resources and fetches
	KeyResourceKind = "resource_kind"
	KeyResourceURL  = "resource_url"
	KeyResourceID   = "resource_id"
	KeyAttempt      = "attempt"
	KeyMaxAttempts  = "max_attempts"
	KeyDelay        = "delay"
	KeyReason       = "reason"
	KeyStatusCode   = "status_code"
	KeyBytes        = "bytes"
	KeyCacheHit     = "cache_hit"
	KeyTileLimit    = "tile_limit"
	KeyTileCount    = "tile_count"

	// Store
	KeyStoreType     = "store_type"
	KeyStoreSize     = "store_size"
	KeyHighWaterMark = "high_water_mark"
	KeyEvicted       = "evicted"
	KeyFreed         = "freed"
	KeyRefCount      = "ref_count"
	KeyBucket        = "bucket"
	KeyKey           = "key"

	// Operation metadata
	KeyDurationMs = "duration_ms"
	KeyError      = "error"
	KeyClientIP   = "client_ip"
	KeyRequestID  = "request_id"
)

// RegionID returns a slog.Attr for a region identifier.
func RegionID(id int64) slog.Attr {
	return slog.Int64(KeyRegionID, id)
}

// DownloadState returns a slog.Attr for a region download state name.
func DownloadState(state string) slog.Attr {
	return slog.String(KeyDownloadState, state)
}

// ResourceKind returns a slog.Attr for a resource kind name.
func ResourceKind(kind string) slog.Attr {
	return slog.String(KeyResourceKind, kind)
}

// ResourceURL returns a slog.Attr for a resource URL.
func ResourceURL(url string) slog.Attr {
	return slog.String(KeyResourceURL, url)
}

// Attempt returns a slog.Attr for a retry attempt number.
func Attempt(n int) slog.Attr {
	return slog.Int(KeyAttempt, n)
}

// Delay returns a slog.Attr for a retry delay.
func Delay(d time.Duration) slog.Attr {
	return slog.Duration(KeyDelay, d)
}

// Reason returns a slog.Attr for a fetch outcome reason.
func Reason(r string) slog.Attr {
	return slog.String(KeyReason, r)
}

// Bytes returns a slog.Attr for a payload size.
func Bytes(n int64) slog.Attr {
	return slog.Int64(KeyBytes, n)
}

// Evicted returns a slog.Attr for the number of evicted resources.
func Evicted(n int) slog.Attr {
	return slog.Int(KeyEvicted, n)
}

// DurationMs returns a slog.Attr for an operation duration in milliseconds.
func DurationMs(ms float64) slog.Attr {
	return slog.Float64(KeyDurationMs, ms)
}

// Err returns a slog.Attr for an error. A nil error yields an empty attr,
// which handlers drop.
func Err(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.String(KeyError, err.Error())
}
