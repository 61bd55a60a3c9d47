package telemetry

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Attribute keys for offline operations.
const (
	// ========================================================================
	// Region attributes
	// ========================================================================
	AttrRegionID = "offline.region.id"

	// ========================================================================
	// Resource attributes
	// ========================================================================
	AttrResourceKind   = "offline.resource.kind"
	AttrResourceURL    = "offline.resource.url"
	AttrResourceSize   = "offline.resource.size"
	AttrResourceReason = "offline.resource.reason"
	AttrAttempt        = "offline.resource.attempt"
	AttrCacheHit       = "offline.cache.hit"
	AttrNotModified    = "offline.http.not_modified"

	// ========================================================================
	// Store attributes
	// ========================================================================
	AttrStoreType = "store.type"
	AttrStoreSize = "store.size"
	AttrReclaimed = "store.reclaimed"

	// ========================================================================
	// Transport attributes
	// ========================================================================
	AttrBucket = "storage.bucket"
	AttrKey    = "storage.key"
)

// Span names.
const (
	SpanFetch   = "offline.fetch"
	SpanEvict   = "offline.evict"
	SpanDelete  = "offline.delete"
	SpanCreate  = "offline.create"
	SpanRelease = "offline.release"
)

// RegionID returns an attribute for the region identifier.
func RegionID(id int64) attribute.KeyValue {
	return attribute.Int64(AttrRegionID, id)
}

func ResourceKind(kind string) attribute.KeyValue {
	return attribute.String(AttrResourceKind, kind)
}

func ResourceURL(url string) attribute.KeyValue {
	return attribute.String(AttrResourceURL, url)
}

func ResourceSize(size uint64) attribute.KeyValue {
	return attribute.Int64(AttrResourceSize, int64(size))
}

// ResourceReason returns an attribute for a fetch outcome classification.
func ResourceReason(reason string) attribute.KeyValue {
	return attribute.String(AttrResourceReason, reason)
}

func Attempt(n int) attribute.KeyValue {
	return attribute.Int(AttrAttempt, n)
}

func CacheHit(hit bool) attribute.KeyValue {
	return attribute.Bool(AttrCacheHit, hit)
}

func NotModified(v bool) attribute.KeyValue {
	return attribute.Bool(AttrNotModified, v)
}

func StoreType(t string) attribute.KeyValue {
	return attribute.String(AttrStoreType, t)
}

func StoreSize(size uint64) attribute.KeyValue {
	return attribute.Int64(AttrStoreSize, int64(size))
}

// Reclaimed returns an attribute for the number of bytes freed by eviction.
func Reclaimed(bytes uint64) attribute.KeyValue {
	return attribute.Int64(AttrReclaimed, int64(bytes))
}

// Bucket returns an attribute for the S3 bucket of a mirrored resource.
func Bucket(name string) attribute.KeyValue {
	return attribute.String(AttrBucket, name)
}

// StorageKey returns an attribute for the S3 object key of a mirrored resource.
func StorageKey(key string) attribute.KeyValue {
	return attribute.String(AttrKey, key)
}

// StartFetchSpan starts a span for a single resource fetch.
// This is a convenience function that sets the common resource attributes.
func StartFetchSpan(ctx context.Context, regionID int64, kind, url string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	allAttrs := []attribute.KeyValue{
		RegionID(regionID),
		ResourceKind(kind),
		ResourceURL(url),
	}
	allAttrs = append(allAttrs, attrs...)

	return StartSpan(ctx, SpanFetch, trace.WithAttributes(allAttrs...))
}

// StartRegionSpan starts a span for a region-level operation (create, delete, ...).
func StartRegionSpan(ctx context.Context, name string, regionID int64, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	allAttrs := []attribute.KeyValue{
		RegionID(regionID),
	}
	allAttrs = append(allAttrs, attrs...)

	return StartSpan(ctx, name, trace.WithAttributes(allAttrs...))
}

// StartStoreSpan starts a span for a resource store operation.
func StartStoreSpan(ctx context.Context, operation string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return StartSpan(ctx, "store."+operation, trace.WithAttributes(attrs...))
}
