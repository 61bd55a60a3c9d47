package transport

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/klauspost/compress/gzip"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/marmos91/offlinekit/internal/logger"
	"github.com/marmos91/offlinekit/pkg/region"
)

// DefaultUserAgent is sent when HTTPConfig.UserAgent is empty.
const DefaultUserAgent = "offlinekit/1.0"

// maxBodySize bounds a single resource payload.
const maxBodySize = 64 << 20

// HTTPConfig configures the HTTP fetcher.
type HTTPConfig struct {
	Timeout   time.Duration
	UserAgent string
	Mapbox    MapboxResolver
}

// HTTPFetcher fetches http(s):// and mapbox:// resources.
type HTTPFetcher struct {
	client    *http.Client
	userAgent string
	mapbox    MapboxResolver
	now       func() time.Time
}

// NewHTTP creates an HTTP fetcher. Requests are traced with otelhttp.
// Compression is negotiated explicitly so that pre-compressed vector tiles
// and gzip content encoding go through the same decoder.
func NewHTTP(cfg HTTPConfig) *HTTPFetcher {
	base := http.DefaultTransport.(*http.Transport).Clone()
	base.DisableCompression = true

	ua := cfg.UserAgent
	if ua == "" {
		ua = DefaultUserAgent
	}
	return &HTTPFetcher{
		client: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: otelhttp.NewTransport(base),
		},
		userAgent: ua,
		mapbox:    cfg.Mapbox,
		now:       time.Now,
	}
}

// Fetch performs a GET, conditional when the request carries validators.
func (f *HTTPFetcher) Fetch(ctx context.Context, req *Request) (*Response, error) {
	target, err := f.mapbox.Resolve(req.Key.URL, req.Key.Kind)
	if err != nil {
		return nil, &FetchError{Reason: region.ReasonOther, URL: req.Key.URL, Err: err}
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, &FetchError{Reason: region.ReasonOther, URL: req.Key.URL, Err: err}
	}
	httpReq.Header.Set("User-Agent", f.userAgent)
	httpReq.Header.Set("Accept-Encoding", "gzip")
	if req.ETag != "" {
		httpReq.Header.Set("If-None-Match", req.ETag)
	} else if !req.Modified.IsZero() {
		httpReq.Header.Set("If-Modified-Since", req.Modified.UTC().Format(http.TimeFormat))
	}

	resp, err := f.client.Do(httpReq)
	if err != nil {
		return nil, classifyTransportError(req.Key.URL, err)
	}
	defer resp.Body.Close()

	if reason := ReasonForStatus(resp.StatusCode); reason != region.ReasonSuccess {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		logger.DebugCtx(ctx, "Resource fetch failed",
			logger.ResourceURL(req.Key.URL),
			logger.KeyStatusCode, resp.StatusCode,
			logger.Reason(reason.String()))
		return nil, &FetchError{Reason: reason, StatusCode: resp.StatusCode, URL: req.Key.URL}
	}

	out := &Response{
		ETag:     resp.Header.Get("ETag"),
		Modified: modifiedFrom(resp.Header),
		Expires:  expiresFrom(resp.Header, f.now()),
	}
	if resp.StatusCode == http.StatusNotModified {
		out.NotModified = true
		return out, nil
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize+1))
	if err != nil {
		return nil, classifyTransportError(req.Key.URL, err)
	}
	if len(body) > maxBodySize {
		return nil, &FetchError{
			Reason: region.ReasonOther,
			URL:    req.Key.URL,
			Err:    fmt.Errorf("payload exceeds %d bytes", maxBodySize),
		}
	}

	data, err := decodeBody(body)
	if err != nil {
		return nil, &FetchError{Reason: region.ReasonOther, URL: req.Key.URL, Err: err}
	}
	out.Data = data
	return out, nil
}

// decodeBody gunzips data that carries the gzip magic, whether it came with
// Content-Encoding or was stored compressed by the origin.
func decodeBody(body []byte) ([]byte, error) {
	if len(body) < 2 || body[0] != 0x1f || body[1] != 0x8b {
		return body, nil
	}
	zr, err := gzip.NewReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("invalid gzip payload: %w", err)
	}
	defer zr.Close()

	data, err := io.ReadAll(io.LimitReader(zr, maxBodySize+1))
	if err != nil {
		return nil, fmt.Errorf("invalid gzip payload: %w", err)
	}
	if len(data) > maxBodySize {
		return nil, fmt.Errorf("decompressed payload exceeds %d bytes", maxBodySize)
	}
	return data, nil
}

var _ Fetcher = (*HTTPFetcher)(nil)
