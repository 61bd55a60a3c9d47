package transport

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/offlinekit/pkg/region"
	"github.com/marmos91/offlinekit/pkg/resource"
)

func tileRequest(url string) *Request {
	return &Request{Key: resource.Key{Kind: resource.KindTile, URL: url}}
}

func TestHTTPFetcher_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, DefaultUserAgent, r.Header.Get("User-Agent"))
		w.Header().Set("ETag", `"abc"`)
		w.Header().Set("Cache-Control", "public, max-age=3600")
		w.Header().Set("Last-Modified", "Mon, 02 Jan 2006 15:04:05 GMT")
		_, _ = w.Write([]byte("tile-bytes"))
	}))
	defer srv.Close()

	f := NewHTTP(HTTPConfig{Timeout: 5 * time.Second})
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	f.now = func() time.Time { return now }

	resp, err := f.Fetch(context.Background(), tileRequest(srv.URL+"/1/0/0.pbf"))
	require.NoError(t, err)
	assert.Equal(t, []byte("tile-bytes"), resp.Data)
	assert.Equal(t, `"abc"`, resp.ETag)
	assert.Equal(t, now.Add(time.Hour), resp.Expires)
	assert.Equal(t, 2006, resp.Modified.Year())
	assert.False(t, resp.NotModified)
}

func TestHTTPFetcher_GzipPayload(t *testing.T) {
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	_, _ = zw.Write([]byte("vector tile"))
	require.NoError(t, zw.Close())

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Encoding", "gzip")
		_, _ = w.Write(buf.Bytes())
	}))
	defer srv.Close()

	resp, err := NewHTTP(HTTPConfig{}).Fetch(context.Background(), tileRequest(srv.URL+"/t.pbf"))
	require.NoError(t, err)
	assert.Equal(t, []byte("vector tile"), resp.Data)
}

func TestHTTPFetcher_Conditional(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("If-None-Match") == `"v1"` {
			w.Header().Set("Cache-Control", "max-age=60")
			w.WriteHeader(http.StatusNotModified)
			return
		}
		_, _ = w.Write([]byte("fresh"))
	}))
	defer srv.Close()

	req := tileRequest(srv.URL + "/t.pbf")
	req.ETag = `"v1"`

	resp, err := NewHTTP(HTTPConfig{}).Fetch(context.Background(), req)
	require.NoError(t, err)
	assert.True(t, resp.NotModified)
	assert.Empty(t, resp.Data)
	assert.False(t, resp.Expires.IsZero())
}

func TestHTTPFetcher_StatusClassification(t *testing.T) {
	tests := []struct {
		status int
		want   region.Reason
	}{
		{http.StatusNotFound, region.ReasonNotFound},
		{http.StatusGone, region.ReasonNotFound},
		{http.StatusInternalServerError, region.ReasonServer},
		{http.StatusServiceUnavailable, region.ReasonServer},
		{http.StatusTooManyRequests, region.ReasonServer},
		{http.StatusForbidden, region.ReasonOther},
	}
	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
			}))
			defer srv.Close()

			_, err := NewHTTP(HTTPConfig{}).Fetch(context.Background(), tileRequest(srv.URL+"/t.pbf"))
			require.Error(t, err)

			var fe *FetchError
			require.True(t, errors.As(err, &fe))
			assert.Equal(t, tt.want, fe.Reason)
			assert.Equal(t, tt.status, fe.StatusCode)
			assert.Equal(t, tt.want, ReasonOf(err))
		})
	}
}

func TestHTTPFetcher_ConnectionRefused(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL + "/t.pbf"
	srv.Close()

	_, err := NewHTTP(HTTPConfig{Timeout: time.Second}).Fetch(context.Background(), tileRequest(url))
	require.Error(t, err)
	assert.Equal(t, region.ReasonConnection, ReasonOf(err))
}

func TestHTTPFetcher_MapboxURL(t *testing.T) {
	var gotPath, gotToken string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotToken = r.URL.Query().Get("access_token")
		_, _ = w.Write([]byte("{}"))
	}))
	defer srv.Close()

	f := NewHTTP(HTTPConfig{Mapbox: MapboxResolver{BaseURL: srv.URL, AccessToken: "pk.abc"}})
	req := &Request{Key: resource.Key{Kind: resource.KindStyle, URL: "mapbox://styles/mapbox/streets-v12"}}

	_, err := f.Fetch(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, "/styles/v1/mapbox/streets-v12", gotPath)
	assert.Equal(t, "pk.abc", gotToken)
}

func TestExpiresFrom(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	h := http.Header{}
	assert.True(t, expiresFrom(h, now).IsZero())

	h.Set("Expires", "Tue, 02 Jan 2024 00:00:00 GMT")
	assert.Equal(t, now.Add(24*time.Hour), expiresFrom(h, now).UTC())

	h.Set("Cache-Control", "max-age=10, must-revalidate")
	assert.Equal(t, now.Add(10*time.Second), expiresFrom(h, now))
}

func TestReasonOf(t *testing.T) {
	assert.Equal(t, region.ReasonSuccess, ReasonOf(nil))
	assert.Equal(t, region.ReasonOther, ReasonOf(errors.New("boom")))
	assert.Equal(t, region.ReasonServer, ReasonOf(&FetchError{Reason: region.ReasonServer}))
}
