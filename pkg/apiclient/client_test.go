package apiclient

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	c := New("http://localhost:8080/")
	assert.Equal(t, "http://localhost:8080", c.baseURL)
	assert.Equal(t, defaultTimeout, c.http.Timeout)
	assert.Equal(t, uint64(defaultRetries), c.retries)

	hc := &http.Client{}
	c = New("http://localhost:8080", WithHTTPClient(hc), WithTimeout(time.Second), WithRetries(0))
	assert.Same(t, hc, c.http)
	assert.Equal(t, time.Second, hc.Timeout)
	assert.Zero(t, c.retries)
}

func TestCall_Headers(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/json", r.Header.Get("Accept"))
		assert.Equal(t, userAgent, r.Header.Get("User-Agent"))
		if r.Method == http.MethodGet {
			assert.Empty(t, r.Header.Get("Content-Type"))
		} else {
			assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"method": r.Method})
	}))
	defer server.Close()

	c := New(server.URL)
	var out map[string]string
	require.NoError(t, c.call(context.Background(), http.MethodGet, "/x", nil, &out))
	assert.Equal(t, "GET", out["method"])

	require.NoError(t, c.call(context.Background(), http.MethodPut, "/x", map[string]int{"limit": 1}, &out))
	assert.Equal(t, "PUT", out["method"])
}

func TestCall_Problem(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/problem+json")
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"type":"about:blank","title":"Not Found","status":404,"detail":"Region 9 not found","code":"region_not_found"}`))
	}))
	defer server.Close()

	_, err := New(server.URL).GetRegion(9)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusNotFound, apiErr.StatusCode)
	assert.Equal(t, CodeRegionNotFound, apiErr.Code)
	assert.True(t, apiErr.IsNotFound())
	assert.Equal(t, "Not Found: Region 9 not found", apiErr.Error())
}

func TestCall_PlainTextError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "404 page not found", http.StatusNotFound)
	}))
	defer server.Close()

	err := New(server.URL).send(http.MethodGet, "/missing", nil)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.True(t, apiErr.IsNotFound())
	assert.Equal(t, "404 page not found", apiErr.Detail)
}

func TestCall_RetriesIdempotentRequests(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_ = json.NewEncoder(w).Encode(TileLimit{Limit: 6000})
	}))
	defer server.Close()

	limit, err := New(server.URL).GetTileLimit()
	require.NoError(t, err)
	assert.Equal(t, uint64(6000), limit.Limit)
	assert.Equal(t, int32(2), calls.Load())
}

func TestCall_PostIsNotRetried(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	err := New(server.URL).NetworkReachable()

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.True(t, apiErr.IsUnavailable())
	assert.Equal(t, int32(1), calls.Load())
}

func TestCall_ClientErrorsAreNotRetried(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte(`{"title":"Unprocessable Entity","status":422,"code":"invalid_definition"}`))
	}))
	defer server.Close()

	_, err := New(server.URL).SetTileLimit(1)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.True(t, apiErr.IsValidationError())
	assert.Equal(t, int32(1), calls.Load())
}

func TestAPIError_Classification(t *testing.T) {
	assert.True(t, (&APIError{StatusCode: http.StatusUnprocessableEntity}).IsValidationError())
	assert.True(t, (&APIError{StatusCode: http.StatusBadRequest}).IsValidationError())
	assert.False(t, (&APIError{StatusCode: http.StatusInternalServerError}).IsValidationError())
	assert.True(t, (&APIError{StatusCode: http.StatusInternalServerError, Code: CodeManagerClosed}).IsUnavailable())
	assert.Equal(t, "HTTP 502", (&APIError{StatusCode: http.StatusBadGateway}).Error())
}
