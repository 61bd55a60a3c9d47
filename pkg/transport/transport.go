// Package transport fetches map resources over the network.
//
// Every Fetcher reports failures as *FetchError carrying a region.Reason, so
// the download engine can decide between retrying, parking and giving up
// without knowing which protocol served the request.
package transport

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/marmos91/offlinekit/pkg/region"
	"github.com/marmos91/offlinekit/pkg/resource"
)

// Request describes a resource fetch. ETag and Modified, when set, make the
// request conditional.
type Request struct {
	Key      resource.Key
	ETag     string
	Modified time.Time
}

// Response is a fetched resource. When NotModified is set Data is empty and
// only the validity fields are meaningful.
type Response struct {
	Data        []byte
	ETag        string
	Modified    time.Time
	Expires     time.Time
	NotModified bool
}

// Fetcher retrieves resources.
type Fetcher interface {
	Fetch(ctx context.Context, req *Request) (*Response, error)
}

// FetchError is a classified fetch failure.
type FetchError struct {
	Reason     region.Reason
	StatusCode int
	URL        string
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetch %s: %s (status %d)", e.URL, e.Reason, e.StatusCode)
	}
	if e.Err != nil {
		return fmt.Sprintf("fetch %s: %s: %v", e.URL, e.Reason, e.Err)
	}
	return fmt.Sprintf("fetch %s: %s", e.URL, e.Reason)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// ReasonOf returns the failure reason carried by err. Errors that are not
// classified are reported as connection failures when they come from the
// network and as ReasonOther otherwise.
func ReasonOf(err error) region.Reason {
	if err == nil {
		return region.ReasonSuccess
	}
	var fe *FetchError
	if errors.As(err, &fe) {
		return fe.Reason
	}
	var ne net.Error
	if errors.As(err, &ne) {
		return region.ReasonConnection
	}
	return region.ReasonOther
}

// ReasonForStatus classifies an HTTP status code. 2xx and 304 are successes.
func ReasonForStatus(code int) region.Reason {
	switch {
	case code >= 200 && code < 300, code == http.StatusNotModified:
		return region.ReasonSuccess
	case code == http.StatusNotFound, code == http.StatusGone:
		return region.ReasonNotFound
	case code == http.StatusTooManyRequests, code >= 500:
		return region.ReasonServer
	default:
		return region.ReasonOther
	}
}

// classifyTransportError wraps an error returned before any response was
// received.
func classifyTransportError(url string, err error) *FetchError {
	reason := region.ReasonConnection
	if errors.Is(err, context.Canceled) {
		reason = region.ReasonOther
	}
	return &FetchError{Reason: reason, URL: url, Err: err}
}
