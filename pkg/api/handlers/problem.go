// Package handlers serves the offlinekit control API.
package handlers

import (
	"errors"
	"net/http"

	"github.com/marmos91/offlinekit/pkg/offline"
	"github.com/marmos91/offlinekit/pkg/region"
)

// ContentTypeProblemJSON is the media type of error answers (RFC 7807).
const ContentTypeProblemJSON = "application/problem+json"

// Machine-readable problem codes. Clients match on these rather than on
// titles or details.
const (
	CodeInvalidRequest    = "invalid_request"
	CodeRegionNotFound    = "region_not_found"
	CodeInvalidDefinition = "invalid_definition"
	CodeManagerClosed     = "manager_closed"
	CodeStoreFailure      = "store_failure"
	CodeDeleteFailed      = "delete_failed"
	CodeTimeout           = "timeout"
	CodeInternal          = "internal"
)

// Problem is an RFC 7807 problem document extended with a code.
type Problem struct {
	Type   string `json:"type,omitempty"`
	Title  string `json:"title"`
	Status int    `json:"status"`
	Detail string `json:"detail,omitempty"`
	Code   string `json:"code,omitempty"`
}

func newProblem(status int, code, detail string) *Problem {
	return &Problem{
		Type:   "about:blank",
		Title:  http.StatusText(status),
		Status: status,
		Detail: detail,
		Code:   code,
	}
}

// Write sends p with the problem media type.
func (p *Problem) Write(w http.ResponseWriter) {
	writeBody(w, p.Status, ContentTypeProblemJSON, p)
}

// BadRequest answers 400 for a malformed request.
func BadRequest(w http.ResponseWriter, detail string) {
	newProblem(http.StatusBadRequest, CodeInvalidRequest, detail).Write(w)
}

// NotFound answers 404 for a region that does not exist.
func NotFound(w http.ResponseWriter, detail string) {
	newProblem(http.StatusNotFound, CodeRegionNotFound, detail).Write(w)
}

// problemFor maps a manager error to its problem. Unknown errors are
// reported as fallback so internals do not leak.
func problemFor(err error, fallback string) *Problem {
	var storeErr *offline.StoreError
	switch {
	case errors.Is(err, region.ErrRegionNotFound):
		return newProblem(http.StatusNotFound, CodeRegionNotFound, "Region not found")
	case errors.Is(err, region.ErrInvalidDefinition):
		return newProblem(http.StatusUnprocessableEntity, CodeInvalidDefinition, err.Error())
	case errors.Is(err, offline.ErrManagerClosed):
		return newProblem(http.StatusServiceUnavailable, CodeManagerClosed, "Offline manager is shutting down")
	case errors.As(err, &storeErr):
		return newProblem(http.StatusInternalServerError, CodeStoreFailure, storeErr.Error())
	}
	return newProblem(http.StatusInternalServerError, CodeInternal, fallback)
}

func writeError(w http.ResponseWriter, err error, fallback string) {
	problemFor(err, fallback).Write(w)
}
