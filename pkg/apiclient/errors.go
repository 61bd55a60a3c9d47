package apiclient

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
)

// Problem codes set by the daemon.
const (
	CodeRegionNotFound    = "region_not_found"
	CodeInvalidDefinition = "invalid_definition"
	CodeManagerClosed     = "manager_closed"
	CodeStoreFailure      = "store_failure"
)

// APIError is a problem document returned by the control API.
type APIError struct {
	StatusCode int    `json:"status"`
	Title      string `json:"title"`
	Detail     string `json:"detail,omitempty"`
	Code       string `json:"code,omitempty"`
}

func (e *APIError) Error() string {
	switch {
	case e.Detail != "":
		return fmt.Sprintf("%s: %s", e.Title, e.Detail)
	case e.Title != "":
		return e.Title
	}
	return fmt.Sprintf("HTTP %d", e.StatusCode)
}

// IsNotFound reports a missing region or route.
func (e *APIError) IsNotFound() bool {
	return e.Code == CodeRegionNotFound || e.StatusCode == http.StatusNotFound
}

// IsValidationError reports a rejected request body or region definition.
func (e *APIError) IsValidationError() bool {
	return e.Code == CodeInvalidDefinition ||
		e.StatusCode == http.StatusBadRequest ||
		e.StatusCode == http.StatusUnprocessableEntity
}

// IsUnavailable reports a daemon that is shutting down.
func (e *APIError) IsUnavailable() bool {
	return e.Code == CodeManagerClosed || e.StatusCode == http.StatusServiceUnavailable
}

// parseProblem builds an APIError from an error answer. Bodies that are not
// problem documents, such as router 404 pages, become the detail.
func parseProblem(status int, body []byte) *APIError {
	var p APIError
	if json.Unmarshal(body, &p) == nil && p.Title != "" {
		p.StatusCode = status
		return &p
	}
	return &APIError{
		StatusCode: status,
		Title:      http.StatusText(status),
		Detail:     string(bytes.TrimSpace(body)),
	}
}
