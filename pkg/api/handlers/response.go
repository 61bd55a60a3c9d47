package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"time"

	"github.com/marmos91/offlinekit/internal/logger"
)

// writeBody encodes v before touching the response so an encoding failure
// still yields a clean 500.
func writeBody(w http.ResponseWriter, status int, contentType string, v any) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(v); err != nil {
		logger.Error("Failed to encode API response", logger.Err(err))
		http.Error(w, `{"title":"Internal Server Error","status":500,"code":"internal"}`, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(status)
	_, _ = w.Write(buf.Bytes())
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	writeBody(w, status, "application/json", v)
}

// Response is the envelope of the health endpoints.
type Response struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Data      any       `json:"data,omitempty"`
	Error     string    `json:"error,omitempty"`
}

func writeHealth(w http.ResponseWriter, data any, err error) {
	resp := Response{Status: "healthy", Timestamp: time.Now().UTC(), Data: data}
	status := http.StatusOK
	if err != nil {
		resp.Status, resp.Error, resp.Data = "unhealthy", err.Error(), nil
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, resp)
}
