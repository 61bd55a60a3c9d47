package metrics

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/marmos91/offlinekit/internal/httpserve"
)

// Server exposes the process registry on /metrics.
type Server struct {
	*httpserve.Server
}

// NewServer returns a metrics server on port for the registry created by
// InitRegistry, or nil if metrics are disabled.
func NewServer(port int) *Server {
	reg := GetRegistry()
	if reg == nil {
		return nil
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	return &Server{Server: httpserve.New("Metrics", ":"+strconv.Itoa(port), mux)}
}
