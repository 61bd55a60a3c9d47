package api

import (
	"context"

	"github.com/marmos91/offlinekit/internal/httpserve"
	"github.com/marmos91/offlinekit/internal/logger"
	"github.com/marmos91/offlinekit/pkg/offline"
)

// Server serves the control API of an offline manager.
type Server struct {
	*httpserve.Server
}

// NewServer returns a stopped API server. Unset config fields take their
// defaults, so a zero Config is usable. A nil mgr serves only the health
// endpoints.
func NewServer(cfg Config, mgr *offline.Manager) *Server {
	cfg.ApplyDefaults()
	return &Server{
		Server: httpserve.New("API", cfg.ListenAddr(), NewRouter(mgr),
			httpserve.WithTimeouts(cfg.ReadTimeout, cfg.WriteTimeout, cfg.IdleTimeout)),
	}
}

// Start serves until ctx is cancelled and returns nil on a graceful
// shutdown.
func (s *Server) Start(ctx context.Context) error {
	if err := s.Listen(); err != nil {
		return err
	}
	base := "http://" + s.Addr()
	logger.Debug("API endpoints available",
		"health", base+"/health",
		"regions", base+apiPrefix+"/regions",
		"events", base+apiPrefix+"/events")
	return s.Serve(ctx)
}
