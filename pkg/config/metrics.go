package config

import (
	"github.com/marmos91/offlinekit/internal/logger"
	"github.com/marmos91/offlinekit/pkg/metrics"
)

// MetricsResult holds the metrics components built from configuration.
// Both fields are nil when metrics are disabled.
type MetricsResult struct {
	Server  *metrics.Server
	Offline metrics.OfflineMetrics
}

// InitializeMetrics sets up the Prometheus registry and metrics server.
//
// It must run before the offline manager is opened so that the collectors
// handed to the download engine and evictor are registered. The prometheus
// implementation registers itself when its package is imported.
func InitializeMetrics(cfg *Config) MetricsResult {
	if !cfg.Metrics.Enabled {
		return MetricsResult{}
	}

	metrics.InitRegistry()
	logger.Debug("Metrics registry initialized", "port", cfg.Metrics.Port)

	return MetricsResult{
		Server:  metrics.NewServer(cfg.Metrics.Port),
		Offline: metrics.NewOfflineMetrics(),
	}
}
