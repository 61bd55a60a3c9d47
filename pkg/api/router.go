package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/marmos91/offlinekit/internal/logger"
	"github.com/marmos91/offlinekit/pkg/api/handlers"
	"github.com/marmos91/offlinekit/pkg/offline"
)

// requestTimeout bounds every request except event streams. Region status
// and delete apply it as their own callback wait.
const requestTimeout = 30 * time.Second

// apiPrefix is the versioned root of the region API.
const apiPrefix = "/api/v1"

// NewRouter creates and configures the chi router with all middleware and routes.
//
// The router is configured with:
//   - Request ID middleware for request tracking
//   - Real IP extraction for proper client identification
//   - Custom request logging using the internal logger
//   - Panic recovery to prevent server crashes
//   - Request timeout to prevent hung requests (event streams excluded)
//
// Routes:
//   - GET /health - Liveness probe
//   - GET /health/ready - Readiness probe
//   - POST /api/v1/regions - Create a region
//   - GET /api/v1/regions - List regions
//   - GET /api/v1/regions/{id} - Region details
//   - GET /api/v1/regions/{id}/status - Status snapshot
//   - PUT /api/v1/regions/{id}/state - Activate or pause downloads
//   - PUT /api/v1/regions/{id}/metadata - Replace client metadata
//   - DELETE /api/v1/regions/{id} - Delete a region
//   - GET /api/v1/regions/{id}/events - Event stream of one region
//   - GET /api/v1/events - Event stream of all regions
//   - GET, PUT /api/v1/limits/tiles - Mapbox tile count limit
//   - POST /api/v1/network/reachable - Retry failed resources now
//   - GET /api/v1/store - Store size and high-water mark
//
// Requests are traced with otelhttp.
func NewRouter(mgr *offline.Manager) http.Handler {
	r := chi.NewRouter()

	// Middleware stack - order matters
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)

	healthHandler := handlers.NewHealthHandler(mgr)

	r.Route("/health", func(r chi.Router) {
		r.Get("/", healthHandler.Liveness)
		r.Get("/ready", healthHandler.Readiness)
	})

	// Root redirect to health for convenience
	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/health", http.StatusTemporaryRedirect)
	})

	if mgr != nil {
		r.Route(apiPrefix, func(r chi.Router) {
			regionHandler := handlers.NewRegionHandler(mgr, requestTimeout)
			systemHandler := handlers.NewSystemHandler(mgr)
			eventHandler := handlers.NewEventHandler(mgr.Hub())

			// Event streams stay open for as long as the client listens.
			r.Get("/events", eventHandler.Stream)
			r.Get("/regions/{id}/events", eventHandler.Stream)

			r.Route("/regions", func(r chi.Router) {
				// These bound their own wait for the manager's callback.
				r.Get("/{id}/status", regionHandler.Status)
				r.Delete("/{id}", regionHandler.Delete)

				r.Group(func(r chi.Router) {
					r.Use(middleware.Timeout(requestTimeout))
					r.Post("/", regionHandler.Create)
					r.Get("/", regionHandler.List)
					r.Get("/{id}", regionHandler.Get)
					r.Put("/{id}/state", regionHandler.SetState)
					r.Put("/{id}/metadata", regionHandler.UpdateMetadata)
				})
			})

			r.Group(func(r chi.Router) {
				r.Use(middleware.Timeout(requestTimeout))
				r.Get("/limits/tiles", systemHandler.TileLimit)
				r.Put("/limits/tiles", systemHandler.SetTileLimit)
				r.Post("/network/reachable", systemHandler.NetworkReachable)
				r.Get("/store", systemHandler.Store)
			})
		})
	}

	return otelhttp.NewHandler(r, "offlinekit-api",
		otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
			return r.Method + " " + r.URL.Path
		}))
}

// requestLogger binds a request LogContext to the request and logs its
// completion at INFO, or at DEBUG for health probes.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		lc := logger.NewRequestContext(middleware.GetReqID(r.Context()), r.RemoteAddr, r.Method+" "+r.URL.Path)
		ctx := logger.WithContext(r.Context(), lc)

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r.WithContext(ctx))

		log := logger.InfoCtx
		if strings.HasPrefix(r.URL.Path, "/health") {
			log = logger.DebugCtx
		}
		log(ctx, "API request completed",
			logger.KeyStatusCode, ww.Status(),
			logger.Bytes(int64(ww.BytesWritten())),
			logger.DurationMs(lc.DurationMs()))
	})
}
