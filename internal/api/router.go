package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"ariahub/internal/ingest"
	"ariahub/internal/logger"
	"ariahub/internal/metrics"
	"ariahub/internal/protocol/aria"
	"ariahub/internal/store"
)

// Options configures optional router behavior.
type Options struct {
	// WeightUnit is the display unit used in measurement JSON views.
	WeightUnit aria.WeightUnit

	// MetricsEnabled registers GET /metrics when true.
	MetricsEnabled bool

	// Version is reported by the root descriptor.
	Version string
}

// NewRouter creates and configures the chi router with all middleware and
// routes.
//
// The router is configured with:
//   - Request ID middleware for request tracking
//   - Real IP extraction for proper client identification
//   - Custom request logging using the internal logger
//   - Panic recovery to prevent server crashes
//   - Request timeout to prevent hung requests
//
// Firmware routes (plain HTTP, binary or fixed-string bodies):
//   - GET  /scale/validate - Firmware update check, always "T"
//   - GET  /scale/register - Setup-mode registration, always "S\n"
//   - POST /scale/upload   - Measurement batch upload
//
// Management routes (JSON):
//   - GET    /api/health              - Liveness plus database reachability
//   - GET    /api/scales              - Registered scales
//   - GET    /api/measurements        - Measurement listing with filters
//   - GET    /api/measurements/latest - Most recent measurement
//   - GET    /api/users               - User profiles
//   - POST   /api/users               - Create profile in lowest free slot
//   - DELETE /api/users/{id}          - Delete profile, freeing its slot
//   - GET    /api/raw-uploads         - Raw upload audit records
//   - GET    /metrics                 - Prometheus metrics (when enabled)
//
// Unknown paths answer 200 "OK": firmware probes unexpected URLs and an
// error status can wedge a scale in a retry loop.
func NewRouter(st *store.Store, pipeline *ingest.Pipeline, opts Options) http.Handler {
	r := chi.NewRouter()

	// Middleware stack - order matters
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	fw := &firmwareHandler{pipeline: pipeline, store: st}
	mgmt := &managementHandler{store: st, unit: opts.WeightUnit}

	r.Get("/", descriptorHandler(opts.Version))

	r.Route("/scale", func(r chi.Router) {
		r.Get("/validate", fw.Validate)
		r.Get("/register", fw.Register)
		r.Post("/upload", fw.Upload)
	})

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", mgmt.Health)
		r.Get("/scales", mgmt.ListScales)
		r.Get("/measurements", mgmt.ListMeasurements)
		r.Get("/measurements/latest", mgmt.LatestMeasurement)
		r.Route("/users", func(r chi.Router) {
			r.Get("/", mgmt.ListUsers)
			r.Post("/", mgmt.CreateUser)
			r.Delete("/{id}", mgmt.DeleteUser)
		})
		r.Get("/raw-uploads", mgmt.ListRawUploads)
	})

	if opts.MetricsEnabled {
		r.Handle("/metrics", metrics.Handler())
	}

	// Firmware hits assorted legacy paths; a 404 would make it retry
	// forever, so everything unknown gets a flat 200.
	r.NotFound(func(w http.ResponseWriter, req *http.Request) {
		logger.Warn("unknown path answered OK",
			"method", req.Method, "path", req.URL.Path)
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	return r
}

// descriptorHandler answers the root path with a small service descriptor.
func descriptorHandler(version string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{
			"service": "ariahub",
			"version": version,
		})
	}
}

// requestLogger is a custom middleware that logs requests using the
// internal logger.
//
// It logs:
//   - Request start (DEBUG level): method, path, remote addr
//   - Request completion (INFO level): method, path, status, duration
//   - Health and metrics requests are logged at DEBUG level to reduce noise
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		requestID := middleware.GetReqID(r.Context())

		logger.Debug("request started",
			"request_id", requestID,
			"method", r.Method,
			"path", r.URL.Path,
			"remote_addr", r.RemoteAddr,
		)

		// Wrap response writer to capture status code
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		duration := time.Since(start)

		logArgs := []any{
			"request_id", requestID,
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration", duration.String(),
		}

		if isQuietPath(r.URL.Path) {
			logger.Debug("request completed", logArgs...)
		} else {
			logger.Info("request completed", logArgs...)
		}
	})
}

func isQuietPath(path string) bool {
	return path == "/metrics" || strings.HasPrefix(path, "/api/health")
}
