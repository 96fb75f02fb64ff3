package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/driftfs/driftfs/internal/logger"
	"github.com/driftfs/driftfs/internal/telemetry"
	"github.com/driftfs/driftfs/pkg/api/auth"
	"github.com/driftfs/driftfs/pkg/api/handlers"
	apiMiddleware "github.com/driftfs/driftfs/pkg/api/middleware"
	"github.com/driftfs/driftfs/pkg/metrics"
	"github.com/driftfs/driftfs/pkg/vfs"
)

// NewRouter creates and configures the chi router with all middleware and
// routes.
//
// Routes:
//   - GET  /health - Liveness probe
//   - GET  /health/ready - Readiness probe
//   - GET  /metrics - Prometheus metrics (when enabled)
//   - POST /api/v1/auth/register - User registration
//   - POST /api/v1/auth/login - User authentication
//   - POST /api/v1/auth/refresh - Token refresh
//   - GET  /api/v1/auth/me - Current user info
//   - GET  /api/v1/nodes - Node metadata lookup
//   - /api/v1/directories/* - Directory operations
//   - /api/v1/files/* - File operations
func NewRouter(provider *vfs.Provider, jwtService *auth.JWTService, maxUploadBytes int64) http.Handler {
	r := chi.NewRouter()

	// Middleware stack - order matters
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(tracing)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	healthHandler := handlers.NewHealthHandler(provider.Store(), provider.Payloads())

	// Health routes - unauthenticated
	r.Route("/health", func(r chi.Router) {
		r.Get("/", healthHandler.Liveness)
		r.Get("/ready", healthHandler.Readiness)
	})

	if metricsHandler := metrics.Handler(); metricsHandler != nil {
		r.Handle("/metrics", metricsHandler)
	}

	// Root redirect to health for convenience
	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/health", http.StatusTemporaryRedirect)
	})

	authHandler := handlers.NewAuthHandler(provider.Store(), jwtService)
	dirHandler := handlers.NewDirectoryHandler(provider)
	fileHandler := handlers.NewFileHandler(provider, maxUploadBytes)

	r.Route("/api/v1", func(r chi.Router) {
		// Auth routes - mostly unauthenticated
		r.Route("/auth", func(r chi.Router) {
			r.Post("/register", authHandler.Register)
			r.Post("/login", authHandler.Login)
			r.Post("/refresh", authHandler.Refresh)

			r.Group(func(r chi.Router) {
				r.Use(apiMiddleware.JWTAuth(jwtService))
				r.Get("/me", authHandler.Me)
			})
		})

		// Filesystem routes - all authenticated
		r.Group(func(r chi.Router) {
			r.Use(apiMiddleware.JWTAuth(jwtService))

			r.Get("/nodes", dirHandler.Info)

			r.Route("/directories", func(r chi.Router) {
				r.Get("/", dirHandler.List)
				r.Post("/", dirHandler.Create)
				r.Delete("/", dirHandler.Delete)
				r.Post("/move", dirHandler.Move)
				r.Post("/copy", dirHandler.Copy)
				r.Post("/rename", dirHandler.Rename)
			})

			r.Route("/files", func(r chi.Router) {
				r.Get("/", fileHandler.Download)
				r.Post("/", fileHandler.Upload)
				r.Delete("/", fileHandler.Delete)
				r.Post("/move", fileHandler.Move)
				r.Post("/copy", fileHandler.Copy)
				r.Post("/rename", fileHandler.Rename)
			})
		})
	})

	return r
}

// tracing wraps each request in an OpenTelemetry span. No-op when
// telemetry is disabled.
func tracing(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !telemetry.IsEnabled() {
			next.ServeHTTP(w, r)
			return
		}

		ctx, span := telemetry.StartAPISpan(r.Context(), r.Method, r.URL.Path,
			telemetry.HTTPRequestID(middleware.GetReqID(r.Context())),
			telemetry.ClientAddr(r.RemoteAddr))
		defer span.End()

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r.WithContext(ctx))

		telemetry.SetAttributes(ctx, telemetry.HTTPStatus(ww.Status()))
	})
}

// requestLogger logs each request with its status and duration.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		requestID := middleware.GetReqID(r.Context())

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		logArgs := []any{
			"request_id", requestID,
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration", time.Since(start).String(),
		}

		// Log healthcheck requests at DEBUG to avoid polluting logs in k8s
		if isHealthPath(r.URL.Path) {
			logger.Debug("API request completed", logArgs...)
		} else {
			logger.Info("API request completed", logArgs...)
		}
	})
}

func isHealthPath(path string) bool {
	return path == "/health" || strings.HasPrefix(path, "/health/") || path == "/metrics"
}
