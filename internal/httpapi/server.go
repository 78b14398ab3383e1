package httpapi

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"tglaunch/pkg/types"
)

// Service defines the supervisor operations exposed over HTTP. Each
// returns a snapshot even when the operation failed.
type Service interface {
	Status(ctx context.Context) types.StatusSnapshot
	Start(ctx context.Context) types.StatusSnapshot
	Stop(ctx context.Context) types.StatusSnapshot
}

// Options tunes the control router.
type Options struct {
	Logger zerolog.Logger
	// Metrics mounts GET /metrics. Off by default so undeclared paths 404.
	Metrics bool
	// CORSOrigins enables CORS for the listed origins when non-empty.
	CORSOrigins []string
}

// NewMux returns the control API handler. A nil svc is served as an
// internal wiring fault: every control route answers 500.
func NewMux(svc Service, opts Options) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(MetricsMiddleware)
	r.Use(accessLog(opts.Logger))
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Content-Type-Options", "nosniff")
			next.ServeHTTP(w, r)
		})
	})
	if len(opts.CORSOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: opts.CORSOrigins,
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowedHeaders: []string{"Content-Type"},
			MaxAge:         300,
		}))
	}

	r.NotFound(notFound)
	r.MethodNotAllowed(notFound)

	r.Get("/status", control(svc, Service.Status))
	r.Post("/start", control(svc, Service.Start))
	r.Post("/stop", control(svc, Service.Stop))

	if opts.Metrics {
		r.Get("/metrics", promhttp.Handler().ServeHTTP)
	}
	return r
}

// control adapts one supervisor operation to a handler. Failures inside
// the operation are already part of the snapshot, so the answer is 200.
func control(svc Service, op func(Service, context.Context) types.StatusSnapshot) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			writeJSONError(w, http.StatusInternalServerError, msgManagerMissing)
			return
		}
		writeJSON(w, http.StatusOK, op(svc, r.Context()))
	}
}
