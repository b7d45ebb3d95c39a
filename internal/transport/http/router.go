// Package httptransport assembles the public HTTP surface: the middleware
// chain, health endpoints, metrics exposition and the feature routes.
package httptransport

import (
	"context"
	"log/slog"
	"net/http"
	"sort"
	"time"

	"github.com/go-chi/chi/v5"

	"geoprivacy/internal/platform/metrics"
	"geoprivacy/internal/platform/middleware"
	"geoprivacy/internal/ratelimit"
	"geoprivacy/pkg/platform/httputil"
	"geoprivacy/pkg/platform/middleware/admin"
	"geoprivacy/pkg/platform/middleware/auth"
	"geoprivacy/pkg/platform/middleware/metadata"
	"geoprivacy/pkg/platform/middleware/request"
	"geoprivacy/pkg/platform/middleware/requesttime"
)

const (
	// ProofBasePath prefixes every location proof route.
	ProofBasePath = "/api/location-proof"

	DefaultRequestTimeout = 30 * time.Second
	healthCheckTimeout    = 2 * time.Second
)

// RouteRegistrar mounts a feature's routes.
type RouteRegistrar interface {
	Register(r chi.Router)
}

// AdminRegistrar mounts a feature's operator routes.
type AdminRegistrar interface {
	RegisterAdmin(r chi.Router)
}

// HealthCheck reports whether one backing dependency is reachable.
type HealthCheck func(ctx context.Context) error

// Proofs is the proof feature: authenticated routes plus operator routes.
type Proofs interface {
	RouteRegistrar
	AdminRegistrar
}

// Deps is everything NewRouter wires together.
type Deps struct {
	Logger         *slog.Logger
	Metrics        *metrics.Metrics
	Proofs         Proofs
	Verification   RouteRegistrar
	JWTValidator   auth.JWTValidator
	AdminToken     string
	RateLimit      *ratelimit.Middleware
	RequestTimeout time.Duration
	HealthChecks   map[string]HealthCheck
}

// NewRouter builds the handler tree. Proof routes require a bearer token;
// location verification and zones are public; /admin requires the operator
// token.
func NewRouter(deps Deps) http.Handler {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	timeout := deps.RequestTimeout
	if timeout <= 0 {
		timeout = DefaultRequestTimeout
	}

	r := chi.NewRouter()
	r.Use(middleware.Recovery(logger))
	r.Use(request.RequestID)
	r.Use(metadata.ClientMetadata)
	r.Use(requesttime.Middleware)
	r.Use(middleware.Logger(logger))
	r.Use(middleware.Timeout(timeout))
	r.Use(middleware.LatencyMiddleware(deps.Metrics))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Get("/readyz", readiness(deps.HealthChecks, logger))
	if deps.Metrics != nil {
		r.Handle("/metrics", deps.Metrics.Handler())
	}

	r.Group(func(r chi.Router) {
		r.Use(middleware.ContentTypeJSON)

		if deps.Verification != nil {
			r.Group(func(r chi.Router) {
				r.Use(limit(deps.RateLimit, ratelimit.ClassPublic))
				deps.Verification.Register(r)
			})
		}

		if deps.Proofs != nil {
			r.Route(ProofBasePath, func(r chi.Router) {
				r.Use(auth.RequireAuth(deps.JWTValidator, logger))
				r.Use(limit(deps.RateLimit, ratelimit.ClassProof))
				deps.Proofs.Register(r)
			})
			r.Route("/admin", func(r chi.Router) {
				r.Use(admin.RequireAdminToken(deps.AdminToken, logger))
				deps.Proofs.RegisterAdmin(r)
			})
		}
	})

	return r
}

func limit(m *ratelimit.Middleware, class ratelimit.Class) func(http.Handler) http.Handler {
	if m == nil {
		return func(next http.Handler) http.Handler { return next }
	}
	return m.Limit(class)
}

type readinessResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

func readiness(checks map[string]HealthCheck, logger *slog.Logger) http.HandlerFunc {
	names := make([]string, 0, len(checks))
	for name := range checks {
		names = append(names, name)
	}
	sort.Strings(names)

	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
		defer cancel()

		resp := readinessResponse{Status: "ok", Checks: make(map[string]string, len(names))}
		status := http.StatusOK
		for _, name := range names {
			if err := checks[name](ctx); err != nil {
				logger.WarnContext(ctx, "readiness check failed", "check", name, "error", err)
				resp.Checks[name] = "unavailable"
				resp.Status = "degraded"
				status = http.StatusServiceUnavailable
				continue
			}
			resp.Checks[name] = "ok"
		}
		httputil.WriteJSON(w, status, resp)
	}
}
