package main

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	enforcementhandler "tollgate/internal/enforcement/handler"
	licensehandler "tollgate/internal/license/handler"
	manifesthandler "tollgate/internal/manifest/handler"
	"tollgate/internal/platform/config"
	reconcilehandler "tollgate/internal/reconcile/handler"
	usagehandler "tollgate/internal/usage/handler"
	"tollgate/pkg/domain"
	"tollgate/pkg/platform/httputil"
	"tollgate/pkg/platform/middleware/admin"
	"tollgate/pkg/platform/middleware/metadata"
	"tollgate/pkg/platform/middleware/request"
	"tollgate/pkg/platform/middleware/requesttime"
	"tollgate/pkg/requestcontext"
)

const (
	requestTimeout = 30 * time.Second
	healthTimeout  = 2 * time.Second
)

type healthResponse struct {
	Status   string `json:"status"`
	NodeID   string `json:"node_id"`
	Degraded bool   `json:"degraded"`
	Postgres string `json:"postgres,omitempty"`
	Redis    string `json:"redis,omitempty"`
}

func newRouter(cfg *config.Config, in *infra, n *node, log *slog.Logger) http.Handler {
	r := chi.NewRouter()
	r.Use(request.RequestID)
	r.Use(metadata.ClientMetadata)
	r.Use(requesttime.Middleware)
	r.Use(withNodeID(cfg.NodeID))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(requestTimeout))

	r.Get("/healthz", healthHandler(cfg, in, n))
	r.Method(http.MethodGet, "/metrics", in.metrics.Handler())

	usage := usagehandler.New(n.intake, log)
	usage.RegisterReporter(r, domain.ReporterConsumer)
	manifesthandler.New(n.manifests, log).Register(r)

	if cfg.Server.EdgeToken == "" {
		log.Warn("edge token not set; enforcement and enforcer usage routes disabled")
	} else {
		r.Group(func(r chi.Router) {
			r.Use(admin.RequireEdgeToken(cfg.Server.EdgeToken, log))
			enforcementhandler.New(n.engine, log).Register(r)
			usage.RegisterReporter(r, domain.ReporterEnforcer)
		})
	}

	if cfg.Server.AdminToken == "" {
		log.Warn("admin token not set; issuance and reconciliation routes disabled")
		return r
	}
	r.Group(func(r chi.Router) {
		r.Use(admin.RequireAdminToken(cfg.Server.AdminToken, log))
		licensehandler.New(n.issuer, log).Register(r)
		reconcilehandler.New(n.reconcile, log).Register(r)
	})
	return r
}

func withNodeID(nodeID string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(w, r.WithContext(requestcontext.WithNodeID(r.Context(), nodeID)))
		})
	}
}

// healthHandler reports 503 only when a configured backend is unreachable.
// Stale keys or pricing degrade decisions but the node keeps serving.
func healthHandler(cfg *config.Config, in *infra, n *node) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
		defer cancel()

		resp := healthResponse{
			Status:   "ok",
			NodeID:   cfg.NodeID,
			Degraded: n.fresh.Stale(requestcontext.Now(ctx), cfg.Enforcement.DefaultGracePeriod),
		}
		status := http.StatusOK
		if in.pg != nil {
			resp.Postgres = "ok"
			if err := in.pg.DB.PingContext(ctx); err != nil {
				resp.Postgres, resp.Status, status = "unreachable", "unavailable", http.StatusServiceUnavailable
			}
		}
		if in.redis != nil {
			resp.Redis = "ok"
			if err := in.redis.Health(ctx); err != nil {
				resp.Redis, resp.Status, status = "unreachable", "unavailable", http.StatusServiceUnavailable
			}
		}
		httputil.WriteJSON(w, status, resp)
	}
}
