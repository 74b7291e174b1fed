package httpserver

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/wisbric/blacklistguard/internal/config"
)

// Server holds the HTTP server dependencies shared by every mounted handler.
type Server struct {
	Router     *chi.Mux
	IngestRoute chi.Router // /api/collection/ingest, protected by the operator key
	ControlRoute chi.Router // /api control endpoints, protected by the operator key
	PublicRoute chi.Router // /api decision and read endpoints
	Logger     *slog.Logger
	DB         *pgxpool.Pool
	Redis      *redis.Client
	Metrics    *prometheus.Registry
}

// NewServer creates the HTTP router with middleware and health/metrics
// endpoints. Domain handlers are mounted onto PublicRoute, IngestRoute, and
// ControlRoute by the caller.
func NewServer(cfg *config.Config, logger *slog.Logger, db *pgxpool.Pool, rdb *redis.Client, metricsReg *prometheus.Registry) *Server {
	s := &Server{
		Router:  chi.NewRouter(),
		Logger:  logger,
		DB:      db,
		Redis:   rdb,
		Metrics: metricsReg,
	}

	s.Router.Use(RequestID)
	s.Router.Use(Logger(logger))
	s.Router.Use(Metrics)
	s.Router.Use(middleware.Recoverer)
	s.Router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSAllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-API-Key", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	s.Router.Get("/healthz", s.handleHealthz)
	s.Router.Get("/readyz", s.handleReadyz)
	s.Router.Handle(cfg.MetricsPath, promhttp.HandlerFor(metricsReg, promhttp.HandlerOpts{}))

	s.Router.Route("/api", func(r chi.Router) {
		// Decision/read endpoints: open to internal callers, no shared secret
		// required (§4.7 fail-open decision service).
		r.Group(func(pub chi.Router) {
			s.PublicRoute = pub
		})

		// Ingest endpoint: agents push batches here, authenticated by shared secret.
		r.Group(func(ingest chi.Router) {
			ingest.Use(RequireOperatorKey(cfg))
			s.IngestRoute = ingest
		})

		// Control endpoints: force-collection, credential management, source
		// enable/disable, auth tests — all operator-only (§9).
		r.Group(func(ctrl chi.Router) {
			ctrl.Use(RequireOperatorKey(cfg))
			s.ControlRoute = ctrl
		})
	})

	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.Router.ServeHTTP(w, r)
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	Respond(w, r, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleReadyz(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if err := s.DB.Ping(ctx); err != nil {
		s.Logger.Error("readiness check: database ping failed", "error", err)
		RespondError(w, r, http.StatusServiceUnavailable, "unavailable", "database not ready")
		return
	}

	if err := s.Redis.Ping(ctx).Err(); err != nil {
		s.Logger.Error("readiness check: redis ping failed", "error", err)
		RespondError(w, r, http.StatusServiceUnavailable, "unavailable", "redis not ready")
		return
	}

	Respond(w, r, http.StatusOK, map[string]string{"status": "ready"})
}

