package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"github.com/wisbric/blacklistguard/internal/config"
	"github.com/wisbric/blacklistguard/internal/httpserver"
	"github.com/wisbric/blacklistguard/internal/platform"
	"github.com/wisbric/blacklistguard/internal/telemetry"

	"github.com/wisbric/blacklistguard/pkg/blacklist"
	blpgstore "github.com/wisbric/blacklistguard/pkg/blacklist/pgstore"
	"github.com/wisbric/blacklistguard/pkg/collector"
	"github.com/wisbric/blacklistguard/pkg/credential"
	credpgstore "github.com/wisbric/blacklistguard/pkg/credential/pgstore"
	"github.com/wisbric/blacklistguard/pkg/decision"
	"github.com/wisbric/blacklistguard/pkg/fortinet"
	"github.com/wisbric/blacklistguard/pkg/health"
	"github.com/wisbric/blacklistguard/pkg/history"
	histpgstore "github.com/wisbric/blacklistguard/pkg/history/pgstore"
	"github.com/wisbric/blacklistguard/pkg/ingest"
	"github.com/wisbric/blacklistguard/pkg/pulllog"
	pullpgstore "github.com/wisbric/blacklistguard/pkg/pulllog/pgstore"
	"github.com/wisbric/blacklistguard/pkg/ratelimit"
	"github.com/wisbric/blacklistguard/pkg/regtech"
	"github.com/wisbric/blacklistguard/pkg/scheduler"
	"github.com/wisbric/blacklistguard/pkg/whitelist"
	wlpgstore "github.com/wisbric/blacklistguard/pkg/whitelist/pgstore"
)

// Run is the main application entry point: it reads infrastructure online,
// wires every domain package together, and starts the requested mode.
func Run(ctx context.Context, cfg *config.Config) error {
	ring := telemetry.NewRingBuffer()
	logger := telemetry.NewLogger(cfg.LogFormat, cfg.LogLevel, ring)
	slog.SetDefault(logger)

	logger.Info("starting blacklistguard", "mode", cfg.Mode, "listen", cfg.ListenAddr())

	deps, err := wireDeps(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer deps.Close(logger)

	switch cfg.Mode {
	case "api":
		return runAPI(ctx, cfg, logger, deps, ring)
	case "worker":
		return runWorker(ctx, logger, deps)
	default:
		return fmt.Errorf("unknown mode: %s", cfg.Mode)
	}
}

// deps holds every infrastructure handle and domain component shared between
// the api and worker run modes.
type deps struct {
	db    *pgxpool.Pool
	rdb   *redis.Client
	reg   *prometheus.Registry
	registry *collector.Registry

	blacklistStore blacklist.Store
	whitelistStore whitelist.Store
	historyStore   history.Store
	pullLogStore   pulllog.Store
	credStore      *credpgstore.Store

	decisionSvc *decision.Service
	scheduler   *scheduler.Scheduler
}

func (d *deps) Close(logger *slog.Logger) {
	d.db.Close()
	if err := d.rdb.Close(); err != nil {
		logger.Error("closing redis", "error", err)
	}
}

// wireDeps connects to Postgres/Redis, runs migrations, and constructs every
// domain package's store/service, plus the REGTECH collector registration
// and the scheduler that drives it (C1-C9).
func wireDeps(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*deps, error) {
	connTimeout, err := time.ParseDuration(cfg.DBConnTimeout)
	if err != nil {
		return nil, fmt.Errorf("parsing db connect timeout %q: %w", cfg.DBConnTimeout, err)
	}

	db, err := platform.NewPostgresPool(ctx, cfg.DatabaseURL, cfg.DBPoolMinConns, cfg.DBPoolMaxConns, connTimeout)
	if err != nil {
		return nil, fmt.Errorf("connecting to database: %w", err)
	}

	rdb, err := platform.NewRedisClient(ctx, cfg.RedisURL)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("connecting to redis: %w", err)
	}

	if err := platform.RunMigrations(cfg.DatabaseURL, cfg.MigrationsDir); err != nil {
		db.Close()
		_ = rdb.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	logger.Info("migrations applied")

	metricsReg := telemetry.NewMetricsRegistry()

	cipher, err := credential.NewCipher(cfg.CredentialMasterSecret, cfg.CredentialSalt)
	if err != nil {
		db.Close()
		_ = rdb.Close()
		return nil, fmt.Errorf("initializing credential cipher: %w", err)
	}
	credStore := credpgstore.NewStore(db, cipher)

	bl := blpgstore.NewStore(db)
	wl := wlpgstore.NewStore(db)
	hist := histpgstore.NewStore(db)
	pullLogs := pullpgstore.NewStore(db)

	registry := collector.NewRegistry()
	if err := registerRegtech(ctx, cfg, credStore, registry, logger); err != nil {
		logger.Warn("regtech source not registered", "error", err)
	}

	decisionSvc := decision.New(bl, wl, rdb, logger)

	runner := newCollectionRunner(registry, bl, hist, logger)
	sched := scheduler.New(registry, runner, logger, scheduler.Config{
		DailyAt:               cfg.DailyCollectionTime,
		DisableAutoCollection: cfg.DisableAutoCollection,
		InitialInterval:       time.Duration(cfg.CollectionInterval) * time.Second,
	})

	return &deps{
		db:             db,
		rdb:            rdb,
		reg:            metricsReg,
		registry:       registry,
		blacklistStore: bl,
		whitelistStore: wl,
		historyStore:   hist,
		pullLogStore:   pullLogs,
		credStore:      credStore,
		decisionSvc:    decisionSvc,
		scheduler:      sched,
	}, nil
}

// registerRegtech builds the REGTECH collector.Source and registers it. The
// stored, decrypted credential (if present and enabled) takes precedence
// over the env-configured username/password; an env-configured credential
// with no stored row is bootstrapped into the database so later restarts
// read it back from there rather than relying on the process environment
// every time (§9 key management).
func registerRegtech(ctx context.Context, cfg *config.Config, credStore *credpgstore.Store, registry *collector.Registry, logger *slog.Logger) error {
	cred, err := credStore.Get(ctx, regtech.ServiceName)
	if err != nil {
		return fmt.Errorf("loading regtech credential: %w", err)
	}

	username, password := cfg.RegtechUsername, cfg.RegtechPassword
	if cred != nil && cred.Enabled && cred.Username != "" {
		username, password = cred.Username, cred.Password
	} else if username != "" {
		interval := cfg.CollectionInterval
		if err := credStore.Upsert(ctx, regtech.ServiceName, username, password, true, interval); err != nil {
			logger.Error("bootstrapping regtech credential", "error", err)
		}
	}

	if username == "" {
		return fmt.Errorf("no regtech credentials configured (set REGTECH_USERNAME/REGTECH_PASSWORD or store one via the credentials API)")
	}

	limiter := ratelimit.New()
	client := regtech.NewClient(cfg.RegtechBaseURL, limiter, logger)
	registry.Register(regtech.NewSource(client, username, password))
	return nil
}

func runAPI(ctx context.Context, cfg *config.Config, logger *slog.Logger, d *deps, ring *telemetry.RingBuffer) error {
	d.scheduler.Start(ctx)
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		d.scheduler.Stop(stopCtx)
	}()

	srv := httpserver.NewServer(cfg, logger, d.db, d.rdb, d.reg)

	decisionHandler := decision.NewHandler(d.decisionSvc)
	blacklistHandler := blacklist.NewHandler(d.blacklistStore)
	whitelistHandler := whitelist.NewHandler(d.whitelistStore)
	ingestHandler := ingest.NewHandler(ingest.New(d.blacklistStore))
	fortinetHandler := fortinet.NewHandler(d.decisionSvc, d.pullLogStore)
	credentialHandler := credential.NewHandler(d.credStore)
	healthHandler := health.NewHandler(d.db, d.rdb, d.scheduler, d.registry, ring)

	srv.PublicRoute.Get("/blacklist/check", decisionHandler.Check)
	srv.PublicRoute.Post("/blacklist/check", decisionHandler.Check)
	srv.PublicRoute.Get("/blacklist/list", decisionHandler.List)
	srv.PublicRoute.Get("/blacklist/statistics", decisionHandler.Stats)
	srv.PublicRoute.Get("/whitelist", whitelistHandler.List)

	srv.PublicRoute.Get("/fortinet/blocklist", fortinetHandler.Blocklist)
	srv.PublicRoute.Get("/fortinet/threat-feed", fortinetHandler.ThreatFeed)
	srv.PublicRoute.Get("/fortinet/json-connector", fortinetHandler.JSONConnector)
	srv.PublicRoute.Get("/fortinet/push-log", fortinetHandler.PushLog)

	srv.IngestRoute.Post("/collection/ingest", ingestHandler.Ingest)

	srv.ControlRoute.Post("/blacklist/manual-add", blacklistHandler.ManualAdd)
	srv.ControlRoute.Post("/whitelist/add", whitelistHandler.Add)
	srv.ControlRoute.Post("/whitelist/remove", whitelistHandler.Remove)
	srv.ControlRoute.Post("/collection/credentials/{source}", credentialHandler.Set)
	srv.ControlRoute.Patch("/collection/credentials/{source}/settings", credentialHandler.Settings)
	srv.ControlRoute.Post("/collection/sources/{source}/enable", credentialHandler.Enable)
	srv.ControlRoute.Post("/collection/sources/{source}/disable", credentialHandler.Disable)
	srv.ControlRoute.Post("/test-auth/{source}", healthHandler.TestAuthRoute)
	srv.ControlRoute.Post("/force-collection/{source}", healthHandler.ForceCollectionRoute)

	// Bare (non-/api) operator control surface per §4.9.
	srv.Router.Get("/health", healthHandler.Health)
	srv.Router.Group(func(r chi.Router) {
		r.Use(httpserver.RequireOperatorKey(cfg))
		r.Get("/status", healthHandler.Status)
		r.Get("/logs", healthHandler.Logs)
		r.Get("/logs/stream", healthHandler.LogsStream)
		r.Post("/trigger", healthHandler.Trigger)
	})

	httpSrv := &http.Server{
		Addr:         cfg.ListenAddr(),
		Handler:      srv,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("api server listening", "addr", cfg.ListenAddr())
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutting down api server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return httpSrv.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

// runWorker starts only the scheduler, for deployments that split the
// collection loop out from the read/write API into its own process.
func runWorker(ctx context.Context, logger *slog.Logger, d *deps) error {
	logger.Info("worker started")
	d.scheduler.Start(ctx)
	<-ctx.Done()
	logger.Info("worker shutting down")
	stopCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	d.scheduler.Stop(stopCtx)
	return nil
}

// RunForceCollection runs a single collection attempt for source and exits,
// driven by `blacklistguard -source=NAME` (the CLI's one-shot force path).
func RunForceCollection(ctx context.Context, cfg *config.Config, source string) error {
	logger := telemetry.NewLogger(cfg.LogFormat, cfg.LogLevel, nil)
	slog.SetDefault(logger)

	d, err := wireDeps(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer d.Close(logger)

	runner := newCollectionRunner(d.registry, d.blacklistStore, d.historyStore, logger)
	items, err := runner.RunCollection(ctx, source, collector.DateRange{}, scheduler.ForcePageCap, true)
	if err != nil {
		return fmt.Errorf("force collection for %s: %w", source, err)
	}
	logger.Info("force collection complete", "source", source, "items", items)
	return nil
}
