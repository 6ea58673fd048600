package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/paroisse/paroisse/internal/app"
	"github.com/paroisse/paroisse/internal/associations"
	"github.com/paroisse/paroisse/internal/audit"
	audithttp "github.com/paroisse/paroisse/internal/audit/http"
	"github.com/paroisse/paroisse/internal/auth"
	"github.com/paroisse/paroisse/internal/dashboard"
	"github.com/paroisse/paroisse/internal/finances"
	"github.com/paroisse/paroisse/internal/finances/engagements"
	"github.com/paroisse/paroisse/internal/finances/offrandes"
	"github.com/paroisse/paroisse/internal/finances/versements"
	"github.com/paroisse/paroisse/internal/observability"
	"github.com/paroisse/paroisse/internal/paroissiens"
	"github.com/paroisse/paroisse/internal/platform/cache"
	"github.com/paroisse/paroisse/internal/platform/db"
	"github.com/paroisse/paroisse/internal/rbac"
	"github.com/paroisse/paroisse/internal/reports"
	"github.com/paroisse/paroisse/internal/shared"
	"github.com/paroisse/paroisse/internal/users"
	"github.com/paroisse/paroisse/internal/view"
	"github.com/paroisse/paroisse/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)
	started := time.Now()
	view.CurrencyLabel = cfg.CurrencyLabel

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	metrics := observability.NewMetrics()
	sessionManager := shared.NewSessionManager(redisClient, "paroisse_session", cfg.SessionTTL, cfg.IsProduction())
	csrfManager := shared.NewCSRFManager(cfg.CSRFSecret)

	templates, err := view.NewEngine()
	if err != nil {
		logger.Error("parse templates", slog.Any("error", err))
		os.Exit(1)
	}
	page := view.NewPage(templates, csrfManager, logger)

	matrix := rbac.DefaultMatrix()
	routes := rbac.DefaultRouteTable()
	guard := rbac.NewGuard(matrix, routes, auth.SessionResolver{}, logger, metrics)
	gate := rbac.Middleware{Matrix: matrix, Logger: logger, HomePath: routes.HomePath}

	auditLogger := shared.NewAuditLogger(pool)
	dashboardCache := cache.NewVersioned(redisClient, "dashboard", cfg.DashboardCacheTTL, metrics)

	authService := auth.NewService(auth.NewRepository(pool))
	authHandler := auth.NewHandler(logger, authService, templates, sessionManager, csrfManager, cfg.LoginRateLimit)

	associationsService := associations.NewService(associations.NewRepository(pool), auditLogger, logger)
	paroissiensService := paroissiens.NewService(paroissiens.NewRepository(pool), auditLogger, logger)
	engagementsService := engagements.NewService(engagements.NewRepository(pool), auditLogger, dashboardCache, logger)
	versementsService := versements.NewService(versements.NewRepository(pool), auditLogger, dashboardCache, logger)
	offrandesService := offrandes.NewService(offrandes.NewRepository(pool), auditLogger, dashboardCache, logger)
	stats := finances.NewStatsRepository(pool)

	dashboardService := dashboard.NewService(paroissiensService, associationsService, stats, auditLogger, dashboardCache, logger)
	reportsService := reports.NewService(stats, versementsService, offrandesService, logger)
	pdfClient := reports.NewPDFClient(cfg.GotenbergURL)
	usersService := users.NewService(users.NewRepository(pool), auditLogger, logger)

	probes := []users.Probe{
		{Name: "PostgreSQL", Ping: pool.Ping},
		{Name: "Redis", Ping: cache.Probe(redisClient)},
	}
	if pdfClient.Enabled() {
		probes = append(probes, users.Probe{Name: "Gotenberg", Ping: pdfClient.Ping})
	}

	redisOpts := queueOpts(cfg.RedisAddr)
	inspector := asynq.NewInspector(redisOpts)
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()
	jobClient := jobs.NewClient(redisOpts)
	defer func() {
		if err := jobClient.Close(); err != nil {
			logger.Warn("job client close", slog.Any("error", err))
		}
	}()

	router := app.NewRouter(app.RouterParams{
		Logger:              logger,
		Config:              cfg,
		Templates:           templates,
		SessionManager:      sessionManager,
		CSRFManager:         csrfManager,
		Guard:               guard,
		Matrix:              matrix,
		Metrics:             metrics,
		AuthHandler:         authHandler,
		DashboardHandler:    dashboard.NewHandler(logger, dashboardService, page, gate),
		ParoissiensHandler:  paroissiens.NewHandler(logger, paroissiensService, associationsService, page, gate),
		AssociationsHandler: associations.NewHandler(logger, associationsService, page, gate),
		OverviewHandler:     finances.NewOverviewHandler(logger, finances.NewOverviewService(stats), page, gate),
		EngagementsHandler:  engagements.NewHandler(logger, engagementsService, paroissiensService, page, gate),
		VersementsHandler:   versements.NewHandler(logger, versementsService, paroissiensService, engagementsService, page, gate),
		OffrandesHandler:    offrandes.NewHandler(logger, offrandesService, associationsService, page, gate),
		ReportsHandler:      reports.NewHandler(logger, reportsService, pdfClient, page, gate),
		UsersHandler:        users.NewHandler(logger, usersService, page, gate),
		SettingsHandler:     users.NewSettingsHandler(page, gate, cfg.AppEnv, started, probes...),
		PermissionsHandler:  rbac.NewPermissionsHandler(matrix, page, gate),
		JournalHandler:      audithttp.NewHandler(logger, audit.NewService(audit.NewRepository(pool)), page, gate),
		JobHandler:          jobs.NewHandler(inspector, logger),
	})

	if _, err := jobClient.EnqueueDashboardWarmup(ctx, started.Year()); err != nil {
		logger.Warn("enqueue dashboard warmup", slog.Any("error", err))
	}

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}

func queueOpts(addr string) asynq.RedisClientOpt {
	opts, err := cache.Options(addr)
	if err != nil {
		return asynq.RedisClientOpt{Addr: addr}
	}
	return asynq.RedisClientOpt{Addr: opts.Addr, Password: opts.Password, DB: opts.DB}
}
