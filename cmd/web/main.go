package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"time"

	"sales-dashboard/internal/classify"
	"sales-dashboard/internal/config"
	"sales-dashboard/internal/middleware"
	"sales-dashboard/internal/observability"
	"sales-dashboard/internal/server"
	"sales-dashboard/internal/services"
	"sales-dashboard/internal/ui/templates"
)

const (
	renderTimeout   = 10 * time.Second
	seedLoadTimeout = 30 * time.Second
	cacheMaxAge     = "public, max-age=300"
)

func handleDashboard(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), renderTimeout)
	defer cancel()

	w.Header().Set("Cache-Control", cacheMaxAge)
	if err := templates.Dashboard().Render(ctx, w); err != nil {
		http.Error(w, "render error", http.StatusInternalServerError)
	}
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg.Logger)
	slog.SetDefault(logger)

	logger.Info("starting application",
		"version", "1.0.0",
		"config", cfg,
	)

	classifier, err := loadClassifier(cfg, logger)
	if err != nil {
		logger.Error("failed to load category table", "error", err)
		os.Exit(1)
	}

	analytics := services.NewAnalytics(classifier, cfg.Data.ExcludedCustomers, logger)

	ctx, cancel := context.WithTimeout(context.Background(), seedLoadTimeout)
	defer cancel()

	if err := analytics.LoadSeed(ctx, cfg.Data.SeedFile); err != nil {
		if errors.Is(err, services.ErrMissingDefaultSource) {
			// Without the seed the session starts empty; every analysis
			// would be an empty result until something is uploaded.
			logger.Error("no seed file and nothing uploaded yet; upload a sales export or provide SEED_FILE",
				"seed_file", cfg.Data.SeedFile)
			os.Exit(1)
		}
		logger.Error("failed to load seed data", "error", err)
		os.Exit(1)
	}

	templateHandlers := &server.TemplateHandlers{
		Dashboard: handleDashboard,
	}

	srv := server.NewServer(analytics, logger, cfg.Data, templateHandlers)

	rateLimiter := middleware.NewRateLimiter(cfg.Security)

	middlewareChain := middleware.Chain(
		middleware.Recovery(logger),
		middleware.RequestID(),
		middleware.Logger(logger),
		middleware.Tracing(),
		middleware.SecurityHeaders(),
		middleware.CORS(cfg.Security),
		middleware.TrustedProxy(cfg.Security),
		middleware.RateLimit(rateLimiter, logger),
	)

	handler := middlewareChain(srv)

	httpServer := &http.Server{
		Addr:         cfg.Address(),
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	gracefulServer := server.NewGracefulServer(httpServer, logger, cfg)

	gracefulServer.RegisterShutdownHook(func(ctx context.Context) error {
		logger.Info("shutting down analytics service")
		return nil
	})

	logger.Info("starting graceful server")
	if err := gracefulServer.ListenAndServe(); err != nil {
		logger.Error("server failed", "error", err)
		os.Exit(1)
	}

	logger.Info("application stopped gracefully")
}

func loadClassifier(cfg *config.Config, logger *slog.Logger) (*classify.Classifier, error) {
	if cfg.Data.CategoryTableFile != "" {
		logger.Info("loading category table override", "path", cfg.Data.CategoryTableFile)
		return classify.LoadFile(cfg.Data.CategoryTableFile)
	}
	return classify.NewDefault()
}
