package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"time"

	"olist-dashboard/internal/config"
	"olist-dashboard/internal/dataset"
	"olist-dashboard/internal/middleware"
	"olist-dashboard/internal/observability"
	"olist-dashboard/internal/server"
	"olist-dashboard/internal/services"
	"olist-dashboard/internal/ui/templates"
)

const (
	renderTimeout = 10 * time.Second
	cacheMaxAge   = "public, max-age=60"
	visitorIdle   = 10 * time.Minute
)

// dashboardHandler renders the page with the selector options of the
// current snapshot.
func dashboardHandler(analytics *services.Analytics, dashboard config.DashboardConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), renderTimeout)
		defer cancel()

		props := templates.DashboardProps{
			Years:        analytics.Years(),
			DefaultState: dashboard.DefaultState,
			TopN:         dashboard.TopN,
		}
		if first, last, ok := analytics.DateBounds(); ok {
			props.FirstDate = first.Format(time.DateOnly)
			props.LastDate = last.Format(time.DateOnly)
		}

		w.Header().Set("Cache-Control", cacheMaxAge)
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		if err := templates.Dashboard(props).Render(ctx, w); err != nil {
			http.Error(w, "render error", http.StatusInternalServerError)
		}
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

	analytics := services.NewAnalytics(
		services.WithCache(cfg.Dashboard.CacheSize, cfg.Dashboard.CacheTTL),
		services.WithLogger(logger),
	)

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Data.LoadTimeout)
	err = analytics.LoadFromDir(ctx, dataset.FilesFromConfig(cfg.Data))
	cancel()
	if err != nil {
		logger.Error("failed to load dataset", "error", err, "dir", cfg.Data.Dir)
		os.Exit(1)
	}

	templateHandlers := &server.TemplateHandlers{
		Dashboard: dashboardHandler(analytics, cfg.Dashboard),
	}

	srv := server.NewServer(analytics, logger, cfg.Dashboard, templateHandlers)

	rateLimiter := middleware.NewRateLimiter(cfg.Security)

	middlewareChain := middleware.Chain(
		middleware.Recovery(logger),
		middleware.RequestID(),
		middleware.Logger(logger),
		middleware.Tracing(logger),
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

	gracefulServer.Every("sweep", cfg.Dashboard.SweepInterval, func(ctx context.Context) {
		expired := analytics.CleanCache()
		visitors := rateLimiter.Sweep(visitorIdle)
		if expired > 0 || visitors > 0 {
			logger.Debug("swept idle state", "cache_entries", expired, "visitors", visitors)
		}
	})

	gracefulServer.RegisterShutdownHook(func(ctx context.Context) error {
		logger.Info("shutting down analytics service", "stats", analytics.Stats())
		return nil
	})

	logger.Info("starting graceful server")
	if err := gracefulServer.ListenAndServe(); err != nil {
		logger.Error("server failed", "error", err)
		os.Exit(1)
	}

	logger.Info("application stopped gracefully")
}
