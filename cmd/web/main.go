package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"finitefield.org/seed-web/internal/config"
	"finitefield.org/seed-web/internal/i18n"
	mw "finitefield.org/seed-web/internal/middleware"
	"finitefield.org/seed-web/internal/navigator"
	"finitefield.org/seed-web/internal/observability"
	"finitefield.org/seed-web/internal/render"
	"finitefield.org/seed-web/internal/secrets"
	"finitefield.org/seed-web/internal/straindata"
	"finitefield.org/seed-web/internal/watch"
)

func main() {
	ctx := context.Background()

	baseLogger, err := observability.NewLogger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialise logger: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		_ = baseLogger.Sync()
	}()
	logger := baseLogger.Named("web")
	ctx = observability.WithLogger(ctx, logger)

	projectID, _ := config.Lookup("SECRETS_PROJECT_ID")
	fallbackFile, _ := config.Lookup("SECRETS_FALLBACK_FILE")
	if fallbackFile == "" {
		fallbackFile = ".secrets.local"
	}
	fetcher := secrets.NewFetcher(ctx,
		secrets.WithLogger(logger.Named("secrets")),
		secrets.WithProject(projectID),
		secrets.WithFallbackFile(fallbackFile),
	)
	defer func() {
		if err := fetcher.Close(); err != nil {
			logger.Warn("secret fetcher close error", zap.Error(err))
		}
	}()

	cfg, err := config.Load(ctx, config.WithSecretResolver(fetcher))
	if err != nil {
		var invalid *config.ValidationError
		if errors.As(err, &invalid) {
			logger.Fatal("invalid configuration", zap.Strings("fields", invalid.Fields()))
		}
		logger.Fatal("failed to load configuration", zap.Error(err))
	}

	site, err := config.LoadSite(cfg.SiteConfigPath)
	if err != nil {
		logger.Fatal("failed to load site configuration", zap.Error(err))
	}

	bundle, err := i18n.Default()
	if err != nil {
		logger.Fatal("failed to load locales", zap.Error(err))
	}
	pages, err := render.NewPages(bundle, "/assets")
	if err != nil {
		logger.Fatal("failed to parse templates", zap.Error(err))
	}

	var metrics *observability.Metrics
	if cfg.Metrics.Enabled {
		metrics = observability.NewMetrics()
	}

	loader := straindata.NewLoader(
		straindata.WithDataDir(cfg.Data.Dir),
		straindata.WithCacheTTL(cfg.Data.CacheTTL),
		straindata.WithFetchTimeout(cfg.Data.FetchTimeout),
		straindata.WithLogger(logger.Named("straindata")),
		straindata.WithMetrics(metrics),
	)
	defer func() {
		if err := loader.Close(); err != nil {
			logger.Warn("loader close error", zap.Error(err))
		}
	}()

	options := navigator.Options{DataURL: site.DataURL(cfg.Data.URL)}.WithDefaults()
	registry := navigator.NewRegistry(loader,
		navigator.RegistryConfig{
			MaxViewers: cfg.Session.MaxViewers,
			IdleTTL:    cfg.Session.IdleTTL,
			Metrics:    metrics,
		},
		navigator.WithOptions(options),
		navigator.WithLogger(logger.Named("navigator")),
		navigator.WithMetrics(metrics),
	)

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	if cfg.Data.Watch {
		w, err := watchDataFile(runCtx, loader, registry, options.DataURL, cfg.Data.ResizeDebounce, logger.Named("watch"))
		if err != nil {
			logger.Warn("data watch disabled", zap.Error(err))
		} else {
			defer func() { _ = w.Close() }()
		}
	}

	srv := &server{
		logger:    logger,
		registry:  registry,
		loader:    loader,
		pages:     pages,
		bundle:    bundle,
		site:      site,
		sessions:  mw.NewSessions(cfg.Session.SigningKey, cfg.Server.Production(), logger.Named("session")),
		metrics:   metrics,
		options:   options,
		projectID: cfg.Secrets.ProjectID,
	}
	httpServer := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           srv.routes(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       cfg.Server.IdleTimeout,
	}

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	serverLogger := logger.Named("http").With(zap.String("addr", httpServer.Addr))
	go func() {
		serverLogger.Info("seed web listening",
			zap.String("env", cfg.Server.Environment),
			zap.Bool("dev", cfg.Server.Dev),
			zap.String("data", options.DataURL),
			zap.Bool("strain_tree", site.StrainTree.Enabled),
		)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverLogger.Fatal("http server error", zap.Error(err))
		}
	}()

	<-shutdown
	logger.Info("shutdown signal received; draining requests")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
	}
}

// watchDataFile reloads every viewer when a file data source changes.
func watchDataFile(ctx context.Context, loader *straindata.Loader, registry *navigator.Registry, dataURL string, delay time.Duration, logger *zap.Logger) (*watch.Watcher, error) {
	ref, err := loader.Resolve(dataURL)
	if err != nil {
		return nil, err
	}
	if ref.Scheme != straindata.SchemeFile {
		return nil, fmt.Errorf("data source %s is not a file", dataURL)
	}
	w, err := watch.New(ref.Location, delay, func(ctx context.Context) {
		loader.Invalidate(dataURL)
		if err := registry.ReloadAll(ctx); err != nil {
			logger.Warn("reload after change failed", zap.Error(err))
		}
	}, logger)
	if err != nil {
		return nil, err
	}
	w.Start(ctx)
	return w, nil
}
