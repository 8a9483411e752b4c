// Package main is the entry point for the AI gateway server.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/lexedge/aigateway/internal/api"
	"github.com/lexedge/aigateway/internal/auth"
	"github.com/lexedge/aigateway/internal/cache"
	"github.com/lexedge/aigateway/internal/config"
	"github.com/lexedge/aigateway/internal/meter"
	"github.com/lexedge/aigateway/internal/observability"
	"github.com/lexedge/aigateway/internal/pricing"
	"github.com/lexedge/aigateway/internal/quota"
	"github.com/lexedge/aigateway/internal/rag"
	"github.com/lexedge/aigateway/internal/router"
	"github.com/lexedge/aigateway/internal/tenant"
	"github.com/lexedge/aigateway/pkg/provider"
	"github.com/lexedge/aigateway/providers"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "path to configuration file")
	flag.Parse()

	bootLogger := newLogger(config.LoggingConfig{Level: "info", Format: "json"})

	cfgManager, err := config.NewManager(*configPath, bootLogger)
	if err != nil {
		bootLogger.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}
	cfg := cfgManager.Get()

	logger := newLogger(cfg.Logging)
	slog.SetDefault(logger)

	logger.Info("starting AI gateway", "version", "0.1.0")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Tracing
	tracerProvider, err := observability.InitTracing(ctx, cfg.Tracing)
	if err != nil {
		logger.Error("failed to initialize tracing", "error", err)
		os.Exit(1)
	}

	// Tenant store
	store, err := newStore(cfg.Database)
	if err != nil {
		logger.Error("failed to open tenant store", "error", err)
		os.Exit(1)
	}
	defer store.Close()

	directory := tenant.NewDirectory(store, cfg.Auth, logger)

	// Provider registry
	registry := providers.NewRegistry()
	for _, provCfg := range cfg.Providers {
		err := registry.Build(provider.Config{
			Name:    provCfg.Name,
			APIKey:  provCfg.APIKey,
			BaseURL: provCfg.BaseURL,
			Headers: provCfg.Headers,
		})
		if err != nil {
			logger.Error("failed to create provider", "name", provCfg.Name, "error", err)
			continue
		}
		logger.Info("provider registered", "name", provCfg.Name)
	}

	// Reloaded configs refresh provider credentials and provisioning
	// defaults. Structural settings (port, database, cache backend) still
	// require a restart.
	cfgManager.OnChange(func(next *config.Config) {
		directory.SetDefaults(next.Auth)
		for _, provCfg := range next.Providers {
			err := registry.Build(provider.Config{
				Name:    provCfg.Name,
				APIKey:  provCfg.APIKey,
				BaseURL: provCfg.BaseURL,
				Headers: provCfg.Headers,
			})
			if err != nil {
				logger.Error("failed to rebuild provider", "name", provCfg.Name, "error", err)
			}
		}
	})
	if err := cfgManager.Watch(ctx); err != nil {
		logger.Warn("config hot-reload disabled", "error", err)
	}

	// Response cache
	responseCache, err := cache.NewFromConfig(cfg.Cache)
	if err != nil {
		logger.Error("failed to create cache", "error", err)
		os.Exit(1)
	}
	defer responseCache.Close()

	// Admission control with periodic limiter cleanup
	guard := quota.NewGuard()
	go func() {
		ticker := time.NewTicker(time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				guard.Cleanup()
			}
		}
	}()

	handler := api.NewHandler(api.HandlerConfig{
		Router:   router.New(registry, cfg.Routing.DefaultProvider, cfg.Routing.DefaultModel),
		Registry: registry,
		Guard:    guard,
		Meter:    meter.New(store, pricing.NewCalculator(), directory, logger),
		Store:    store,
		Cache:    responseCache,
		Logger:   logger,
		Tracer:   tracerProvider.Tracer(),
	})

	if cfg.Ask.RetrieverURL != "" {
		handler.SetAssistant(rag.NewAssistant(
			rag.NewHTTPRetriever(cfg.Ask.RetrieverURL),
			responseCache,
			handler,
			cfg.Ask,
			logger,
		))
	} else {
		logger.Warn("ask endpoint disabled, no retriever_url configured")
	}

	middleware := auth.NewMiddleware(&auth.MiddlewareConfig{
		Resolver:  auth.NewResolver(cfg.Auth.JWTSecret),
		Directory: directory,
		Logger:    logger,
		SkipPaths: []string{"/healthz", cfg.Metrics.Path},
	})

	mux := http.NewServeMux()
	mux.Handle("/", middleware.Authenticate(handler.Routes()))
	if cfg.Metrics.Enabled {
		mux.Handle("GET "+cfg.Metrics.Path, promhttp.Handler())
	}

	var httpHandler http.Handler = mux
	httpHandler = observability.RequestIDMiddleware(httpHandler)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      httpHandler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		logger.Info("server listening", "port", cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", "error", err)
	}
	if err := tracerProvider.Shutdown(shutdownCtx); err != nil {
		logger.Error("tracer shutdown error", "error", err)
	}

	cfgManager.Close()
	logger.Info("server stopped")
}

func newLogger(cfg config.LoggingConfig) *slog.Logger {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	if cfg.Format == "text" {
		return slog.New(slog.NewTextHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, opts))
}

func newStore(cfg config.DatabaseConfig) (tenant.Store, error) {
	switch cfg.Driver {
	case "postgres":
		return tenant.NewPostgresStore(cfg)
	default:
		return tenant.NewMemoryStore(), nil
	}
}
