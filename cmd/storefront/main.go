package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/glowcart/storefront/internal/api"
	"github.com/glowcart/storefront/internal/auth"
	"github.com/glowcart/storefront/internal/cart"
	"github.com/glowcart/storefront/internal/catalog"
	"github.com/glowcart/storefront/internal/platform/config"
	"github.com/glowcart/storefront/internal/platform/observability"
)

func main() {
	baseLogger, err := observability.NewLogger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialise logger: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		_ = baseLogger.Sync()
	}()
	logger := baseLogger.Named("storefront")

	var (
		envFile  string
		yamlFile string
	)
	flag.StringVar(&envFile, "env", ".env", "path to .env file")
	flag.StringVar(&yamlFile, "config", "", "optional YAML config file")
	flag.Parse()

	opts := []config.Option{config.WithEnvFile(envFile)}
	if yamlFile != "" {
		opts = append(opts, config.WithYAMLFile(yamlFile))
	}
	cfg, err := config.Load(opts...)
	if err != nil {
		logger.Fatal("failed to load configuration", zap.Error(err))
	}

	tokens := auth.NewMemoryTokenSource(os.Getenv("STOREFRONT_ACCESS_TOKEN"))
	client := api.NewClient(cfg.API.BaseURL,
		api.WithTimeout(cfg.API.Timeout),
		api.WithTokenSource(tokens),
	)

	cartSync, err := cart.NewSynchronizer(cart.Deps{
		Backend: client,
		Tokens:  tokens,
		Cache:   cart.NewCache(cfg.Cart.CachePath, logger.Named("cart-cache")),
		Logger:  logger.Named("cart"),
		OnReauthRequired: func() {
			logger.Warn("session expired; reauthentication required")
		},
	})
	if err != nil {
		logger.Fatal("failed to build cart synchronizer", zap.Error(err))
	}

	engine, err := catalog.NewEngine(catalog.Deps{
		Backend: client,
		Logger:  logger.Named("catalog"),
		PerPage: cfg.Catalog.PerPage,
	})
	if err != nil {
		logger.Fatal("failed to build catalog engine", zap.Error(err))
	}

	app := &app{
		logger:    logger,
		cart:      cartSync,
		catalog:   engine,
		loginPath: cfg.API.LoginPath,
	}

	// Warm reference data and the first listing page; failures here are
	// recoverable and already logged by the owners.
	warmCtx, warmCancel := context.WithTimeout(context.Background(), cfg.API.Timeout*2)
	go func() {
		defer warmCancel()
		engine.FetchCategories(warmCtx)
		engine.FetchSpecificationTypes(warmCtx)
		_ = engine.FetchProducts(warmCtx)
		_ = cartSync.Refresh(warmCtx)
	}()

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.RequestLogger(&middleware.DefaultLogFormatter{
		Logger:  observability.NewPrintfAdapter(logger.Named("access")),
		NoColor: true,
	}))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))
	app.routes(r)

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	serverLogger := logger.Named("http").With(zap.String("addr", server.Addr))
	go func() {
		serverLogger.Info("storefront listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverLogger.Fatal("http server error", zap.Error(err))
		}
	}()

	<-shutdown
	logger.Info("shutdown signal received; draining requests")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
	}
}
