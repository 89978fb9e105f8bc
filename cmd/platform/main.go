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

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/polygonid/academic-bridge/internal/api"
	"github.com/polygonid/academic-bridge/internal/cache"
	"github.com/polygonid/academic-bridge/internal/config"
	"github.com/polygonid/academic-bridge/internal/core/services"
	"github.com/polygonid/academic-bridge/internal/db"
	"github.com/polygonid/academic-bridge/internal/health"
	"github.com/polygonid/academic-bridge/internal/log"
	"github.com/polygonid/academic-bridge/internal/metrics"
	"github.com/polygonid/academic-bridge/internal/providers"
	"github.com/polygonid/academic-bridge/internal/providers/blockchain"
	"github.com/polygonid/academic-bridge/internal/repositories"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Error(context.Background(), "cannot load config", "err", err)
		return
	}

	ctx := log.NewContext(context.Background(), cfg.Log.Level, cfg.Log.Mode, os.Stdout)

	if err := cfg.Sanitize(); err != nil {
		log.Error(ctx, "there are errors in the configuration that prevent server to start", "err", err)
		return
	}
	if err := cfg.SanitizeLedger(); err != nil {
		log.Error(ctx, "there are errors in the ledger configuration that prevent server to start", "err", err)
		return
	}

	storage, err := db.NewStorage(ctx, cfg.Database.URL)
	if err != nil {
		log.Error(ctx, "cannot connect to database", "err", err)
		return
	}
	defer func() {
		if err := storage.Close(ctx); err != nil {
			log.Error(ctx, "closing database", "err", err)
		}
	}()

	cachex, err := cache.NewCacheClient(ctx, *cfg)
	if err != nil {
		log.Error(ctx, "cannot initialize the cache", "err", err)
		return
	}

	agent := providers.NewAgentGateway(cfg.Agent)
	agentStatus, err := agent.Status(ctx)
	if err != nil {
		log.Error(ctx, "identity agent is not reachable", "err", err, "url", cfg.Agent.URL)
		return
	}
	if !agentStatus.Ready {
		log.Warn(ctx, "identity agent is not ready yet", "label", agentStatus.Label)
	}
	log.Info(ctx, "identity agent", "label", agentStatus.Label, "version", agentStatus.Version)

	ledger, err := blockchain.NewLedger(ctx, cfg.Ledger)
	if err != nil {
		log.Error(ctx, "cannot initialize the ledger gateway", "err", err)
		return
	}

	notifier, err := providers.NewNotifier(ctx, *cfg)
	if err != nil {
		log.Error(ctx, "cannot initialize notifications", "err", err)
		return
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(registry)

	connectionsService := services.NewConnections(agent, repositories.NewConnections(), repositories.NewUsers(), storage.Pgx, m, services.ConnectionsConfig{
		StallInterval:      cfg.Lifecycle.StallInterval,
		MaxStallInterval:   cfg.Lifecycle.MaxStallInterval,
		AbandonAfterStalls: cfg.Lifecycle.AbandonAfterStalls,
	})
	definitionService := services.NewCredentialDefinition(agent, repositories.NewCredentialDefinitions(), storage.Pgx, cachex, cfg.Issuance.DefinitionCacheTTL)
	issuanceService := services.NewIssuance(connectionsService, definitionService, agent, ledger, repositories.NewCredentials(), storage.Pgx, notifier, m, services.IssuanceConfig{
		MaxAttempts:         cfg.Lifecycle.MaxAttempts,
		ProceedOnInactive:   cfg.Issuance.ProceedOnInactive,
		StoreMetadata:       cfg.Ledger.StoreMetadata,
		NotificationTimeout: cfg.Notifications.Timeout,
	})
	verificationService := services.NewVerification(agent, ledger, m)

	healthStatus := health.New(map[string]health.Ping{
		health.Agent:  agent,
		health.Ledger: ledger,
		health.DB:     storage,
		health.Cache:  cachex,
	})

	mux := chi.NewRouter()
	mux.Use(
		middleware.RequestID,
		log.ChiMiddleware(ctx),
		middleware.Recoverer,
		cors.AllowAll().Handler,
		middleware.NoCache,
	)
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	api.RegisterStatic(mux)
	api.HandlerFromMux(
		api.NewServer(connectionsService, definitionService, issuanceService, verificationService, agent, healthStatus),
		mux,
		authMiddlewares(ctx, cfg)...,
	)

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.ServerPort),
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	go func() {
		log.Info(ctx, "server started", "port", cfg.ServerPort)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error(ctx, "starting http server", "err", err)
			quit <- syscall.SIGTERM
		}
	}()

	<-quit
	log.Info(ctx, "shutting down")
	shutdownCtx, cancel := context.WithTimeout(ctx, shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error(ctx, "shutting down http server", "err", err)
	}
}

func authMiddlewares(ctx context.Context, cfg *config.Configuration) []func(http.Handler) http.Handler {
	if cfg.HTTPBasicAuth.User == "" {
		log.Warn(ctx, "basic auth is disabled, the academic endpoints are open")
		return nil
	}
	return []func(http.Handler) http.Handler{
		middleware.BasicAuth("academic", map[string]string{cfg.HTTPBasicAuth.User: cfg.HTTPBasicAuth.Password}),
	}
}
