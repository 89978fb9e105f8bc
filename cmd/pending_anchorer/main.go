package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/polygonid/academic-bridge/internal/buildinfo"
	"github.com/polygonid/academic-bridge/internal/cache"
	"github.com/polygonid/academic-bridge/internal/config"
	"github.com/polygonid/academic-bridge/internal/core/services"
	"github.com/polygonid/academic-bridge/internal/db"
	"github.com/polygonid/academic-bridge/internal/log"
	"github.com/polygonid/academic-bridge/internal/providers"
	"github.com/polygonid/academic-bridge/internal/providers/blockchain"
	"github.com/polygonid/academic-bridge/internal/repositories"
)

var build = buildinfo.Revision()

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	log.Info(ctx, "starting pending anchorer...", "revision", build)

	cfg, err := config.Load()
	if err != nil {
		log.Error(ctx, "cannot load config", "err", err)
		return
	}

	log.Config(cfg.Log.Level, cfg.Log.Mode, os.Stdout)

	if err := cfg.Sanitize(); err != nil {
		log.Error(ctx, "there are errors in the configuration that prevent the anchorer to start", "err", err)
		return
	}
	if err := cfg.SanitizeLedger(); err != nil {
		log.Error(ctx, "there are errors in the ledger configuration that prevent the anchorer to start", "err", err)
		return
	}

	storage, err := db.NewStorage(ctx, cfg.Database.URL)
	if err != nil {
		log.Error(ctx, "cannot connect to database", "err", err)
		return
	}
	defer func(storage *db.Storage) {
		if err := storage.Close(ctx); err != nil {
			log.Error(ctx, "error closing database connection", "err", err)
		}
	}(storage)

	cachex, err := cache.NewCacheClient(ctx, *cfg)
	if err != nil {
		log.Error(ctx, "cannot initialize cache", "err", err)
		return
	}

	ledger, err := blockchain.NewLedger(ctx, cfg.Ledger)
	if err != nil {
		log.Error(ctx, "error creating the ledger gateway", "err", err)
		return
	}

	agent := providers.NewAgentGateway(cfg.Agent)
	connectionsService := services.NewConnections(agent, repositories.NewConnections(), repositories.NewUsers(), storage.Pgx, nil, services.ConnectionsConfig{
		StallInterval:      cfg.Lifecycle.StallInterval,
		MaxStallInterval:   cfg.Lifecycle.MaxStallInterval,
		AbandonAfterStalls: cfg.Lifecycle.AbandonAfterStalls,
	})
	definitionService := services.NewCredentialDefinition(agent, repositories.NewCredentialDefinitions(), storage.Pgx, cachex, cfg.Issuance.DefinitionCacheTTL)
	issuanceService := services.NewIssuance(connectionsService, definitionService, agent, ledger, repositories.NewCredentials(), storage.Pgx, nil, nil, services.IssuanceConfig{
		MaxAttempts:   cfg.Lifecycle.MaxAttempts,
		StoreMetadata: cfg.Ledger.StoreMetadata,
	})

	anchorer := services.NewPendingAnchorer(issuanceService, cfg.Ledger.PendingBatchSize)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	go anchorer.Run(ctx, cfg.Ledger.PendingCheckFrequency)

	go func() {
		mux := http.NewServeMux()
		mux.Handle("/status", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if err := storage.Ping(r.Context()); err != nil {
				w.WriteHeader(http.StatusServiceUnavailable)
				return
			}
			if _, err := w.Write([]byte("OK")); err != nil {
				log.Error(ctx, "error writing response", "err", err)
			}
		}))
		server := &http.Server{
			Addr:              fmt.Sprintf(":%d", cfg.Ledger.PendingStatusPort),
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		}
		log.Info(ctx, "starting status server", "port", cfg.Ledger.PendingStatusPort)
		if err := server.ListenAndServe(); err != nil {
			log.Error(ctx, "error starting server", "err", err)
		}
	}()

	<-quit
	log.Info(ctx, "finishing app")
	cancel()
	log.Info(ctx, "finished")
}
