package main

import (
	"context"
	"os"

	"github.com/polygonid/academic-bridge/internal/config"
	"github.com/polygonid/academic-bridge/internal/db/schema"
	"github.com/polygonid/academic-bridge/internal/log"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg, err := config.Load()
	if err != nil {
		log.Error(ctx, "cannot load config", "err", err)
		return
	}

	log.Config(cfg.Log.Level, cfg.Log.Mode, os.Stdout)

	if cfg.Database.URL == "" {
		log.Error(ctx, "ACADEMIC_DATABASE_URL is required")
		return
	}

	if err := schema.Migrate(ctx, cfg.Database.URL); err != nil {
		log.Error(ctx, "error migrating database", "err", err)
		return
	}

	log.Info(ctx, "migration done!")
}
