package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/polygonid/academic-bridge/internal/buildinfo"
	"github.com/polygonid/academic-bridge/internal/config"
	"github.com/polygonid/academic-bridge/internal/core/event"
	"github.com/polygonid/academic-bridge/internal/core/services"
	"github.com/polygonid/academic-bridge/internal/log"
	"github.com/polygonid/academic-bridge/internal/providers"
	"github.com/polygonid/academic-bridge/internal/pubsub"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Error(context.Background(), "cannot load config", "err", err)
		return
	}

	ctx, cancel := context.WithCancel(log.NewContext(context.Background(), cfg.Log.Level, cfg.Log.Mode, os.Stdout))
	defer cancel()

	log.Info(ctx, "starting notifications worker...", "revision", buildinfo.Revision())

	if err := cfg.Sanitize(); err != nil {
		log.Error(ctx, "there are errors in the configuration that prevent the worker to start", "err", err)
		return
	}

	webhook := providers.NewWebhookGateway(cfg.Notifications)
	if webhook == nil {
		log.Error(ctx, "ACADEMIC_NOTIFICATIONS_WEBHOOK_URL is required by the notifications worker")
		return
	}

	ps, err := pubsub.NewPubSub(ctx, *cfg)
	if err != nil {
		log.Error(ctx, "cannot initialize pubsub", "err", err)
		return
	}
	defer func() {
		if err := ps.Close(); err != nil {
			log.Error(ctx, "closing pubsub", "err", err)
		}
	}()

	notificationService := services.NewNotification(webhook)
	ps.Subscribe(ctx, event.CredentialIssuedEvent, notificationService.SendCredentialIssuedNotification)

	gracefulShutdown := make(chan os.Signal, 1)
	signal.Notify(gracefulShutdown, syscall.SIGINT, syscall.SIGTERM)
	<-gracefulShutdown
	log.Info(ctx, "finishing notifications worker")
}
