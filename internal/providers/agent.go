package providers

import (
	"context"
	"net/http"
	"time"

	"github.com/polygonid/academic-bridge/internal/config"
	"github.com/polygonid/academic-bridge/internal/core/ports"
	"github.com/polygonid/academic-bridge/internal/core/services"
	"github.com/polygonid/academic-bridge/internal/gateways"
	"github.com/polygonid/academic-bridge/internal/log"
	"github.com/polygonid/academic-bridge/internal/pubsub"
	pkghttp "github.com/polygonid/academic-bridge/pkg/http"
)

const (
	retryWaitMin = 500 * time.Millisecond
	retryWaitMax = 5 * time.Second
)

// NewAgentGateway returns the identity agent client. Only GET requests are retried.
func NewAgentGateway(cfg config.Agent) *gateways.Agent {
	conn := pkghttp.NewClient(
		http.Client{Timeout: cfg.Timeout},
		pkghttp.WithHeader(gateways.APIKeyHeader, cfg.APIKey),
		pkghttp.WithRetry(cfg.RetryMax, retryWaitMin, retryWaitMax),
	)
	return gateways.NewAgent(conn, gateways.AgentConfig{
		URL:             cfg.URL,
		HealthPath:      cfg.HealthPath,
		CredentialTrace: cfg.CredentialTrace,
	})
}

// NewWebhookGateway returns the webhook client, or nil when no webhook is configured
func NewWebhookGateway(cfg config.Notifications) *gateways.Webhook {
	if cfg.WebhookURL == "" {
		return nil
	}
	return gateways.NewWebhook(pkghttp.NewClient(http.Client{Timeout: cfg.Timeout}), cfg.WebhookURL)
}

// NewNotifier returns the notifier used after issuance.
// With pubsub enabled the notification is published and delivered by the notifications worker.
// It returns nil when notifications are not configured.
func NewNotifier(ctx context.Context, cfg config.Configuration) (ports.Notifier, error) {
	if cfg.Notifications.UsePubSub {
		ps, err := pubsub.NewPubSub(ctx, cfg)
		if err != nil {
			return nil, err
		}
		return services.NewPubSubNotifier(ps), nil
	}
	webhook := NewWebhookGateway(cfg.Notifications)
	if webhook == nil {
		log.Info(ctx, "no notification webhook configured, notifications are disabled")
		return nil, nil
	}
	return services.NewWebhookNotifier(webhook), nil
}
