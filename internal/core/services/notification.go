package services

import (
	"context"
	"errors"

	"github.com/polygonid/academic-bridge/internal/core/domain"
	"github.com/polygonid/academic-bridge/internal/core/event"
	"github.com/polygonid/academic-bridge/internal/core/ports"
	"github.com/polygonid/academic-bridge/internal/log"
	"github.com/polygonid/academic-bridge/pkg/pubsub"
)

// ErrNoWebhook is returned when a notification should be delivered but no webhook is configured
var ErrNoWebhook = errors.New("no webhook configured")

type webhookNotifier struct {
	webhook ports.WebhookGateway
}

// NewWebhookNotifier delivers notifications straight to the webhook
func NewWebhookNotifier(webhook ports.WebhookGateway) ports.Notifier {
	return &webhookNotifier{webhook: webhook}
}

func (n *webhookNotifier) CredentialIssued(ctx context.Context, notification *domain.IssuedNotification) error {
	if n.webhook == nil {
		return ErrNoWebhook
	}
	return n.webhook.Send(ctx, notification)
}

type pubSubNotifier struct {
	publisher pubsub.Publisher
}

// NewPubSubNotifier publishes notifications in the event bus. They are delivered by the notifications service.
func NewPubSubNotifier(publisher pubsub.Publisher) ports.Notifier {
	return &pubSubNotifier{publisher: publisher}
}

func (n *pubSubNotifier) CredentialIssued(ctx context.Context, notification *domain.IssuedNotification) error {
	return n.publisher.Publish(ctx, event.CredentialIssuedEvent, &event.CredentialIssued{IssuedNotification: *notification})
}

type notification struct {
	webhook ports.WebhookGateway
}

// NewNotification returns a Notification Service
func NewNotification(webhook ports.WebhookGateway) ports.NotificationService {
	return &notification{webhook: webhook}
}

func (n *notification) SendCredentialIssuedNotification(ctx context.Context, payload pubsub.Message) error {
	var ev event.CredentialIssued
	if err := ev.Unmarshal(payload); err != nil {
		log.Error(ctx, "sendCredentialIssuedNotification unexpected data type", "err", err)
		return errors.New("sendCredentialIssuedNotification unexpected data type")
	}
	if n.webhook == nil {
		return ErrNoWebhook
	}

	ctx = log.With(ctx, "credentialExchangeId", ev.CredentialExchangeID)
	if err := n.webhook.Send(ctx, &ev.IssuedNotification); err != nil {
		log.Error(ctx, "sending credential issued notification", "err", err)
		return err
	}
	log.Debug(ctx, "credential issued notification sent")
	return nil
}
