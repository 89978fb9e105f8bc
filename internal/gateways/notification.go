package gateways

import (
	"context"
	"encoding/json"

	"github.com/pkg/errors"

	"github.com/polygonid/academic-bridge/internal/core/domain"
	"github.com/polygonid/academic-bridge/pkg/http"
)

// Webhook posts issuance notifications to the bridge webhook endpoint.
type Webhook struct {
	conn *http.Client
	url  string
}

// NewWebhook creates a webhook client for url
func NewWebhook(conn *http.Client, url string) *Webhook {
	return &Webhook{
		conn: conn,
		url:  url,
	}
}

// Send posts the notification in json format
func (c *Webhook) Send(ctx context.Context, notification *domain.IssuedNotification) error {
	reqBody, err := json.Marshal(notification)
	if err != nil {
		return errors.WithStack(err)
	}

	if _, err := c.conn.Post(ctx, c.url, reqBody); err != nil {
		return errors.WithStack(err)
	}
	return nil
}
