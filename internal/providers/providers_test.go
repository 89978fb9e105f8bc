package providers

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/polygonid/academic-bridge/internal/config"
)

func TestNewNotifier(t *testing.T) {
	ctx := context.Background()

	notifier, err := NewNotifier(ctx, config.Configuration{})
	require.NoError(t, err)
	assert.Nil(t, notifier)

	notifier, err = NewNotifier(ctx, config.Configuration{Notifications: config.Notifications{WebhookURL: "http://bridge/webhook", Timeout: time.Second}})
	require.NoError(t, err)
	assert.NotNil(t, notifier)

	_, err = NewNotifier(ctx, config.Configuration{
		Cache:         config.Cache{Provider: config.CacheProviderMemory},
		Notifications: config.Notifications{UsePubSub: true},
	})
	assert.Error(t, err)
}

func TestNewAgentGateway(t *testing.T) {
	agent := NewAgentGateway(config.Agent{URL: "http://localhost:8021/", APIKey: "secret", Timeout: time.Second, RetryMax: 1})
	assert.NotNil(t, agent)
}
