package gateways

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/polygonid/academic-bridge/internal/core/domain"
	pkghttp "github.com/polygonid/academic-bridge/pkg/http"
)

func TestWebhook_Send(t *testing.T) {
	var got domain.IssuedNotification
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/webhooks", r.URL.Path)
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	webhook := NewWebhook(pkghttp.NewClient(http.Client{Timeout: time.Second}), srv.URL+"/webhooks")
	n := &domain.IssuedNotification{
		Topic:                  domain.NotificationTopicIssueCredential,
		State:                  domain.NotificationStateCredentialIssue,
		CredentialExchangeID:   "cx-1",
		SchemaID:               "schema-1",
		CredentialDefinitionID: "def-1",
	}
	require.NoError(t, webhook.Send(context.Background(), n))
	assert.Equal(t, *n, got)
}

func TestWebhook_SendFails(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	webhook := NewWebhook(pkghttp.NewClient(http.Client{Timeout: time.Second}), srv.URL)
	err := webhook.Send(context.Background(), &domain.IssuedNotification{CredentialExchangeID: "cx-1"})
	require.Error(t, err)
	assert.Equal(t, http.StatusInternalServerError, pkghttp.StatusCode(err))
}
