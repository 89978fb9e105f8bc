package ports

import (
	"context"
	"encoding/json"

	"github.com/ethereum/go-ethereum/common"

	"github.com/polygonid/academic-bridge/internal/core/domain"
)

// AgentGateway is the typed facade over the identity agent admin API.
// Every method is safe to retry except OfferCredential.
type AgentGateway interface {
	CreateSchema(ctx context.Context, name, version string, attributeNames []string) (string, error)
	CreateCredentialDefinition(ctx context.Context, schemaID, tag string) (string, error)
	CreateInvitation(ctx context.Context, alias string) (*domain.Invitation, error)
	ReceiveInvitation(ctx context.Context, payload json.RawMessage, alias string) (*domain.ConnectionRecord, error)
	GetConnectionState(ctx context.Context, connectionID string) (domain.ConnectionState, error)
	RequestConnectionAdvance(ctx context.Context, connectionID string) error
	OfferCredential(ctx context.Context, connectionID, credentialDefinitionID string, attributes []domain.CredentialAttribute) (*domain.CredentialExchangeRecord, error)
	GetCredentialExchange(ctx context.Context, credentialExchangeID string) (*domain.CredentialExchangeRecord, error)
	Ping(ctx context.Context) error
	Status(ctx context.Context) (*domain.AgentStatus, error)
}

// LedgerGateway anchors content hashes in the credential store contract.
type LedgerGateway interface {
	Anchor(ctx context.Context, key string, hash common.Hash) (*domain.LedgerReceipt, error)
	Lookup(ctx context.Context, key string) (common.Hash, error)
	StoreMetadata(ctx context.Context, key string, metadata domain.AnchorMetadata) error
	GetMetadata(ctx context.Context, key string) (*domain.AnchorMetadata, error)
	Ping(ctx context.Context) error
}

// WebhookGateway posts notifications to the bridge webhook
type WebhookGateway interface {
	Send(ctx context.Context, notification *domain.IssuedNotification) error
}
