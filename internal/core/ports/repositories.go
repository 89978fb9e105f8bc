package ports

import (
	"context"

	"github.com/google/uuid"

	"github.com/polygonid/academic-bridge/internal/core/domain"
	"github.com/polygonid/academic-bridge/internal/db"
)

// UsersRepository defines the available methods for users repository
type UsersRepository interface {
	Save(ctx context.Context, conn db.Querier, user *domain.User) (*domain.User, error)
	GetByID(ctx context.Context, conn db.Querier, id uuid.UUID) (*domain.User, error)
	GetByEmail(ctx context.Context, conn db.Querier, email string) (*domain.User, error)
	SetConnection(ctx context.Context, conn db.Querier, userID uuid.UUID, connectionID string) error
}

// ConnectionsRepository defines the available methods for connections repository
type ConnectionsRepository interface {
	Save(ctx context.Context, conn db.Querier, connection *domain.Connection) error
	GetByID(ctx context.Context, conn db.Querier, id string) (*domain.Connection, error)
	GetByOwner(ctx context.Context, conn db.Querier, ownerID uuid.UUID) ([]*domain.Connection, error)
	UpdateState(ctx context.Context, conn db.Querier, id string, state domain.ConnectionState, stallCount int) error
	Supersede(ctx context.Context, conn db.Querier, id string, supersededBy string) error
}

// CredentialDefinitionsRepository stores the credential definitions created in the agent
type CredentialDefinitionsRepository interface {
	Save(ctx context.Context, conn db.Querier, def *domain.CredentialDefinition) error
	Get(ctx context.Context, conn db.Querier, schemaName, schemaVersion string) (*domain.CredentialDefinition, error)
}

// CredentialsRepository stores the local record of every issuance
type CredentialsRepository interface {
	Save(ctx context.Context, conn db.Querier, credential *domain.Credential) error
	GetByID(ctx context.Context, conn db.Querier, id string) (*domain.Credential, error)
	GetAll(ctx context.Context, conn db.Querier, filter *CredentialsFilter) ([]*domain.Credential, uint, error)
}
