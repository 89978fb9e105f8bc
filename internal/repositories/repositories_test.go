package repositories

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/polygonid/academic-bridge/internal/core/domain"
	"github.com/polygonid/academic-bridge/internal/core/ports"
	"github.com/polygonid/academic-bridge/internal/sqltools"
)

func TestUsers(t *testing.T) {
	requireStorage(t)
	ctx := context.Background()
	repo := NewUsers()
	email := uuid.NewString() + "@uni.test"

	saved, err := repo.Save(ctx, storage.Pgx, domain.NewUser(email))
	require.NoError(t, err)
	assert.Equal(t, email, saved.Email)
	assert.Nil(t, saved.ConnectionID)

	again, err := repo.Save(ctx, storage.Pgx, domain.NewUser(email))
	require.NoError(t, err)
	assert.Equal(t, saved.ID, again.ID, "same email returns the existing user")

	byEmail, err := repo.GetByEmail(ctx, storage.Pgx, email)
	require.NoError(t, err)
	assert.Equal(t, saved.ID, byEmail.ID)

	_, err = repo.GetByID(ctx, storage.Pgx, uuid.New())
	assert.True(t, errors.Is(err, ports.ErrUserNotFound))

	assert.True(t, errors.Is(repo.SetConnection(ctx, storage.Pgx, uuid.New(), "x"), ports.ErrUserNotFound))
}

func TestConnections(t *testing.T) {
	requireStorage(t)
	ctx := context.Background()
	users := NewUsers()
	repo := NewConnections()

	user, err := users.Save(ctx, storage.Pgx, domain.NewUser(uuid.NewString()+"@uni.test"))
	require.NoError(t, err)

	first := domain.NewConnection(uuid.NewString(), &user.ID, "jane", domain.ConnectionStateInvitation, json.RawMessage(`{"label":"jane"}`))
	first.InvitationURL = "http://agent/invite"
	second := domain.NewConnection(uuid.NewString(), &user.ID, "jane", domain.ConnectionStateInvitation, nil)

	err = storage.Pgx.BeginFunc(ctx, func(tx pgx.Tx) error {
		if err := repo.Save(ctx, tx, first); err != nil {
			return err
		}
		if err := repo.Save(ctx, tx, second); err != nil {
			return err
		}
		if err := users.SetConnection(ctx, tx, user.ID, second.ID); err != nil {
			return err
		}
		return repo.Supersede(ctx, tx, first.ID, second.ID)
	})
	require.NoError(t, err)

	got, err := repo.GetByID(ctx, storage.Pgx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.ConnectionStateInvitation, got.State)
	assert.JSONEq(t, `{"label":"jane"}`, string(got.InvitationPayload))
	assert.Equal(t, "http://agent/invite", got.InvitationURL)
	require.NotNil(t, got.SupersededBy)
	assert.Equal(t, second.ID, *got.SupersededBy)

	require.NoError(t, repo.UpdateState(ctx, storage.Pgx, first.ID, domain.ConnectionStateAbandoned, 5))
	got, err = repo.GetByID(ctx, storage.Pgx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.ConnectionStateAbandoned, got.State)
	assert.Equal(t, 5, got.StallCount)

	// saving without owner keeps the stored one
	untracked := domain.NewConnection(second.ID, nil, "", domain.ConnectionStateActive, nil)
	require.NoError(t, repo.Save(ctx, storage.Pgx, untracked))
	got, err = repo.GetByID(ctx, storage.Pgx, second.ID)
	require.NoError(t, err)
	require.NotNil(t, got.OwnerUserID)
	assert.Equal(t, user.ID, *got.OwnerUserID)

	owned, err := repo.GetByOwner(ctx, storage.Pgx, user.ID)
	require.NoError(t, err)
	assert.Len(t, owned, 2)

	u, err := users.GetByID(ctx, storage.Pgx, user.ID)
	require.NoError(t, err)
	require.NotNil(t, u.ConnectionID)
	assert.Equal(t, second.ID, *u.ConnectionID)

	_, err = repo.GetByID(ctx, storage.Pgx, "missing")
	assert.True(t, errors.Is(err, ports.ErrConnectionNotFound))
	assert.True(t, errors.Is(repo.UpdateState(ctx, storage.Pgx, "missing", domain.ConnectionStateActive, 0), ports.ErrConnectionNotFound))
}

func TestCredentialDefinitions(t *testing.T) {
	requireStorage(t)
	ctx := context.Background()
	repo := NewCredentialDefinitions()
	version := uuid.NewString()

	_, err := repo.Get(ctx, storage.Pgx, domain.AcademicSchemaName, version)
	require.True(t, errors.Is(err, ports.ErrDefinitionNotFound))

	def := &domain.CredentialDefinition{
		SchemaName:             domain.AcademicSchemaName,
		SchemaVersion:          version,
		SchemaID:               "schema-1",
		CredentialDefinitionID: "def-1",
		Tag:                    domain.AcademicDefinitionTag,
		AttributeNames:         domain.AcademicAttributeNames(),
		CreatedAt:              time.Now().UTC(),
	}
	require.NoError(t, repo.Save(ctx, storage.Pgx, def))

	other := *def
	other.CredentialDefinitionID = "def-2"
	require.NoError(t, repo.Save(ctx, storage.Pgx, &other))

	got, err := repo.Get(ctx, storage.Pgx, domain.AcademicSchemaName, version)
	require.NoError(t, err)
	assert.Equal(t, "def-1", got.CredentialDefinitionID, "definitions are immutable")
	assert.Equal(t, domain.AcademicAttributeNames(), got.AttributeNames)
}

func TestCredentials(t *testing.T) {
	requireStorage(t)
	ctx := context.Background()
	repo := NewCredentials()

	record := &domain.CredentialExchangeRecord{
		CredentialExchangeID:   uuid.NewString(),
		CredentialDefinitionID: "def-1",
		ConnectionID:           "conn-1",
		Attributes:             []domain.CredentialAttribute{{Name: domain.AttrStudentName, Value: "Jane Doe"}},
		IssuedAt:               time.Now().UTC().Truncate(time.Millisecond),
	}
	hash := common.HexToHash("0xabcdef")
	credential := domain.NewCredential(record, hash)
	credential.MarkUnanchored(errors.New("ledger unavailable"))
	require.NoError(t, repo.Save(ctx, storage.Pgx, credential))

	got, err := repo.GetByID(ctx, storage.Pgx, record.CredentialExchangeID)
	require.NoError(t, err)
	assert.Equal(t, domain.IssuanceStatusIssuedUnanchored, got.Status)
	assert.Equal(t, hash, *got.ContentHash)
	assert.Equal(t, record.Attributes, got.Attributes)
	require.NotNil(t, got.Error)

	orderBy := sqltools.OrderByFilters{}
	require.NoError(t, orderBy.Add(ports.CredentialIssuedAt, true))
	pending, total, err := repo.GetAll(ctx, storage.Pgx, ports.NewCredentialsFilter(domain.IssuanceStatusIssuedUnanchored, nil, nil, orderBy))
	require.NoError(t, err)
	assert.GreaterOrEqual(t, total, uint(1))
	assert.NotEmpty(t, pending)

	_, _, err = repo.GetAll(ctx, storage.Pgx, nil)
	assert.Error(t, err)

	credential.MarkAnchored(domain.LedgerReceipt{TransactionRef: "0x01", BlockRef: 42, AnchoredAt: time.Now().UTC()})
	require.NoError(t, repo.Save(ctx, storage.Pgx, credential))
	got, err = repo.GetByID(ctx, storage.Pgx, record.CredentialExchangeID)
	require.NoError(t, err)
	assert.Equal(t, domain.IssuanceStatusIssuedAnchored, got.Status)
	require.NotNil(t, got.BlockRef)
	assert.Equal(t, uint64(42), *got.BlockRef)
	assert.Nil(t, got.Error)

	_, err = repo.GetByID(ctx, storage.Pgx, "missing")
	assert.True(t, errors.Is(err, ports.ErrCredentialNotFound))
}
