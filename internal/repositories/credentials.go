package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/jackc/pgtype"
	"github.com/jackc/pgx/v4"

	"github.com/polygonid/academic-bridge/internal/core/domain"
	"github.com/polygonid/academic-bridge/internal/core/ports"
	"github.com/polygonid/academic-bridge/internal/db"
	"github.com/polygonid/academic-bridge/internal/sqltools"
)

type dbCredential struct {
	ID                     string
	ConnectionID           string
	CredentialDefinitionID string
	Attributes             pgtype.JSONB
	ContentHash            *string
	Status                 string
	TransactionRef         *string
	BlockRef               *int64
	Error                  *string
	IssuedAt               time.Time
	AnchoredAt             *time.Time
	CreatedAt              time.Time
	ModifiedAt             time.Time
}

const credentialColumns = `id, connection_id, credential_definition_id, attributes, content_hash, status, transaction_ref, block_ref, error, issued_at, anchored_at, created_at, modified_at`

type credentials struct{}

// NewCredentials returns a new credentials repository
func NewCredentials() ports.CredentialsRepository {
	return &credentials{}
}

// Save stores the issuance record or updates its anchoring columns if it already exists
func (r *credentials) Save(ctx context.Context, conn db.Querier, credential *domain.Credential) error {
	attrs := pgtype.JSONB{}
	if err := attrs.Set(credential.Attributes); err != nil {
		return fmt.Errorf("cannot set credential attributes: %w", err)
	}
	var hash *string
	if credential.ContentHash != nil {
		h := credential.ContentHash.Hex()
		hash = &h
	}
	var block *int64
	if credential.BlockRef != nil {
		b := int64(*credential.BlockRef)
		block = &b
	}

	const sql = `INSERT INTO credentials (` + credentialColumns + `)
			VALUES($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13) ON CONFLICT (id) DO
			UPDATE SET content_hash = EXCLUDED.content_hash,
			           status = EXCLUDED.status,
			           transaction_ref = EXCLUDED.transaction_ref,
			           block_ref = EXCLUDED.block_ref,
			           error = EXCLUDED.error,
			           anchored_at = EXCLUDED.anchored_at,
			           modified_at = EXCLUDED.modified_at`
	_, err := conn.Exec(ctx, sql,
		credential.ID,
		credential.ConnectionID,
		credential.CredentialDefinitionID,
		attrs,
		hash,
		string(credential.Status),
		credential.TransactionRef,
		block,
		credential.Error,
		credential.IssuedAt,
		credential.AnchoredAt,
		credential.CreatedAt,
		credential.ModifiedAt,
	)
	return err
}

func (r *credentials) GetByID(ctx context.Context, conn db.Querier, id string) (*domain.Credential, error) {
	c := dbCredential{}
	err := conn.QueryRow(ctx, `SELECT `+credentialColumns+` FROM credentials WHERE id = $1`, id).Scan(credentialScanArgs(&c)...)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ports.ErrCredentialNotFound
		}
		return nil, err
	}
	return toCredentialDomain(&c)
}

// GetAll returns a page of the credentials in the status of the filter and the total count
func (r *credentials) GetAll(ctx context.Context, conn db.Querier, filter *ports.CredentialsFilter) ([]*domain.Credential, uint, error) {
	if filter == nil {
		return nil, 0, errors.New("credentials filter is required")
	}
	var count uint
	if err := conn.QueryRow(ctx, `SELECT COUNT(*) FROM credentials WHERE status = $1`, string(filter.Status)).Scan(&count); err != nil {
		return nil, 0, err
	}

	sql := `SELECT ` + credentialColumns + ` FROM credentials WHERE status = $1`
	sql += filter.OrderBy.Clause(ports.CredentialID, sqltools.OrderByFilter{Field: ports.CredentialCreatedAt})
	sql += fmt.Sprintf(" OFFSET %d LIMIT %d;", filter.GetOffset(), filter.GetLimit())
	rows, err := conn.Query(ctx, sql, string(filter.Status))
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	result := make([]*domain.Credential, 0)
	for rows.Next() {
		c := dbCredential{}
		if err := rows.Scan(credentialScanArgs(&c)...); err != nil {
			return nil, 0, err
		}
		item, err := toCredentialDomain(&c)
		if err != nil {
			return nil, 0, err
		}
		result = append(result, item)
	}
	return result, count, rows.Err()
}

func credentialScanArgs(c *dbCredential) []any {
	return []any{
		&c.ID,
		&c.ConnectionID,
		&c.CredentialDefinitionID,
		&c.Attributes,
		&c.ContentHash,
		&c.Status,
		&c.TransactionRef,
		&c.BlockRef,
		&c.Error,
		&c.IssuedAt,
		&c.AnchoredAt,
		&c.CreatedAt,
		&c.ModifiedAt,
	}
}

func toCredentialDomain(c *dbCredential) (*domain.Credential, error) {
	credential := &domain.Credential{
		ID:                     c.ID,
		ConnectionID:           c.ConnectionID,
		CredentialDefinitionID: c.CredentialDefinitionID,
		Status:                 domain.IssuanceStatus(c.Status),
		TransactionRef:         c.TransactionRef,
		Error:                  c.Error,
		IssuedAt:               c.IssuedAt,
		AnchoredAt:             c.AnchoredAt,
		CreatedAt:              c.CreatedAt,
		ModifiedAt:             c.ModifiedAt,
	}
	if err := c.Attributes.AssignTo(&credential.Attributes); err != nil {
		return nil, fmt.Errorf("parsing credential attributes: %w", err)
	}
	if c.ContentHash != nil {
		h := common.HexToHash(*c.ContentHash)
		credential.ContentHash = &h
	}
	if c.BlockRef != nil {
		b := uint64(*c.BlockRef)
		credential.BlockRef = &b
	}
	return credential, nil
}
