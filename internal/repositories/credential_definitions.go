package repositories

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgtype"
	"github.com/jackc/pgx/v4"

	"github.com/polygonid/academic-bridge/internal/core/domain"
	"github.com/polygonid/academic-bridge/internal/core/ports"
	"github.com/polygonid/academic-bridge/internal/db"
)

type credentialDefinitions struct{}

// NewCredentialDefinitions returns a new credential definitions repository
func NewCredentialDefinitions() ports.CredentialDefinitionsRepository {
	return &credentialDefinitions{}
}

// Save stores the definition. Definitions are immutable, so a second save for the same schema is ignored.
func (r *credentialDefinitions) Save(ctx context.Context, conn db.Querier, def *domain.CredentialDefinition) error {
	attrs := pgtype.JSONB{}
	if err := attrs.Set(def.AttributeNames); err != nil {
		return fmt.Errorf("cannot set attribute names: %w", err)
	}
	const sql = `INSERT INTO credential_definitions (schema_name, schema_version, schema_id, credential_definition_id, tag, attribute_names, created_at)
			VALUES($1, $2, $3, $4, $5, $6, $7) ON CONFLICT (schema_name, schema_version) DO NOTHING`
	_, err := conn.Exec(ctx, sql, def.SchemaName, def.SchemaVersion, def.SchemaID, def.CredentialDefinitionID, def.Tag, attrs, def.CreatedAt)
	return err
}

func (r *credentialDefinitions) Get(ctx context.Context, conn db.Querier, schemaName, schemaVersion string) (*domain.CredentialDefinition, error) {
	const sql = `SELECT schema_name, schema_version, schema_id, credential_definition_id, tag, attribute_names, created_at
			FROM credential_definitions
			WHERE schema_name = $1 AND schema_version = $2`
	def := domain.CredentialDefinition{}
	attrs := pgtype.JSONB{}
	err := conn.QueryRow(ctx, sql, schemaName, schemaVersion).
		Scan(&def.SchemaName, &def.SchemaVersion, &def.SchemaID, &def.CredentialDefinitionID, &def.Tag, &attrs, &def.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ports.ErrDefinitionNotFound
		}
		return nil, err
	}
	if err := attrs.AssignTo(&def.AttributeNames); err != nil {
		return nil, fmt.Errorf("parsing attribute names: %w", err)
	}
	return &def, nil
}
