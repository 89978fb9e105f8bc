package repositories

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgtype"
	"github.com/jackc/pgx/v4"

	"github.com/polygonid/academic-bridge/internal/core/domain"
	"github.com/polygonid/academic-bridge/internal/core/ports"
	"github.com/polygonid/academic-bridge/internal/db"
	"github.com/polygonid/academic-bridge/internal/sqltools"
)

const (
	connectionsID        sqltools.SQLFieldName = "id"
	connectionsCreatedAt sqltools.SQLFieldName = "created_at"
)

type dbConnection struct {
	ID                string
	OwnerUserID       *uuid.UUID
	CounterpartyAlias string
	State             string
	InvitationPayload pgtype.JSONB
	InvitationURL     *string
	StallCount        int
	SupersededBy      *string
	CreatedAt         time.Time
	ModifiedAt        time.Time
}

const connectionColumns = `id, owner_user_id, counterparty_alias, state, invitation_payload, invitation_url, stall_count, superseded_by, created_at, modified_at`

type connections struct{}

// NewConnections returns a new connections repository
func NewConnections() ports.ConnectionsRepository {
	return &connections{}
}

// Save stores in the database the given connection and updates it in case it already exists.
// The owner is kept when the update does not carry one.
func (c *connections) Save(ctx context.Context, conn db.Querier, connection *domain.Connection) error {
	payload := pgtype.JSONB{Status: pgtype.Null}
	if len(connection.InvitationPayload) > 0 {
		if err := payload.Set([]byte(connection.InvitationPayload)); err != nil {
			return fmt.Errorf("cannot set invitation payload: %w", err)
		}
	}
	var invitationURL *string
	if connection.InvitationURL != "" {
		invitationURL = &connection.InvitationURL
	}

	const sql = `INSERT INTO connections (` + connectionColumns + `)
			VALUES($1, $2, $3, $4, $5, $6, $7, $8, $9, $10) ON CONFLICT (id) DO
			UPDATE SET owner_user_id = COALESCE(EXCLUDED.owner_user_id, connections.owner_user_id),
			           counterparty_alias = EXCLUDED.counterparty_alias,
			           state = EXCLUDED.state,
			           invitation_payload = COALESCE(EXCLUDED.invitation_payload, connections.invitation_payload),
			           invitation_url = COALESCE(EXCLUDED.invitation_url, connections.invitation_url),
			           stall_count = EXCLUDED.stall_count,
			           modified_at = EXCLUDED.modified_at`
	_, err := conn.Exec(ctx, sql,
		connection.ID,
		connection.OwnerUserID,
		connection.CounterpartyAlias,
		string(connection.State),
		payload,
		invitationURL,
		connection.StallCount,
		connection.SupersededBy,
		connection.CreatedAt,
		connection.ModifiedAt,
	)
	return err
}

func (c *connections) GetByID(ctx context.Context, conn db.Querier, id string) (*domain.Connection, error) {
	dbConn := dbConnection{}
	err := conn.QueryRow(ctx, `SELECT `+connectionColumns+` FROM connections WHERE id = $1`, id).Scan(
		&dbConn.ID,
		&dbConn.OwnerUserID,
		&dbConn.CounterpartyAlias,
		&dbConn.State,
		&dbConn.InvitationPayload,
		&dbConn.InvitationURL,
		&dbConn.StallCount,
		&dbConn.SupersededBy,
		&dbConn.CreatedAt,
		&dbConn.ModifiedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ports.ErrConnectionNotFound
		}
		return nil, err
	}
	return toConnectionDomain(&dbConn), nil
}

// GetByOwner returns the connections of the user, newest first
func (c *connections) GetByOwner(ctx context.Context, conn db.Querier, ownerID uuid.UUID) ([]*domain.Connection, error) {
	orderBy := sqltools.OrderByFilters{{Field: connectionsCreatedAt, Desc: true}}
	rows, err := conn.Query(ctx, `SELECT `+connectionColumns+` FROM connections WHERE owner_user_id = $1`+orderBy.Clause(connectionsID), ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	domainConns := make([]*domain.Connection, 0)
	for rows.Next() {
		dbConn := dbConnection{}
		if err := rows.Scan(
			&dbConn.ID,
			&dbConn.OwnerUserID,
			&dbConn.CounterpartyAlias,
			&dbConn.State,
			&dbConn.InvitationPayload,
			&dbConn.InvitationURL,
			&dbConn.StallCount,
			&dbConn.SupersededBy,
			&dbConn.CreatedAt,
			&dbConn.ModifiedAt,
		); err != nil {
			return nil, err
		}
		domainConns = append(domainConns, toConnectionDomain(&dbConn))
	}
	return domainConns, rows.Err()
}

func (c *connections) UpdateState(ctx context.Context, conn db.Querier, id string, state domain.ConnectionState, stallCount int) error {
	cmd, err := conn.Exec(ctx, `UPDATE connections SET state = $2, stall_count = $3, modified_at = NOW() WHERE id = $1`, id, string(state), stallCount)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ports.ErrConnectionNotFound
	}
	return nil
}

// Supersede records that the connection was replaced by a newer one
func (c *connections) Supersede(ctx context.Context, conn db.Querier, id string, supersededBy string) error {
	cmd, err := conn.Exec(ctx, `UPDATE connections SET superseded_by = $2, modified_at = NOW() WHERE id = $1`, id, supersededBy)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ports.ErrConnectionNotFound
	}
	return nil
}

func toConnectionDomain(c *dbConnection) *domain.Connection {
	connection := &domain.Connection{
		ID:                c.ID,
		OwnerUserID:       c.OwnerUserID,
		CounterpartyAlias: c.CounterpartyAlias,
		State:             domain.ConnectionState(c.State),
		StallCount:        c.StallCount,
		SupersededBy:      c.SupersededBy,
		CreatedAt:         c.CreatedAt,
		ModifiedAt:        c.ModifiedAt,
	}
	if c.InvitationPayload.Status == pgtype.Present {
		connection.InvitationPayload = json.RawMessage(c.InvitationPayload.Bytes)
	}
	if c.InvitationURL != nil {
		connection.InvitationURL = *c.InvitationURL
	}
	return connection
}
