package repositories

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v4"

	"github.com/polygonid/academic-bridge/internal/core/domain"
	"github.com/polygonid/academic-bridge/internal/core/ports"
	"github.com/polygonid/academic-bridge/internal/db"
)

type users struct{}

// NewUsers returns a new users repository
func NewUsers() ports.UsersRepository {
	return &users{}
}

// Save stores the user. When a user with the same email already exists that one is returned,
// so concurrent invitations for the same email end up with a single user.
func (u *users) Save(ctx context.Context, conn db.Querier, user *domain.User) (*domain.User, error) {
	const sql = `INSERT INTO users (id, email, connection_id, created_at, modified_at)
			VALUES($1, $2, $3, $4, $5) ON CONFLICT (email) DO
			UPDATE SET modified_at = EXCLUDED.modified_at
			RETURNING id, email, connection_id, created_at, modified_at`
	saved := domain.User{}
	err := conn.QueryRow(ctx, sql, user.ID, user.Email, user.ConnectionID, user.CreatedAt, user.ModifiedAt).
		Scan(&saved.ID, &saved.Email, &saved.ConnectionID, &saved.CreatedAt, &saved.ModifiedAt)
	if err != nil {
		return nil, err
	}
	return &saved, nil
}

func (u *users) GetByID(ctx context.Context, conn db.Querier, id uuid.UUID) (*domain.User, error) {
	return u.getOne(ctx, conn, `SELECT id, email, connection_id, created_at, modified_at FROM users WHERE id = $1`, id)
}

func (u *users) GetByEmail(ctx context.Context, conn db.Querier, email string) (*domain.User, error) {
	return u.getOne(ctx, conn, `SELECT id, email, connection_id, created_at, modified_at FROM users WHERE email = $1`, email)
}

// SetConnection makes connectionID the connection referenced by the user
func (u *users) SetConnection(ctx context.Context, conn db.Querier, userID uuid.UUID, connectionID string) error {
	cmd, err := conn.Exec(ctx, `UPDATE users SET connection_id = $2, modified_at = NOW() WHERE id = $1`, userID, connectionID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ports.ErrUserNotFound
	}
	return nil
}

func (u *users) getOne(ctx context.Context, conn db.Querier, sql string, arg any) (*domain.User, error) {
	user := domain.User{}
	err := conn.QueryRow(ctx, sql, arg).Scan(&user.ID, &user.Email, &user.ConnectionID, &user.CreatedAt, &user.ModifiedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ports.ErrUserNotFound
		}
		return nil, err
	}
	return &user, nil
}
