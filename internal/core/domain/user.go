package domain

import (
	"time"

	"github.com/google/uuid"
)

// User is a holder of the platform. The active connection is referenced, not embedded.
type User struct {
	ID           uuid.UUID
	Email        string
	ConnectionID *string
	CreatedAt    time.Time
	ModifiedAt   time.Time
}

// NewUser creates a user for the given email
func NewUser(email string) *User {
	now := time.Now().UTC()
	return &User{
		ID:         uuid.New(),
		Email:      email,
		CreatedAt:  now,
		ModifiedAt: now,
	}
}
