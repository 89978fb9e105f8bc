package domain

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ConnectionState is the lifecycle state of a pairwise connection as observed on the agent
type ConnectionState string

// Connection states. Active and Abandoned are terminal.
const (
	ConnectionStateInvitation ConnectionState = "invitation"
	ConnectionStateRequest    ConnectionState = "request"
	ConnectionStateResponse   ConnectionState = "response"
	ConnectionStateActive     ConnectionState = "active"
	ConnectionStateAbandoned  ConnectionState = "abandoned"
)

// NormalizeConnectionState maps the state names reported by the agent (both the
// legacy and the rfc23 flavours) onto the lifecycle states. Unknown values are
// returned as they are, lowercased.
func NormalizeConnectionState(raw string) ConnectionState {
	s := strings.ToLower(strings.TrimSpace(raw))
	switch s {
	case "invitation", "invitation-sent", "invitation-received", "start", "init":
		return ConnectionStateInvitation
	case "request", "request-sent", "request-received":
		return ConnectionStateRequest
	case "response", "response-sent", "response-received":
		return ConnectionStateResponse
	case "active", "completed", "complete":
		return ConnectionStateActive
	case "abandoned", "error":
		return ConnectionStateAbandoned
	}
	return ConnectionState(s)
}

// IsActive tells whether credentials can be offered over the connection
func (s ConnectionState) IsActive() bool {
	return s == ConnectionStateActive
}

// IsTerminal returns true for active and abandoned
func (s ConnectionState) IsTerminal() bool {
	return s == ConnectionStateActive || s == ConnectionStateAbandoned
}

// Known returns false for states the agent reported that are not part of the lifecycle
func (s ConnectionState) Known() bool {
	switch s {
	case ConnectionStateInvitation, ConnectionStateRequest, ConnectionStateResponse, ConnectionStateActive, ConnectionStateAbandoned:
		return true
	}
	return false
}

// Connection is a relationship between the issuer and a holder. ID is assigned by the agent.
type Connection struct {
	ID                string
	OwnerUserID       *uuid.UUID
	CounterpartyAlias string
	State             ConnectionState
	InvitationPayload json.RawMessage
	InvitationURL     string
	StallCount        int
	SupersededBy      *string
	CreatedAt         time.Time
	ModifiedAt        time.Time
}

// NewConnection returns a connection in the given state
func NewConnection(id string, owner *uuid.UUID, alias string, state ConnectionState, payload json.RawMessage) *Connection {
	now := time.Now().UTC()
	return &Connection{
		ID:                id,
		OwnerUserID:       owner,
		CounterpartyAlias: alias,
		State:             state,
		InvitationPayload: payload,
		CreatedAt:         now,
		ModifiedAt:        now,
	}
}

// Invitation is the result of creating an out of band invitation on the agent
type Invitation struct {
	ConnectionID  string
	InvitationURL string
	Payload       json.RawMessage
}

// ConnectionRecord is the agent view of a connection
type ConnectionRecord struct {
	ConnectionID string
	State        ConnectionState
	TheirLabel   string
	Alias        string
}

// EnsureActiveResult is what the lifecycle manager observed while driving a connection.
// Active is false when the attempts were exhausted; that is not an error.
type EnsureActiveResult struct {
	ConnectionID string
	State        ConnectionState
	Attempts     int
	Nudges       int
	Active       bool
}
