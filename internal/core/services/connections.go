package services

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/jackc/pgx/v4"

	"github.com/polygonid/academic-bridge/internal/core/domain"
	"github.com/polygonid/academic-bridge/internal/core/ports"
	"github.com/polygonid/academic-bridge/internal/db"
	"github.com/polygonid/academic-bridge/internal/log"
	"github.com/polygonid/academic-bridge/internal/metrics"
)

// ConnectionsConfig drives the activation polling of ensure active
type ConnectionsConfig struct {
	StallInterval      time.Duration
	MaxStallInterval   time.Duration
	AbandonAfterStalls int
}

type connections struct {
	agent     ports.AgentGateway
	connRepo  ports.ConnectionsRepository
	usersRepo ports.UsersRepository
	storage   db.Querier
	metrics   *metrics.Metrics
	cfg       ConnectionsConfig
}

// NewConnections returns the connection lifecycle manager
func NewConnections(agent ports.AgentGateway, connRepo ports.ConnectionsRepository, usersRepo ports.UsersRepository, storage db.Querier, m *metrics.Metrics, cfg ConnectionsConfig) ports.ConnectionsService {
	if cfg.MaxStallInterval < cfg.StallInterval {
		cfg.MaxStallInterval = cfg.StallInterval
	}
	return &connections{
		agent:     agent,
		connRepo:  connRepo,
		usersRepo: usersRepo,
		storage:   storage,
		metrics:   m,
		cfg:       cfg,
	}
}

// EnsureActive observes the connection and nudges it towards the active state.
// Every cycle fetches the state, nudges when it is stuck in invitation, waits and fetches again.
// When maxAttempts cycles are exhausted the last observed state is returned with Active false and no error.
// A connection found active on the first fetch is not written unless its stored record is stale.
// The waits grow exponentially and are cancelled with ctx.
func (c *connections) EnsureActive(ctx context.Context, connectionID string, maxAttempts int) (*domain.EnsureActiveResult, error) {
	ctx = log.With(ctx, "connectionId", connectionID)
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	result := &domain.EnsureActiveResult{ConnectionID: connectionID}

	local, err := c.connRepo.GetByID(ctx, c.storage, connectionID)
	if err != nil {
		if !errors.Is(err, ports.ErrConnectionNotFound) {
			log.Warn(ctx, "loading local connection", "err", err)
		}
		local = nil
	}
	if local != nil && c.abandoned(local) {
		log.Info(ctx, "connection abandoned, skipping agent", "stallCount", local.StallCount)
		result.State = domain.ConnectionStateAbandoned
		return result, nil
	}

	defer func() { c.metrics.ObserveEnsureActiveAttempts(result.Attempts) }()

	state, err := c.observe(ctx, result)
	if err != nil {
		return result, err
	}
	if state.IsActive() && (local == nil || (local.State == state && local.StallCount == 0)) {
		return result, nil
	}

	bo := c.newBackOff()
	for cycle := 0; !state.IsTerminal() && cycle < maxAttempts; cycle++ {
		switch state {
		case domain.ConnectionStateInvitation:
			result.Nudges++
			c.metrics.IncrementNudges()
			if err := c.agent.RequestConnectionAdvance(ctx, connectionID); err != nil {
				log.Warn(ctx, "requesting connection advance", "err", err)
			}
		case domain.ConnectionStateRequest:
			log.Debug(ctx, "connection request is processed by the agent, waiting")
		default:
			log.Debug(ctx, "connection in transient state, waiting", "state", state)
		}

		if err := sleep(ctx, bo.NextBackOff()); err != nil {
			return result, err
		}

		if state, err = c.observe(ctx, result); err != nil {
			return result, err
		}
	}

	c.persist(ctx, local, result)
	return result, nil
}

type invitee struct {
	Email string `json:"email" validate:"required,email"`
}

// SendInvitation creates an invitation for the user with the given email, creating the user if needed.
// The new connection replaces the one the user referenced before.
func (c *connections) SendInvitation(ctx context.Context, email string) (*domain.Invitation, error) {
	if err := validate(&invitee{Email: email}); err != nil {
		return nil, err
	}
	ctx = log.With(ctx, "email", email)
	user, err := c.userByEmail(ctx, email)
	if err != nil {
		return nil, err
	}

	invitation, err := c.agent.CreateInvitation(ctx, email)
	if err != nil {
		log.Error(ctx, "creating invitation", "err", err)
		return nil, err
	}

	connection := domain.NewConnection(invitation.ConnectionID, &user.ID, email, domain.ConnectionStateInvitation, invitation.Payload)
	connection.InvitationURL = invitation.InvitationURL
	if err := c.link(ctx, user, connection); err != nil {
		log.Error(ctx, "saving invitation connection", "err", err, "connectionId", connection.ID)
		return nil, err
	}

	log.Info(ctx, "invitation created", "connectionId", connection.ID)
	return invitation, nil
}

// AcceptInvitation hands an invitation created by a holder to the agent and tracks the resulting connection
func (c *connections) AcceptInvitation(ctx context.Context, email string, payload json.RawMessage) (*domain.Connection, error) {
	if err := validate(&invitee{Email: email}); err != nil {
		return nil, err
	}
	ctx = log.With(ctx, "email", email)
	user, err := c.userByEmail(ctx, email)
	if err != nil {
		return nil, err
	}

	record, err := c.agent.ReceiveInvitation(ctx, payload, email)
	if err != nil {
		log.Error(ctx, "receiving invitation", "err", err)
		return nil, err
	}

	connection := domain.NewConnection(record.ConnectionID, &user.ID, email, record.State, payload)
	if record.TheirLabel != "" {
		connection.CounterpartyAlias = record.TheirLabel
	}
	if err := c.link(ctx, user, connection); err != nil {
		log.Error(ctx, "saving accepted connection", "err", err, "connectionId", connection.ID)
		return nil, err
	}
	return connection, nil
}

// Status refreshes the state of the connection from the agent
func (c *connections) Status(ctx context.Context, connectionID string) (*domain.Connection, error) {
	ctx = log.With(ctx, "connectionId", connectionID)
	state, err := c.agent.GetConnectionState(ctx, connectionID)
	if err != nil {
		return nil, err
	}

	connection, err := c.connRepo.GetByID(ctx, c.storage, connectionID)
	if err != nil {
		if !errors.Is(err, ports.ErrConnectionNotFound) {
			log.Warn(ctx, "loading local connection", "err", err)
		}
		return domain.NewConnection(connectionID, nil, "", state, nil), nil
	}

	if connection.State != state && connection.State != domain.ConnectionStateAbandoned {
		connection.State = state
		connection.ModifiedAt = time.Now().UTC()
		if err := c.connRepo.UpdateState(ctx, c.storage, connectionID, state, connection.StallCount); err != nil {
			log.Warn(ctx, "updating connection state", "err", err)
		}
	}
	return connection, nil
}

// GetByUserEmail returns the connections tracked for the user
func (c *connections) GetByUserEmail(ctx context.Context, email string) ([]*domain.Connection, error) {
	user, err := c.usersRepo.GetByEmail(ctx, c.storage, email)
	if err != nil {
		return nil, err
	}
	return c.connRepo.GetByOwner(ctx, c.storage, user.ID)
}

func (c *connections) abandoned(conn *domain.Connection) bool {
	if conn.State == domain.ConnectionStateAbandoned {
		return true
	}
	return c.cfg.AbandonAfterStalls > 0 && conn.StallCount >= c.cfg.AbandonAfterStalls
}

func (c *connections) observe(ctx context.Context, result *domain.EnsureActiveResult) (domain.ConnectionState, error) {
	result.Attempts++
	state, err := c.agent.GetConnectionState(ctx, result.ConnectionID)
	if err != nil {
		log.Warn(ctx, "fetching connection state", "err", err, "attempt", result.Attempts)
		return "", err
	}
	log.Debug(ctx, "connection state observed", "state", state, "attempt", result.Attempts)
	result.State = state
	result.Active = state.IsActive()
	return state, nil
}

// persist stores the outcome of an ensure active run. A run that does not reach the active state counts as a stall.
func (c *connections) persist(ctx context.Context, local *domain.Connection, result *domain.EnsureActiveResult) {
	stalls := 0
	if local != nil {
		stalls = local.StallCount
	}
	switch {
	case result.State.IsActive():
		stalls = 0
	case result.State == domain.ConnectionStateAbandoned:
	default:
		stalls++
		if c.cfg.AbandonAfterStalls > 0 && stalls >= c.cfg.AbandonAfterStalls {
			log.Warn(ctx, "connection abandoned after repeated stalls", "stallCount", stalls, "lastState", result.State)
			c.metrics.IncrementAbandoned()
			result.State = domain.ConnectionStateAbandoned
		}
	}

	var err error
	if local == nil {
		conn := domain.NewConnection(result.ConnectionID, nil, "", result.State, nil)
		conn.StallCount = stalls
		err = c.connRepo.Save(ctx, c.storage, conn)
	} else {
		err = c.connRepo.UpdateState(ctx, c.storage, result.ConnectionID, result.State, stalls)
	}
	if err != nil {
		log.Warn(ctx, "persisting connection state", "err", err, "state", result.State)
	}
}

func (c *connections) userByEmail(ctx context.Context, email string) (*domain.User, error) {
	user, err := c.usersRepo.GetByEmail(ctx, c.storage, email)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, ports.ErrUserNotFound) {
		return nil, err
	}
	return c.usersRepo.Save(ctx, c.storage, domain.NewUser(email))
}

// link saves the connection and makes it the one referenced by the user. The previous one is superseded.
func (c *connections) link(ctx context.Context, user *domain.User, connection *domain.Connection) error {
	return withTx(ctx, c.storage, func(tx db.Querier) error {
		if err := c.connRepo.Save(ctx, tx, connection); err != nil {
			return err
		}
		if err := c.usersRepo.SetConnection(ctx, tx, user.ID, connection.ID); err != nil {
			return err
		}
		if user.ConnectionID != nil && *user.ConnectionID != connection.ID {
			if err := c.connRepo.Supersede(ctx, tx, *user.ConnectionID, connection.ID); err != nil && !errors.Is(err, ports.ErrConnectionNotFound) {
				return err
			}
		}
		user.ConnectionID = &connection.ID
		return nil
	})
}

func (c *connections) newBackOff() *backoff.ExponentialBackOff {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = c.cfg.StallInterval
	bo.MaxInterval = c.cfg.MaxStallInterval
	bo.RandomizationFactor = 0
	bo.MaxElapsedTime = 0
	bo.Reset()
	return bo
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// withTx runs f inside a transaction of conn. A nil conn runs f without one.
func withTx(ctx context.Context, conn db.Querier, f func(db.Querier) error) error {
	if conn == nil {
		return f(nil)
	}
	return conn.BeginFunc(ctx, func(tx pgx.Tx) error {
		return f(tx)
	})
}
