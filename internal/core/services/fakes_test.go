package services

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"

	"github.com/polygonid/academic-bridge/internal/core/domain"
	"github.com/polygonid/academic-bridge/internal/core/ports"
	"github.com/polygonid/academic-bridge/internal/db"
)

type fakeAgent struct {
	mu sync.Mutex

	// states is consumed by GetConnectionState, the last one is repeated
	states       []domain.ConnectionState
	stateErr     error
	advanceCalls int
	stateCalls   int

	schemaCalls int
	defCalls    int
	schemaErr   error

	offerCalls int
	offerErr   error
	// activeOnly makes OfferCredential fail with ErrConnectionNotActive unless the last observed state is active
	activeOnly bool
	lastState  domain.ConnectionState
	records    map[string]*domain.CredentialExchangeRecord
	offered    [][]domain.CredentialAttribute

	invitations int
}

func newFakeAgent(states ...domain.ConnectionState) *fakeAgent {
	return &fakeAgent{states: states, records: map[string]*domain.CredentialExchangeRecord{}}
}

func (a *fakeAgent) CreateSchema(_ context.Context, name, version string, _ []string) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.schemaCalls++
	if a.schemaErr != nil {
		return "", a.schemaErr
	}
	return fmt.Sprintf("did:sov:issuer:2:%s:%s", name, version), nil
}

func (a *fakeAgent) CreateCredentialDefinition(_ context.Context, schemaID, tag string) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.defCalls++
	return fmt.Sprintf("did:sov:issuer:3:CL:%s:%s", schemaID, tag), nil
}

func (a *fakeAgent) CreateInvitation(_ context.Context, alias string) (*domain.Invitation, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.invitations++
	id := fmt.Sprintf("conn-%d", a.invitations)
	return &domain.Invitation{
		ConnectionID:  id,
		InvitationURL: "http://agent/invite?c_i=" + id,
		Payload:       json.RawMessage(`{"label":"` + alias + `"}`),
	}, nil
}

func (a *fakeAgent) ReceiveInvitation(_ context.Context, _ json.RawMessage, _ string) (*domain.ConnectionRecord, error) {
	return &domain.ConnectionRecord{ConnectionID: "received-1", State: domain.ConnectionStateRequest, TheirLabel: "Holder wallet"}, nil
}

func (a *fakeAgent) GetConnectionState(_ context.Context, _ string) (domain.ConnectionState, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.stateCalls++
	if a.stateErr != nil {
		return "", a.stateErr
	}
	if len(a.states) == 0 {
		return "", ports.ErrConnectionNotFound
	}
	state := a.states[0]
	if len(a.states) > 1 {
		a.states = a.states[1:]
	}
	a.lastState = state
	return state, nil
}

func (a *fakeAgent) RequestConnectionAdvance(_ context.Context, _ string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.advanceCalls++
	return nil
}

func (a *fakeAgent) OfferCredential(_ context.Context, connectionID, credDefID string, attrs []domain.CredentialAttribute) (*domain.CredentialExchangeRecord, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.offerCalls++
	a.offered = append(a.offered, attrs)
	if a.offerErr != nil {
		return nil, a.offerErr
	}
	if a.activeOnly && !a.lastState.IsActive() {
		return nil, fmt.Errorf("%w: state %s", ports.ErrConnectionNotActive, a.lastState)
	}
	rec := &domain.CredentialExchangeRecord{
		CredentialExchangeID:   fmt.Sprintf("cred-ex-%d", a.offerCalls),
		CredentialDefinitionID: credDefID,
		ConnectionID:           connectionID,
		Attributes:             attrs,
		State:                  "offer_sent",
		IssuedAt:               time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC),
	}
	a.records[rec.CredentialExchangeID] = rec
	return rec, nil
}

func (a *fakeAgent) GetCredentialExchange(_ context.Context, id string) (*domain.CredentialExchangeRecord, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	rec, ok := a.records[id]
	if !ok {
		return nil, ports.ErrCredentialNotFound
	}
	cp := *rec
	cp.State = "credential_acked"
	return &cp, nil
}

func (a *fakeAgent) Ping(_ context.Context) error { return nil }

func (a *fakeAgent) Status(_ context.Context) (*domain.AgentStatus, error) {
	return &domain.AgentStatus{Label: "fake", Ready: true}, nil
}

type fakeLedger struct {
	mu          sync.Mutex
	anchors     map[string]common.Hash
	metadata    map[string]domain.AnchorMetadata
	anchorErr   error
	anchorCalls int
	lookups     int
	block       uint64
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{anchors: map[string]common.Hash{}, metadata: map[string]domain.AnchorMetadata{}, block: 100}
}

func (l *fakeLedger) Anchor(_ context.Context, key string, hash common.Hash) (*domain.LedgerReceipt, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.anchorCalls++
	if l.anchorErr != nil {
		return nil, l.anchorErr
	}
	if _, ok := l.anchors[key]; ok {
		return nil, ports.ErrDuplicateKey
	}
	l.anchors[key] = hash
	l.block++
	return &domain.LedgerReceipt{
		TransactionRef: fmt.Sprintf("0x%064x", l.block),
		BlockRef:       l.block,
		AnchoredAt:     time.Now().UTC(),
	}, nil
}

func (l *fakeLedger) Lookup(_ context.Context, key string) (common.Hash, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.lookups++
	h, ok := l.anchors[key]
	if !ok {
		return common.Hash{}, ports.ErrNotAnchored
	}
	return h, nil
}

func (l *fakeLedger) StoreMetadata(_ context.Context, key string, metadata domain.AnchorMetadata) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.metadata[key] = metadata
	return nil
}

func (l *fakeLedger) GetMetadata(_ context.Context, key string) (*domain.AnchorMetadata, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	m, ok := l.metadata[key]
	if !ok {
		return nil, ports.ErrNotAnchored
	}
	return &m, nil
}

func (l *fakeLedger) Ping(_ context.Context) error { return nil }

func (l *fakeLedger) writes() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.anchors)
}

type memConnections struct {
	mu     sync.Mutex
	items  map[string]*domain.Connection
	writes int
}

func newMemConnections() *memConnections {
	return &memConnections{items: map[string]*domain.Connection{}}
}

func (r *memConnections) Save(_ context.Context, _ db.Querier, c *domain.Connection) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.writes++
	cp := *c
	r.items[c.ID] = &cp
	return nil
}

func (r *memConnections) GetByID(_ context.Context, _ db.Querier, id string) (*domain.Connection, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.items[id]
	if !ok {
		return nil, ports.ErrConnectionNotFound
	}
	cp := *c
	return &cp, nil
}

func (r *memConnections) GetByOwner(_ context.Context, _ db.Querier, owner uuid.UUID) ([]*domain.Connection, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.Connection
	for _, c := range r.items {
		if c.OwnerUserID != nil && *c.OwnerUserID == owner {
			cp := *c
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *memConnections) UpdateState(_ context.Context, _ db.Querier, id string, state domain.ConnectionState, stallCount int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.writes++
	c, ok := r.items[id]
	if !ok {
		return ports.ErrConnectionNotFound
	}
	c.State = state
	c.StallCount = stallCount
	return nil
}

func (r *memConnections) Supersede(_ context.Context, _ db.Querier, id string, by string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.items[id]
	if !ok {
		return ports.ErrConnectionNotFound
	}
	c.SupersededBy = &by
	return nil
}

type memUsers struct {
	mu    sync.Mutex
	items map[string]*domain.User
}

func newMemUsers() *memUsers {
	return &memUsers{items: map[string]*domain.User{}}
}

func (r *memUsers) Save(_ context.Context, _ db.Querier, u *domain.User) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *u
	r.items[u.Email] = &cp
	return u, nil
}

func (r *memUsers) GetByID(_ context.Context, _ db.Querier, id uuid.UUID) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.items {
		if u.ID == id {
			cp := *u
			return &cp, nil
		}
	}
	return nil, ports.ErrUserNotFound
}

func (r *memUsers) GetByEmail(_ context.Context, _ db.Querier, email string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.items[email]
	if !ok {
		return nil, ports.ErrUserNotFound
	}
	cp := *u
	return &cp, nil
}

func (r *memUsers) SetConnection(_ context.Context, _ db.Querier, userID uuid.UUID, connectionID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.items {
		if u.ID == userID {
			id := connectionID
			u.ConnectionID = &id
			return nil
		}
	}
	return ports.ErrUserNotFound
}

type memDefinitions struct {
	mu    sync.Mutex
	items map[string]*domain.CredentialDefinition
	gets  int
}

func newMemDefinitions() *memDefinitions {
	return &memDefinitions{items: map[string]*domain.CredentialDefinition{}}
}

func (r *memDefinitions) Save(_ context.Context, _ db.Querier, def *domain.CredentialDefinition) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items[def.SchemaName+":"+def.SchemaVersion] = def
	return nil
}

func (r *memDefinitions) Get(_ context.Context, _ db.Querier, name, version string) (*domain.CredentialDefinition, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.gets++
	def, ok := r.items[name+":"+version]
	if !ok {
		return nil, ports.ErrDefinitionNotFound
	}
	return def, nil
}

type memCredentials struct {
	mu    sync.Mutex
	items map[string]*domain.Credential
}

func newMemCredentials() *memCredentials {
	return &memCredentials{items: map[string]*domain.Credential{}}
}

func (r *memCredentials) Save(_ context.Context, _ db.Querier, c *domain.Credential) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *c
	r.items[c.ID] = &cp
	return nil
}

func (r *memCredentials) GetByID(_ context.Context, _ db.Querier, id string) (*domain.Credential, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.items[id]
	if !ok {
		return nil, ports.ErrCredentialNotFound
	}
	cp := *c
	return &cp, nil
}

func (r *memCredentials) GetAll(_ context.Context, _ db.Querier, filter *ports.CredentialsFilter) ([]*domain.Credential, uint, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.Credential
	for _, c := range r.items {
		if c.Status == filter.Status {
			cp := *c
			out = append(out, &cp)
		}
	}
	return out, uint(len(out)), nil
}

type chanNotifier struct {
	ch  chan *domain.IssuedNotification
	err error
}

func newChanNotifier() *chanNotifier {
	return &chanNotifier{ch: make(chan *domain.IssuedNotification, 8)}
}

func (n *chanNotifier) CredentialIssued(_ context.Context, notification *domain.IssuedNotification) error {
	n.ch <- notification
	return n.err
}

type fakeWebhook struct {
	mu   sync.Mutex
	sent []*domain.IssuedNotification
	err  error
}

func (w *fakeWebhook) Send(_ context.Context, n *domain.IssuedNotification) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.sent = append(w.sent, n)
	return w.err
}
