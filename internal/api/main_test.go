package api

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/polygonid/academic-bridge/internal/core/domain"
	"github.com/polygonid/academic-bridge/internal/core/ports"
	"github.com/polygonid/academic-bridge/internal/log"
)

func TestMain(m *testing.M) {
	log.Config(log.LevelDebug, log.OutputText, os.Stdout)
	os.Exit(m.Run())
}

func getHandler(server *Server) http.Handler {
	mux := chi.NewRouter()
	RegisterStatic(mux)
	usr, pass := authOk()
	return HandlerFromMux(server, mux, middleware.BasicAuth("academic", map[string]string{usr: pass}))
}

func authOk() (string, string) {
	return "user", "password"
}

func authWrong() (string, string) {
	return "", ""
}

type issuanceMock struct {
	result      *domain.IssuanceResult
	err         error
	reanchor    *domain.ReanchorResult
	reanchorErr error
	credentials []*domain.Credential
	filter      *ports.CredentialsFilter
	metadata    *domain.AnchorMetadata
	lastRequest *ports.IssueRequest
}

func (m *issuanceMock) Issue(_ context.Context, req *ports.IssueRequest) (*domain.IssuanceResult, error) {
	m.lastRequest = req
	return m.result, m.err
}

func (m *issuanceMock) Reanchor(_ context.Context, _ string) (*domain.ReanchorResult, error) {
	return m.reanchor, m.reanchorErr
}

func (m *issuanceMock) GetCredential(_ context.Context, id string) (*domain.Credential, error) {
	for _, c := range m.credentials {
		if c.ID == id {
			return c, nil
		}
	}
	return nil, ports.ErrCredentialNotFound
}

func (m *issuanceMock) GetCredentials(_ context.Context, filter *ports.CredentialsFilter) ([]*domain.Credential, uint, error) {
	m.filter = filter
	return m.credentials, uint(len(m.credentials)), nil
}

func (m *issuanceMock) GetMetadata(_ context.Context, _ string) (*domain.AnchorMetadata, error) {
	if m.metadata == nil {
		return nil, ports.ErrNotAnchored
	}
	return m.metadata, nil
}

type verificationMock struct {
	result *domain.VerificationResult
	err    error
}

func (m *verificationMock) Verify(_ context.Context, _ string) (*domain.VerificationResult, error) {
	return m.result, m.err
}

type connectionsMock struct {
	invitation  *domain.Invitation
	connection  *domain.Connection
	connections []*domain.Connection
	err         error
}

func (m *connectionsMock) EnsureActive(_ context.Context, id string, _ int) (*domain.EnsureActiveResult, error) {
	return &domain.EnsureActiveResult{ConnectionID: id, State: domain.ConnectionStateActive, Active: true}, nil
}

func (m *connectionsMock) SendInvitation(_ context.Context, _ string) (*domain.Invitation, error) {
	return m.invitation, m.err
}

func (m *connectionsMock) AcceptInvitation(_ context.Context, _ string, _ json.RawMessage) (*domain.Connection, error) {
	return m.connection, m.err
}

func (m *connectionsMock) Status(_ context.Context, _ string) (*domain.Connection, error) {
	return m.connection, m.err
}

func (m *connectionsMock) GetByUserEmail(_ context.Context, _ string) ([]*domain.Connection, error) {
	return m.connections, m.err
}

type definitionsMock struct {
	definition *domain.CredentialDefinition
	err        error
}

func (m *definitionsMock) Ensure(_ context.Context) (*domain.CredentialDefinition, error) {
	return m.definition, m.err
}

// agentMock only answers the capability check
type agentMock struct {
	ports.AgentGateway
	status *domain.AgentStatus
	err    error
}

func (m *agentMock) Status(_ context.Context) (*domain.AgentStatus, error) {
	return m.status, m.err
}
