package gateways

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/polygonid/academic-bridge/internal/core/domain"
	"github.com/polygonid/academic-bridge/internal/core/ports"
	"github.com/polygonid/academic-bridge/internal/log"
	pkghttp "github.com/polygonid/academic-bridge/pkg/http"
)

const (
	// APIKeyHeader carries the static admin api key
	APIKeyHeader = "X-API-Key"

	credentialPreviewType = "issue-credential/1.0/credential-preview"
)

// AgentConfig holds the agent gateway settings
type AgentConfig struct {
	URL             string
	HealthPath      string
	CredentialTrace bool
}

// Agent is a client of the identity agent admin API
type Agent struct {
	conn *pkghttp.Client
	cfg  AgentConfig
}

// NewAgent returns a new agent gateway. conn must already carry the api key header.
func NewAgent(conn *pkghttp.Client, cfg AgentConfig) *Agent {
	cfg.URL = strings.TrimRight(cfg.URL, "/")
	return &Agent{conn: conn, cfg: cfg}
}

type schemaRequest struct {
	SchemaName    string   `json:"schema_name"`
	SchemaVersion string   `json:"schema_version"`
	Attributes    []string `json:"attributes"`
}

type schemaResponse struct {
	SchemaID string `json:"schema_id"`
	Sent     *struct {
		SchemaID string `json:"schema_id"`
	} `json:"sent"`
}

type schemasCreatedResponse struct {
	SchemaIDs []string `json:"schema_ids"`
}

type credDefRequest struct {
	SchemaID          string `json:"schema_id"`
	Tag               string `json:"tag"`
	SupportRevocation bool   `json:"support_revocation"`
}

type credDefResponse struct {
	CredentialDefinitionID string `json:"credential_definition_id"`
	Sent                   *struct {
		CredentialDefinitionID string `json:"credential_definition_id"`
	} `json:"sent"`
}

type credDefsCreatedResponse struct {
	CredentialDefinitionIDs []string `json:"credential_definition_ids"`
}

type invitationResponse struct {
	ConnectionID  string          `json:"connection_id"`
	Invitation    json.RawMessage `json:"invitation"`
	InvitationURL string          `json:"invitation_url"`
}

type connectionResponse struct {
	ConnectionID string `json:"connection_id"`
	State        string `json:"state"`
	RFC23State   string `json:"rfc23_state"`
	TheirLabel   string `json:"their_label"`
	Alias        string `json:"alias"`
}

type credentialPreview struct {
	Type       string                       `json:"@type"`
	Attributes []domain.CredentialAttribute `json:"attributes"`
}

type sendCredentialRequest struct {
	AutoRemove             bool              `json:"auto_remove"`
	CredentialDefinitionID string            `json:"credential_definition_id"`
	CredentialProposal     credentialPreview `json:"credential_proposal"`
	ConnectionID           string            `json:"connection_id"`
	Trace                  bool              `json:"trace"`
}

type credentialExchangeResponse struct {
	CredentialExchangeID   string `json:"credential_exchange_id"`
	CredentialDefinitionID string `json:"credential_definition_id"`
	SchemaID               string `json:"schema_id"`
	ConnectionID           string `json:"connection_id"`
	State                  string `json:"state"`
	CreatedAt              string `json:"created_at"`
	CredentialProposalDict *struct {
		CredentialProposal credentialPreview `json:"credential_proposal"`
	} `json:"credential_proposal_dict"`
	CredentialOfferDict *struct {
		CredentialPreview credentialPreview `json:"credential_preview"`
	} `json:"credential_offer_dict"`
}

type statusResponse struct {
	Label   string `json:"label"`
	Version string `json:"version"`
}

type readyResponse struct {
	Ready *bool `json:"ready"`
}

// CreateSchema publishes a schema. If the agent reports it already exists the existing id is returned.
func (a *Agent) CreateSchema(ctx context.Context, name, version string, attributeNames []string) (string, error) {
	body, err := json.Marshal(schemaRequest{SchemaName: name, SchemaVersion: version, Attributes: attributeNames})
	if err != nil {
		return "", errors.WithStack(err)
	}
	log.Debug(ctx, "creating schema", "name", name, "version", version)
	resp, err := a.conn.Post(ctx, a.url("/schemas", nil), body)
	if err != nil {
		err = a.mapError("create schema", err)
		if !errors.Is(err, ports.ErrAgentRequest) {
			return "", err
		}
		// The agent answers with a client error when the schema exists. Try to recover its id.
		id, rErr := a.findSchema(ctx, name, version)
		if rErr != nil || id == "" {
			return "", fmt.Errorf("%w: %w", ports.ErrSchemaConflict, err)
		}
		log.Info(ctx, "schema already exists, reusing it", "schemaId", id)
		return id, nil
	}
	var sr schemaResponse
	if err := json.Unmarshal(resp, &sr); err != nil {
		return "", errors.Wrap(err, "decoding schema response")
	}
	if sr.SchemaID == "" && sr.Sent != nil {
		sr.SchemaID = sr.Sent.SchemaID
	}
	if sr.SchemaID == "" {
		return "", fmt.Errorf("%w: empty schema id", ports.ErrAgentRequest)
	}
	return sr.SchemaID, nil
}

func (a *Agent) findSchema(ctx context.Context, name, version string) (string, error) {
	resp, err := a.conn.Get(ctx, a.url("/schemas/created", url.Values{"schema_name": {name}, "schema_version": {version}}))
	if err != nil {
		return "", a.mapError("find schema", err)
	}
	var created schemasCreatedResponse
	if err := json.Unmarshal(resp, &created); err != nil {
		return "", errors.WithStack(err)
	}
	if len(created.SchemaIDs) == 0 {
		return "", nil
	}
	return created.SchemaIDs[0], nil
}

// CreateCredentialDefinition creates the credential definition of schemaID or returns the existing one
func (a *Agent) CreateCredentialDefinition(ctx context.Context, schemaID, tag string) (string, error) {
	body, err := json.Marshal(credDefRequest{SchemaID: schemaID, Tag: tag})
	if err != nil {
		return "", errors.WithStack(err)
	}
	log.Debug(ctx, "creating credential definition", "schemaId", schemaID, "tag", tag)
	resp, err := a.conn.Post(ctx, a.url("/credential-definitions", nil), body)
	if err != nil {
		err = a.mapError("create credential definition", err)
		if !errors.Is(err, ports.ErrAgentRequest) {
			return "", err
		}
		id, rErr := a.findCredentialDefinition(ctx, schemaID)
		if rErr != nil || id == "" {
			return "", fmt.Errorf("%w: %w", ports.ErrSchemaConflict, err)
		}
		log.Info(ctx, "credential definition already exists, reusing it", "credentialDefinitionId", id)
		return id, nil
	}
	var cr credDefResponse
	if err := json.Unmarshal(resp, &cr); err != nil {
		return "", errors.Wrap(err, "decoding credential definition response")
	}
	if cr.CredentialDefinitionID == "" && cr.Sent != nil {
		cr.CredentialDefinitionID = cr.Sent.CredentialDefinitionID
	}
	if cr.CredentialDefinitionID == "" {
		return "", fmt.Errorf("%w: empty credential definition id", ports.ErrAgentRequest)
	}
	return cr.CredentialDefinitionID, nil
}

func (a *Agent) findCredentialDefinition(ctx context.Context, schemaID string) (string, error) {
	resp, err := a.conn.Get(ctx, a.url("/credential-definitions/created", url.Values{"schema_id": {schemaID}}))
	if err != nil {
		return "", a.mapError("find credential definition", err)
	}
	var created credDefsCreatedResponse
	if err := json.Unmarshal(resp, &created); err != nil {
		return "", errors.WithStack(err)
	}
	if len(created.CredentialDefinitionIDs) == 0 {
		return "", nil
	}
	return created.CredentialDefinitionIDs[0], nil
}

// CreateInvitation creates a new connection invitation
func (a *Agent) CreateInvitation(ctx context.Context, alias string) (*domain.Invitation, error) {
	q := url.Values{}
	if alias != "" {
		q.Set("alias", alias)
	}
	resp, err := a.conn.Post(ctx, a.url("/connections/create-invitation", q), []byte("{}"))
	if err != nil {
		return nil, a.mapError("create invitation", err)
	}
	var ir invitationResponse
	if err := json.Unmarshal(resp, &ir); err != nil {
		return nil, errors.Wrap(err, "decoding invitation")
	}
	if ir.ConnectionID == "" {
		return nil, fmt.Errorf("%w: invitation without connection id", ports.ErrAgentRequest)
	}
	return &domain.Invitation{ConnectionID: ir.ConnectionID, InvitationURL: ir.InvitationURL, Payload: ir.Invitation}, nil
}

// ReceiveInvitation accepts an invitation created by another agent
func (a *Agent) ReceiveInvitation(ctx context.Context, payload json.RawMessage, alias string) (*domain.ConnectionRecord, error) {
	q := url.Values{}
	if alias != "" {
		q.Set("alias", alias)
	}
	resp, err := a.conn.Post(ctx, a.url("/connections/receive-invitation", q), payload)
	if err != nil {
		return nil, a.mapError("receive invitation", err)
	}
	var cr connectionResponse
	if err := json.Unmarshal(resp, &cr); err != nil {
		return nil, errors.Wrap(err, "decoding connection")
	}
	return toConnectionRecord(cr), nil
}

// GetConnectionState returns the normalized state of a connection
func (a *Agent) GetConnectionState(ctx context.Context, connectionID string) (domain.ConnectionState, error) {
	resp, err := a.conn.Get(ctx, a.url("/connections/"+url.PathEscape(connectionID), nil))
	if err != nil {
		if pkghttp.StatusCode(err) == http.StatusNotFound {
			return "", fmt.Errorf("%w: %s", ports.ErrConnectionNotFound, connectionID)
		}
		return "", a.mapError("get connection", err)
	}
	var cr connectionResponse
	if err := json.Unmarshal(resp, &cr); err != nil {
		return "", errors.Wrap(err, "decoding connection")
	}
	return toConnectionRecord(cr).State, nil
}

// RequestConnectionAdvance asks the agent to move a stalled connection forward.
// It accepts the invitation and falls back to a trust ping. Both are idempotent.
func (a *Agent) RequestConnectionAdvance(ctx context.Context, connectionID string) error {
	id := url.PathEscape(connectionID)
	_, err := a.conn.Post(ctx, a.url("/connections/"+id+"/accept-invitation", nil), nil)
	if err == nil {
		return nil
	}
	log.Debug(ctx, "accept invitation not possible, sending ping", "connectionId", connectionID, "err", err)
	if _, err := a.conn.Post(ctx, a.url("/connections/"+id+"/send-ping", nil), []byte(`{"comment":"nudge"}`)); err != nil {
		return a.mapError("advance connection", err)
	}
	return nil
}

// OfferCredential sends a credential to the connection. It is not idempotent: the caller must not retry it.
// ErrConnectionNotActive is returned when the agent refuses the offer because the connection is not active.
func (a *Agent) OfferCredential(ctx context.Context, connectionID, credentialDefinitionID string, attributes []domain.CredentialAttribute) (*domain.CredentialExchangeRecord, error) {
	body, err := json.Marshal(sendCredentialRequest{
		AutoRemove:             false,
		CredentialDefinitionID: credentialDefinitionID,
		CredentialProposal:     credentialPreview{Type: credentialPreviewType, Attributes: attributes},
		ConnectionID:           connectionID,
		Trace:                  a.cfg.CredentialTrace,
	})
	if err != nil {
		return nil, errors.WithStack(err)
	}
	resp, err := a.conn.Post(ctx, a.url("/issue-credential/send", nil), body)
	if err != nil {
		mapped := a.mapError("offer credential", err)
		if !errors.Is(mapped, ports.ErrAgentRequest) {
			return nil, mapped
		}
		// A client error is a connection not ready only if the connection is indeed not active
		state, sErr := a.GetConnectionState(ctx, connectionID)
		if errors.Is(sErr, ports.ErrConnectionNotFound) || (sErr == nil && !state.IsActive()) {
			return nil, fmt.Errorf("%w: %s in state %q: %w", ports.ErrConnectionNotActive, connectionID, state, err)
		}
		return nil, mapped
	}
	record, err := decodeCredentialExchange(resp)
	if err != nil {
		return nil, err
	}
	// Some agent versions do not echo the proposal. The stored record is what verification reads back,
	// so it is the one returned and hashed.
	if len(record.Attributes) == 0 {
		stored, err := a.GetCredentialExchange(ctx, record.CredentialExchangeID)
		if err != nil {
			log.Warn(ctx, "reading back offered credential", "credentialExchangeId", record.CredentialExchangeID, "err", err)
			return record, nil
		}
		return stored, nil
	}
	return record, nil
}

// GetCredentialExchange returns the credential exchange record kept by the agent
func (a *Agent) GetCredentialExchange(ctx context.Context, credentialExchangeID string) (*domain.CredentialExchangeRecord, error) {
	resp, err := a.conn.Get(ctx, a.url("/issue-credential/records/"+url.PathEscape(credentialExchangeID), nil))
	if err != nil {
		if pkghttp.StatusCode(err) == http.StatusNotFound {
			return nil, fmt.Errorf("%w: %s", ports.ErrCredentialNotFound, credentialExchangeID)
		}
		return nil, a.mapError("get credential exchange", err)
	}
	return decodeCredentialExchange(resp)
}

// Ping checks the configured health endpoint
func (a *Agent) Ping(ctx context.Context) error {
	resp, err := a.conn.Get(ctx, a.url(a.cfg.HealthPath, nil))
	if err != nil {
		return a.mapError("ping", err)
	}
	var ready readyResponse
	if json.Unmarshal(resp, &ready) == nil && ready.Ready != nil && !*ready.Ready {
		return fmt.Errorf("%w: agent not ready", ports.ErrAgentUnreachable)
	}
	return nil
}

// Status returns the agent label and version
func (a *Agent) Status(ctx context.Context) (*domain.AgentStatus, error) {
	resp, err := a.conn.Get(ctx, a.url("/status", nil))
	if err != nil {
		return nil, a.mapError("status", err)
	}
	var sr statusResponse
	if err := json.Unmarshal(resp, &sr); err != nil {
		return nil, errors.Wrap(err, "decoding status")
	}
	status := &domain.AgentStatus{Label: sr.Label, Version: sr.Version, Ready: true}
	if err := a.Ping(ctx); err != nil {
		status.Ready = false
	}
	return status, nil
}

func (a *Agent) url(path string, q url.Values) string {
	u := a.cfg.URL + path
	if len(q) > 0 {
		u += "?" + q.Encode()
	}
	return u
}

// mapError keeps the transport error in the chain behind the matching sentinel.
// Network errors and 5xx answers mean the agent is unreachable, 4xx answers mean the request was refused.
func (a *Agent) mapError(op string, err error) error {
	code := pkghttp.StatusCode(err)
	if code == 0 || code >= http.StatusInternalServerError {
		return fmt.Errorf("%s: %w: %w", op, ports.ErrAgentUnreachable, err)
	}
	return fmt.Errorf("%s: %w: %w", op, ports.ErrAgentRequest, err)
}

func toConnectionRecord(cr connectionResponse) *domain.ConnectionRecord {
	state := cr.State
	if state == "" {
		state = cr.RFC23State
	}
	return &domain.ConnectionRecord{
		ConnectionID: cr.ConnectionID,
		State:        domain.NormalizeConnectionState(state),
		TheirLabel:   cr.TheirLabel,
		Alias:        cr.Alias,
	}
}

var agentTimeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999Z",
	"2006-01-02 15:04:05Z",
}

func parseAgentTime(raw string) time.Time {
	for _, layout := range agentTimeLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}

func decodeCredentialExchange(resp []byte) (*domain.CredentialExchangeRecord, error) {
	var cr credentialExchangeResponse
	if err := json.Unmarshal(resp, &cr); err != nil {
		return nil, errors.Wrap(err, "decoding credential exchange")
	}
	if cr.CredentialExchangeID == "" {
		return nil, fmt.Errorf("%w: credential exchange without id", ports.ErrAgentRequest)
	}
	var attrs []domain.CredentialAttribute
	switch {
	case cr.CredentialProposalDict != nil && len(cr.CredentialProposalDict.CredentialProposal.Attributes) > 0:
		attrs = cr.CredentialProposalDict.CredentialProposal.Attributes
	case cr.CredentialOfferDict != nil:
		attrs = cr.CredentialOfferDict.CredentialPreview.Attributes
	}
	return &domain.CredentialExchangeRecord{
		CredentialExchangeID:   cr.CredentialExchangeID,
		CredentialDefinitionID: cr.CredentialDefinitionID,
		SchemaID:               cr.SchemaID,
		ConnectionID:           cr.ConnectionID,
		Attributes:             attrs,
		State:                  cr.State,
		IssuedAt:               parseAgentTime(cr.CreatedAt),
	}, nil
}
