package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/polygonid/academic-bridge/internal/core/domain"
	"github.com/polygonid/academic-bridge/internal/core/ports"
	"github.com/polygonid/academic-bridge/internal/log"
)

// GenericErrorMessage defines model for GenericErrorMessage.
type GenericErrorMessage struct {
	Message string `json:"message"`
}

// Error responses shared by every operation
type (
	N400JSONResponse GenericErrorMessage
	N404JSONResponse GenericErrorMessage
	N409JSONResponse GenericErrorMessage
	N500JSONResponse GenericErrorMessage
	N502JSONResponse GenericErrorMessage
)

// FieldError defines model for a rejected request field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationErrorMessage is returned when the request body does not pass validation
type ValidationErrorMessage struct {
	Message string       `json:"message"`
	Fields  []FieldError `json:"fields"`
}

// N400ValidationJSONResponse lists every invalid field
type N400ValidationJSONResponse ValidationErrorMessage

// IssueCredentialRequest defines model for IssueCredentialRequest.
type IssueCredentialRequest = ports.IssueRequest

// IssuanceResponse defines model for IssuanceResponse.
type IssuanceResponse struct {
	CredentialExchangeID string                `json:"credentialExchangeId,omitempty"`
	Status               domain.IssuanceStatus `json:"status"`
	ConnectionState      string                `json:"connectionState,omitempty"`
	ContentHash          *string               `json:"contentHash,omitempty"`
	LedgerReceipt        *domain.LedgerReceipt `json:"ledgerReceipt,omitempty"`
	Error                *string               `json:"error,omitempty"`
}

// CredentialExchange defines model for the agent view of an issued credential.
type CredentialExchange struct {
	CredentialExchangeID   string                       `json:"credentialExchangeId"`
	CredentialDefinitionID string                       `json:"credentialDefinitionId"`
	SchemaID               string                       `json:"schemaId,omitempty"`
	ConnectionID           string                       `json:"connectionId"`
	Attributes             []domain.CredentialAttribute `json:"attributes"`
	State                  string                       `json:"state,omitempty"`
	IssuedAt               time.Time                    `json:"issuedAt"`
}

// VerificationResponse defines model for VerificationResponse.
type VerificationResponse struct {
	CredentialExchangeID string                    `json:"credentialExchangeId"`
	Status               domain.VerificationStatus `json:"status"`
	Verified             bool                      `json:"verified"`
	StoredHash           *string                   `json:"storedHash,omitempty"`
	RecomputedHash       *string                   `json:"recomputedHash,omitempty"`
	Credential           *CredentialExchange       `json:"credential,omitempty"`
}

// ReanchorResponse defines model for ReanchorResponse.
type ReanchorResponse struct {
	CredentialExchangeID string                `json:"credentialExchangeId"`
	Status               domain.ReanchorStatus `json:"status"`
	ContentHash          string                `json:"contentHash"`
	StoredHash           *string               `json:"storedHash,omitempty"`
	LedgerReceipt        *domain.LedgerReceipt `json:"ledgerReceipt,omitempty"`
}

// Credential defines model for the local issuance record.
type Credential struct {
	ID                     string                       `json:"id"`
	ConnectionID           string                       `json:"connectionId"`
	CredentialDefinitionID string                       `json:"credentialDefinitionId"`
	Attributes             []domain.CredentialAttribute `json:"attributes"`
	ContentHash            *string                      `json:"contentHash,omitempty"`
	Status                 domain.IssuanceStatus        `json:"status"`
	TransactionRef         *string                      `json:"transactionRef,omitempty"`
	BlockRef               *uint64                      `json:"blockRef,omitempty"`
	Error                  *string                      `json:"error,omitempty"`
	IssuedAt               time.Time                    `json:"issuedAt"`
	AnchoredAt             *time.Time                   `json:"anchoredAt,omitempty"`
}

// CredentialsPaginated defines model for CredentialsPaginated.
type CredentialsPaginated struct {
	Items []Credential      `json:"items"`
	Meta  PaginatedMetadata `json:"meta"`
}

// PaginatedMetadata defines model for PaginatedMetadata.
type PaginatedMetadata struct {
	MaxResults uint `json:"max_results"`
	Page       uint `json:"page"`
	Total      uint `json:"total"`
}

// SendInvitationRequest defines model for SendInvitationRequest.
type SendInvitationRequest struct {
	Email string `json:"email"`
}

// AcceptInvitationRequest defines model for AcceptInvitationRequest.
type AcceptInvitationRequest struct {
	Email      string          `json:"email"`
	Invitation json.RawMessage `json:"invitation"`
}

// InvitationResponse defines model for InvitationResponse.
type InvitationResponse struct {
	ConnectionID  string          `json:"connectionId"`
	InvitationURL string          `json:"invitationUrl"`
	Invitation    json.RawMessage `json:"invitation,omitempty"`
}

// ConnectionResponse defines model for ConnectionResponse.
type ConnectionResponse struct {
	ID                string                 `json:"id"`
	State             domain.ConnectionState `json:"state"`
	CounterpartyAlias string                 `json:"counterpartyAlias,omitempty"`
	InvitationURL     string                 `json:"invitationUrl,omitempty"`
	StallCount        int                    `json:"stallCount"`
	SupersededBy      *string                `json:"supersededBy,omitempty"`
	CreatedAt         time.Time              `json:"createdAt"`
	ModifiedAt        time.Time              `json:"modifiedAt"`
}

// HealthResponse defines model for HealthResponse.
type HealthResponse struct {
	Healthy bool                `json:"healthy"`
	Status  map[string]bool     `json:"status"`
	Agent   *domain.AgentStatus `json:"agent,omitempty"`
}

// Typed success responses
type (
	IssueCredential201JSONResponse       IssuanceResponse
	IssueCredential202JSONResponse       IssuanceResponse
	IssueCredential409JSONResponse       IssuanceResponse
	IssueCredential502JSONResponse       IssuanceResponse
	VerifyCredential200JSONResponse      VerificationResponse
	VerifyCredential404JSONResponse      VerificationResponse
	SendInvitation201JSONResponse        InvitationResponse
	AcceptInvitation201JSONResponse      ConnectionResponse
	GetConnectionStatus200JSONResponse   ConnectionResponse
	GetConnections200JSONResponse        []ConnectionResponse
	CreateSchema201JSONResponse          domain.CredentialDefinition
	GetCredentials200JSONResponse        CredentialsPaginated
	GetCredential200JSONResponse         Credential
	GetCredentialMetadata200JSONResponse domain.AnchorMetadata
	ReanchorCredential200JSONResponse    ReanchorResponse
	Health200JSONResponse                HealthResponse
	Health503JSONResponse                HealthResponse
)

// Response is an operation result that knows how to write itself
type Response interface {
	visit(w http.ResponseWriter) error
}

func writeJSON(w http.ResponseWriter, status int, body any) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	return json.NewEncoder(w).Encode(body)
}

func (r N400JSONResponse) visit(w http.ResponseWriter) error {
	return writeJSON(w, http.StatusBadRequest, r)
}
func (r N404JSONResponse) visit(w http.ResponseWriter) error {
	return writeJSON(w, http.StatusNotFound, r)
}
func (r N409JSONResponse) visit(w http.ResponseWriter) error {
	return writeJSON(w, http.StatusConflict, r)
}
func (r N500JSONResponse) visit(w http.ResponseWriter) error {
	return writeJSON(w, http.StatusInternalServerError, r)
}
func (r N502JSONResponse) visit(w http.ResponseWriter) error {
	return writeJSON(w, http.StatusBadGateway, r)
}
func (r N400ValidationJSONResponse) visit(w http.ResponseWriter) error {
	return writeJSON(w, http.StatusBadRequest, r)
}

func (r IssueCredential201JSONResponse) visit(w http.ResponseWriter) error {
	return writeJSON(w, http.StatusCreated, r)
}

func (r IssueCredential202JSONResponse) visit(w http.ResponseWriter) error {
	return writeJSON(w, http.StatusAccepted, r)
}

func (r IssueCredential409JSONResponse) visit(w http.ResponseWriter) error {
	return writeJSON(w, http.StatusConflict, r)
}

func (r IssueCredential502JSONResponse) visit(w http.ResponseWriter) error {
	return writeJSON(w, http.StatusBadGateway, r)
}

func (r VerifyCredential200JSONResponse) visit(w http.ResponseWriter) error {
	return writeJSON(w, http.StatusOK, r)
}

func (r VerifyCredential404JSONResponse) visit(w http.ResponseWriter) error {
	return writeJSON(w, http.StatusNotFound, r)
}

func (r SendInvitation201JSONResponse) visit(w http.ResponseWriter) error {
	return writeJSON(w, http.StatusCreated, r)
}

func (r AcceptInvitation201JSONResponse) visit(w http.ResponseWriter) error {
	return writeJSON(w, http.StatusCreated, r)
}

func (r GetConnectionStatus200JSONResponse) visit(w http.ResponseWriter) error {
	return writeJSON(w, http.StatusOK, r)
}

func (r GetConnections200JSONResponse) visit(w http.ResponseWriter) error {
	return writeJSON(w, http.StatusOK, r)
}

func (r CreateSchema201JSONResponse) visit(w http.ResponseWriter) error {
	return writeJSON(w, http.StatusCreated, r)
}

func (r GetCredentials200JSONResponse) visit(w http.ResponseWriter) error {
	return writeJSON(w, http.StatusOK, r)
}

func (r GetCredential200JSONResponse) visit(w http.ResponseWriter) error {
	return writeJSON(w, http.StatusOK, r)
}

func (r GetCredentialMetadata200JSONResponse) visit(w http.ResponseWriter) error {
	return writeJSON(w, http.StatusOK, r)
}

func (r ReanchorCredential200JSONResponse) visit(w http.ResponseWriter) error {
	return writeJSON(w, http.StatusOK, r)
}

func (r Health200JSONResponse) visit(w http.ResponseWriter) error {
	return writeJSON(w, http.StatusOK, r)
}
func (r Health503JSONResponse) visit(w http.ResponseWriter) error {
	return writeJSON(w, http.StatusServiceUnavailable, r)
}

// Request objects
type (
	IssueCredentialRequestObject struct {
		Body *IssueCredentialRequest
	}
	VerifyCredentialRequestObject struct {
		ID string
	}
	SendInvitationRequestObject struct {
		Body *SendInvitationRequest
	}
	AcceptInvitationRequestObject struct {
		Body *AcceptInvitationRequest
	}
	GetConnectionStatusRequestObject struct {
		ID string
	}
	GetConnectionsRequestObject struct {
		Email string
	}
	CreateSchemaRequestObject   struct{}
	GetCredentialsRequestObject struct {
		Status     string
		Sort       string
		MaxResults *uint
		Page       *uint
	}
	GetCredentialRequestObject struct {
		ID string
	}
	GetCredentialMetadataRequestObject struct {
		ID string
	}
	ReanchorCredentialRequestObject struct {
		ID string
	}
	HealthRequestObject struct{}
)

// InvalidParamFormatError is returned when a request parameter or body cannot be decoded
type InvalidParamFormatError struct {
	ParamName string
	Err       error
}

func (e *InvalidParamFormatError) Error() string {
	return fmt.Sprintf("Invalid format for parameter %s: %s", e.ParamName, e.Err.Error())
}

func (e *InvalidParamFormatError) Unwrap() error {
	return e.Err
}

// ErrorHandlerFunc is an error adapter for the API. It is used to standardize errors happening while decoding requests
func ErrorHandlerFunc(w http.ResponseWriter, _ *http.Request, err error) {
	var invalidParamFormatError *InvalidParamFormatError
	switch {
	case errors.As(err, &invalidParamFormatError):
		_ = writeJSON(w, http.StatusBadRequest, GenericErrorMessage{Message: err.Error()})
	default:
		_ = writeJSON(w, http.StatusInternalServerError, GenericErrorMessage{Message: err.Error()})
	}
}

type operation func(ctx context.Context, r *http.Request) (Response, error)

func serve(op operation) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp, err := op(r.Context(), r)
		if err != nil {
			ErrorHandlerFunc(w, r, err)
			return
		}
		if err := resp.visit(w); err != nil {
			log.Error(r.Context(), "writing response", "err", err)
		}
	}
}

func decodeBody[T any](r *http.Request) (*T, error) {
	var body T
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		return nil, &InvalidParamFormatError{ParamName: "body", Err: err}
	}
	return &body, nil
}

func queryUint(r *http.Request, name string) (*uint, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseUint(raw, 10, 32)
	if err != nil {
		return nil, &InvalidParamFormatError{ParamName: name, Err: err}
	}
	u := uint(v)
	return &u, nil
}

// HandlerFromMux registers the academic operations in r. The health endpoint is public,
// the rest go through the given middlewares.
func HandlerFromMux(s *Server, r chi.Router, middlewares ...func(http.Handler) http.Handler) http.Handler {
	r.Get("/academic/health", serve(func(ctx context.Context, _ *http.Request) (Response, error) {
		return s.Health(ctx, HealthRequestObject{})
	}))

	r.Group(func(r chi.Router) {
		r.Use(middlewares...)

		r.Post("/academic/issue", serve(func(ctx context.Context, req *http.Request) (Response, error) {
			body, err := decodeBody[IssueCredentialRequest](req)
			if err != nil {
				return nil, err
			}
			return s.IssueCredential(ctx, IssueCredentialRequestObject{Body: body})
		}))
		r.Get("/academic/verify/{id}", serve(func(ctx context.Context, req *http.Request) (Response, error) {
			return s.VerifyCredential(ctx, VerifyCredentialRequestObject{ID: chi.URLParam(req, "id")})
		}))
		r.Post("/academic/schema", serve(func(ctx context.Context, _ *http.Request) (Response, error) {
			return s.CreateSchema(ctx, CreateSchemaRequestObject{})
		}))

		r.Get("/academic/connections", serve(func(ctx context.Context, req *http.Request) (Response, error) {
			return s.GetConnections(ctx, GetConnectionsRequestObject{Email: req.URL.Query().Get("email")})
		}))
		r.Post("/academic/connections/send-invitation", serve(func(ctx context.Context, req *http.Request) (Response, error) {
			body, err := decodeBody[SendInvitationRequest](req)
			if err != nil {
				return nil, err
			}
			return s.SendInvitation(ctx, SendInvitationRequestObject{Body: body})
		}))
		r.Post("/academic/connections/accept-invitation", serve(func(ctx context.Context, req *http.Request) (Response, error) {
			body, err := decodeBody[AcceptInvitationRequest](req)
			if err != nil {
				return nil, err
			}
			return s.AcceptInvitation(ctx, AcceptInvitationRequestObject{Body: body})
		}))
		r.Get("/academic/connections/{id}/status", serve(func(ctx context.Context, req *http.Request) (Response, error) {
			return s.GetConnectionStatus(ctx, GetConnectionStatusRequestObject{ID: chi.URLParam(req, "id")})
		}))

		r.Get("/academic/credentials", serve(func(ctx context.Context, req *http.Request) (Response, error) {
			maxResults, err := queryUint(req, "max_results")
			if err != nil {
				return nil, err
			}
			page, err := queryUint(req, "page")
			if err != nil {
				return nil, err
			}
			return s.GetCredentials(ctx, GetCredentialsRequestObject{
				Status:     req.URL.Query().Get("status"),
				Sort:       req.URL.Query().Get("sort"),
				MaxResults: maxResults,
				Page:       page,
			})
		}))
		r.Get("/academic/credentials/{id}", serve(func(ctx context.Context, req *http.Request) (Response, error) {
			return s.GetCredential(ctx, GetCredentialRequestObject{ID: chi.URLParam(req, "id")})
		}))
		r.Get("/academic/credentials/{id}/metadata", serve(func(ctx context.Context, req *http.Request) (Response, error) {
			return s.GetCredentialMetadata(ctx, GetCredentialMetadataRequestObject{ID: chi.URLParam(req, "id")})
		}))
		r.Post("/academic/credentials/{id}/anchor", serve(func(ctx context.Context, req *http.Request) (Response, error) {
			return s.ReanchorCredential(ctx, ReanchorCredentialRequestObject{ID: chi.URLParam(req, "id")})
		}))
	})
	return r
}
