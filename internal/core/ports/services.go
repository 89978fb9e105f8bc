package ports

import (
	"context"
	"encoding/json"

	"github.com/polygonid/academic-bridge/internal/core/domain"
	"github.com/polygonid/academic-bridge/internal/sqltools"
	"github.com/polygonid/academic-bridge/pkg/pagination"
	"github.com/polygonid/academic-bridge/pkg/pubsub"
)

// ConnectionsService drives connections from invitation to the active state
type ConnectionsService interface {
	EnsureActive(ctx context.Context, connectionID string, maxAttempts int) (*domain.EnsureActiveResult, error)
	SendInvitation(ctx context.Context, email string) (*domain.Invitation, error)
	AcceptInvitation(ctx context.Context, email string, payload json.RawMessage) (*domain.Connection, error)
	Status(ctx context.Context, connectionID string) (*domain.Connection, error)
	GetByUserEmail(ctx context.Context, email string) ([]*domain.Connection, error)
}

// CredentialDefinitionService resolves the credential definition of the academic schema
type CredentialDefinitionService interface {
	Ensure(ctx context.Context) (*domain.CredentialDefinition, error)
}

// IssueRequest holds the data of an academic credential to issue.
// GPA, GraduationDate and CredentialDefinitionID are optional.
type IssueRequest struct {
	ConnectionID           string   `json:"connectionId" validate:"required"`
	StudentName            string   `json:"studentName" validate:"required,min=2,max=100,personname"`
	StudentID              string   `json:"studentId" validate:"required,studentid"`
	Degree                 string   `json:"degree" validate:"required,min=2,max=100"`
	Institution            string   `json:"institution" validate:"required,min=2,max=200"`
	GPA                    *float64 `json:"gpa" validate:"omitempty,gte=0,lte=4"`
	GraduationDate         *string  `json:"graduationDate" validate:"omitempty,isodate"`
	Courses                []string `json:"courses" validate:"omitempty,dive,min=2,max=100"`
	CredentialDefinitionID *string  `json:"credentialDefinitionId"`
}

// Constants defining sort by fields passed from the API. They hold the sql column name.
const (
	CredentialIssuedAt   sqltools.SQLFieldName = "issued_at"
	CredentialAnchoredAt sqltools.SQLFieldName = "anchored_at"
	CredentialCreatedAt  sqltools.SQLFieldName = "created_at"
	CredentialID         sqltools.SQLFieldName = "id"
)

// CredentialsFilter selects a page of local issuance records
type CredentialsFilter struct {
	Status  domain.IssuanceStatus
	OrderBy sqltools.OrderByFilters
	pagination.Filter
}

// NewCredentialsFilter returns a filter over the credentials in status. Records are returned oldest first
// unless orderBy says otherwise.
func NewCredentialsFilter(status domain.IssuanceStatus, maxResults *uint, page *uint, orderBy sqltools.OrderByFilters) *CredentialsFilter {
	return &CredentialsFilter{
		Status:  status,
		OrderBy: orderBy,
		Filter:  *pagination.NewFilter(maxResults, page),
	}
}

// IssuanceService issues academic credentials and anchors their hashes
type IssuanceService interface {
	Issue(ctx context.Context, req *IssueRequest) (*domain.IssuanceResult, error)
	Reanchor(ctx context.Context, credentialExchangeID string) (*domain.ReanchorResult, error)
	GetCredential(ctx context.Context, credentialExchangeID string) (*domain.Credential, error)
	GetCredentials(ctx context.Context, filter *CredentialsFilter) ([]*domain.Credential, uint, error)
	GetMetadata(ctx context.Context, credentialExchangeID string) (*domain.AnchorMetadata, error)
}

// VerificationService checks an issued credential against its anchored hash
type VerificationService interface {
	Verify(ctx context.Context, credentialExchangeID string) (*domain.VerificationResult, error)
}

// Notifier sends the best effort notification of an issued credential
type Notifier interface {
	CredentialIssued(ctx context.Context, notification *domain.IssuedNotification) error
}

// NotificationService delivers the notifications received through the event bus
type NotificationService interface {
	SendCredentialIssuedNotification(ctx context.Context, payload pubsub.Message) error
}
