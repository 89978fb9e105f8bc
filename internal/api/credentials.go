package api

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"github.com/polygonid/academic-bridge/internal/core/domain"
	"github.com/polygonid/academic-bridge/internal/core/ports"
	"github.com/polygonid/academic-bridge/internal/log"
	"github.com/polygonid/academic-bridge/internal/sqltools"
)

// IssueCredential issues an academic credential and anchors its hash.
// A credential that could not be anchored is still issued, so it is answered with 202.
func (s *Server) IssueCredential(ctx context.Context, request IssueCredentialRequestObject) (Response, error) {
	if request.Body == nil {
		return N400JSONResponse{Message: "empty request body"}, nil
	}

	result, err := s.issuanceService.Issue(ctx, request.Body)
	if result == nil {
		if err == nil {
			err = errors.New("issuance returned no result")
		}
		return errorResponse(ctx, err), nil
	}

	resp := toIssuanceResponse(result)
	switch result.Status {
	case domain.IssuanceStatusIssuedAnchored:
		return IssueCredential201JSONResponse(resp), nil
	case domain.IssuanceStatusIssuedUnanchored:
		return IssueCredential202JSONResponse(resp), nil
	case domain.IssuanceStatusRejectedInactiveConnection:
		return IssueCredential409JSONResponse(resp), nil
	default:
		if ports.Classify(err) == ports.ClassTransport {
			return IssueCredential502JSONResponse(resp), nil
		}
		if err != nil {
			return errorResponse(ctx, err), nil
		}
		log.Error(ctx, "issuance failed", "status", result.Status, "error", result.Error)
		return N500JSONResponse{Message: result.Error}, nil
	}
}

// VerifyCredential compares the credential held by the agent with its anchored hash
func (s *Server) VerifyCredential(ctx context.Context, request VerifyCredentialRequestObject) (Response, error) {
	result, err := s.verificationService.Verify(ctx, request.ID)
	if err != nil {
		return errorResponse(ctx, err), nil
	}

	resp := VerificationResponse{
		CredentialExchangeID: result.CredentialExchangeID,
		Status:               result.Status,
		Verified:             result.Verified,
		StoredHash:           hashString(result.StoredHash),
		RecomputedHash:       hashString(result.RecomputedHash),
	}
	if result.Credential != nil {
		resp.Credential = &CredentialExchange{
			CredentialExchangeID:   result.Credential.CredentialExchangeID,
			CredentialDefinitionID: result.Credential.CredentialDefinitionID,
			SchemaID:               result.Credential.SchemaID,
			ConnectionID:           result.Credential.ConnectionID,
			Attributes:             result.Credential.Attributes,
			State:                  result.Credential.State,
			IssuedAt:               result.Credential.IssuedAt,
		}
	}

	if result.Status == domain.VerificationStatusCredentialNotFound {
		return VerifyCredential404JSONResponse(resp), nil
	}
	return VerifyCredential200JSONResponse(resp), nil
}

// GetCredentials lists the local issuance records with the given status
func (s *Server) GetCredentials(ctx context.Context, request GetCredentialsRequestObject) (Response, error) {
	status := domain.IssuanceStatus(request.Status)
	if request.Status == "" {
		status = domain.IssuanceStatusIssuedUnanchored
	}
	if !validIssuanceStatus(status) {
		return N400JSONResponse{Message: fmt.Sprintf("unknown status %q", request.Status)}, nil
	}

	orderBy, err := credentialsOrderBy(request.Sort)
	if err != nil {
		return N400JSONResponse{Message: err.Error()}, nil
	}

	filter := ports.NewCredentialsFilter(status, request.MaxResults, request.Page, orderBy)
	credentials, total, err := s.issuanceService.GetCredentials(ctx, filter)
	if err != nil {
		return errorResponse(ctx, err), nil
	}

	resp := GetCredentials200JSONResponse{
		Items: make([]Credential, 0, len(credentials)),
		Meta: PaginatedMetadata{
			MaxResults: filter.GetLimit(),
			Page:       1,
			Total:      total,
		},
	}
	if filter.Page != nil && *filter.Page > 0 {
		resp.Meta.Page = *filter.Page
	}
	for _, c := range credentials {
		resp.Items = append(resp.Items, toCredential(c))
	}
	return resp, nil
}

// GetCredential returns the local issuance record
func (s *Server) GetCredential(ctx context.Context, request GetCredentialRequestObject) (Response, error) {
	credential, err := s.issuanceService.GetCredential(ctx, request.ID)
	if err != nil {
		return errorResponse(ctx, err), nil
	}
	return GetCredential200JSONResponse(toCredential(credential)), nil
}

// GetCredentialMetadata returns the metadata stored on the ledger next to the anchor
func (s *Server) GetCredentialMetadata(ctx context.Context, request GetCredentialMetadataRequestObject) (Response, error) {
	metadata, err := s.issuanceService.GetMetadata(ctx, request.ID)
	if err != nil {
		return errorResponse(ctx, err), nil
	}
	return GetCredentialMetadata200JSONResponse(*metadata), nil
}

// ReanchorCredential anchors a credential that was issued while the ledger was unavailable
func (s *Server) ReanchorCredential(ctx context.Context, request ReanchorCredentialRequestObject) (Response, error) {
	result, err := s.issuanceService.Reanchor(ctx, request.ID)
	if err != nil {
		if errors.Is(err, ports.ErrUnanchored) {
			return N502JSONResponse{Message: err.Error()}, nil
		}
		return errorResponse(ctx, err), nil
	}

	return ReanchorCredential200JSONResponse{
		CredentialExchangeID: result.CredentialExchangeID,
		Status:               result.Status,
		ContentHash:          result.ContentHash.Hex(),
		StoredHash:           hashString(result.StoredHash),
		LedgerReceipt:        result.LedgerReceipt,
	}, nil
}

func toIssuanceResponse(result *domain.IssuanceResult) IssuanceResponse {
	resp := IssuanceResponse{
		CredentialExchangeID: result.CredentialExchangeID,
		Status:               result.Status,
		ConnectionState:      string(result.ConnectionState),
		ContentHash:          hashString(result.ContentHash),
		LedgerReceipt:        result.LedgerReceipt,
	}
	if result.Error != "" {
		resp.Error = &result.Error
	}
	return resp
}

func toCredential(c *domain.Credential) Credential {
	return Credential{
		ID:                     c.ID,
		ConnectionID:           c.ConnectionID,
		CredentialDefinitionID: c.CredentialDefinitionID,
		Attributes:             c.Attributes,
		ContentHash:            hashString(c.ContentHash),
		Status:                 c.Status,
		TransactionRef:         c.TransactionRef,
		BlockRef:               c.BlockRef,
		Error:                  c.Error,
		IssuedAt:               c.IssuedAt,
		AnchoredAt:             c.AnchoredAt,
	}
}

func hashString(h *common.Hash) *string {
	if h == nil {
		return nil
	}
	s := h.Hex()
	return &s
}

// credentialsOrderBy parses a comma separated list of sort fields. A leading - sorts descending.
func credentialsOrderBy(sort string) (sqltools.OrderByFilters, error) {
	orderBy := sqltools.OrderByFilters{}
	if sort == "" {
		return orderBy, nil
	}
	for _, sortBy := range strings.Split(sort, ",") {
		var err error
		field, desc := strings.CutPrefix(strings.TrimSpace(sortBy), "-")
		switch field {
		case "issuedAt":
			err = orderBy.Add(ports.CredentialIssuedAt, desc)
		case "anchoredAt":
			err = orderBy.AddWithNullsLast(ports.CredentialAnchoredAt, desc)
		case "createdAt":
			err = orderBy.Add(ports.CredentialCreatedAt, desc)
		default:
			return nil, fmt.Errorf("wrong sort field %q", field)
		}
		if err != nil {
			return nil, errors.New("repeated sort by value field")
		}
	}
	return orderBy, nil
}

func validIssuanceStatus(status domain.IssuanceStatus) bool {
	switch status {
	case domain.IssuanceStatusIssuedAnchored,
		domain.IssuanceStatusIssuedUnanchored,
		domain.IssuanceStatusRejectedInactiveConnection,
		domain.IssuanceStatusFailedBeforeIssuance,
		domain.IssuanceStatusAnchorMismatch:
		return true
	}
	return false
}
