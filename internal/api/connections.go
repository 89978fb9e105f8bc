package api

import (
	"context"

	"github.com/polygonid/academic-bridge/internal/core/domain"
)

// SendInvitation creates an invitation for the user with the given email
func (s *Server) SendInvitation(ctx context.Context, request SendInvitationRequestObject) (Response, error) {
	if request.Body == nil {
		return N400JSONResponse{Message: "empty request body"}, nil
	}
	invitation, err := s.connectionsService.SendInvitation(ctx, request.Body.Email)
	if err != nil {
		return errorResponse(ctx, err), nil
	}
	return SendInvitation201JSONResponse{
		ConnectionID:  invitation.ConnectionID,
		InvitationURL: invitation.InvitationURL,
		Invitation:    invitation.Payload,
	}, nil
}

// AcceptInvitation hands an invitation created by the holder to the agent
func (s *Server) AcceptInvitation(ctx context.Context, request AcceptInvitationRequestObject) (Response, error) {
	if request.Body == nil || len(request.Body.Invitation) == 0 {
		return N400JSONResponse{Message: "invitation is required"}, nil
	}
	connection, err := s.connectionsService.AcceptInvitation(ctx, request.Body.Email, request.Body.Invitation)
	if err != nil {
		return errorResponse(ctx, err), nil
	}
	return AcceptInvitation201JSONResponse(toConnectionResponse(connection)), nil
}

// GetConnectionStatus returns the connection with its state refreshed from the agent
func (s *Server) GetConnectionStatus(ctx context.Context, request GetConnectionStatusRequestObject) (Response, error) {
	connection, err := s.connectionsService.Status(ctx, request.ID)
	if err != nil {
		return errorResponse(ctx, err), nil
	}
	return GetConnectionStatus200JSONResponse(toConnectionResponse(connection)), nil
}

// GetConnections lists the connections of a user
func (s *Server) GetConnections(ctx context.Context, request GetConnectionsRequestObject) (Response, error) {
	if request.Email == "" {
		return N400JSONResponse{Message: "email is required"}, nil
	}
	connections, err := s.connectionsService.GetByUserEmail(ctx, request.Email)
	if err != nil {
		return errorResponse(ctx, err), nil
	}
	resp := make(GetConnections200JSONResponse, 0, len(connections))
	for _, c := range connections {
		resp = append(resp, toConnectionResponse(c))
	}
	return resp, nil
}

func toConnectionResponse(c *domain.Connection) ConnectionResponse {
	return ConnectionResponse{
		ID:                c.ID,
		State:             c.State,
		CounterpartyAlias: c.CounterpartyAlias,
		InvitationURL:     c.InvitationURL,
		StallCount:        c.StallCount,
		SupersededBy:      c.SupersededBy,
		CreatedAt:         c.CreatedAt,
		ModifiedAt:        c.ModifiedAt,
	}
}
