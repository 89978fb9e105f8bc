package api

import (
	"context"
)

// CreateSchema registers the academic schema and its credential definition, or returns the existing ones
func (s *Server) CreateSchema(ctx context.Context, _ CreateSchemaRequestObject) (Response, error) {
	definition, err := s.definitionService.Ensure(ctx)
	if err != nil {
		return errorResponse(ctx, err), nil
	}
	return CreateSchema201JSONResponse(*definition), nil
}
