package api

import (
	"context"
	"errors"

	"github.com/polygonid/academic-bridge/internal/core/ports"
	"github.com/polygonid/academic-bridge/internal/core/services"
	"github.com/polygonid/academic-bridge/internal/log"
)

// errorResponse maps a service error to the response sent to the client
func errorResponse(ctx context.Context, err error) Response {
	var vErr *services.ValidationError
	if errors.As(err, &vErr) {
		resp := N400ValidationJSONResponse{Message: "invalid request", Fields: make([]FieldError, 0, len(vErr.Fields))}
		for _, f := range vErr.Fields {
			resp.Fields = append(resp.Fields, FieldError{Field: f.Field, Message: f.Message})
		}
		return resp
	}

	msg := GenericErrorMessage{Message: err.Error()}
	switch ports.Classify(err) {
	case ports.ClassValidation:
		return N400JSONResponse(msg)
	case ports.ClassNotFound:
		return N404JSONResponse(msg)
	case ports.ClassConflict, ports.ClassState:
		return N409JSONResponse(msg)
	case ports.ClassTransport:
		log.Warn(ctx, "upstream unavailable", "err", err)
		return N502JSONResponse(msg)
	default:
		log.Error(ctx, "unexpected error", "err", err)
		return N500JSONResponse{Message: "internal error"}
	}
}
