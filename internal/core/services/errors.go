package services

import (
	"fmt"
	"strings"

	"github.com/polygonid/academic-bridge/internal/core/ports"
)

// FieldError describes why a single request field was rejected
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError is returned when a request is rejected before any external call.
// It lists every offending field.
type ValidationError struct {
	Fields []FieldError
}

// Error satisfies error interface for ValidationError
func (e *ValidationError) Error() string {
	msgs := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		msgs = append(msgs, f.Message)
	}
	return fmt.Sprintf("%s: %s", ports.ErrValidation, strings.Join(msgs, "; "))
}

// Unwrap allows matching ValidationError with ports.ErrValidation
func (e *ValidationError) Unwrap() error {
	return ports.ErrValidation
}
