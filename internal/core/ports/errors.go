package ports

import (
	"errors"
)

// Errors returned across component boundaries. Callers match them with errors.Is.
var (
	ErrAgentUnreachable    = errors.New("identity agent unreachable")
	ErrAgentRequest        = errors.New("identity agent rejected the request")
	ErrSchemaConflict      = errors.New("schema or credential definition already exists")
	ErrConnectionNotActive = errors.New("connection is not active")
	ErrConnectionNotFound  = errors.New("connection not found")
	ErrCredentialNotFound  = errors.New("credential not found")
	ErrUserNotFound        = errors.New("user not found")
	ErrDefinitionNotFound  = errors.New("credential definition not found")
	ErrLedgerUnavailable   = errors.New("ledger unavailable")
	ErrDuplicateKey        = errors.New("key already anchored")
	ErrGasExhausted        = errors.New("gas ceiling exhausted")
	ErrNotAnchored         = errors.New("hash not anchored")
	ErrValidation          = errors.New("validation failed")
	ErrUnanchored          = errors.New("credential issued but not anchored")
)

// ErrorClass groups errors by how callers are expected to react to them
type ErrorClass string

// Error classes
const (
	ClassNone       ErrorClass = ""
	ClassTransport  ErrorClass = "transport"
	ClassConflict   ErrorClass = "conflict"
	ClassState      ErrorClass = "state"
	ClassValidation ErrorClass = "validation"
	ClassPartial    ErrorClass = "partial"
	ClassNotFound   ErrorClass = "not_found"
	ClassUnknown    ErrorClass = "unknown"
)

// Classify returns the class of err.
// Partial failures are checked first because they wrap the ledger error that caused them.
func Classify(err error) ErrorClass {
	switch {
	case err == nil:
		return ClassNone
	case errors.Is(err, ErrUnanchored):
		return ClassPartial
	case errors.Is(err, ErrValidation):
		return ClassValidation
	case errors.Is(err, ErrAgentUnreachable), errors.Is(err, ErrLedgerUnavailable):
		return ClassTransport
	case errors.Is(err, ErrSchemaConflict), errors.Is(err, ErrDuplicateKey), errors.Is(err, ErrGasExhausted):
		return ClassConflict
	case errors.Is(err, ErrConnectionNotActive):
		return ClassState
	case errors.Is(err, ErrCredentialNotFound), errors.Is(err, ErrConnectionNotFound),
		errors.Is(err, ErrUserNotFound), errors.Is(err, ErrDefinitionNotFound), errors.Is(err, ErrNotAnchored):
		return ClassNotFound
	default:
		return ClassUnknown
	}
}
