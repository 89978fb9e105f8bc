package ports

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	for _, tc := range []struct {
		err      error
		expected ErrorClass
	}{
		{nil, ClassNone},
		{fmt.Errorf("offer: %w", ErrAgentUnreachable), ClassTransport},
		{ErrLedgerUnavailable, ClassTransport},
		{ErrDuplicateKey, ClassConflict},
		{ErrGasExhausted, ClassConflict},
		{ErrSchemaConflict, ClassConflict},
		{ErrConnectionNotActive, ClassState},
		{fmt.Errorf("studentId: %w", ErrValidation), ClassValidation},
		{fmt.Errorf("%w: %w", ErrUnanchored, ErrLedgerUnavailable), ClassPartial},
		{ErrCredentialNotFound, ClassNotFound},
		{errors.New("boom"), ClassUnknown},
	} {
		t.Run(string(tc.expected), func(t *testing.T) {
			assert.Equal(t, tc.expected, Classify(tc.err))
		})
	}
}
