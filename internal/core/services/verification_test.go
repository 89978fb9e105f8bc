package services

import (
	"context"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/polygonid/academic-bridge/internal/core/domain"
	"github.com/polygonid/academic-bridge/internal/core/ports"
)

func TestVerification_Verify(t *testing.T) {
	ctx := testContext()
	record := &domain.CredentialExchangeRecord{
		CredentialExchangeID:   "cred-ex-1",
		CredentialDefinitionID: "def-1",
		ConnectionID:           "conn-1",
		Attributes:             []domain.CredentialAttribute{{Name: domain.AttrStudentName, Value: "Jane Doe"}},
		IssuedAt:               time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC),
	}
	hash, err := record.ContentHash()
	require.NoError(t, err)

	type testConfig struct {
		name     string
		anchored *common.Hash
		id       string
		expected domain.VerificationStatus
	}
	tampered := common.HexToHash("0xdead")
	for _, tc := range []testConfig{
		{name: "verified", anchored: &hash, id: "cred-ex-1", expected: domain.VerificationStatusVerified},
		{name: "not anchored", id: "cred-ex-1", expected: domain.VerificationStatusNotAnchored},
		{name: "hash mismatch", anchored: &tampered, id: "cred-ex-1", expected: domain.VerificationStatusHashMismatch},
		{name: "credential not found", anchored: &hash, id: "cred-ex-2", expected: domain.VerificationStatusCredentialNotFound},
	} {
		t.Run(tc.name, func(t *testing.T) {
			agent := newFakeAgent()
			agent.records[record.CredentialExchangeID] = record
			ledger := newFakeLedger()
			if tc.anchored != nil {
				ledger.anchors[record.CredentialExchangeID] = *tc.anchored
			}

			res, err := NewVerification(agent, ledger, nil).Verify(ctx, tc.id)
			require.NoError(t, err)
			assert.Equal(t, tc.expected, res.Status)
			assert.Equal(t, tc.expected == domain.VerificationStatusVerified, res.Verified)
			switch tc.expected {
			case domain.VerificationStatusCredentialNotFound:
				assert.Nil(t, res.Credential)
			case domain.VerificationStatusNotAnchored:
				assert.Nil(t, res.StoredHash)
				require.NotNil(t, res.RecomputedHash)
				assert.Equal(t, hash, *res.RecomputedHash)
			default:
				require.NotNil(t, res.StoredHash)
				assert.Equal(t, *tc.anchored, *res.StoredHash)
				assert.Equal(t, hash, *res.RecomputedHash)
			}
		})
	}
}

func TestVerification_LedgerUnavailable(t *testing.T) {
	agent := newFakeAgent()
	agent.records["cred-ex-1"] = &domain.CredentialExchangeRecord{CredentialExchangeID: "cred-ex-1"}
	ledger := &unavailableLedger{fakeLedger: newFakeLedger()}

	_, err := NewVerification(agent, ledger, nil).Verify(testContext(), "cred-ex-1")
	require.ErrorIs(t, err, ports.ErrLedgerUnavailable)
}

type unavailableLedger struct {
	*fakeLedger
}

func (l *unavailableLedger) Lookup(_ context.Context, _ string) (common.Hash, error) {
	return common.Hash{}, ports.ErrLedgerUnavailable
}
