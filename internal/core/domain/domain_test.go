package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeConnectionState(t *testing.T) {
	for raw, expected := range map[string]ConnectionState{
		"invitation":        ConnectionStateInvitation,
		"invitation-sent":   ConnectionStateInvitation,
		"start":             ConnectionStateInvitation,
		"request-received":  ConnectionStateRequest,
		"Response":          ConnectionStateResponse,
		"active":            ConnectionStateActive,
		"completed":         ConnectionStateActive,
		" error ":           ConnectionStateAbandoned,
		"abandoned":         ConnectionStateAbandoned,
		"awaiting-response": ConnectionState("awaiting-response"),
	} {
		t.Run(raw, func(t *testing.T) {
			got := NormalizeConnectionState(raw)
			assert.Equal(t, expected, got)
		})
	}
	assert.False(t, ConnectionState("awaiting-response").Known())
	assert.True(t, ConnectionStateAbandoned.IsTerminal())
	assert.False(t, ConnectionStateResponse.IsTerminal())
}

func testRecord() *CredentialExchangeRecord {
	return &CredentialExchangeRecord{
		CredentialExchangeID:   "cx-1",
		CredentialDefinitionID: "def-1",
		ConnectionID:           "conn-1",
		Attributes: []CredentialAttribute{
			{Name: AttrStudentName, Value: "Ada Lovelace"},
			{Name: AttrGPA, Value: "3.7"},
		},
		State:    "offer_sent",
		IssuedAt: time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC),
	}
}

func TestContentHash_Deterministic(t *testing.T) {
	a := testRecord()
	h1, err := a.ContentHash()
	require.NoError(t, err)

	b := testRecord()
	b.Attributes[0], b.Attributes[1] = b.Attributes[1], b.Attributes[0]
	b.State = "credential_issued"
	b.IssuedAt = b.IssuedAt.In(time.FixedZone("CEST", 2*3600))
	h2, err := b.ContentHash()
	require.NoError(t, err)
	assert.Equal(t, h1, h2)

	c := testRecord()
	c.Attributes[1].Value = "3.8"
	h3, err := c.ContentHash()
	require.NoError(t, err)
	assert.NotEqual(t, h1, h3)
}

func TestCredential_Marks(t *testing.T) {
	rec := testRecord()
	h, err := rec.ContentHash()
	require.NoError(t, err)

	c := NewCredential(rec, h)
	assert.Equal(t, IssuanceStatusIssuedUnanchored, c.Status)

	c.MarkUnanchored(assert.AnError)
	require.NotNil(t, c.Error)
	assert.Equal(t, assert.AnError.Error(), *c.Error)

	c.MarkAnchored(LedgerReceipt{TransactionRef: "0xabc", BlockRef: 7, AnchoredAt: time.Now()})
	assert.Equal(t, IssuanceStatusIssuedAnchored, c.Status)
	assert.Nil(t, c.Error)
	assert.Equal(t, "0xabc", *c.TransactionRef)
	assert.Equal(t, uint64(7), *c.BlockRef)
}
