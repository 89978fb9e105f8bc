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

func TestPendingAnchorer_AnchorPending(t *testing.T) {
	ctx := testContext()
	f := newIssuanceFixture(lenient, domain.ConnectionStateActive, domain.ConnectionStateActive)
	f.ledger.anchorErr = ports.ErrLedgerUnavailable

	first, err := f.svc.Issue(ctx, validRequest())
	require.NoError(t, err)
	second, err := f.svc.Issue(ctx, validRequest())
	require.NoError(t, err)
	require.Equal(t, domain.IssuanceStatusIssuedUnanchored, first.Status)
	require.Equal(t, domain.IssuanceStatusIssuedUnanchored, second.Status)

	anchorer := NewPendingAnchorer(f.svc, 1)

	summary, err := anchorer.AnchorPending(ctx)
	require.NoError(t, err)
	assert.Equal(t, PendingAnchorSummary{Failed: 2}, *summary)

	f.ledger.anchorErr = nil
	f.ledger.anchors[second.CredentialExchangeID] = common.HexToHash("0xbad")

	summary, err = anchorer.AnchorPending(ctx)
	require.NoError(t, err)
	assert.Equal(t, PendingAnchorSummary{Anchored: 1, Mismatched: 1}, *summary)

	pending, _, err := f.svc.GetCredentials(ctx, ports.NewCredentialsFilter(domain.IssuanceStatusIssuedUnanchored, nil, nil, nil))
	require.NoError(t, err)
	assert.Empty(t, pending)

	anchored, err := f.svc.GetCredential(ctx, first.CredentialExchangeID)
	require.NoError(t, err)
	assert.Equal(t, domain.IssuanceStatusIssuedAnchored, anchored.Status)
	mismatched, err := f.svc.GetCredential(ctx, second.CredentialExchangeID)
	require.NoError(t, err)
	assert.Equal(t, domain.IssuanceStatusAnchorMismatch, mismatched.Status)
	require.NotNil(t, mismatched.Error)

	f.ledger.mu.Lock()
	lookups := f.ledger.lookups
	f.ledger.mu.Unlock()
	summary, err = anchorer.AnchorPending(ctx)
	require.NoError(t, err)
	assert.Equal(t, PendingAnchorSummary{}, *summary)
	f.ledger.mu.Lock()
	defer f.ledger.mu.Unlock()
	assert.Equal(t, lookups, f.ledger.lookups, "mismatched records are not looked up again")
}

func TestPendingAnchorer_Run(t *testing.T) {
	f := newIssuanceFixture(lenient, domain.ConnectionStateActive)
	f.ledger.anchorErr = ports.ErrLedgerUnavailable
	res, err := f.svc.Issue(testContext(), validRequest())
	require.NoError(t, err)
	f.ledger.anchorErr = nil

	ctx, cancel := context.WithCancel(testContext())
	done := make(chan struct{})
	go func() {
		NewPendingAnchorer(f.svc, 10).Run(ctx, 5*time.Millisecond)
		close(done)
	}()

	assert.Eventually(t, func() bool {
		c, err := f.svc.GetCredential(testContext(), res.CredentialExchangeID)
		return err == nil && c.Status == domain.IssuanceStatusIssuedAnchored
	}, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("anchorer did not stop")
	}
}
