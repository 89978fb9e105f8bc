package services

import (
	"context"
	"errors"

	"github.com/polygonid/academic-bridge/internal/core/domain"
	"github.com/polygonid/academic-bridge/internal/core/ports"
	"github.com/polygonid/academic-bridge/internal/log"
	"github.com/polygonid/academic-bridge/internal/metrics"
)

type verification struct {
	agent   ports.AgentGateway
	ledger  ports.LedgerGateway
	metrics *metrics.Metrics
}

// NewVerification returns the credential verification engine
func NewVerification(agent ports.AgentGateway, ledger ports.LedgerGateway, m *metrics.Metrics) ports.VerificationService {
	return &verification{agent: agent, ledger: ledger, metrics: m}
}

// Verify recomputes the content hash of the agent record and compares it with the anchored one.
// A missing agent record or ledger entry is a verdict, not an error.
func (v *verification) Verify(ctx context.Context, credentialExchangeID string) (*domain.VerificationResult, error) {
	ctx = log.With(ctx, "credentialExchangeId", credentialExchangeID)
	result := &domain.VerificationResult{CredentialExchangeID: credentialExchangeID}

	record, err := v.agent.GetCredentialExchange(ctx, credentialExchangeID)
	if err != nil {
		if errors.Is(err, ports.ErrCredentialNotFound) {
			return v.verdict(ctx, result, domain.VerificationStatusCredentialNotFound), nil
		}
		log.Error(ctx, "fetching credential exchange", "err", err)
		return nil, err
	}
	result.Credential = record

	recomputed, err := record.ContentHash()
	if err != nil {
		return nil, err
	}
	result.RecomputedHash = &recomputed

	stored, err := v.ledger.Lookup(ctx, credentialExchangeID)
	if err != nil {
		if errors.Is(err, ports.ErrNotAnchored) {
			return v.verdict(ctx, result, domain.VerificationStatusNotAnchored), nil
		}
		log.Error(ctx, "looking up anchored hash", "err", err)
		return nil, err
	}
	result.StoredHash = &stored

	if stored != recomputed {
		log.Warn(ctx, "content hash mismatch", "storedHash", stored.Hex(), "recomputedHash", recomputed.Hex())
		return v.verdict(ctx, result, domain.VerificationStatusHashMismatch), nil
	}
	result.Verified = true
	return v.verdict(ctx, result, domain.VerificationStatusVerified), nil
}

func (v *verification) verdict(ctx context.Context, result *domain.VerificationResult, status domain.VerificationStatus) *domain.VerificationResult {
	log.Debug(ctx, "credential verified", "status", status)
	result.Status = status
	v.metrics.IncrementVerification(status)
	return result
}
