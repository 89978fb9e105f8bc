package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/polygonid/academic-bridge/internal/core/domain"
	"github.com/polygonid/academic-bridge/internal/core/ports"
	"github.com/polygonid/academic-bridge/internal/db"
	"github.com/polygonid/academic-bridge/internal/log"
	"github.com/polygonid/academic-bridge/internal/metrics"
)

// IssuanceConfig tunes the issuance workflow
type IssuanceConfig struct {
	// MaxAttempts is the number of ensure active cycles run before offering
	MaxAttempts int
	// ProceedOnInactive offers the credential even if ensure active did not observe an active connection
	ProceedOnInactive   bool
	StoreMetadata       bool
	NotificationTimeout time.Duration
}

type issuance struct {
	connections ports.ConnectionsService
	definitions ports.CredentialDefinitionService
	agent       ports.AgentGateway
	ledger      ports.LedgerGateway
	credRepo    ports.CredentialsRepository
	storage     db.Querier
	notifier    ports.Notifier
	metrics     *metrics.Metrics
	cfg         IssuanceConfig
	now         func() time.Time
}

// NewIssuance returns the issuance orchestrator. notifier may be nil.
func NewIssuance(
	connections ports.ConnectionsService,
	definitions ports.CredentialDefinitionService,
	agent ports.AgentGateway,
	ledger ports.LedgerGateway,
	credRepo ports.CredentialsRepository,
	storage db.Querier,
	notifier ports.Notifier,
	m *metrics.Metrics,
	cfg IssuanceConfig,
) ports.IssuanceService {
	return &issuance{
		connections: connections,
		definitions: definitions,
		agent:       agent,
		ledger:      ledger,
		credRepo:    credRepo,
		storage:     storage,
		notifier:    notifier,
		metrics:     m,
		cfg:         cfg,
		now:         time.Now,
	}
}

// Issue runs the issuance pipeline: ensure the connection is active, resolve the credential definition,
// offer the credential and anchor its content hash.
//
// A connection the agent refuses to issue over is reported as issuance_rejected_inactive_connection with no error.
// A ledger failure after the agent issued the credential is reported as issued_unanchored with no error;
// the credential must be anchored again explicitly with Reanchor.
// Failures before the offer return failed_before_issuance together with the error.
func (s *issuance) Issue(ctx context.Context, req *ports.IssueRequest) (*domain.IssuanceResult, error) {
	if err := validate(req); err != nil {
		log.Debug(ctx, "rejecting invalid issue request", "err", err)
		return nil, err
	}
	ctx = log.With(ctx, "connectionId", req.ConnectionID)
	result := &domain.IssuanceResult{}
	defer func() { s.metrics.IncrementIssuance(result.Status) }()

	ensured, err := s.connections.EnsureActive(ctx, req.ConnectionID, s.cfg.MaxAttempts)
	if ctx.Err() != nil {
		result.Status = domain.IssuanceStatusFailedBeforeIssuance
		result.Error = ctx.Err().Error()
		return result, ctx.Err()
	}
	if err != nil {
		log.Warn(ctx, "ensuring connection is active, offering anyway", "err", err)
	}
	if ensured != nil {
		result.ConnectionState = ensured.State
		switch {
		case ensured.State == domain.ConnectionStateAbandoned:
			return s.rejected(ctx, result, "connection abandoned"), nil
		case !ensured.Active && !s.cfg.ProceedOnInactive:
			return s.rejected(ctx, result, "connection did not become active"), nil
		case !ensured.Active:
			log.Info(ctx, "connection not active, offering anyway", "state", ensured.State)
		}
	}

	defID, schemaID := "", ""
	if req.CredentialDefinitionID != nil && *req.CredentialDefinitionID != "" {
		defID = *req.CredentialDefinitionID
	} else {
		def, err := s.definitions.Ensure(ctx)
		if err != nil {
			return s.failed(ctx, result, err), err
		}
		defID, schemaID = def.CredentialDefinitionID, def.SchemaID
	}

	attrs, err := FormatAcademicAttributes(req, s.now())
	if err != nil {
		return s.failed(ctx, result, err), err
	}

	record, err := s.agent.OfferCredential(ctx, req.ConnectionID, defID, attrs)
	if err != nil {
		if errors.Is(err, ports.ErrConnectionNotActive) {
			return s.rejected(ctx, result, err.Error()), nil
		}
		return s.failed(ctx, result, err), err
	}
	result.CredentialExchangeID = record.CredentialExchangeID
	ctx = log.With(ctx, "credentialExchangeId", record.CredentialExchangeID)
	log.Info(ctx, "credential issued by the agent")

	hash, err := record.ContentHash()
	if err != nil {
		log.Error(ctx, "computing content hash, credential left unanchored", "err", err)
		result.Status = domain.IssuanceStatusIssuedUnanchored
		result.Error = fmt.Errorf("%w: %w", ports.ErrUnanchored, err).Error()
		return result, nil
	}
	result.ContentHash = &hash

	credential := domain.NewCredential(record, hash)
	s.save(ctx, credential)

	receipt, err := s.anchor(ctx, record.CredentialExchangeID, hash)
	if err != nil {
		log.Error(ctx, "credential issued but not anchored, re-anchor required", "err", err, "contentHash", hash.Hex())
		credential.MarkUnanchored(err)
		result.Status = domain.IssuanceStatusIssuedUnanchored
		result.Error = fmt.Errorf("%w: %w", ports.ErrUnanchored, err).Error()
	} else {
		credential.MarkAnchored(*receipt)
		result.Status = domain.IssuanceStatusIssuedAnchored
		result.LedgerReceipt = receipt
		s.storeMetadata(ctx, credential, receipt)
	}
	s.save(ctx, credential)

	s.notify(ctx, domain.NewIssuedNotification(record, schemaID, result))
	return result, nil
}

// Reanchor anchors the hash of a credential that was issued but not anchored.
// The ledger is checked first so an existing anchor is reported rather than written again.
func (s *issuance) Reanchor(ctx context.Context, credentialExchangeID string) (*domain.ReanchorResult, error) {
	ctx = log.With(ctx, "credentialExchangeId", credentialExchangeID)
	credential, err := s.credRepo.GetByID(ctx, s.storage, credentialExchangeID)
	if err != nil && !errors.Is(err, ports.ErrCredentialNotFound) {
		return nil, err
	}
	if credential == nil || credential.ContentHash == nil {
		record, err := s.agent.GetCredentialExchange(ctx, credentialExchangeID)
		if err != nil {
			return nil, err
		}
		hash, err := record.ContentHash()
		if err != nil {
			return nil, err
		}
		credential = domain.NewCredential(record, hash)
	}
	hash := *credential.ContentHash
	result := &domain.ReanchorResult{CredentialExchangeID: credentialExchangeID, ContentHash: hash}

	stored, err := s.ledger.Lookup(ctx, credentialExchangeID)
	switch {
	case err == nil && stored == hash:
		log.Info(ctx, "credential already anchored")
		result.Status = domain.ReanchorStatusAlreadyAnchored
		result.StoredHash = &stored
		if credential.Status != domain.IssuanceStatusIssuedAnchored {
			credential.Status = domain.IssuanceStatusIssuedAnchored
			credential.Error = nil
			credential.ModifiedAt = time.Now().UTC()
			s.save(ctx, credential)
		}
		return result, nil
	case err == nil:
		log.Warn(ctx, "anchored hash differs from the credential hash", "storedHash", stored.Hex(), "contentHash", hash.Hex())
		result.Status = domain.ReanchorStatusHashMismatch
		result.StoredHash = &stored
		if credential.Status != domain.IssuanceStatusAnchorMismatch {
			credential.MarkAnchorMismatch(stored)
			s.save(ctx, credential)
		}
		return result, nil
	case !errors.Is(err, ports.ErrNotAnchored):
		return nil, err
	}

	receipt, err := s.anchor(ctx, credentialExchangeID, hash)
	if err != nil {
		credential.MarkUnanchored(err)
		s.save(ctx, credential)
		return nil, fmt.Errorf("%w: %w", ports.ErrUnanchored, err)
	}
	credential.MarkAnchored(*receipt)
	s.save(ctx, credential)
	s.storeMetadata(ctx, credential, receipt)

	log.Info(ctx, "credential anchored again", "transactionRef", receipt.TransactionRef)
	result.Status = domain.ReanchorStatusAnchored
	result.LedgerReceipt = receipt
	return result, nil
}

func (s *issuance) GetCredential(ctx context.Context, credentialExchangeID string) (*domain.Credential, error) {
	return s.credRepo.GetByID(ctx, s.storage, credentialExchangeID)
}

func (s *issuance) GetCredentials(ctx context.Context, filter *ports.CredentialsFilter) ([]*domain.Credential, uint, error) {
	return s.credRepo.GetAll(ctx, s.storage, filter)
}

func (s *issuance) GetMetadata(ctx context.Context, credentialExchangeID string) (*domain.AnchorMetadata, error) {
	return s.ledger.GetMetadata(ctx, credentialExchangeID)
}

func (s *issuance) anchor(ctx context.Context, key string, hash common.Hash) (*domain.LedgerReceipt, error) {
	start := time.Now()
	defer func() { s.metrics.ObserveAnchorLatency(time.Since(start)) }()
	return s.ledger.Anchor(ctx, key, hash)
}

func (s *issuance) rejected(ctx context.Context, result *domain.IssuanceResult, reason string) *domain.IssuanceResult {
	log.Info(ctx, "issuance rejected, connection not active", "reason", reason, "state", result.ConnectionState)
	result.Status = domain.IssuanceStatusRejectedInactiveConnection
	result.Error = reason
	return result
}

func (s *issuance) failed(ctx context.Context, result *domain.IssuanceResult, err error) *domain.IssuanceResult {
	log.Error(ctx, "issuance failed before the credential was issued", "err", err)
	result.Status = domain.IssuanceStatusFailedBeforeIssuance
	result.Error = err.Error()
	return result
}

// save writes the local record. The record is not part of the issuance outcome so failures are only logged.
func (s *issuance) save(ctx context.Context, credential *domain.Credential) {
	if err := s.credRepo.Save(ctx, s.storage, credential); err != nil {
		log.Warn(ctx, "saving credential record", "err", err, "status", credential.Status)
	}
}

func (s *issuance) storeMetadata(ctx context.Context, credential *domain.Credential, receipt *domain.LedgerReceipt) {
	if !s.cfg.StoreMetadata {
		return
	}
	metadata := domain.AnchorMetadata{
		Timestamp:   receipt.AnchoredAt.Unix(),
		Type:        domain.AcademicCredentialLabel,
		BlockNumber: receipt.BlockRef,
	}
	for _, attr := range credential.Attributes {
		if attr.Name == domain.AttrInstitution {
			metadata.Issuer = attr.Value
		}
	}
	if err := s.ledger.StoreMetadata(ctx, credential.ID, metadata); err != nil {
		log.Warn(ctx, "storing anchor metadata", "err", err)
	}
}

// notify sends the notification in the background. It never fails the issuance.
func (s *issuance) notify(ctx context.Context, notification *domain.IssuedNotification) {
	if s.notifier == nil {
		return
	}
	nctx := log.CopyFromContext(ctx, context.Background())
	go func() {
		ctx, cancel := nctx, context.CancelFunc(func() {})
		if s.cfg.NotificationTimeout > 0 {
			ctx, cancel = context.WithTimeout(nctx, s.cfg.NotificationTimeout)
		}
		defer cancel()
		if err := s.notifier.CredentialIssued(ctx, notification); err != nil {
			log.Warn(ctx, "sending credential issued notification", "err", err)
			s.metrics.IncrementNotificationFailures()
		}
	}()
}
