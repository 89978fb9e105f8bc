package services

import (
	"context"
	"errors"
	"time"

	"github.com/polygonid/academic-bridge/internal/core/domain"
	"github.com/polygonid/academic-bridge/internal/core/ports"
	"github.com/polygonid/academic-bridge/internal/log"
)

// PendingAnchorSummary counts the outcomes of a pass over the unanchored credentials
type PendingAnchorSummary struct {
	Anchored        int
	AlreadyAnchored int
	Mismatched      int
	Failed          int
}

// PendingAnchorer retries the anchoring of credentials issued while the ledger was unavailable
type PendingAnchorer struct {
	issuance  ports.IssuanceService
	batchSize uint
}

// NewPendingAnchorer returns a PendingAnchorer reading batchSize credentials per page
func NewPendingAnchorer(issuance ports.IssuanceService, batchSize uint) *PendingAnchorer {
	return &PendingAnchorer{issuance: issuance, batchSize: batchSize}
}

// Run calls AnchorPending every interval until ctx is done
func (p *PendingAnchorer) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if _, err := p.AnchorPending(ctx); err != nil {
				log.Error(ctx, "anchoring pending credentials", "err", err)
			}
		case <-ctx.Done():
			log.Info(ctx, "finishing pending anchor job")
			return
		}
	}
}

// AnchorPending reanchors every credential in the issued_unanchored status.
// The ids are collected first because anchored credentials leave the listing while it is paged.
func (p *PendingAnchorer) AnchorPending(ctx context.Context) (*PendingAnchorSummary, error) {
	ids, err := p.pendingIDs(ctx)
	if err != nil {
		return nil, err
	}

	summary := &PendingAnchorSummary{}
	for _, id := range ids {
		if ctx.Err() != nil {
			return summary, ctx.Err()
		}
		result, err := p.issuance.Reanchor(ctx, id)
		if err != nil {
			summary.Failed++
			if !errors.Is(err, ports.ErrUnanchored) {
				log.Warn(ctx, "reanchoring credential", "err", err, "credentialExchangeId", id)
			}
			continue
		}
		switch result.Status {
		case domain.ReanchorStatusAnchored:
			summary.Anchored++
		case domain.ReanchorStatusAlreadyAnchored:
			summary.AlreadyAnchored++
		case domain.ReanchorStatusHashMismatch:
			summary.Mismatched++
		}
	}

	if len(ids) > 0 {
		log.Info(ctx, "pending credentials processed",
			"pending", len(ids),
			"anchored", summary.Anchored,
			"alreadyAnchored", summary.AlreadyAnchored,
			"mismatched", summary.Mismatched,
			"failed", summary.Failed)
	}
	return summary, nil
}

func (p *PendingAnchorer) pendingIDs(ctx context.Context) ([]string, error) {
	var ids []string
	for page := uint(1); ; page++ {
		filter := ports.NewCredentialsFilter(domain.IssuanceStatusIssuedUnanchored, &p.batchSize, &page, nil)
		credentials, total, err := p.issuance.GetCredentials(ctx, filter)
		if err != nil {
			return nil, err
		}
		for _, c := range credentials {
			ids = append(ids, c.ID)
		}
		if len(credentials) == 0 || uint(len(ids)) >= total {
			return ids, nil
		}
	}
}
