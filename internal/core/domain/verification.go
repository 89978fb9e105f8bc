package domain

import "github.com/ethereum/go-ethereum/common"

// VerificationStatus is the verdict of a credential verification
type VerificationStatus string

// Verification verdicts
const (
	VerificationStatusVerified           VerificationStatus = "verified"
	VerificationStatusNotAnchored        VerificationStatus = "not_anchored"
	VerificationStatusHashMismatch       VerificationStatus = "hash_mismatch"
	VerificationStatusCredentialNotFound VerificationStatus = "credential_not_found"
)

// VerificationResult compares the anchored hash with the one recomputed from the agent record
type VerificationResult struct {
	CredentialExchangeID string
	Status               VerificationStatus
	Verified             bool
	StoredHash           *common.Hash
	RecomputedHash       *common.Hash
	Credential           *CredentialExchangeRecord
}

// ReanchorStatus is the outcome of an explicit re-anchor
type ReanchorStatus string

// Re-anchor outcomes
const (
	ReanchorStatusAnchored        ReanchorStatus = "anchored"
	ReanchorStatusAlreadyAnchored ReanchorStatus = "already_anchored"
	ReanchorStatusHashMismatch    ReanchorStatus = "hash_mismatch"
)

// ReanchorResult is returned when an issued but unanchored credential is anchored again
type ReanchorResult struct {
	CredentialExchangeID string
	Status               ReanchorStatus
	ContentHash          common.Hash
	StoredHash           *common.Hash
	LedgerReceipt        *LedgerReceipt
}
