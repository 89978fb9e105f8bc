package domain

import (
	"encoding/json"
	"sort"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// CredentialAttribute is a name/value pair of an issued credential. Values are always strings.
type CredentialAttribute struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// CredentialExchangeRecord is the issuance instance kept by the agent
type CredentialExchangeRecord struct {
	CredentialExchangeID   string
	CredentialDefinitionID string
	SchemaID               string
	ConnectionID           string
	Attributes             []CredentialAttribute
	State                  string
	IssuedAt               time.Time
}

// Attribute returns the value of the named attribute
func (r *CredentialExchangeRecord) Attribute(name string) (string, bool) {
	for _, a := range r.Attributes {
		if a.Name == name {
			return a.Value, true
		}
	}
	return "", false
}

// canonicalRecord holds the fields of a CredentialExchangeRecord that never change once the
// agent created it. The agent side state and timestamps of later protocol steps are left out.
type canonicalRecord struct {
	CredentialExchangeID   string                `json:"credential_exchange_id"`
	CredentialDefinitionID string                `json:"credential_definition_id"`
	ConnectionID           string                `json:"connection_id"`
	Attributes             []CredentialAttribute `json:"attributes"`
	IssuedAt               string                `json:"issued_at"`
}

// CanonicalJSON returns the serialization the content hash is computed over.
// Attributes are sorted by name and the issue time is rendered in UTC.
func (r *CredentialExchangeRecord) CanonicalJSON() ([]byte, error) {
	attrs := make([]CredentialAttribute, len(r.Attributes))
	copy(attrs, r.Attributes)
	sort.SliceStable(attrs, func(i, j int) bool { return attrs[i].Name < attrs[j].Name })

	return json.Marshal(canonicalRecord{
		CredentialExchangeID:   r.CredentialExchangeID,
		CredentialDefinitionID: r.CredentialDefinitionID,
		ConnectionID:           r.ConnectionID,
		Attributes:             attrs,
		IssuedAt:               r.IssuedAt.UTC().Format(time.RFC3339Nano),
	})
}

// ContentHash is the keccak256 of the canonical serialization of the record
func (r *CredentialExchangeRecord) ContentHash() (common.Hash, error) {
	b, err := r.CanonicalJSON()
	if err != nil {
		return common.Hash{}, err
	}
	return crypto.Keccak256Hash(b), nil
}

// IssuanceStatus is the outcome of an issuance request
type IssuanceStatus string

// Issuance outcomes
const (
	IssuanceStatusIssuedAnchored             IssuanceStatus = "issued_anchored"
	IssuanceStatusIssuedUnanchored           IssuanceStatus = "issued_unanchored"
	IssuanceStatusRejectedInactiveConnection IssuanceStatus = "issuance_rejected_inactive_connection"
	IssuanceStatusFailedBeforeIssuance       IssuanceStatus = "failed_before_issuance"

	// IssuanceStatusAnchorMismatch is only held by local records whose key is anchored with another hash.
	// The key is write once, so the record needs manual repair and is no longer pending.
	IssuanceStatusAnchorMismatch IssuanceStatus = "anchor_mismatch"
)

// LedgerReceipt identifies the ledger transaction that anchored a hash
type LedgerReceipt struct {
	TransactionRef string    `json:"transactionRef"`
	BlockRef       uint64    `json:"blockRef"`
	BlockHash      string    `json:"blockHash,omitempty"`
	GasUsed        uint64    `json:"gasUsed,omitempty"`
	AnchoredAt     time.Time `json:"anchoredAt"`
}

// AnchorRecord is the ledger side commitment of a credential. A key is written once.
type AnchorRecord struct {
	Key         string
	ContentHash common.Hash
	Receipt     LedgerReceipt
}

// AnchorMetadata is the auxiliary information stored next to an anchored hash
type AnchorMetadata struct {
	Timestamp   int64  `json:"timestamp"`
	Issuer      string `json:"issuer"`
	Type        string `json:"type"`
	BlockNumber uint64 `json:"blockNumber"`
}

// IssuanceResult is returned by the issuance workflow
type IssuanceResult struct {
	CredentialExchangeID string
	Status               IssuanceStatus
	ConnectionState      ConnectionState
	ContentHash          *common.Hash
	LedgerReceipt        *LedgerReceipt
	Error                string
}

// Credential is the local record of an issuance outcome
type Credential struct {
	ID                     string
	ConnectionID           string
	CredentialDefinitionID string
	Attributes             []CredentialAttribute
	ContentHash            *common.Hash
	Status                 IssuanceStatus
	TransactionRef         *string
	BlockRef               *uint64
	Error                  *string
	IssuedAt               time.Time
	AnchoredAt             *time.Time
	CreatedAt              time.Time
	ModifiedAt             time.Time
}

// NewCredential builds the local record of a credential the agent just issued
func NewCredential(record *CredentialExchangeRecord, hash common.Hash) *Credential {
	now := time.Now().UTC()
	return &Credential{
		ID:                     record.CredentialExchangeID,
		ConnectionID:           record.ConnectionID,
		CredentialDefinitionID: record.CredentialDefinitionID,
		Attributes:             record.Attributes,
		ContentHash:            &hash,
		Status:                 IssuanceStatusIssuedUnanchored,
		IssuedAt:               record.IssuedAt,
		CreatedAt:              now,
		ModifiedAt:             now,
	}
}

// MarkAnchored records the ledger receipt
func (c *Credential) MarkAnchored(receipt LedgerReceipt) {
	txRef := receipt.TransactionRef
	block := receipt.BlockRef
	anchoredAt := receipt.AnchoredAt
	c.Status = IssuanceStatusIssuedAnchored
	c.TransactionRef = &txRef
	c.BlockRef = &block
	c.AnchoredAt = &anchoredAt
	c.Error = nil
	c.ModifiedAt = time.Now().UTC()
}

// MarkUnanchored records why the anchor failed
func (c *Credential) MarkUnanchored(cause error) {
	c.Status = IssuanceStatusIssuedUnanchored
	if cause != nil {
		msg := cause.Error()
		c.Error = &msg
	}
	c.ModifiedAt = time.Now().UTC()
}

// MarkAnchorMismatch records that the ledger holds another hash under the credential key
func (c *Credential) MarkAnchorMismatch(stored common.Hash) {
	msg := "ledger holds " + stored.Hex()
	c.Status = IssuanceStatusAnchorMismatch
	c.Error = &msg
	c.ModifiedAt = time.Now().UTC()
}
