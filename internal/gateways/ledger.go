package gateways

import (
	"context"
	"crypto/ecdsa"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/pkg/errors"

	"github.com/polygonid/academic-bridge/internal/core/domain"
	"github.com/polygonid/academic-bridge/internal/core/ports"
	"github.com/polygonid/academic-bridge/internal/log"
	"github.com/polygonid/academic-bridge/pkg/blockchain/eth"
)

const (
	methodStoreCredential = "storeCredential"
	methodStoreMetadata   = "storeMetadata"
)

// LedgerConfig holds the write settings of the ledger gateway
type LedgerConfig struct {
	ContractAddress  common.Address
	PrivateKey       string
	GasLimit         uint64
	GasMarginPercent uint64
}

// Ledger anchors credential hashes in the CredentialStore contract.
// Only nonce allocation, signing and sending are serialized. Receipts are awaited concurrently.
type Ledger struct {
	sendMu   sync.Mutex
	client   *eth.Client
	store    *eth.CredentialStore
	abi      *abi.ABI
	contract common.Address
	key      *ecdsa.PrivateKey
	from     common.Address
	gasLimit uint64
	margin   uint64
}

// NewLedger creates new instance of the ledger gateway
func NewLedger(client *eth.Client, cfg LedgerConfig) (*Ledger, error) {
	if cfg.GasLimit == 0 {
		return nil, errors.New("gas limit is required")
	}
	key, err := crypto.HexToECDSA(strings.TrimPrefix(cfg.PrivateKey, "0x"))
	if err != nil {
		return nil, errors.Wrap(err, "invalid ledger private key")
	}
	store, err := eth.NewCredentialStore(cfg.ContractAddress, client.Backend())
	if err != nil {
		return nil, errors.WithStack(err)
	}
	parsed, err := eth.CredentialStoreMetaData.GetAbi()
	if err != nil {
		return nil, errors.WithStack(err)
	}
	return &Ledger{
		client:   client,
		store:    store,
		abi:      parsed,
		contract: cfg.ContractAddress,
		key:      key,
		from:     crypto.PubkeyToAddress(key.PublicKey),
		gasLimit: cfg.GasLimit,
		margin:   cfg.GasMarginPercent,
	}, nil
}

// Anchor writes hash under key. A key is written only once: if it already holds a hash
// ErrDuplicateKey is returned, whatever the stored value is.
func (l *Ledger) Anchor(ctx context.Context, key string, hash common.Hash) (*domain.LedgerReceipt, error) {
	ctx = log.With(ctx, "key", key, "hash", hash.Hex())

	if _, err := l.Lookup(ctx, key); err == nil {
		return nil, fmt.Errorf("%w: %s", ports.ErrDuplicateKey, key)
	} else if !errors.Is(err, ports.ErrNotAnchored) {
		return nil, err
	}

	payload, err := l.abi.Pack(methodStoreCredential, key, [32]byte(hash))
	if err != nil {
		return nil, errors.WithStack(err)
	}

	tx, receipt, err := l.transact(ctx, payload)
	if err != nil {
		if errors.Is(err, errReverted) {
			return nil, l.explainRevert(ctx, key, err)
		}
		return nil, err
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		if receipt.GasUsed >= tx.Gas() {
			return nil, fmt.Errorf("%w: tx %s used all of its %d gas", ports.ErrGasExhausted, tx.Hash().Hex(), tx.Gas())
		}
		return nil, l.explainRevert(ctx, key, fmt.Errorf("tx %s: %w", tx.Hash().Hex(), eth.ErrReceiptStatusFailed))
	}

	r := &domain.LedgerReceipt{
		TransactionRef: tx.Hash().Hex(),
		BlockHash:      receipt.BlockHash.Hex(),
		GasUsed:        receipt.GasUsed,
		AnchoredAt:     time.Now().UTC(),
	}
	if receipt.BlockNumber != nil {
		r.BlockRef = receipt.BlockNumber.Uint64()
	}
	log.Info(ctx, "hash anchored", "tx", r.TransactionRef, "block", r.BlockRef, "gasUsed", r.GasUsed)
	return r, nil
}

// Lookup returns the hash anchored under key or ErrNotAnchored
func (l *Ledger) Lookup(ctx context.Context, key string) (common.Hash, error) {
	opts, cancel := l.client.CallOpts(ctx)
	defer cancel()
	stored, err := l.store.GetCredential(opts, key)
	if err != nil {
		return common.Hash{}, fmt.Errorf("%w: getCredential: %w", ports.ErrLedgerUnavailable, errors.WithStack(err))
	}
	if stored == [32]byte{} {
		return common.Hash{}, fmt.Errorf("%w: %s", ports.ErrNotAnchored, key)
	}
	return common.Hash(stored), nil
}

// StoreMetadata writes the auxiliary metadata of an anchored credential
func (l *Ledger) StoreMetadata(ctx context.Context, key string, metadata domain.AnchorMetadata) error {
	raw, err := json.Marshal(metadata)
	if err != nil {
		return errors.WithStack(err)
	}
	payload, err := l.abi.Pack(methodStoreMetadata, key, string(raw))
	if err != nil {
		return errors.WithStack(err)
	}
	tx, receipt, err := l.transact(ctx, payload)
	if err != nil {
		return err
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return fmt.Errorf("%w: tx %s: %w", ports.ErrLedgerUnavailable, tx.Hash().Hex(), eth.ErrReceiptStatusFailed)
	}
	return nil
}

// GetMetadata reads the auxiliary metadata of an anchored credential
func (l *Ledger) GetMetadata(ctx context.Context, key string) (*domain.AnchorMetadata, error) {
	opts, cancel := l.client.CallOpts(ctx)
	defer cancel()
	raw, err := l.store.GetMetadata(opts, key)
	if err != nil {
		return nil, fmt.Errorf("%w: getMetadata: %w", ports.ErrLedgerUnavailable, errors.WithStack(err))
	}
	if raw == "" {
		return nil, fmt.Errorf("%w: no metadata for %s", ports.ErrNotAnchored, key)
	}
	var md domain.AnchorMetadata
	if err := json.Unmarshal([]byte(raw), &md); err != nil {
		return nil, errors.Wrap(err, "decoding anchor metadata")
	}
	return &md, nil
}

// Ping checks the rpc node answers
func (l *Ledger) Ping(ctx context.Context) error {
	if _, err := l.client.CurrentBlock(ctx); err != nil {
		return fmt.Errorf("%w: %w", ports.ErrLedgerUnavailable, err)
	}
	return nil
}

var errReverted = errors.New("execution reverted")

// transact estimates, signs and sends a transaction to the contract and waits for its receipt.
// The gas is the estimate plus the configured margin, never above the configured ceiling.
func (l *Ledger) transact(ctx context.Context, payload []byte) (*types.Transaction, *types.Receipt, error) {
	params := eth.TransactionParams{
		FromAddress: l.from,
		ToAddress:   l.contract,
		Payload:     payload,
	}

	estimate, err := l.client.EstimateGas(ctx, params)
	if err != nil {
		switch {
		case isOutOfGas(err):
			return nil, nil, fmt.Errorf("%w: %w", ports.ErrGasExhausted, err)
		case isRevert(err):
			return nil, nil, fmt.Errorf("%w: %w", errReverted, err)
		default:
			return nil, nil, fmt.Errorf("%w: estimating gas: %w", ports.ErrLedgerUnavailable, err)
		}
	}
	if estimate > l.gasLimit {
		return nil, nil, fmt.Errorf("%w: estimated %d above ceiling %d", ports.ErrGasExhausted, estimate, l.gasLimit)
	}

	gas := estimate * (100 + l.margin) / 100
	if gas > l.gasLimit {
		log.Warn(ctx, "gas escalation capped at the ceiling", "estimate", estimate, "wanted", gas, "ceiling", l.gasLimit)
		gas = l.gasLimit
	}
	params.GasLimit = gas
	log.Debug(ctx, "sending ledger transaction", "estimate", estimate, "gas", gas)

	signedTx, err := l.send(ctx, params)
	if err != nil {
		return nil, nil, err
	}

	receipt, err := l.client.WaitTransactionReceiptByID(ctx, signedTx.Hash().Hex())
	if err != nil {
		return signedTx, nil, fmt.Errorf("%w: tx %s: %w", ports.ErrLedgerUnavailable, signedTx.Hash().Hex(), err)
	}
	return signedTx, receipt, nil
}

// send allocates the nonce, signs and sends the transaction. The node counts a sent transaction
// in the pending nonce, so the lock is released before its receipt is awaited.
func (l *Ledger) send(ctx context.Context, params eth.TransactionParams) (*types.Transaction, error) {
	l.sendMu.Lock()
	defer l.sendMu.Unlock()

	tx, err := l.client.CreateRawTx(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ports.ErrLedgerUnavailable, err)
	}
	signedTx, err := l.client.Sign(ctx, tx, l.key)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	if err := l.client.SendRawTx(ctx, signedTx); err != nil {
		if isOutOfGas(err) {
			return nil, fmt.Errorf("%w: %w", ports.ErrGasExhausted, err)
		}
		return nil, fmt.Errorf("%w: sending tx: %w", ports.ErrLedgerUnavailable, err)
	}
	return signedTx, nil
}

// explainRevert turns a reverted write into ErrDuplicateKey when the key turns out to be already written
func (l *Ledger) explainRevert(ctx context.Context, key string, cause error) error {
	if _, err := l.Lookup(ctx, key); err == nil {
		return fmt.Errorf("%w: %s: %w", ports.ErrDuplicateKey, key, cause)
	}
	return fmt.Errorf("%w: %w", ports.ErrLedgerUnavailable, cause)
}

func isOutOfGas(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "out of gas") ||
		strings.Contains(msg, "gas required exceeds allowance") ||
		strings.Contains(msg, "intrinsic gas too low")
}

func isRevert(err error) bool {
	return strings.Contains(strings.ToLower(err.Error()), "revert")
}
