package eth

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/consensus/misc/eip1559"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/params"

	"github.com/polygonid/academic-bridge/internal/log"
)

// baseFeeMarginPercent is added on top of the next block base fee. Unused gas is refunded on dynamic fee transactions.
const baseFeeMarginPercent = 25

var (
	// ErrPrivateKeyNil when private key is nil
	ErrPrivateKeyNil = errors.New("authorized calls can't be made with empty private key")
	// ErrReceiptStatusFailed when the transaction was mined but reverted
	ErrReceiptStatusFailed = errors.New("receipt status is failed")
	// ErrReceiptNotReceived when the receipt did not show up before the receipt timeout
	ErrReceiptNotReceived = errors.New("receipt not available")
)

// Backend is the subset of the JSON-RPC API the client needs. *ethclient.Client implements it.
type Backend interface {
	bind.ContractBackend
	ChainID(ctx context.Context) (*big.Int, error)
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
}

// Client sends the anchoring transactions and reads the credential store.
// Every call to the node is bounded by RPCResponseTimeout.
type Client struct {
	backend Backend
	Config  *ClientConfig
}

// ClientConfig eth client config
type ClientConfig struct {
	ReceiptTimeout         time.Duration
	ConfirmationTimeout    time.Duration
	ConfirmationBlockCount int64
	MinGasPrice            *big.Int
	MaxGasPrice            *big.Int
	RPCResponseTimeout     time.Duration
	WaitReceiptCycleTime   time.Duration
	WaitBlockCycleTime     time.Duration
}

// NewClient creates a Client instance.
func NewClient(backend Backend, c *ClientConfig) *Client {
	return &Client{backend: backend, Config: c}
}

// Backend returns the underlying backend, suitable to bind contracts
func (c *Client) Backend() Backend {
	return c.backend
}

func (c *Client) rpcContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.Config.RPCResponseTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, c.Config.RPCResponseTimeout)
}

// CallOpts returns the options of a read only call bounded by the rpc timeout. cancel must be called when done.
func (c *Client) CallOpts(ctx context.Context) (*bind.CallOpts, context.CancelFunc) {
	rpcCtx, cancel := c.rpcContext(ctx)
	return &bind.CallOpts{Context: rpcCtx}, cancel
}

// Sign signs tx with privateKey for the chain the backend is connected to
func (c *Client) Sign(ctx context.Context, tx *types.Transaction, privateKey *ecdsa.PrivateKey) (*types.Transaction, error) {
	if privateKey == nil {
		return nil, ErrPrivateKeyNil
	}
	rpcCtx, cancel := c.rpcContext(ctx)
	defer cancel()
	chainID, err := c.backend.ChainID(rpcCtx)
	if err != nil {
		return nil, fmt.Errorf("failed to get chainID: %w", err)
	}
	signed, err := types.SignTx(tx, types.LatestSignerForChainID(chainID), privateKey)
	if err != nil {
		return nil, fmt.Errorf("failed sign transaction: %w", err)
	}
	return signed, nil
}

// CurrentBlock returns the latest block header
func (c *Client) CurrentBlock(ctx context.Context) (*types.Header, error) {
	rpcCtx, cancel := c.rpcContext(ctx)
	defer cancel()
	return c.backend.HeaderByNumber(rpcCtx, nil)
}

// TransactionParams settings for transaction.
type TransactionParams struct {
	BaseFee     *big.Int
	GasTips     *big.Int
	Nonce       *uint64
	GasLimit    uint64
	FromAddress common.Address
	ToAddress   common.Address
	Payload     []byte
}

// EstimateGas estimates the gas the transaction described by txParams would consume
func (c *Client) EstimateGas(ctx context.Context, txParams TransactionParams) (uint64, error) {
	rpcCtx, cancel := c.rpcContext(ctx)
	defer cancel()
	return c.backend.EstimateGas(rpcCtx, ethereum.CallMsg{
		From:  txParams.FromAddress,
		To:    &txParams.ToAddress,
		Value: big.NewInt(0),
		Data:  txParams.Payload,
	})
}

// CreateRawTx creates an unsigned transaction. A dynamic fee transaction is built when the chain
// supports the london fork, a legacy one otherwise. The gas is estimated when GasLimit is zero.
func (c *Client) CreateRawTx(ctx context.Context, txParams TransactionParams) (*types.Transaction, error) {
	if txParams.Nonce == nil {
		nonce, err := c.pendingNonce(ctx, txParams.FromAddress)
		if err != nil {
			return nil, err
		}
		txParams.Nonce = &nonce
	}

	if txParams.GasLimit == 0 {
		gas, err := c.EstimateGas(ctx, txParams)
		if err != nil {
			return nil, fmt.Errorf("failed to estimate gas: %w", err)
		}
		txParams.GasLimit = gas
	}

	head, err := c.CurrentBlock(ctx)
	if err != nil {
		return nil, err
	}

	if head.BaseFee == nil {
		gasPrice, err := c.legacyGasPrice(ctx)
		if err != nil {
			return nil, err
		}
		return types.NewTx(&types.LegacyTx{
			To:       &txParams.ToAddress,
			Nonce:    *txParams.Nonce,
			Gas:      txParams.GasLimit,
			GasPrice: gasPrice,
			Value:    big.NewInt(0),
			Data:     txParams.Payload,
		}), nil
	}

	if txParams.BaseFee == nil {
		next := eip1559.CalcBaseFee(&params.ChainConfig{LondonBlock: big.NewInt(0)}, head)
		txParams.BaseFee = withPercent(next, baseFeeMarginPercent)
	}
	if txParams.GasTips == nil {
		tip, err := c.gasTip(ctx)
		if err != nil {
			return nil, err
		}
		txParams.GasTips = tip
	}

	feeCap := new(big.Int).Add(txParams.BaseFee, txParams.GasTips)
	if positive(c.Config.MaxGasPrice) && feeCap.Cmp(c.Config.MaxGasPrice) > 0 {
		feeCap.Set(c.Config.MaxGasPrice)
		if txParams.GasTips.Cmp(feeCap) > 0 {
			txParams.GasTips = new(big.Int).Set(feeCap)
		}
	}

	return types.NewTx(&types.DynamicFeeTx{
		To:        &txParams.ToAddress,
		Nonce:     *txParams.Nonce,
		Gas:       txParams.GasLimit,
		Value:     big.NewInt(0),
		Data:      txParams.Payload,
		GasTipCap: txParams.GasTips,
		GasFeeCap: feeCap,
	}), nil
}

// SendRawTx send raw transaction.
func (c *Client) SendRawTx(ctx context.Context, tx *types.Transaction) error {
	rpcCtx, cancel := c.rpcContext(ctx)
	defer cancel()
	return c.backend.SendTransaction(rpcCtx, tx)
}

// WaitTransactionReceiptByID waits for the transaction receipt until the receipt timeout or ctx is done.
// When a confirmation block count is configured it also waits for the confirmations.
func (c *Client) WaitTransactionReceiptByID(ctx context.Context, txID string) (*types.Receipt, error) {
	receipt, err := c.waitReceipt(ctx, common.HexToHash(txID))
	if err != nil {
		return nil, err
	}
	if c.Config.ConfirmationBlockCount > 0 && receipt.BlockNumber != nil {
		target := new(big.Int).Add(receipt.BlockNumber, big.NewInt(c.Config.ConfirmationBlockCount))
		if err := c.waitBlock(ctx, target); err != nil {
			return receipt, err
		}
	}
	return receipt, nil
}

func (c *Client) waitReceipt(ctx context.Context, txID common.Hash) (*types.Receipt, error) {
	ctx, cancel := context.WithTimeout(ctx, c.Config.ReceiptTimeout)
	defer cancel()

	ticker := time.NewTicker(c.Config.WaitReceiptCycleTime)
	defer ticker.Stop()
	for {
		rpcCtx, rpcCancel := c.rpcContext(ctx)
		receipt, err := c.backend.TransactionReceipt(rpcCtx, txID)
		rpcCancel()
		if err == nil && receipt != nil {
			return receipt, nil
		}
		if err != nil && !errors.Is(err, ethereum.NotFound) {
			log.Debug(ctx, "get transaction receipt", "tx", txID.Hex(), "err", err)
		}

		select {
		case <-ctx.Done():
			log.Debug(ctx, "receipt timeout", "tx", txID.Hex())
			return nil, ErrReceiptNotReceived
		case <-ticker.C:
		}
	}
}

func (c *Client) waitBlock(ctx context.Context, target *big.Int) error {
	ctx, cancel := context.WithTimeout(ctx, c.Config.ConfirmationTimeout)
	defer cancel()

	ticker := time.NewTicker(c.Config.WaitBlockCycleTime)
	defer ticker.Stop()
	for {
		head, err := c.CurrentBlock(ctx)
		if err != nil {
			return fmt.Errorf("waiting for block %s: %w", target, err)
		}
		if head.Number.Cmp(target) >= 0 {
			return nil
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("block %s not reached: %w", target, ctx.Err())
		case <-ticker.C:
		}
	}
}

func (c *Client) pendingNonce(ctx context.Context, from common.Address) (uint64, error) {
	rpcCtx, cancel := c.rpcContext(ctx)
	defer cancel()
	nonce, err := c.backend.PendingNonceAt(rpcCtx, from)
	if err != nil {
		return 0, fmt.Errorf("failed to get nonce: %w", err)
	}
	return nonce, nil
}

// gasTip falls back to a zero tip on dev nodes without eth_maxPriorityFeePerGas
func (c *Client) gasTip(ctx context.Context) (*big.Int, error) {
	rpcCtx, cancel := c.rpcContext(ctx)
	defer cancel()
	tip, err := c.backend.SuggestGasTipCap(rpcCtx)
	if err != nil && strings.Contains(err.Error(), "eth_maxPriorityFeePerGas") {
		log.Warn(ctx, "failed get suggest gas tip. use 0 instead", "err", err)
		return big.NewInt(0), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed get suggest gas tip: %w", err)
	}
	return tip, nil
}

// legacyGasPrice is the suggested price plus 10%, clamped to [MinGasPrice, MaxGasPrice].
// A configured min equal to max forces that price.
func (c *Client) legacyGasPrice(ctx context.Context) (*big.Int, error) {
	minPrice, maxPrice := c.Config.MinGasPrice, c.Config.MaxGasPrice
	if positive(minPrice) && maxPrice != nil && minPrice.Cmp(maxPrice) == 0 {
		return new(big.Int).Set(maxPrice), nil
	}

	rpcCtx, cancel := c.rpcContext(ctx)
	defer cancel()
	suggested, err := c.backend.SuggestGasPrice(rpcCtx)
	if err != nil {
		return nil, fmt.Errorf("failed to get suggested gas price: %w", err)
	}

	price := withPercent(suggested, 10)
	if positive(minPrice) && price.Cmp(minPrice) < 0 {
		price.Set(minPrice)
	}
	if positive(maxPrice) && price.Cmp(maxPrice) > 0 {
		price.Set(maxPrice)
	}
	log.Debug(ctx, "gas price", "suggested", suggested, "used", price)
	return price, nil
}

func withPercent(v *big.Int, percent int64) *big.Int {
	inc := new(big.Int).Mul(v, big.NewInt(percent))
	inc.Div(inc, big.NewInt(100))
	return inc.Add(inc, v)
}

func positive(v *big.Int) bool {
	return v != nil && v.Sign() > 0
}
