package blockchain

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/polygonid/academic-bridge/internal/config"
	"github.com/polygonid/academic-bridge/internal/gateways"
	"github.com/polygonid/academic-bridge/internal/log"
	"github.com/polygonid/academic-bridge/pkg/blockchain/eth"
)

// InitEthClient dials the ledger node and wraps it with the transaction settings of cfg
func InitEthClient(ctx context.Context, cfg config.Ledger) (*eth.Client, error) {
	ec, err := ethclient.DialContext(ctx, cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed connect to eth node %s: %w", cfg.URL, err)
	}

	clientConfig := &eth.ClientConfig{
		ReceiptTimeout:         cfg.ReceiptTimeout,
		ConfirmationTimeout:    cfg.ReceiptTimeout,
		ConfirmationBlockCount: cfg.ConfirmationBlockCount,
		RPCResponseTimeout:     cfg.RPCResponseTimeout,
		WaitReceiptCycleTime:   cfg.WaitReceiptCycleTime,
		WaitBlockCycleTime:     cfg.WaitReceiptCycleTime,
	}
	if cfg.MinGasPrice > 0 {
		clientConfig.MinGasPrice = big.NewInt(cfg.MinGasPrice)
	}
	if cfg.MaxGasPrice > 0 {
		clientConfig.MaxGasPrice = big.NewInt(cfg.MaxGasPrice)
	}
	return eth.NewClient(ec, clientConfig), nil
}

// NewLedger returns the ledger gateway writing to the credential store contract of cfg
func NewLedger(ctx context.Context, cfg config.Ledger) (*gateways.Ledger, error) {
	if !common.IsHexAddress(cfg.ContractAddress) {
		return nil, fmt.Errorf("invalid credential store address <%s>", cfg.ContractAddress)
	}

	client, err := InitEthClient(ctx, cfg)
	if err != nil {
		return nil, err
	}

	ledger, err := gateways.NewLedger(client, gateways.LedgerConfig{
		ContractAddress:  common.HexToAddress(cfg.ContractAddress),
		PrivateKey:       cfg.PrivateKey,
		GasLimit:         cfg.GasLimit,
		GasMarginPercent: cfg.GasMarginPercent,
	})
	if err != nil {
		return nil, err
	}
	log.Info(ctx, "ledger gateway ready", "contract", cfg.ContractAddress)
	return ledger, nil
}
