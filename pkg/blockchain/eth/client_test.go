package eth

import (
	"context"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubBackend struct {
	Backend
	baseFee  *big.Int
	price    *big.Int
	tip      *big.Int
	tipErr   error
	block    int64
	receipts map[common.Hash]*types.Receipt
}

func (s *stubBackend) HeaderByNumber(context.Context, *big.Int) (*types.Header, error) {
	return &types.Header{Number: big.NewInt(s.block), BaseFee: s.baseFee, GasLimit: 30_000_000, GasUsed: 15_000_000}, nil
}

func (s *stubBackend) PendingNonceAt(context.Context, common.Address) (uint64, error) {
	return 7, nil
}

func (s *stubBackend) SuggestGasPrice(context.Context) (*big.Int, error) {
	return new(big.Int).Set(s.price), nil
}

func (s *stubBackend) SuggestGasTipCap(context.Context) (*big.Int, error) {
	return s.tip, s.tipErr
}

func (s *stubBackend) TransactionReceipt(_ context.Context, hash common.Hash) (*types.Receipt, error) {
	r, ok := s.receipts[hash]
	if !ok {
		return nil, ethereum.NotFound
	}
	return r, nil
}

func TestClient_CreateRawTx(t *testing.T) {
	ctx := context.Background()
	params := TransactionParams{GasLimit: 50_000, ToAddress: common.HexToAddress("0x01")}

	t.Run("legacy clamps to min price", func(t *testing.T) {
		c := NewClient(&stubBackend{price: big.NewInt(100)}, &ClientConfig{MinGasPrice: big.NewInt(1000)})
		tx, err := c.CreateRawTx(ctx, params)
		require.NoError(t, err)
		assert.Equal(t, uint8(types.LegacyTxType), tx.Type())
		assert.Equal(t, int64(1000), tx.GasPrice().Int64())
		assert.Equal(t, uint64(7), tx.Nonce())
	})

	t.Run("legacy adds ten percent", func(t *testing.T) {
		c := NewClient(&stubBackend{price: big.NewInt(1000)}, &ClientConfig{})
		tx, err := c.CreateRawTx(ctx, params)
		require.NoError(t, err)
		assert.Equal(t, int64(1100), tx.GasPrice().Int64())
	})

	t.Run("legacy forced price", func(t *testing.T) {
		c := NewClient(&stubBackend{price: big.NewInt(1)}, &ClientConfig{MinGasPrice: big.NewInt(500), MaxGasPrice: big.NewInt(500)})
		tx, err := c.CreateRawTx(ctx, params)
		require.NoError(t, err)
		assert.Equal(t, int64(500), tx.GasPrice().Int64())
	})

	t.Run("dynamic fee capped by max price", func(t *testing.T) {
		c := NewClient(&stubBackend{baseFee: big.NewInt(1000), tip: big.NewInt(5000)}, &ClientConfig{MaxGasPrice: big.NewInt(2000)})
		tx, err := c.CreateRawTx(ctx, params)
		require.NoError(t, err)
		assert.Equal(t, uint8(types.DynamicFeeTxType), tx.Type())
		assert.Equal(t, int64(2000), tx.GasFeeCap().Int64())
		assert.Equal(t, int64(2000), tx.GasTipCap().Int64())
	})

	t.Run("dev node without tip support", func(t *testing.T) {
		b := &stubBackend{baseFee: big.NewInt(1000), tipErr: errString("method eth_maxPriorityFeePerGas not found")}
		tx, err := NewClient(b, &ClientConfig{}).CreateRawTx(ctx, params)
		require.NoError(t, err)
		assert.Equal(t, int64(0), tx.GasTipCap().Int64())
	})
}

func TestClient_WaitTransactionReceiptByID(t *testing.T) {
	ctx := context.Background()
	mined := common.HexToHash("0xaa")
	b := &stubBackend{block: 10, receipts: map[common.Hash]*types.Receipt{
		mined: {Status: types.ReceiptStatusSuccessful, BlockNumber: big.NewInt(10)},
	}}
	c := NewClient(b, &ClientConfig{
		ReceiptTimeout:       50 * time.Millisecond,
		WaitReceiptCycleTime: 5 * time.Millisecond,
	})

	receipt, err := c.WaitTransactionReceiptByID(ctx, mined.Hex())
	require.NoError(t, err)
	assert.Equal(t, int64(10), receipt.BlockNumber.Int64())

	_, err = c.WaitTransactionReceiptByID(ctx, common.HexToHash("0xbb").Hex())
	assert.ErrorIs(t, err, ErrReceiptNotReceived)
}

type errString string

func (e errString) Error() string { return string(e) }
