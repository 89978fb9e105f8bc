package blockchain

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/polygonid/academic-bridge/internal/config"
)

func TestNewLedger_InvalidAddress(t *testing.T) {
	_, err := NewLedger(context.Background(), config.Ledger{URL: "http://localhost:8545", ContractAddress: "not-an-address"})
	assert.ErrorContains(t, err, "invalid credential store address")
}
