package orchestrator

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/thisyearnofear/writersarcade-sub002/types"
)

func TestClassifyMessage(t *testing.T) {
	tests := []struct {
		name      string
		msg       string
		wantCode  string
		retryable bool
	}{
		{"user rejection", "MetaMask Tx Signature: User denied transaction signature.", types.ErrPaymentRejected, false},
		{"rejection phrase", "user rejected the request", types.ErrPaymentRejected, false},
		{"wrong chain", "wrong chain: provider is on chain 1, transaction targets chain 8453", types.ErrWrongChain, false},
		{"insufficient funds", "insufficient funds for gas * price + value", types.ErrPaymentReverted, false},
		{"erc20 balance revert", "execution reverted: ERC20: transfer amount exceeds balance", types.ErrPaymentReverted, false},
		{"allowance", "execution reverted: insufficient allowance", types.ErrPaymentReverted, false},
		{"timeout", "context deadline exceeded", types.ErrTimeout, true},
		{"connection refused", "dial tcp 127.0.0.1:8545: connection refused", types.ErrNetwork, true},
		{"gateway error", "unexpected status 503", types.ErrNetwork, true},
		{"plain revert", "execution reverted", types.ErrPaymentReverted, false},
		{"unknown", "something odd happened", types.ErrPaymentReverted, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cat := ClassifyMessage(tt.msg)
			assert.Equal(t, tt.wantCode, cat.Code)
			assert.Equal(t, tt.retryable, cat.Retryable)
			assert.NotEmpty(t, cat.Message)
		})
	}
}

func TestClassifyTypedErrors(t *testing.T) {
	assert.False(t, Classify(types.NewArcadeError(types.ErrWalletUnavailable, "no wallet")).Retryable)
	assert.False(t, Classify(types.NewArcadeError(types.ErrConfig, "unknown token")).Retryable)
	assert.True(t, Classify(types.NewArcadeError(types.ErrVerification, "503")).Retryable)
	assert.True(t, Classify(types.NewArcadeError(types.ErrNetwork, "eof")).Retryable)

	// Untyped errors fall back to message matching.
	assert.True(t, Classify(errors.New("request timed out")).Retryable)
	assert.Equal(t, Category{}, Classify(nil))
}
