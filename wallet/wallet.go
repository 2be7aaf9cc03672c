// Package wallet abstracts transaction signing behind one Provider
// interface with interchangeable backends: an embedded in-process key
// signer and an external signer node reached over JSON-RPC.
package wallet

import (
	"context"
	"fmt"

	"github.com/thisyearnofear/writersarcade-sub002/types"
)

// Provider is the capability surface every signing backend implements.
// Expected failures (no signer, user declined, revert) come back inside
// TransactionResult; Go errors are reserved for unexpected conditions.
type Provider interface {
	Name() string
	Available(ctx context.Context) bool
	Address(ctx context.Context) (string, error)
	ChainID(ctx context.Context) (int64, error)
	SendTransaction(ctx context.Context, req types.TransactionRequest) types.TransactionResult
}

// ChainSwitcher is implemented by providers that can move the active
// chain before submission.
type ChainSwitcher interface {
	SwitchChain(ctx context.Context, chainID int64) error
}

// AccountWatcher is implemented by providers that can report account
// changes.
type AccountWatcher interface {
	OnAccountChange(fn func(address string))
}

// Detect returns the first available provider. Candidates are tried in
// order, so callers list the embedded signer before the external one.
func Detect(ctx context.Context, candidates ...Provider) (Provider, error) {
	for _, p := range candidates {
		if p == nil {
			continue
		}
		if p.Available(ctx) {
			return p, nil
		}
	}
	return nil, types.NewArcadeError(types.ErrWalletUnavailable, "no wallet provider available")
}

// Canonical failure phrases carried in TransactionResult.Error so the
// orchestrator's classifier can recognize them.
const (
	msgWrongChain   = "wrong chain"
	msgUserRejected = "user rejected"
)

func wrongChainResult(active, want int64) types.TransactionResult {
	return types.TransactionResult{
		Success: false,
		Error:   fmt.Sprintf("%s: provider is on chain %d, transaction targets chain %d", msgWrongChain, active, want),
	}
}
