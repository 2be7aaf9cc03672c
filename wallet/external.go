package wallet

import (
	"context"
	"fmt"
	"math/big"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/thisyearnofear/writersarcade-sub002/types"
)

// rpcCaller is the slice of a JSON-RPC connection the external signer
// needs. *rpc.Client satisfies it.
type rpcCaller interface {
	CallContext(ctx context.Context, result interface{}, method string, args ...interface{}) error
}

// ExternalSigner talks to a user-controlled signer node over JSON-RPC,
// the connector equivalent of a browser-extension wallet. The node owns
// the keys; submissions go through eth_sendTransaction and may be
// declined by the user.
type ExternalSigner struct {
	rpc rpcCaller

	mu        sync.Mutex
	lastAddr  string
	listeners []func(address string)
}

func NewExternalSigner(rpc rpcCaller) *ExternalSigner {
	return &ExternalSigner{rpc: rpc}
}

func (s *ExternalSigner) Name() string { return "external" }

// Available probes the signer node for at least one unlocked account.
func (s *ExternalSigner) Available(ctx context.Context) bool {
	probeCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	accounts, err := s.accounts(probeCtx)
	return err == nil && len(accounts) > 0
}

func (s *ExternalSigner) Address(ctx context.Context) (string, error) {
	accounts, err := s.accounts(ctx)
	if err != nil {
		return "", types.NewArcadeError(types.ErrAddressResolution, "external signer: "+err.Error())
	}
	if len(accounts) == 0 {
		return "", types.NewArcadeError(types.ErrAddressResolution, "external signer exposes no accounts")
	}
	s.notifyIfChanged(accounts[0])
	return accounts[0], nil
}

func (s *ExternalSigner) ChainID(ctx context.Context) (int64, error) {
	var raw string
	if err := s.rpc.CallContext(ctx, &raw, "eth_chainId"); err != nil {
		return 0, err
	}
	id, err := strconv.ParseInt(strings.TrimPrefix(raw, "0x"), 16, 64)
	if err != nil {
		return 0, fmt.Errorf("parse chain id %q: %w", raw, err)
	}
	return id, nil
}

// SwitchChain asks the signer node to move to another chain.
func (s *ExternalSigner) SwitchChain(ctx context.Context, chainID int64) error {
	param := map[string]string{"chainId": hexutil.EncodeBig(big.NewInt(chainID))}
	return s.rpc.CallContext(ctx, nil, "wallet_switchEthereumChain", param)
}

// OnAccountChange registers a callback fired when Address observes a
// different active account than the previous call.
func (s *ExternalSigner) OnAccountChange(fn func(address string)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, fn)
}

// SendTransaction submits through the signer node. If the node sits on a
// different chain it attempts a switch first; a declined switch fails the
// submission rather than paying on the wrong chain.
func (s *ExternalSigner) SendTransaction(ctx context.Context, req types.TransactionRequest) types.TransactionResult {
	if req.ChainID != 0 {
		active, err := s.ChainID(ctx)
		if err != nil {
			return types.TransactionResult{Success: false, Error: "read active chain: " + err.Error()}
		}
		if active != req.ChainID {
			if err := s.SwitchChain(ctx, req.ChainID); err != nil {
				return wrongChainResult(active, req.ChainID)
			}
			if active, err = s.ChainID(ctx); err != nil || active != req.ChainID {
				return wrongChainResult(active, req.ChainID)
			}
		}
	}

	from, err := s.Address(ctx)
	if err != nil {
		return types.TransactionResult{Success: false, Error: err.Error()}
	}

	params := map[string]interface{}{
		"from": from,
		"to":   req.To,
		"data": hexutil.Encode(req.Data),
	}
	if req.Value != nil && req.Value.Sign() > 0 {
		params["value"] = hexutil.EncodeBig(req.Value)
	}

	var txHash string
	if err := s.rpc.CallContext(ctx, &txHash, "eth_sendTransaction", params); err != nil {
		return types.TransactionResult{Success: false, Error: normalizeRejection(err)}
	}
	return types.TransactionResult{Success: true, TxHash: txHash}
}

func (s *ExternalSigner) accounts(ctx context.Context) ([]string, error) {
	var accounts []string
	if err := s.rpc.CallContext(ctx, &accounts, "eth_accounts"); err != nil {
		return nil, err
	}
	return accounts, nil
}

func (s *ExternalSigner) notifyIfChanged(address string) {
	s.mu.Lock()
	changed := s.lastAddr != "" && s.lastAddr != address
	s.lastAddr = address
	listeners := append([]func(string){}, s.listeners...)
	s.mu.Unlock()

	if !changed {
		return
	}
	for _, fn := range listeners {
		fn(address)
	}
}

// normalizeRejection maps the signer node's decline messages onto the
// canonical phrase the classifier recognizes.
func normalizeRejection(err error) string {
	msg := err.Error()
	lower := strings.ToLower(msg)
	if strings.Contains(lower, "denied") || strings.Contains(lower, "rejected") || strings.Contains(lower, "declined") {
		return msgUserRejected + ": " + msg
	}
	return msg
}
