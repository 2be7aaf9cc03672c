// Package txcodec builds the exact calldata the arcade payment contract
// expects. The contract interface is frozen: a selector mismatch does not
// fail here, it reverts on chain, so the signatures below must never drift.
package txcodec

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/thisyearnofear/writersarcade-sub002/types"
	"github.com/thisyearnofear/writersarcade-sub002/utils"
)

// Function signatures of the payment contract.
const (
	sigApprove    = "approve(address,uint256)"
	sigPayGen     = "payForGeneration(address,address)"
	sigPayMint    = "payForMint(address,address)"
	wordSize      = 32
	selectorSize  = 4
	maxAmountBits = 256
)

var (
	selectorApprove = selector(sigApprove)
	selectorPayGen  = selector(sigPayGen)
	selectorPayMint = selector(sigPayMint)
)

func selector(sig string) [selectorSize]byte {
	var out [selectorSize]byte
	copy(out[:], crypto.Keccak256([]byte(sig))[:selectorSize])
	return out
}

// EncodeApproval builds calldata for the standard token approval:
// selector, spender left-padded to 32 bytes, amount as a 32-byte
// big-endian integer.
func EncodeApproval(spender string, amount *big.Int) ([]byte, error) {
	if err := utils.ValidateAddress(spender); err != nil {
		return nil, fmt.Errorf("spender: %w", err)
	}
	if amount == nil || amount.Sign() < 0 {
		return nil, fmt.Errorf("amount must be a non-negative integer")
	}
	if amount.BitLen() > maxAmountBits {
		return nil, fmt.Errorf("amount exceeds uint256")
	}

	payload := make([]byte, 0, selectorSize+2*wordSize)
	payload = append(payload, selectorApprove[:]...)
	payload = append(payload, padAddress(spender)...)
	payload = append(payload, padBig(amount)...)
	return payload, nil
}

// EncodePayment builds calldata for the payment call. Generation-class
// actions (content generation, minigame) and the mint action use separate
// contract functions with an identical (coin, payer) argument layout.
func EncodePayment(coinAddress, payerAddress string, action types.PaymentAction) ([]byte, error) {
	if err := utils.ValidateAddress(coinAddress); err != nil {
		return nil, fmt.Errorf("coin address: %w", err)
	}
	if err := utils.ValidateAddress(payerAddress); err != nil {
		return nil, fmt.Errorf("payer address: %w", err)
	}

	var sel [selectorSize]byte
	switch {
	case action.IsGenerationClass():
		sel = selectorPayGen
	case action.IsMintClass():
		sel = selectorPayMint
	default:
		return nil, types.NewArcadeError(types.ErrConfig, fmt.Sprintf("unknown payment action %q", action))
	}

	payload := make([]byte, 0, selectorSize+2*wordSize)
	payload = append(payload, sel[:]...)
	payload = append(payload, padAddress(coinAddress)...)
	payload = append(payload, padAddress(payerAddress)...)
	return payload, nil
}

func padAddress(addr string) []byte {
	a := common.HexToAddress(addr)
	return append(make([]byte, wordSize-common.AddressLength), a.Bytes()...)
}

func padBig(n *big.Int) []byte {
	b := n.Bytes()
	padded := make([]byte, wordSize)
	copy(padded[wordSize-len(b):], b)
	return padded
}
