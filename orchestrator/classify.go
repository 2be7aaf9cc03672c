package orchestrator

import (
	"strings"

	"github.com/thisyearnofear/writersarcade-sub002/types"
)

// Category is the normalized failure classification. Every raw error in
// the payment flow is folded into exactly one category, which carries the
// user-facing message and decides retryability.
type Category struct {
	Code      string
	Retryable bool
	Message   string
}

var (
	catWalletUnavailable   = Category{types.ErrWalletUnavailable, false, "No wallet available. Install a wallet or open the app in a supported host."}
	catRejected            = Category{types.ErrPaymentRejected, false, "Payment cancelled in your wallet."}
	catWrongChain          = Category{types.ErrWrongChain, false, "Your wallet is on the wrong network and could not switch."}
	catInsufficientBalance = Category{types.ErrPaymentReverted, false, "Insufficient token balance for this payment."}
	catAllowance           = Category{types.ErrPaymentReverted, false, "Token approval required. Approve spending and try again."}
	catInvalidAddress      = Category{types.ErrPaymentReverted, false, "Invalid payment address."}
	catReverted            = Category{types.ErrPaymentReverted, false, "The payment transaction failed on chain."}
	catTimeout             = Category{types.ErrTimeout, true, "The request timed out. Retrying."}
	catNetwork             = Category{types.ErrNetwork, true, "A network error occurred. Retrying."}
	catVerification        = Category{types.ErrVerification, true, "Could not confirm the payment yet. Retrying."}
	catConfig              = Category{types.ErrConfig, false, "Payment is not configured for this token."}
	catGeneric             = Category{types.ErrPaymentReverted, false, "Payment failed. Please try again later."}
)

// Classify maps a raw error onto a category. Typed errors classify by
// code; everything else falls back to substring matching on the message,
// which is all a wallet's error text gives us.
func Classify(err error) Category {
	if err == nil {
		return Category{}
	}
	switch types.CodeOf(err) {
	case types.ErrWalletUnavailable, types.ErrAddressResolution:
		return catWalletUnavailable
	case types.ErrConfig:
		return catConfig
	case types.ErrVerification:
		return catVerification
	case types.ErrTimeout:
		return catTimeout
	case types.ErrNetwork:
		return catNetwork
	}
	return ClassifyMessage(err.Error())
}

// ClassifyMessage classifies a raw failure string from a wallet or RPC
// node.
func ClassifyMessage(msg string) Category {
	lower := strings.ToLower(msg)
	switch {
	case contains(lower, "user rejected", "denied", "declined", "cancelled by user"):
		return catRejected
	case contains(lower, "wrong chain", "chain mismatch"):
		return catWrongChain
	case contains(lower, "insufficient balance", "insufficient funds", "transfer amount exceeds balance"):
		return catInsufficientBalance
	case contains(lower, "allowance", "not approved"):
		return catAllowance
	case contains(lower, "invalid address", "bad address", "invalid recipient"):
		return catInvalidAddress
	case contains(lower, "timeout", "timed out", "deadline exceeded"):
		return catTimeout
	case contains(lower, "connection refused", "connection reset", "no such host", "network", "eof", "temporarily unavailable", "503", "502"):
		return catNetwork
	case contains(lower, "revert", "execution failed"):
		return catReverted
	}
	return catGeneric
}

func contains(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
