// Package types defines the shared data model for the Writers Arcade
// payment pipeline: actions, token configuration, costs, revenue splits,
// and the structured transaction request/result pair.
package types

import (
	"fmt"
	"math/big"
	"time"
)

// PaymentAction identifies what a user is paying for. The action selects
// the price table entry and the contract function used for settlement.
type PaymentAction string

const (
	ActionGenerateContent PaymentAction = "generate-content"
	ActionMintArtifact    PaymentAction = "mint-artifact"
	ActionPlayMinigame    PaymentAction = "play-minigame"
)

// IsGenerationClass reports whether the action settles through the
// generation payment function. The minigame action reuses the generation
// price and selector.
func (a PaymentAction) IsGenerationClass() bool {
	return a == ActionGenerateContent || a == ActionPlayMinigame
}

func (a PaymentAction) IsMintClass() bool {
	return a == ActionMintArtifact
}

func (a PaymentAction) Valid() bool {
	switch a {
	case ActionGenerateContent, ActionMintArtifact, ActionPlayMinigame:
		return true
	}
	return false
}

func (a PaymentAction) String() string { return string(a) }

// SplitPercentages is a revenue split expressed in whole percent.
type SplitPercentages struct {
	Writer   int64 `json:"writer" toml:"writer"`
	Platform int64 `json:"platform" toml:"platform"`
	Creator  int64 `json:"creator" toml:"creator"`
}

// TokenConfig describes a creator token accepted for payment. Configuration
// is loaded once at startup and treated as immutable afterwards.
type TokenConfig struct {
	ID       string `json:"id" toml:"id"`
	Symbol   string `json:"symbol" toml:"symbol"`
	Decimals int    `json:"decimals" toml:"decimals"`
	Address  string `json:"address" toml:"address"`

	// Prices holds whole-token prices keyed by action. The minigame action
	// falls back to the generate-content entry when absent.
	Prices map[PaymentAction]string `json:"prices" toml:"prices"`

	// DefaultSplit is used when the authoritative on-chain split cannot
	// be read.
	DefaultSplit SplitPercentages `json:"defaultSplit" toml:"default_split"`
}

// PriceFor returns the configured whole-token price string for an action.
func (t *TokenConfig) PriceFor(action PaymentAction) (string, bool) {
	if action == ActionPlayMinigame {
		if p, ok := t.Prices[ActionPlayMinigame]; ok {
			return p, true
		}
		action = ActionGenerateContent
	}
	p, ok := t.Prices[action]
	return p, ok
}

// Cost is the price of one action in a token's smallest unit. Derived on
// demand, never persisted.
type Cost struct {
	Action    PaymentAction `json:"action"`
	Amount    *big.Int      `json:"amount"`
	Formatted string        `json:"formatted"`
}

// RevenueDistribution splits a payment amount between the article writer,
// the platform, and the creator pool. PayerRefund is the portion the
// contract returns to the payer; it is zero for generation-class actions
// and makes the mint split explicit instead of leaving half the amount
// unaccounted for.
type RevenueDistribution struct {
	WriterShare   *big.Int `json:"writerShare"`
	PlatformShare *big.Int `json:"platformShare"`
	CreatorShare  *big.Int `json:"creatorShare"`
	PayerRefund   *big.Int `json:"payerRefund"`
}

// Total returns the sum of all shares including the refund.
func (d RevenueDistribution) Total() *big.Int {
	total := new(big.Int)
	for _, s := range []*big.Int{d.WriterShare, d.PlatformShare, d.CreatorShare, d.PayerRefund} {
		if s != nil {
			total.Add(total, s)
		}
	}
	return total
}

// TransactionRequest carries everything a wallet provider needs to submit
// a contract call.
type TransactionRequest struct {
	To      string   `json:"to"`
	Data    []byte   `json:"data"`
	Value   *big.Int `json:"value,omitempty"`
	ChainID int64    `json:"chainId"`
}

// TransactionResult reports the outcome of a submission. Expected failures
// (no signer, user declined, revert) come back as Success=false with Error
// set; the send path never panics for them.
type TransactionResult struct {
	Success bool   `json:"success"`
	TxHash  string `json:"txHash,omitempty"`
	Error   string `json:"error,omitempty"`
}

// PaymentStatus is the lifecycle state of a persisted payment record.
type PaymentStatus string

const (
	StatusPending  PaymentStatus = "pending"
	StatusVerified PaymentStatus = "verified"
	StatusFailed   PaymentStatus = "failed"
)

// Terminal reports whether the status can never change again.
func (s PaymentStatus) Terminal() bool {
	return s == StatusVerified || s == StatusFailed
}

// InitiateQuote is what the server hands back when a payment is initiated:
// the authoritative contract address and amount for the requested action.
type InitiateQuote struct {
	ContractAddress string              `json:"contractAddress"`
	TokenAddress    string              `json:"tokenAddress"`
	Amount          *big.Int            `json:"amount"`
	AmountFormatted string              `json:"amountFormatted"`
	Distribution    RevenueDistribution `json:"distribution"`
	ChainID         int64               `json:"chainId"`
}

// VerificationStatus is the polling answer for a registered payment.
type VerificationStatus struct {
	PaymentID       string        `json:"paymentId"`
	TransactionHash string        `json:"transactionHash"`
	Status          PaymentStatus `json:"status"`
	VerifiedAt      *time.Time    `json:"verifiedAt,omitempty"`
}

func (v VerificationStatus) String() string {
	return fmt.Sprintf("payment %s (%s): %s", v.PaymentID, v.TransactionHash, v.Status)
}
