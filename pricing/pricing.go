// Package pricing computes action prices and revenue splits. The split
// lookup is dual-path: the on-chain basis-point configuration is
// authoritative when the RPC endpoint answers, the locally configured
// split keeps payment initiation working when it does not.
package pricing

import (
	"context"
	"fmt"
	"math/big"

	"github.com/thisyearnofear/writersarcade-sub002/types"
	"github.com/thisyearnofear/writersarcade-sub002/utils"
)

// bps denominator: 10000 basis points = 100%.
const bpsDenominator = 10000

// TokenLookup resolves a token id to its configuration.
type TokenLookup interface {
	Lookup(tokenID string) (*types.TokenConfig, error)
}

// BasisPointSplit is a revenue split in basis points.
type BasisPointSplit struct {
	WriterBps   int64
	PlatformBps int64
	CreatorBps  int64
}

func (s BasisPointSplit) total() int64 {
	return s.WriterBps + s.PlatformBps + s.CreatorBps
}

func (s BasisPointSplit) validate() error {
	if s.WriterBps < 0 || s.PlatformBps < 0 || s.CreatorBps < 0 {
		return fmt.Errorf("negative basis points in split")
	}
	if s.total() > bpsDenominator {
		return fmt.Errorf("split exceeds %d basis points", bpsDenominator)
	}
	return nil
}

// SplitSource supplies revenue splits for the two settlement classes.
type SplitSource interface {
	GenerationSplit(ctx context.Context, token *types.TokenConfig) (BasisPointSplit, error)
	MintSplit(ctx context.Context, token *types.TokenConfig) (BasisPointSplit, error)
}

// Calculator derives costs and distributions for (token, action) pairs.
type Calculator struct {
	tokens TokenLookup
	splits SplitSource
}

func NewCalculator(tokens TokenLookup, splits SplitSource) *Calculator {
	return &Calculator{tokens: tokens, splits: splits}
}

// Token resolves a token id to its configuration.
func (c *Calculator) Token(tokenID string) (*types.TokenConfig, error) {
	return c.tokens.Lookup(tokenID)
}

// Cost looks up the token's price for the action and formats it for
// display. The minigame action reuses the generation price.
func (c *Calculator) Cost(tokenID string, action types.PaymentAction) (types.Cost, error) {
	token, err := c.tokens.Lookup(tokenID)
	if err != nil {
		return types.Cost{}, err
	}
	if !action.Valid() {
		return types.Cost{}, types.NewArcadeError(types.ErrConfig, fmt.Sprintf("unknown action %q", action))
	}

	price, ok := token.PriceFor(action)
	if !ok {
		return types.Cost{}, types.NewArcadeError(types.ErrConfig,
			fmt.Sprintf("token %q has no price for action %q", tokenID, action))
	}

	amount, err := utils.ParseAmountWithDecimals(price, token.Decimals)
	if err != nil {
		return types.Cost{}, types.NewArcadeError(types.ErrConfig,
			fmt.Sprintf("token %q: bad price for %q: %v", tokenID, action, err))
	}

	return types.Cost{
		Action:    action,
		Amount:    amount,
		Formatted: utils.FormatAmount(amount, token.Decimals),
	}, nil
}

// Distribution computes the revenue split for a payment. Shares are
// carved out of the cost with integer basis-point arithmetic; whatever the
// shares leave over is the payer refund, which the contract returns to the
// payer for mint-class actions.
func (c *Calculator) Distribution(ctx context.Context, tokenID string, action types.PaymentAction) (types.RevenueDistribution, error) {
	cost, err := c.Cost(tokenID, action)
	if err != nil {
		return types.RevenueDistribution{}, err
	}
	token, err := c.tokens.Lookup(tokenID)
	if err != nil {
		return types.RevenueDistribution{}, err
	}

	var split BasisPointSplit
	if action.IsMintClass() {
		split, err = c.splits.MintSplit(ctx, token)
	} else {
		split, err = c.splits.GenerationSplit(ctx, token)
	}
	if err != nil {
		return types.RevenueDistribution{}, err
	}
	if err := split.validate(); err != nil {
		return types.RevenueDistribution{}, types.NewArcadeError(types.ErrConfig, err.Error())
	}

	return distribute(cost.Amount, split), nil
}

func distribute(amount *big.Int, split BasisPointSplit) types.RevenueDistribution {
	writer := shareOf(amount, split.WriterBps)
	platform := shareOf(amount, split.PlatformBps)
	creator := shareOf(amount, split.CreatorBps)

	refund := new(big.Int).Set(amount)
	refund.Sub(refund, writer)
	refund.Sub(refund, platform)
	refund.Sub(refund, creator)

	return types.RevenueDistribution{
		WriterShare:   writer,
		PlatformShare: platform,
		CreatorShare:  creator,
		PayerRefund:   refund,
	}
}

func shareOf(amount *big.Int, bps int64) *big.Int {
	share := new(big.Int).Mul(amount, big.NewInt(bps))
	return share.Div(share, big.NewInt(bpsDenominator))
}
