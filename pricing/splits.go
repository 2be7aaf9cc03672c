package pricing

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	ethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	"github.com/thisyearnofear/writersarcade-sub002/logger"
	"github.com/thisyearnofear/writersarcade-sub002/types"
)

// Fallback mint split: 30% writer, 15% platform, 5% creator, remainder
// refunded to the payer by the contract.
var defaultMintSplit = BasisPointSplit{WriterBps: 3000, PlatformBps: 1500, CreatorBps: 500}

// StaticSplitSource answers from configuration alone and never fails.
type StaticSplitSource struct{}

func (StaticSplitSource) GenerationSplit(_ context.Context, token *types.TokenConfig) (BasisPointSplit, error) {
	pct := token.DefaultSplit
	return BasisPointSplit{
		WriterBps:   pct.Writer * 100,
		PlatformBps: pct.Platform * 100,
		CreatorBps:  pct.Creator * 100,
	}, nil
}

func (StaticSplitSource) MintSplit(context.Context, *types.TokenConfig) (BasisPointSplit, error) {
	return defaultMintSplit, nil
}

// splitABI is the read surface of the token contract for authoritative
// revenue splits, expressed in basis points.
const splitABI = `
[
  {
    "name": "revenueSplit",
    "type": "function",
    "stateMutability": "view",
    "inputs": [],
    "outputs": [
      { "name": "writerBps", "type": "uint256" },
      { "name": "platformBps", "type": "uint256" },
      { "name": "creatorBps", "type": "uint256" }
    ]
  },
  {
    "name": "mintSplit",
    "type": "function",
    "stateMutability": "view",
    "inputs": [],
    "outputs": [
      { "name": "writerBps", "type": "uint256" },
      { "name": "platformBps", "type": "uint256" },
      { "name": "creatorBps", "type": "uint256" }
    ]
  }
]
`

// ContractCaller is the slice of the RPC client the chain source needs.
// *ethclient.Client satisfies it.
type ContractCaller interface {
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
}

// ChainSplitSource reads the authoritative split from the token contract.
type ChainSplitSource struct {
	caller ContractCaller
	abi    abi.ABI
}

func NewChainSplitSource(caller ContractCaller) (*ChainSplitSource, error) {
	parsed, err := abi.JSON(strings.NewReader(splitABI))
	if err != nil {
		return nil, fmt.Errorf("parse split ABI: %w", err)
	}
	return &ChainSplitSource{caller: caller, abi: parsed}, nil
}

func (s *ChainSplitSource) GenerationSplit(ctx context.Context, token *types.TokenConfig) (BasisPointSplit, error) {
	return s.read(ctx, token, "revenueSplit")
}

func (s *ChainSplitSource) MintSplit(ctx context.Context, token *types.TokenConfig) (BasisPointSplit, error) {
	return s.read(ctx, token, "mintSplit")
}

func (s *ChainSplitSource) read(ctx context.Context, token *types.TokenConfig, method string) (BasisPointSplit, error) {
	callData, err := s.abi.Pack(method)
	if err != nil {
		return BasisPointSplit{}, err
	}

	contract := common.HexToAddress(token.Address)
	out, err := s.caller.CallContract(ctx, ethereum.CallMsg{To: &contract, Data: callData}, nil)
	if err != nil {
		return BasisPointSplit{}, fmt.Errorf("%s call on %s: %w", method, token.Address, err)
	}

	values, err := s.abi.Unpack(method, out)
	if err != nil {
		return BasisPointSplit{}, fmt.Errorf("unpack %s result: %w", method, err)
	}
	if len(values) != 3 {
		return BasisPointSplit{}, fmt.Errorf("%s returned %d values, want 3", method, len(values))
	}

	bps := make([]int64, 3)
	for i, v := range values {
		n, ok := v.(*big.Int)
		if !ok || !n.IsInt64() {
			return BasisPointSplit{}, fmt.Errorf("%s value %d is not a small uint256", method, i)
		}
		bps[i] = n.Int64()
	}
	return BasisPointSplit{WriterBps: bps[0], PlatformBps: bps[1], CreatorBps: bps[2]}, nil
}

// FallbackSplitSource tries the primary source and falls back on any
// failure, so an RPC outage cannot block payment initiation.
type FallbackSplitSource struct {
	primary  SplitSource
	fallback SplitSource
	log      logger.Logger
}

func NewFallbackSplitSource(primary, fallback SplitSource, log logger.Logger) *FallbackSplitSource {
	if log == nil {
		log = logger.NoopLogger{}
	}
	return &FallbackSplitSource{primary: primary, fallback: fallback, log: log}
}

func (f *FallbackSplitSource) GenerationSplit(ctx context.Context, token *types.TokenConfig) (BasisPointSplit, error) {
	split, err := f.primary.GenerationSplit(ctx, token)
	if err == nil {
		return split, nil
	}
	f.log.Warn("chain split read failed, using configured split", map[string]any{
		"token": token.ID,
		"error": err.Error(),
	})
	return f.fallback.GenerationSplit(ctx, token)
}

func (f *FallbackSplitSource) MintSplit(ctx context.Context, token *types.TokenConfig) (BasisPointSplit, error) {
	split, err := f.primary.MintSplit(ctx, token)
	if err == nil {
		return split, nil
	}
	f.log.Warn("chain mint split read failed, using default split", map[string]any{
		"token": token.ID,
		"error": err.Error(),
	})
	return f.fallback.MintSplit(ctx, token)
}
