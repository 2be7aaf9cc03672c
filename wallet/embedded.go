package wallet

import (
	"context"
	"crypto/ecdsa"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/thisyearnofear/writersarcade-sub002/types"
)

const defaultGasLimit = 200_000

// txBackend is the slice of an RPC node the embedded signer submits
// through. *ethclient.Client satisfies it.
type txBackend interface {
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	SendTransaction(ctx context.Context, tx *ethtypes.Transaction) error
}

// EmbeddedSigner signs with a key held by the hosting runtime and submits
// through its own node connection. It is pinned to one chain and does not
// support switching.
type EmbeddedSigner struct {
	key      *ecdsa.PrivateKey
	backend  txBackend
	chainID  int64
	gasLimit uint64
}

func NewEmbeddedSigner(key *ecdsa.PrivateKey, backend txBackend, chainID int64) *EmbeddedSigner {
	return &EmbeddedSigner{
		key:      key,
		backend:  backend,
		chainID:  chainID,
		gasLimit: defaultGasLimit,
	}
}

func (s *EmbeddedSigner) Name() string { return "embedded" }

func (s *EmbeddedSigner) Available(context.Context) bool {
	return s.key != nil && s.backend != nil
}

func (s *EmbeddedSigner) Address(ctx context.Context) (string, error) {
	if s.key == nil {
		return "", types.NewArcadeError(types.ErrAddressResolution, "embedded signer has no key")
	}
	return crypto.PubkeyToAddress(s.key.PublicKey).Hex(), nil
}

func (s *EmbeddedSigner) ChainID(context.Context) (int64, error) {
	return s.chainID, nil
}

// SendTransaction signs and submits. The embedded signer cannot switch
// chains, so a chain mismatch fails before any network call.
func (s *EmbeddedSigner) SendTransaction(ctx context.Context, req types.TransactionRequest) types.TransactionResult {
	if !s.Available(ctx) {
		return types.TransactionResult{Success: false, Error: "embedded signer unavailable"}
	}
	if req.ChainID != 0 && req.ChainID != s.chainID {
		return wrongChainResult(s.chainID, req.ChainID)
	}

	from := crypto.PubkeyToAddress(s.key.PublicKey)

	nonce, err := s.backend.PendingNonceAt(ctx, from)
	if err != nil {
		return types.TransactionResult{Success: false, Error: "fetch nonce: " + err.Error()}
	}
	gasPrice, err := s.backend.SuggestGasPrice(ctx)
	if err != nil {
		return types.TransactionResult{Success: false, Error: "suggest gas price: " + err.Error()}
	}

	value := req.Value
	if value == nil {
		value = new(big.Int)
	}
	to := common.HexToAddress(req.To)
	tx := ethtypes.NewTx(&ethtypes.LegacyTx{
		Nonce:    nonce,
		To:       &to,
		Value:    value,
		Gas:      s.gasLimit,
		GasPrice: gasPrice,
		Data:     req.Data,
	})

	signer := ethtypes.NewEIP155Signer(big.NewInt(s.chainID))
	signed, err := ethtypes.SignTx(tx, signer, s.key)
	if err != nil {
		return types.TransactionResult{Success: false, Error: "sign transaction: " + err.Error()}
	}

	if err := s.backend.SendTransaction(ctx, signed); err != nil {
		return types.TransactionResult{Success: false, Error: err.Error()}
	}

	return types.TransactionResult{Success: true, TxHash: signed.Hash().Hex()}
}
