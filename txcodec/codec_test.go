package txcodec

import (
	"bytes"
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thisyearnofear/writersarcade-sub002/types"
)

const (
	spender = "0x70997970C51812dc3A010C7d01b50e0d17dc79C8"
	coin    = "0x036CbD53842c5426634e7929541eC2318f3dCF7e"
	payer   = "0xE4d365a5a8fC0DCEE9E3C5985D7FcBab8B4A0fE1"
)

func TestEncodeApprovalLayout(t *testing.T) {
	amount, _ := new(big.Int).SetString("1000000000000000000000", 10)

	payload, err := EncodeApproval(spender, amount)
	require.NoError(t, err)
	require.Len(t, payload, 4+32+32)

	// Spender word: 12 zero bytes then the 20 address bytes.
	word := payload[4:36]
	assert.True(t, bytes.Equal(word[:12], make([]byte, 12)))

	// Final word decodes back to the exact amount.
	decoded := new(big.Int).SetBytes(payload[36:])
	assert.Zero(t, decoded.Cmp(amount))
}

func TestEncodeApprovalZeroAmount(t *testing.T) {
	payload, err := EncodeApproval(spender, big.NewInt(0))
	require.NoError(t, err)
	assert.True(t, bytes.Equal(payload[36:], make([]byte, 32)))
}

func TestEncodeApprovalRejectsBadInput(t *testing.T) {
	_, err := EncodeApproval("nope", big.NewInt(1))
	assert.Error(t, err)

	_, err = EncodeApproval(spender, nil)
	assert.Error(t, err)

	_, err = EncodeApproval(spender, big.NewInt(-1))
	assert.Error(t, err)

	tooBig := new(big.Int).Lsh(big.NewInt(1), 256)
	_, err = EncodeApproval(spender, tooBig)
	assert.Error(t, err)
}

func TestEncodePaymentSelectorsDiffer(t *testing.T) {
	gen, err := EncodePayment(coin, payer, types.ActionGenerateContent)
	require.NoError(t, err)
	mint, err := EncodePayment(coin, payer, types.ActionMintArtifact)
	require.NoError(t, err)

	require.Len(t, gen, 4+32+32)
	require.Len(t, mint, 4+32+32)

	// Only the leading selector differs between the two classes.
	assert.False(t, bytes.Equal(gen[:4], mint[:4]))
	assert.True(t, bytes.Equal(gen[4:], mint[4:]))
}

func TestEncodePaymentMinigameReusesGenerationSelector(t *testing.T) {
	gen, err := EncodePayment(coin, payer, types.ActionGenerateContent)
	require.NoError(t, err)
	game, err := EncodePayment(coin, payer, types.ActionPlayMinigame)
	require.NoError(t, err)

	assert.True(t, bytes.Equal(gen, game))
}

func TestEncodePaymentDeterministic(t *testing.T) {
	a, err := EncodePayment(coin, payer, types.ActionMintArtifact)
	require.NoError(t, err)
	b, err := EncodePayment(coin, payer, types.ActionMintArtifact)
	require.NoError(t, err)
	assert.True(t, bytes.Equal(a, b))
}

func TestEncodePaymentRejectsBadAddresses(t *testing.T) {
	_, err := EncodePayment("bad", payer, types.ActionGenerateContent)
	assert.Error(t, err)

	_, err = EncodePayment(coin, "bad", types.ActionGenerateContent)
	assert.Error(t, err)

	_, err = EncodePayment(coin, payer, types.PaymentAction("redeem"))
	assert.Error(t, err)
}
