package verification

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thisyearnofear/writersarcade-sub002/types"
)

type fakeChain struct {
	receipts map[common.Hash]*ethtypes.Receipt
	txs      map[common.Hash]*ethtypes.Transaction
	errs     map[common.Hash]error
}

func newFakeChain() *fakeChain {
	return &fakeChain{
		receipts: make(map[common.Hash]*ethtypes.Receipt),
		txs:      make(map[common.Hash]*ethtypes.Transaction),
		errs:     make(map[common.Hash]error),
	}
}

func (f *fakeChain) TransactionReceipt(_ context.Context, h common.Hash) (*ethtypes.Receipt, error) {
	if err, ok := f.errs[h]; ok {
		return nil, err
	}
	r, ok := f.receipts[h]
	if !ok {
		return nil, errors.New("not found")
	}
	return r, nil
}

func (f *fakeChain) TransactionByHash(_ context.Context, h common.Hash) (*ethtypes.Transaction, bool, error) {
	tx, ok := f.txs[h]
	if !ok {
		return nil, false, errors.New("not found")
	}
	return tx, false, nil
}

func (f *fakeChain) mined(hash string, status uint64, to string) {
	h := common.HexToHash(hash)
	f.receipts[h] = &ethtypes.Receipt{Status: status}
	toAddr := common.HexToAddress(to)
	f.txs[h] = ethtypes.NewTx(&ethtypes.LegacyTx{To: &toAddr})
}

func newTestConfirmer(t *testing.T) (*Confirmer, *Service, *fakeChain) {
	t.Helper()
	svc, _ := newTestService(t)
	chain := newFakeChain()
	c := NewConfirmer(svc, chain, paymentContract, time.Second, 2)
	return c, svc, chain
}

func TestConfirmerVerifiesSuccessfulPayment(t *testing.T) {
	c, svc, chain := newTestConfirmer(t)
	ctx := context.Background()

	res, err := svc.Initiate(ctx, hash("ab"), "avc", types.ActionGenerateContent)
	require.NoError(t, err)
	chain.mined(hash("ab"), ethtypes.ReceiptStatusSuccessful, paymentContract)

	c.Sweep(ctx)

	status, err := svc.Status(ctx, res.PaymentID, "")
	require.NoError(t, err)
	assert.Equal(t, types.StatusVerified, status.Status)
	assert.NotNil(t, status.VerifiedAt)
}

func TestConfirmerFailsRevertedPayment(t *testing.T) {
	c, svc, chain := newTestConfirmer(t)
	ctx := context.Background()

	res, err := svc.Initiate(ctx, hash("cd"), "avc", types.ActionGenerateContent)
	require.NoError(t, err)
	chain.mined(hash("cd"), ethtypes.ReceiptStatusFailed, paymentContract)

	c.Sweep(ctx)

	status, err := svc.Status(ctx, res.PaymentID, "")
	require.NoError(t, err)
	assert.Equal(t, types.StatusFailed, status.Status)
}

func TestConfirmerFailsWrongRecipient(t *testing.T) {
	c, svc, chain := newTestConfirmer(t)
	ctx := context.Background()

	res, err := svc.Initiate(ctx, hash("ef"), "avc", types.ActionGenerateContent)
	require.NoError(t, err)
	chain.mined(hash("ef"), ethtypes.ReceiptStatusSuccessful, "0x70997970C51812dc3A010C7d01b50e0d17dc79C8")

	c.Sweep(ctx)

	status, err := svc.Status(ctx, res.PaymentID, "")
	require.NoError(t, err)
	assert.Equal(t, types.StatusFailed, status.Status)
}

func TestConfirmerLeavesUnminedPending(t *testing.T) {
	c, svc, _ := newTestConfirmer(t)
	ctx := context.Background()

	res, err := svc.Initiate(ctx, hash("12"), "avc", types.ActionGenerateContent)
	require.NoError(t, err)

	c.Sweep(ctx)

	status, err := svc.Status(ctx, res.PaymentID, "")
	require.NoError(t, err)
	assert.Equal(t, types.StatusPending, status.Status)
}

func TestConfirmerRepeatSweepKeepsTerminalState(t *testing.T) {
	c, svc, chain := newTestConfirmer(t)
	ctx := context.Background()

	res, err := svc.Initiate(ctx, hash("34"), "avc", types.ActionGenerateContent)
	require.NoError(t, err)
	chain.mined(hash("34"), ethtypes.ReceiptStatusSuccessful, paymentContract)

	c.Sweep(ctx)
	first, err := svc.Status(ctx, res.PaymentID, "")
	require.NoError(t, err)
	require.NotNil(t, first.VerifiedAt)

	// Flip the receipt and sweep again: the terminal state must not move.
	chain.mined(hash("34"), ethtypes.ReceiptStatusFailed, paymentContract)
	c.Sweep(ctx)

	second, err := svc.Status(ctx, res.PaymentID, "")
	require.NoError(t, err)
	assert.Equal(t, types.StatusVerified, second.Status)
	assert.True(t, second.VerifiedAt.Equal(*first.VerifiedAt))
}
