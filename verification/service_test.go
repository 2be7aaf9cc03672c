package verification

import (
	"context"
	"strings"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/thisyearnofear/writersarcade-sub002/config"
	"github.com/thisyearnofear/writersarcade-sub002/pricing"
	"github.com/thisyearnofear/writersarcade-sub002/store"
	"github.com/thisyearnofear/writersarcade-sub002/types"
)

const paymentContract = "0x5FbDB2315678afecb367f032d93F642f64180aa3"

func testToken() types.TokenConfig {
	return types.TokenConfig{
		ID:       "avc",
		Symbol:   "AVC",
		Decimals: 18,
		Address:  "0x036CbD53842c5426634e7929541eC2318f3dCF7e",
		Prices: map[types.PaymentAction]string{
			types.ActionGenerateContent: "1000",
			types.ActionMintArtifact:    "2500",
		},
		DefaultSplit: types.SplitPercentages{Writer: 70, Platform: 20, Creator: 10},
	}
}

func newTestService(t *testing.T) (*Service, *store.GormStore) {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	records, err := store.NewGormStore(db)
	require.NoError(t, err)

	registry, err := config.NewRegistry(testToken())
	require.NoError(t, err)
	calc := pricing.NewCalculator(registry, pricing.StaticSplitSource{})

	return NewService(records, calc, nil, nil), records
}

func hash(seed string) string {
	return "0x" + strings.Repeat(seed, 64/len(seed))
}

func TestInitiateCreatesPendingRecord(t *testing.T) {
	svc, records := newTestService(t)
	ctx := context.Background()

	res, err := svc.Initiate(ctx, hash("ab"), "avc", types.ActionGenerateContent)
	require.NoError(t, err)
	assert.Equal(t, types.StatusPending, res.Status)
	assert.NotEmpty(t, res.PaymentID)
	assert.Contains(t, res.StatusCheckURL, res.PaymentID)

	stored, err := records.FindByHash(ctx, hash("ab"))
	require.NoError(t, err)
	assert.Equal(t, "1000000000000000000000", stored.Amount)
}

func TestInitiateIdempotentByHash(t *testing.T) {
	svc, records := newTestService(t)
	ctx := context.Background()

	first, err := svc.Initiate(ctx, hash("cd"), "avc", types.ActionGenerateContent)
	require.NoError(t, err)
	second, err := svc.Initiate(ctx, hash("cd"), "avc", types.ActionGenerateContent)
	require.NoError(t, err)

	assert.Equal(t, first.PaymentID, second.PaymentID)
	assert.Equal(t, first.Status, second.Status)

	pending, err := records.ListPending(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, pending, 1)
}

func TestInitiateRejectsMalformedHash(t *testing.T) {
	svc, records := newTestService(t)
	ctx := context.Background()

	for _, bad := range []string{"", "0x1234", strings.Repeat("a", 66), "0x" + strings.Repeat("zz", 32)} {
		_, err := svc.Initiate(ctx, bad, "avc", types.ActionGenerateContent)
		assert.Error(t, err, "hash %q", bad)
	}

	// No record was created for any rejected hash.
	pending, err := records.ListPending(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestInitiateUnknownToken(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.Initiate(context.Background(), hash("ef"), "nope", types.ActionGenerateContent)
	require.Error(t, err)
	assert.Equal(t, types.ErrConfig, types.CodeOf(err))
}

func TestStatusUnknownReference(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.Status(ctx, "missing-id", "")
	require.Error(t, err)
	assert.Equal(t, types.ErrRecordNotFound, types.CodeOf(err))

	_, err = svc.Status(ctx, "", hash("09"))
	require.Error(t, err)
	assert.Equal(t, types.ErrRecordNotFound, types.CodeOf(err))

	_, err = svc.Status(ctx, "", "")
	assert.Error(t, err)
}

func TestStatusByIDAndHash(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	res, err := svc.Initiate(ctx, hash("12"), "avc", types.ActionMintArtifact)
	require.NoError(t, err)

	byID, err := svc.Status(ctx, res.PaymentID, "")
	require.NoError(t, err)
	assert.Equal(t, types.StatusPending, byID.Status)
	assert.Nil(t, byID.VerifiedAt)

	byHash, err := svc.Status(ctx, "", hash("12"))
	require.NoError(t, err)
	assert.Equal(t, byID.PaymentID, byHash.PaymentID)
}

func TestQuote(t *testing.T) {
	svc, _ := newTestService(t)

	quote, err := svc.Quote(context.Background(), "avc", types.ActionGenerateContent, paymentContract, 8453)
	require.NoError(t, err)

	assert.Equal(t, paymentContract, quote.ContractAddress)
	assert.Equal(t, "0x036CbD53842c5426634e7929541eC2318f3dCF7e", quote.TokenAddress)
	assert.Equal(t, "1000.00", quote.AmountFormatted)
	assert.Equal(t, int64(8453), quote.ChainID)
	assert.Zero(t, quote.Distribution.PayerRefund.Sign())
}
