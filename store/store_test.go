package store

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/thisyearnofear/writersarcade-sub002/types"
)

func newTestStore(t *testing.T) *GormStore {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	s, err := NewGormStore(db)
	require.NoError(t, err)
	return s
}

func testHash(seed string) string {
	return "0x" + strings.Repeat(seed, 64/len(seed))
}

func pendingRecord(hash string) *PaymentRecord {
	return &PaymentRecord{
		TxHash:  hash,
		TokenID: "avc",
		Action:  types.ActionGenerateContent,
		Amount:  "1000000000000000000000",
	}
}

func TestCreateAssignsDefaults(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	rec := pendingRecord(testHash("ab"))
	require.NoError(t, s.Create(ctx, rec))

	assert.NotEmpty(t, rec.ID)
	assert.Equal(t, types.StatusPending, rec.Status)
}

func TestCreateDuplicateHash(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	hash := testHash("cd")
	require.NoError(t, s.Create(ctx, pendingRecord(hash)))

	err := s.Create(ctx, pendingRecord(hash))
	assert.ErrorIs(t, err, ErrDuplicate)
}

func TestFindByHashAndID(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	rec := pendingRecord(testHash("ef"))
	require.NoError(t, s.Create(ctx, rec))

	byHash, err := s.FindByHash(ctx, rec.TxHash)
	require.NoError(t, err)
	assert.Equal(t, rec.ID, byHash.ID)

	byID, err := s.FindByID(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, rec.TxHash, byID.TxHash)

	_, err = s.FindByHash(ctx, testHash("99"))
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = s.FindByID(ctx, "no-such-id")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUpdateStatusMonotonic(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	rec := pendingRecord(testHash("12"))
	require.NoError(t, s.Create(ctx, rec))

	first := time.Now().UTC().Truncate(time.Second)
	updated, err := s.UpdateStatus(ctx, rec.ID, types.StatusVerified, first)
	require.NoError(t, err)
	assert.Equal(t, types.StatusVerified, updated.Status)
	require.NotNil(t, updated.VerifiedAt)

	// A second transition attempt leaves the terminal state untouched.
	later := first.Add(time.Hour)
	again, err := s.UpdateStatus(ctx, rec.ID, types.StatusFailed, later)
	require.NoError(t, err)
	assert.Equal(t, types.StatusVerified, again.Status)
	assert.True(t, again.VerifiedAt.Equal(*updated.VerifiedAt))
}

func TestUpdateStatusRejectsNonTerminal(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	rec := pendingRecord(testHash("34"))
	require.NoError(t, s.Create(ctx, rec))

	_, err := s.UpdateStatus(ctx, rec.ID, types.StatusPending, time.Now())
	assert.Error(t, err)
}

func TestListPending(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	a := pendingRecord(testHash("56"))
	b := pendingRecord(testHash("78"))
	require.NoError(t, s.Create(ctx, a))
	require.NoError(t, s.Create(ctx, b))

	_, err := s.UpdateStatus(ctx, a.ID, types.StatusFailed, time.Now())
	require.NoError(t, err)

	pending, err := s.ListPending(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, b.ID, pending[0].ID)
}
