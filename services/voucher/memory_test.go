package voucher

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func seedVoucher(t *testing.T, store *MemoryStore, maxUses int64) *Voucher {
	t.Helper()
	v := &Voucher{
		ID:        "v-1",
		CodeHash:  "hash-1",
		Name:      "Seed",
		Amount:    decimal.NewFromInt(10),
		MaxUses:   maxUses,
		IsActive:  true,
		CreatedAt: time.Now(),
	}
	require.NoError(t, store.PutVoucher(context.Background(), v))
	return v
}

func testRecord(id, voucherID, accountID string) *RedemptionRecord {
	return &RedemptionRecord{
		ID:         id,
		VoucherID:  voucherID,
		AccountID:  accountID,
		Amount:     decimal.NewFromInt(10),
		RedeemedAt: time.Now(),
	}
}

func TestMemoryCommitIncrementsAndIndexes(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	v := seedVoucher(t, store, 3)

	require.NoError(t, store.Commit(ctx, v.ID, "acct-1", testRecord("r-1", v.ID, "acct-1")))

	got, err := store.GetVoucher(ctx, v.ID)
	require.NoError(t, err)
	require.Equal(t, int64(1), got.UsedCount)

	redeemed, err := store.HasRedeemed(ctx, v.ID, "acct-1")
	require.NoError(t, err)
	require.True(t, redeemed)

	byVouch, err := store.RecordsByVoucher(ctx, v.ID, 10)
	require.NoError(t, err)
	require.Len(t, byVouch, 1)

	byAcct, err := store.RecordsByAccount(ctx, "acct-1", 10)
	require.NoError(t, err)
	require.Len(t, byAcct, 1)

	rec, err := store.GetRecord(ctx, "r-1")
	require.NoError(t, err)
	require.Equal(t, v.ID, rec.VoucherID)
}

func TestMemoryCommitRejectsSecondUseBySameAccount(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	v := seedVoucher(t, store, 3)

	require.NoError(t, store.Commit(ctx, v.ID, "acct-1", testRecord("r-1", v.ID, "acct-1")))
	err := store.Commit(ctx, v.ID, "acct-1", testRecord("r-2", v.ID, "acct-1"))
	require.ErrorIs(t, err, ErrAlreadyRedeemed)

	// the rejected commit must leave no trace
	got, err := store.GetVoucher(ctx, v.ID)
	require.NoError(t, err)
	require.Equal(t, int64(1), got.UsedCount)

	_, err = store.GetRecord(ctx, "r-2")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryCommitRejectsExhausted(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	v := seedVoucher(t, store, 1)

	require.NoError(t, store.Commit(ctx, v.ID, "acct-1", testRecord("r-1", v.ID, "acct-1")))
	err := store.Commit(ctx, v.ID, "acct-2", testRecord("r-2", v.ID, "acct-2"))
	require.ErrorIs(t, err, ErrCodeExhausted)
}

func TestMemoryCommitUnknownVoucher(t *testing.T) {
	store := NewMemoryStore()
	err := store.Commit(context.Background(), "missing", "acct-1", testRecord("r-1", "missing", "acct-1"))
	require.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryListRecordsNewestFirst(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	v := seedVoucher(t, store, 0)

	for i := 1; i <= 3; i++ {
		acct := fmt.Sprintf("acct-%d", i)
		require.NoError(t, store.Commit(ctx, v.ID, acct, testRecord(fmt.Sprintf("r-%d", i), v.ID, acct)))
	}

	recs, err := store.ListRecords(ctx, 0)
	require.NoError(t, err)
	require.Len(t, recs, 3)
	require.Equal(t, "r-3", recs[0].ID)
	require.Equal(t, "r-1", recs[2].ID)

	limited, err := store.ListRecords(ctx, 2)
	require.NoError(t, err)
	require.Len(t, limited, 2)
	require.Equal(t, "r-3", limited[0].ID)
}

func TestMemoryDeleteKeepsRecords(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	v := seedVoucher(t, store, 1)
	require.NoError(t, store.Commit(ctx, v.ID, "acct-1", testRecord("r-1", v.ID, "acct-1")))

	require.NoError(t, store.DeleteVoucher(ctx, v.ID))

	_, err := store.GetVoucher(ctx, v.ID)
	require.ErrorIs(t, err, ErrNotFound)
	_, err = store.ResolveCode(ctx, v.CodeHash)
	require.ErrorIs(t, err, ErrNotFound)

	// the audit trail outlives the voucher
	recs, err := store.RecordsByVoucher(ctx, v.ID, 10)
	require.NoError(t, err)
	require.Len(t, recs, 1)

	require.ErrorIs(t, store.DeleteVoucher(ctx, v.ID), ErrNotFound)
}

func TestMemoryUpdateVoucher(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	expiry := time.Now().Add(time.Hour)
	v := seedVoucher(t, store, 1)

	_, err := store.UpdateVoucher(ctx, v.ID, VoucherUpdate{ExpiresAt: &expiry})
	require.NoError(t, err)

	name := "Renamed"
	inactive := false
	got, err := store.UpdateVoucher(ctx, v.ID, VoucherUpdate{Name: &name, IsActive: &inactive, ClearExpiry: true})
	require.NoError(t, err)
	require.Equal(t, "Renamed", got.Name)
	require.False(t, got.IsActive)
	require.Nil(t, got.ExpiresAt)

	_, err = store.UpdateVoucher(ctx, "missing", VoucherUpdate{Name: &name})
	require.ErrorIs(t, err, ErrNotFound)
}
