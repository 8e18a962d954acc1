package voucher

import (
	"context"
	"testing"
	"time"

	"voucherledger/pkg/config"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func newTestService(retainPlain bool) (*Service, *MemoryStore) {
	store := NewMemoryStore()
	cfg := &config.Config{}
	cfg.Security.CodeSecret = "test-secret"
	cfg.Security.RetainPlainCodes = retainPlain
	return NewService(store, NewGenerator(cfg.Security.CodeSecret), cfg), store
}

func TestCreateVoucherDefaults(t *testing.T) {
	svc, store := newTestService(false)

	v, err := svc.Create(context.Background(), CreateVoucherInput{
		Amount: decimal.NewFromInt(25),
	})
	require.NoError(t, err)
	require.NotEmpty(t, v.ID)
	require.Equal(t, "Unnamed voucher", v.Name)
	require.Equal(t, "admin", v.CreatedBy)
	require.Equal(t, int64(1), v.MaxUses)
	require.True(t, v.IsActive)
	require.Regexp(t, codePattern, v.PlainCode)
	require.Equal(t, svc.gen.Hash(v.PlainCode), v.CodeHash)

	// the code resolves through the lookup index
	id, err := store.ResolveCode(context.Background(), svc.gen.Hash(v.PlainCode))
	require.NoError(t, err)
	require.Equal(t, v.ID, id)
}

func TestCreateVoucherValidation(t *testing.T) {
	svc, _ := newTestService(false)
	ctx := context.Background()

	_, err := svc.Create(ctx, CreateVoucherInput{Amount: decimal.Zero})
	require.Error(t, err)

	_, err = svc.Create(ctx, CreateVoucherInput{Amount: decimal.NewFromInt(-5)})
	require.Error(t, err)

	neg := int64(-1)
	_, err = svc.Create(ctx, CreateVoucherInput{Amount: decimal.NewFromInt(5), MaxUses: &neg})
	require.Error(t, err)
}

func TestCreateVoucherPlaintextRetention(t *testing.T) {
	ctx := context.Background()

	svc, store := newTestService(false)
	v, err := svc.Create(ctx, CreateVoucherInput{Amount: decimal.NewFromInt(5)})
	require.NoError(t, err)
	require.NotEmpty(t, v.PlainCode, "creation response always carries the code")

	stored, err := store.GetVoucher(ctx, v.ID)
	require.NoError(t, err)
	require.Empty(t, stored.PlainCode, "store keeps only the hash by default")

	svc, store = newTestService(true)
	v, err = svc.Create(ctx, CreateVoucherInput{Amount: decimal.NewFromInt(5)})
	require.NoError(t, err)

	stored, err = store.GetVoucher(ctx, v.ID)
	require.NoError(t, err)
	require.Equal(t, v.PlainCode, stored.PlainCode)
}

func TestBatchCreate(t *testing.T) {
	svc, _ := newTestService(false)

	vouchers, err := svc.BatchCreate(context.Background(), CreateVoucherInput{
		Name:   "Promo",
		Amount: decimal.NewFromInt(5),
	}, MaxBatchSize)
	require.NoError(t, err)
	require.Len(t, vouchers, MaxBatchSize)

	codes := make(map[string]bool)
	names := make(map[string]bool)
	for _, v := range vouchers {
		require.NotNil(t, v)
		require.False(t, codes[v.PlainCode], "codes must be unique")
		codes[v.PlainCode] = true
		names[v.Name] = true
	}
	require.True(t, names["Promo #1"])
	require.True(t, names["Promo #100"])
}

func TestBatchCreateCountOutOfRange(t *testing.T) {
	svc, _ := newTestService(false)
	ctx := context.Background()
	in := CreateVoucherInput{Amount: decimal.NewFromInt(5)}

	_, err := svc.BatchCreate(ctx, in, 0)
	require.Error(t, err)

	_, err = svc.BatchCreate(ctx, in, MaxBatchSize+1)
	require.Error(t, err)
}

func TestListWithCodeFilter(t *testing.T) {
	svc, _ := newTestService(false)
	ctx := context.Background()

	a, err := svc.Create(ctx, CreateVoucherInput{Name: "A", Amount: decimal.NewFromInt(5)})
	require.NoError(t, err)
	_, err = svc.Create(ctx, CreateVoucherInput{Name: "B", Amount: decimal.NewFromInt(5)})
	require.NoError(t, err)

	all, err := svc.List(ctx, "")
	require.NoError(t, err)
	require.Len(t, all, 2)

	matched, err := svc.List(ctx, a.PlainCode)
	require.NoError(t, err)
	require.Len(t, matched, 1)
	require.Equal(t, a.ID, matched[0].ID)

	// unknown code filters to an empty result, not an error
	none, err := svc.List(ctx, "RC_000000000000")
	require.NoError(t, err)
	require.Empty(t, none)

	// surrounding whitespace is forgiven
	padded, err := svc.List(ctx, "  "+a.PlainCode+"\n")
	require.NoError(t, err)
	require.Len(t, padded, 1)
	require.Equal(t, a.ID, padded[0].ID)
}

func TestUpdateValidation(t *testing.T) {
	svc, _ := newTestService(false)
	ctx := context.Background()

	v, err := svc.Create(ctx, CreateVoucherInput{Amount: decimal.NewFromInt(5)})
	require.NoError(t, err)

	bad := decimal.NewFromInt(-1)
	_, err = svc.Update(ctx, v.ID, VoucherUpdate{Amount: &bad})
	require.Error(t, err)

	negUses := int64(-2)
	_, err = svc.Update(ctx, v.ID, VoucherUpdate{MaxUses: &negUses})
	require.Error(t, err)

	amount := decimal.NewFromInt(42)
	expiry := time.Now().Add(24 * time.Hour)
	got, err := svc.Update(ctx, v.ID, VoucherUpdate{Amount: &amount, ExpiresAt: &expiry})
	require.NoError(t, err)
	require.True(t, got.Amount.Equal(amount))
	require.NotNil(t, got.ExpiresAt)
}

func TestRecordsDefaultLimits(t *testing.T) {
	svc, store := newTestService(false)
	ctx := context.Background()

	v, err := svc.Create(ctx, CreateVoucherInput{Amount: decimal.NewFromInt(5)})
	require.NoError(t, err)
	require.NoError(t, store.Commit(ctx, v.ID, "acct-1", testRecord("r-1", v.ID, "acct-1")))

	recs, err := svc.Records(ctx, v.ID, 0)
	require.NoError(t, err)
	require.Len(t, recs, 1)

	all, err := svc.AllRecords(ctx, 0)
	require.NoError(t, err)
	require.Len(t, all, 1)
}
