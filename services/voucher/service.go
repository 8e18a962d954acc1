package voucher

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"voucherledger/pkg/config"
	"voucherledger/pkg/errutil"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	// MaxBatchSize bounds one batch-create request.
	MaxBatchSize = 100

	defaultRecordsLimit    = 50
	defaultAllRecordsLimit = 100

	batchConcurrency = 8
)

// Service covers the administrative surface over the ledger: voucher CRUD and
// redemption history queries. Redemption itself lives on the Engine.
type Service struct {
	store       Store
	gen         *Generator
	retainPlain bool
	now         func() time.Time
}

func NewService(store Store, gen *Generator, cfg *config.Config) *Service {
	return &Service{
		store:       store,
		gen:         gen,
		retainPlain: cfg.Security.RetainPlainCodes,
		now:         time.Now,
	}
}

// CreateVoucherInput carries the administrative creation parameters.
type CreateVoucherInput struct {
	Name      string
	Amount    decimal.Decimal
	MaxUses   *int64 // nil defaults to 1; 0 means unlimited
	ExpiresAt *time.Time
	Tags      []string
	CreatedBy string
}

// Create mints a voucher. The returned record always carries the plaintext
// code; whether the store retains it is the retention policy's call.
func (s *Service) Create(ctx context.Context, in CreateVoucherInput) (*Voucher, error) {
	if !in.Amount.IsPositive() {
		return nil, errutil.ValidationFailed("AMOUNT_MUST_BE_POSITIVE")
	}

	maxUses := int64(1)
	if in.MaxUses != nil {
		if *in.MaxUses < 0 {
			return nil, errutil.ValidationFailed("MAX_USES_MUST_BE_NON_NEGATIVE")
		}
		maxUses = *in.MaxUses
	}

	name := in.Name
	if name == "" {
		name = "Unnamed voucher"
	}
	createdBy := in.CreatedBy
	if createdBy == "" {
		createdBy = "admin"
	}
	tags := in.Tags
	if tags == nil {
		tags = []string{}
	}

	plainCode, lookupHash, err := s.gen.Generate()
	if err != nil {
		return nil, errutil.Internal("CODE_GENERATION_FAILED", errutil.WithErr(err))
	}

	v := &Voucher{
		ID:        uuid.NewString(),
		CodeHash:  lookupHash,
		Name:      name,
		Amount:    in.Amount,
		MaxUses:   maxUses,
		UsedCount: 0,
		ExpiresAt: in.ExpiresAt,
		IsActive:  true,
		Tags:      tags,
		CreatedAt: s.now(),
		CreatedBy: createdBy,
	}
	if s.retainPlain {
		v.PlainCode = plainCode
	}

	if err := s.store.PutVoucher(ctx, v); err != nil {
		return nil, errutil.BadGateway("STORE_UNAVAILABLE", errutil.WithErr(err))
	}

	vouchersCreated.Inc()
	zap.L().Info("voucher created",
		zap.String("voucher_id", v.ID),
		zap.String("name", v.Name),
		zap.String("amount", v.Amount.String()),
		zap.Int64("max_uses", v.MaxUses),
	)

	out := *v
	out.PlainCode = plainCode
	return &out, nil
}

// BatchCreate mints count vouchers from one template. Each voucher gets its
// own id and code; names are suffixed "#1".."#N" when count > 1.
func (s *Service) BatchCreate(ctx context.Context, in CreateVoucherInput, count int) ([]*Voucher, error) {
	if count < 1 || count > MaxBatchSize {
		return nil, errutil.ValidationFailed("COUNT_OUT_OF_RANGE")
	}

	baseName := in.Name
	if baseName == "" {
		baseName = "Voucher"
	}

	out := make([]*Voucher, count)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(batchConcurrency)

	for i := 0; i < count; i++ {
		g.Go(func() error {
			item := in
			if count > 1 {
				item.Name = fmt.Sprintf("%s #%d", baseName, i+1)
			}
			v, err := s.Create(gctx, item)
			if err != nil {
				return err
			}
			out[i] = v
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// List returns vouchers newest first. A non-empty code filter resolves the
// plaintext through the lookup hash and returns at most one voucher.
func (s *Service) List(ctx context.Context, codeFilter string) ([]*Voucher, error) {
	codeFilter = strings.TrimSpace(codeFilter)
	if codeFilter != "" {
		id, err := s.store.ResolveCode(ctx, s.gen.Hash(codeFilter))
		if errors.Is(err, ErrNotFound) {
			return []*Voucher{}, nil
		}
		if err != nil {
			return nil, err
		}
		v, err := s.store.GetVoucher(ctx, id)
		if err != nil {
			return nil, err
		}
		return []*Voucher{v}, nil
	}

	return s.store.ListVouchers(ctx)
}

func (s *Service) Get(ctx context.Context, id string) (*Voucher, error) {
	return s.store.GetVoucher(ctx, id)
}

// Update applies a typed partial update. Used count is not updatable.
func (s *Service) Update(ctx context.Context, id string, upd VoucherUpdate) (*Voucher, error) {
	if upd.Amount != nil && !upd.Amount.IsPositive() {
		return nil, errutil.ValidationFailed("AMOUNT_MUST_BE_POSITIVE")
	}
	if upd.MaxUses != nil && *upd.MaxUses < 0 {
		return nil, errutil.ValidationFailed("MAX_USES_MUST_BE_NON_NEGATIVE")
	}

	return s.store.UpdateVoucher(ctx, id, upd)
}

// Delete hard-deletes the voucher and its hash index entry. Redemption
// records referencing it remain queryable.
func (s *Service) Delete(ctx context.Context, id string) error {
	if err := s.store.DeleteVoucher(ctx, id); err != nil {
		return err
	}

	zap.L().Info("voucher deleted", zap.String("voucher_id", id))
	return nil
}

// Records returns the usage history of one voucher, newest first.
func (s *Service) Records(ctx context.Context, voucherID string, limit int64) ([]*RedemptionRecord, error) {
	if limit <= 0 {
		limit = defaultRecordsLimit
	}
	return s.store.RecordsByVoucher(ctx, voucherID, limit)
}

// AllRecords returns redemption history across all vouchers, newest first.
func (s *Service) AllRecords(ctx context.Context, limit int64) ([]*RedemptionRecord, error) {
	if limit <= 0 {
		limit = defaultAllRecordsLimit
	}
	return s.store.ListRecords(ctx, limit)
}
