package voucher

import (
	"context"
	"time"
)

// Store is the ledger store contract the redemption core depends on. Required
// serialization is scoped per voucher id: Commit must apply the usage-count
// increment, the (voucher, account) idempotency marker and the audit append as
// one conditional transaction, and that guarantee must hold across service
// instances sharing one store.
type Store interface {
	// PutVoucher writes the voucher record, its hash index entry and its
	// listing index entry.
	PutVoucher(ctx context.Context, v *Voucher) error

	GetVoucher(ctx context.Context, id string) (*Voucher, error)

	// UpdateVoucher applies the non-nil fields of upd and returns the fresh
	// record. Used count is never touched here.
	UpdateVoucher(ctx context.Context, id string, upd VoucherUpdate) (*Voucher, error)

	// DeleteVoucher hard-deletes the record together with its hash and
	// listing index entries. Redemption records survive.
	DeleteVoucher(ctx context.Context, id string) error

	// ListVouchers returns vouchers newest first.
	ListVouchers(ctx context.Context) ([]*Voucher, error)

	// ResolveCode maps a lookup hash to a voucher id. Returns ErrNotFound
	// when no voucher carries the hash.
	ResolveCode(ctx context.Context, lookupHash string) (string, error)

	// HasRedeemed reports whether the (voucher, account) idempotency marker
	// exists. Advisory only; Commit re-checks under the transaction.
	HasRedeemed(ctx context.Context, voucherID, accountID string) (bool, error)

	// Commit is the atomic redemption commit: increment used count only while
	// it stays within the limit (when bounded), insert the idempotency marker
	// only if absent, and append the audit record, all three or none.
	// A losing racer gets ErrCodeExhausted or ErrAlreadyRedeemed.
	Commit(ctx context.Context, voucherID, accountID string, rec *RedemptionRecord) error

	GetRecord(ctx context.Context, id string) (*RedemptionRecord, error)

	// RecordsByVoucher returns up to limit records for one voucher, newest
	// first.
	RecordsByVoucher(ctx context.Context, voucherID string, limit int64) ([]*RedemptionRecord, error)

	// RecordsByAccount returns up to limit records for one account, newest
	// first.
	RecordsByAccount(ctx context.Context, accountID string, limit int64) ([]*RedemptionRecord, error)

	// ListRecords returns up to limit records across all vouchers, newest
	// first.
	ListRecords(ctx context.Context, limit int64) ([]*RedemptionRecord, error)

	// Attempts returns the current failed-attempt count for a source key.
	Attempts(ctx context.Context, sourceKey string) (int64, error)

	// RecordAttempt atomically increments the failed-attempt counter and
	// refreshes its expiry window.
	RecordAttempt(ctx context.Context, sourceKey string, window time.Duration) error
}
