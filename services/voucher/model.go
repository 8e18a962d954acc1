package voucher

import (
	"encoding/json"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
)

// Voucher is a bounded-use credit grant identified by a secret code. Only the
// keyed hash of the code is used for lookups; the plaintext is kept on the
// record only when plaintext retention is switched on.
type Voucher struct {
	ID        string
	CodeHash  string
	PlainCode string
	Name      string
	Amount    decimal.Decimal
	MaxUses   int64 // 0 means unlimited
	UsedCount int64
	ExpiresAt *time.Time
	IsActive  bool
	Tags      []string
	CreatedAt time.Time
	CreatedBy string
}

// Exhausted reports whether the voucher has no usage headroom left.
func (v *Voucher) Exhausted() bool {
	return v.MaxUses > 0 && v.UsedCount >= v.MaxUses
}

// ExpiredAt reports whether the voucher is expired at the given instant.
// Expiry is strict greater-than: a voucher expiring exactly now is still valid.
func (v *Voucher) ExpiredAt(now time.Time) bool {
	return v.ExpiresAt != nil && now.After(*v.ExpiresAt)
}

// RedemptionRecord is an immutable audit entry for one successful redemption.
// Name and amount are snapshots; later voucher edits never change history.
type RedemptionRecord struct {
	ID            string
	VoucherID     string
	VoucherName   string
	AccountID     string
	AccountName   string
	Amount        decimal.Decimal
	RedeemedAt    time.Time
	Source        string
	PreviousLimit decimal.Decimal
	NewLimit      decimal.Decimal
}

// VoucherUpdate carries the mutable subset of voucher fields. Nil pointers
// leave the field untouched.
type VoucherUpdate struct {
	Name        *string
	Amount      *decimal.Decimal
	MaxUses     *int64
	ExpiresAt   *time.Time
	ClearExpiry bool
	IsActive    *bool
	Tags        []string
}

// RedeemResult is returned to the caller of a successful redemption.
type RedeemResult struct {
	CreditedAmount decimal.Decimal
	NewCreditLimit decimal.Decimal
}

func tagsJSON(tags []string) (string, error) {
	b, err := json.Marshal(tags)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// --- redis hash codecs -------------------------------------------------------

func (v *Voucher) toHash() map[string]interface{} {
	tags, _ := json.Marshal(v.Tags)

	expiresAt := ""
	if v.ExpiresAt != nil {
		expiresAt = v.ExpiresAt.UTC().Format(time.RFC3339Nano)
	}

	return map[string]interface{}{
		"id":        v.ID,
		"codeHash":  v.CodeHash,
		"plainCode": v.PlainCode,
		"name":      v.Name,
		"amount":    v.Amount.String(),
		"maxUses":   strconv.FormatInt(v.MaxUses, 10),
		"usedCount": strconv.FormatInt(v.UsedCount, 10),
		"expiresAt": expiresAt,
		"isActive":  strconv.FormatBool(v.IsActive),
		"tags":      string(tags),
		"createdAt": v.CreatedAt.UTC().Format(time.RFC3339Nano),
		"createdBy": v.CreatedBy,
	}
}

func voucherFromHash(h map[string]string) (*Voucher, error) {
	if len(h) == 0 {
		return nil, ErrNotFound
	}

	amount, err := decimal.NewFromString(h["amount"])
	if err != nil {
		return nil, err
	}

	v := &Voucher{
		ID:        h["id"],
		CodeHash:  h["codeHash"],
		PlainCode: h["plainCode"],
		Name:      h["name"],
		Amount:    amount,
		CreatedBy: h["createdBy"],
	}

	v.MaxUses, _ = strconv.ParseInt(h["maxUses"], 10, 64)
	v.UsedCount, _ = strconv.ParseInt(h["usedCount"], 10, 64)
	v.IsActive, _ = strconv.ParseBool(h["isActive"])

	if h["expiresAt"] != "" {
		t, err := time.Parse(time.RFC3339Nano, h["expiresAt"])
		if err != nil {
			return nil, err
		}
		v.ExpiresAt = &t
	}
	if h["createdAt"] != "" {
		t, err := time.Parse(time.RFC3339Nano, h["createdAt"])
		if err != nil {
			return nil, err
		}
		v.CreatedAt = t
	}
	if h["tags"] != "" {
		_ = json.Unmarshal([]byte(h["tags"]), &v.Tags)
	}

	return v, nil
}

func (r *RedemptionRecord) toHash() map[string]interface{} {
	return map[string]interface{}{
		"id":            r.ID,
		"voucherId":     r.VoucherID,
		"voucherName":   r.VoucherName,
		"accountId":     r.AccountID,
		"accountName":   r.AccountName,
		"amount":        r.Amount.String(),
		"redeemedAt":    r.RedeemedAt.UTC().Format(time.RFC3339Nano),
		"source":        r.Source,
		"previousLimit": r.PreviousLimit.String(),
		"newLimit":      r.NewLimit.String(),
	}
}

func recordFromHash(h map[string]string) (*RedemptionRecord, error) {
	if len(h) == 0 {
		return nil, ErrNotFound
	}

	amount, err := decimal.NewFromString(h["amount"])
	if err != nil {
		return nil, err
	}

	r := &RedemptionRecord{
		ID:          h["id"],
		VoucherID:   h["voucherId"],
		VoucherName: h["voucherName"],
		AccountID:   h["accountId"],
		AccountName: h["accountName"],
		Amount:      amount,
		Source:      h["source"],
	}

	if h["redeemedAt"] != "" {
		t, err := time.Parse(time.RFC3339Nano, h["redeemedAt"])
		if err != nil {
			return nil, err
		}
		r.RedeemedAt = t
	}

	r.PreviousLimit, _ = decimal.NewFromString(h["previousLimit"])
	r.NewLimit, _ = decimal.NewFromString(h["newLimit"])

	return r, nil
}
