package rediskey

import "fmt"

// Voucher ledger keys (global convention across instances)
const (
	VoucherPrefix   = "voucher"
	VoucherHashMap  = "voucher:code_index"
	VoucherIndex    = "voucher:index"
	RecordPrefix    = "redemption:record"
	RecordIndex     = "redemption:records:index"
	ByVoucherPrefix = "redemption:records:by_voucher"
	ByAccountPrefix = "redemption:records:by_account"
	IdemPrefix      = "redemption:idem"
	AttemptPrefix   = "redemption:attempt"
	ReconcilePrefix = "redemption:reconcile"
)

func NamespaceKey(namespace, key string) string {
	return fmt.Sprintf("%s:%s", namespace, key)
}

// BuildVoucherKey returns "voucher:{voucherID}"
func BuildVoucherKey(voucherID string) string {
	return NamespaceKey(VoucherPrefix, voucherID)
}

// BuildRecordKey returns "redemption:record:{recordID}"
func BuildRecordKey(recordID string) string {
	return NamespaceKey(RecordPrefix, recordID)
}

// BuildByVoucherKey returns "redemption:records:by_voucher:{voucherID}"
func BuildByVoucherKey(voucherID string) string {
	return NamespaceKey(ByVoucherPrefix, voucherID)
}

// BuildByAccountKey returns "redemption:records:by_account:{accountID}"
func BuildByAccountKey(accountID string) string {
	return NamespaceKey(ByAccountPrefix, accountID)
}

// BuildIdemKey returns "redemption:idem:{voucherID}"
func BuildIdemKey(voucherID string) string {
	return NamespaceKey(IdemPrefix, voucherID)
}

// BuildAttemptKey returns "redemption:attempt:{source}"
func BuildAttemptKey(source string) string {
	return NamespaceKey(AttemptPrefix, source)
}

// BuildReconcileKey returns "redemption:reconcile:{recordID}"
func BuildReconcileKey(recordID string) string {
	return NamespaceKey(ReconcilePrefix, recordID)
}
