package voucher

import "voucherledger/pkg/errutil"

// Terminal rejection reasons for a redemption attempt, plus lookup errors for
// the admin surface. The message field carries the machine-readable reason.
var (
	ErrRateLimited     = errutil.TooManyRequest("RATE_LIMITED")
	ErrInvalidCode     = errutil.NotFound("INVALID_CODE")
	ErrCodeDisabled    = errutil.UnprocessableEntity("CODE_DISABLED")
	ErrCodeExpired     = errutil.UnprocessableEntity("CODE_EXPIRED")
	ErrCodeExhausted   = errutil.Conflict("CODE_EXHAUSTED")
	ErrAlreadyRedeemed = errutil.Conflict("ALREADY_REDEEMED")
	ErrInvalidAccount  = errutil.Unauthorized("INVALID_ACCOUNT")

	ErrNotFound = errutil.NotFound("NOT_FOUND")

	// ErrReconcileRequired is surfaced when the credit increase landed on the
	// account but the ledger commit did not. The attempt must not be retried
	// automatically; the reconcile queue flags it for manual repair.
	ErrReconcileRequired = errutil.BadGateway("RECONCILIATION_REQUIRED")
)
