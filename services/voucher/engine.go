package voucher

import (
	"context"
	"errors"
	"time"

	"voucherledger/pkg/errutil"
	"voucherledger/services/account"
	"voucherledger/services/voucher/task"

	"github.com/bwmarrin/snowflake"
	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

// ReconcileEnqueuer hands an orphaned credit to the reconcile queue.
type ReconcileEnqueuer interface {
	EnqueueReconcile(ctx context.Context, p task.ReconcilePayload) error
}

// AsynqEnqueuer enqueues reconcile tasks on the shared asynq client.
type AsynqEnqueuer struct {
	Client *asynq.Client
}

func (e *AsynqEnqueuer) EnqueueReconcile(_ context.Context, p task.ReconcilePayload) error {
	t, err := task.NewReconcileTask(p)
	if err != nil {
		return err
	}
	_, err = e.Client.Enqueue(t)
	return err
}

// Engine drives a redemption attempt through its gates and commits the state
// transition exactly once per (voucher, account) pair. It holds no in-process
// locks; the store's conditional commit is the only serialization point, so
// correctness holds across instances sharing one store.
type Engine struct {
	store     Store
	accounts  account.Client
	limiter   *Limiter
	gen       *Generator
	node      *snowflake.Node
	reconcile ReconcileEnqueuer
	now       func() time.Time
}

func NewEngine(store Store, accounts account.Client, limiter *Limiter, gen *Generator, node *snowflake.Node, reconcile ReconcileEnqueuer) *Engine {
	return &Engine{
		store:     store,
		accounts:  accounts,
		limiter:   limiter,
		gen:       gen,
		node:      node,
		reconcile: reconcile,
		now:       time.Now,
	}
}

// Redeem validates the presented code, applies the credit increase through the
// account service and commits the redemption. Every attempt resolves to a
// commit or a terminal rejection; nothing is left half-applied.
func (e *Engine) Redeem(ctx context.Context, code, credential, source string) (res *RedeemResult, err error) {
	timer := prometheus.NewTimer(redemptionDuration)
	defer func() {
		timer.ObserveDuration()
		redemptionsTotal.WithLabelValues(outcomeOf(err)).Inc()
	}()

	// RATE_CHECKED
	if err := e.limiter.Check(ctx, source); err != nil {
		return nil, err
	}

	// VOUCHER_RESOLVED: an unknown code counts against the source
	voucherID, err := e.store.ResolveCode(ctx, e.gen.Hash(code))
	if errors.Is(err, ErrNotFound) {
		e.limiter.RecordFailure(ctx, source)
		return nil, ErrInvalidCode
	}
	if err != nil {
		return nil, errutil.BadGateway("STORE_UNAVAILABLE", errutil.WithErr(err))
	}

	v, err := e.store.GetVoucher(ctx, voucherID)
	if errors.Is(err, ErrNotFound) {
		// index entry without a record, treat like an unknown code
		e.limiter.RecordFailure(ctx, source)
		return nil, ErrInvalidCode
	}
	if err != nil {
		return nil, errutil.BadGateway("STORE_UNAVAILABLE", errutil.WithErr(err))
	}

	// VOUCHER_VALIDATED
	if !v.IsActive {
		return nil, ErrCodeDisabled
	}
	if v.ExpiredAt(e.now()) {
		return nil, ErrCodeExpired
	}
	if v.Exhausted() {
		return nil, ErrCodeExhausted
	}

	// ACCOUNT_VALIDATED
	acct, err := e.accounts.ValidateCredential(ctx, credential)
	if errors.Is(err, account.ErrInvalidCredential) {
		return nil, ErrInvalidAccount
	}
	if err != nil {
		return nil, errutil.BadGateway("ACCOUNT_SERVICE_UNAVAILABLE", errutil.WithErr(err))
	}

	// IDEMPOTENCY_CHECKED: advisory read, the commit re-checks atomically
	already, err := e.store.HasRedeemed(ctx, v.ID, acct.ID)
	if err != nil {
		return nil, errutil.BadGateway("STORE_UNAVAILABLE", errutil.WithErr(err))
	}
	if already {
		return nil, ErrAlreadyRedeemed
	}

	// External side effect with at-most-once semantics. Failure here is safe
	// to surface as transient: no credit was applied yet.
	newLimit, err := e.accounts.ApplyCreditIncrease(ctx, acct.ID, v.Amount)
	if err != nil {
		return nil, errutil.BadGateway("ACCOUNT_SERVICE_UNAVAILABLE", errutil.WithErr(err))
	}

	rec := &RedemptionRecord{
		ID:            e.node.Generate().String(),
		VoucherID:     v.ID,
		VoucherName:   v.Name,
		AccountID:     acct.ID,
		AccountName:   acct.Name,
		Amount:        v.Amount,
		RedeemedAt:    e.now(),
		Source:        source,
		PreviousLimit: acct.CreditLimit,
		NewLimit:      newLimit,
	}

	// COMMITTED: single conditional transaction keyed per voucher id
	if err := e.store.Commit(ctx, v.ID, acct.ID, rec); err != nil {
		// The credit already landed on the account. Never retry from here;
		// park the attempt for manual reconciliation instead.
		e.flagReconcile(ctx, v, acct.ID, source, err)

		if errors.Is(err, ErrAlreadyRedeemed) || errors.Is(err, ErrCodeExhausted) {
			return nil, err
		}
		return nil, ErrReconcileRequired
	}

	zap.L().Info("redemption committed",
		zap.String("voucher_id", v.ID),
		zap.String("voucher_name", v.Name),
		zap.String("account_id", acct.ID),
		zap.String("amount", v.Amount.String()),
	)

	return &RedeemResult{
		CreditedAmount: v.Amount,
		NewCreditLimit: newLimit,
	}, nil
}

func (e *Engine) flagReconcile(ctx context.Context, v *Voucher, accountID, source string, cause error) {
	zap.L().Error("ledger commit failed after credit increase",
		zap.String("voucher_id", v.ID),
		zap.String("account_id", accountID),
		zap.Error(cause),
	)

	if e.reconcile == nil {
		return
	}

	p := task.ReconcilePayload{
		VoucherID: v.ID,
		AccountID: accountID,
		Amount:    v.Amount.String(),
		Source:    source,
		Reason:    cause.Error(),
		FailedAt:  e.now(),
	}
	if err := e.reconcile.EnqueueReconcile(ctx, p); err != nil {
		zap.L().Error("failed to enqueue reconcile task", zap.Error(err))
	}
}
