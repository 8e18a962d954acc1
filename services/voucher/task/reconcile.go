// Package task holds the asynq task types of the redemption ledger.
package task

import (
	"context"
	"encoding/json"
	"time"

	"voucherledger/pkg/rediskey"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// TypeRedemptionReconcile flags a redemption whose credit increase landed on
// the account but whose ledger commit did not. These must never be retried
// automatically; the handler parks them for manual repair.
const TypeRedemptionReconcile = "redemption:reconcile"

type ReconcilePayload struct {
	VoucherID string    `json:"voucher_id"`
	AccountID string    `json:"account_id"`
	Amount    string    `json:"amount"`
	Source    string    `json:"source"`
	Reason    string    `json:"reason"`
	FailedAt  time.Time `json:"failed_at"`
}

func NewReconcileTask(p ReconcilePayload) (*asynq.Task, error) {
	payload, err := json.Marshal(p)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypeRedemptionReconcile, payload,
		asynq.MaxRetry(5),
		asynq.Queue("critical"),
	), nil
}

var Module = fx.Module("voucher.tasks",
	fx.Invoke(registerHandlers),
)

type handlerParams struct {
	fx.In
	Mux   *asynq.ServeMux
	Redis *redis.Client
}

func registerHandlers(p handlerParams) {
	h := &reconcileHandler{rdb: p.Redis}
	p.Mux.HandleFunc(TypeRedemptionReconcile, h.handle)
}

type reconcileHandler struct {
	rdb *redis.Client
}

// handle parks the orphaned credit in a reconcile record an operator can work
// through. The redemption itself stays rejected.
func (h *reconcileHandler) handle(ctx context.Context, t *asynq.Task) error {
	var p ReconcilePayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		return err
	}

	id := uuid.NewString()
	err := h.rdb.HSet(ctx, rediskey.BuildReconcileKey(id), map[string]interface{}{
		"id":        id,
		"voucherId": p.VoucherID,
		"accountId": p.AccountID,
		"amount":    p.Amount,
		"source":    p.Source,
		"reason":    p.Reason,
		"failedAt":  p.FailedAt.UTC().Format(time.RFC3339Nano),
		"status":    "pending",
	}).Err()
	if err != nil {
		return err
	}

	zap.L().Warn("redemption flagged for manual reconciliation",
		zap.String("reconcile_id", id),
		zap.String("voucher_id", p.VoucherID),
		zap.String("account_id", p.AccountID),
		zap.String("amount", p.Amount),
		zap.String("reason", p.Reason),
	)
	return nil
}
