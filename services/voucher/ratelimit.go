package voucher

import (
	"context"
	"time"

	"voucherledger/pkg/config"
	"voucherledger/pkg/errutil"

	"go.uber.org/zap"
)

// Limiter bounds redemption attempts per source identity with a fixed window
// counter. It is an abuse deterrent, not a precise limiter: the counter resets
// only when its TTL expires, so bursts straddling a window boundary can exceed
// the threshold.
type Limiter struct {
	store       Store
	maxAttempts int64
	window      time.Duration
}

func NewLimiter(store Store, cfg *config.Config) *Limiter {
	maxAttempts := cfg.RateLimit.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 5
	}
	window := cfg.RateLimit.Window
	if window <= 0 {
		window = time.Hour
	}
	return &Limiter{store: store, maxAttempts: maxAttempts, window: window}
}

// Check rejects the attempt when the source already hit the threshold.
func (l *Limiter) Check(ctx context.Context, sourceKey string) error {
	attempts, err := l.store.Attempts(ctx, sourceKey)
	if err != nil {
		return errutil.BadGateway("STORE_UNAVAILABLE", errutil.WithErr(err))
	}
	if attempts >= l.maxAttempts {
		zap.L().Warn("redemption rate limited", zap.String("source", sourceKey), zap.Int64("attempts", attempts))
		return ErrRateLimited
	}
	return nil
}

// RecordFailure counts a failed code resolution against the source. Successful
// redemptions are never counted.
func (l *Limiter) RecordFailure(ctx context.Context, sourceKey string) {
	if err := l.store.RecordAttempt(ctx, sourceKey, l.window); err != nil {
		zap.L().Error("failed to record redemption attempt", zap.String("source", sourceKey), zap.Error(err))
	}
}
