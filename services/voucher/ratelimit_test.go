package voucher

import (
	"context"
	"errors"
	"testing"
	"time"

	"voucherledger/pkg/config"
	"voucherledger/pkg/errutil"

	"github.com/stretchr/testify/require"
)

func testRateConfig(max int64, window time.Duration) *config.Config {
	cfg := &config.Config{}
	cfg.RateLimit.MaxAttempts = max
	cfg.RateLimit.Window = window
	return cfg
}

func TestLimiterAllowsUnderThreshold(t *testing.T) {
	store := NewMemoryStore()
	l := NewLimiter(store, testRateConfig(5, time.Hour))
	ctx := context.Background()

	for i := 0; i < 4; i++ {
		l.RecordFailure(ctx, "10.0.0.1")
	}
	require.NoError(t, l.Check(ctx, "10.0.0.1"))
}

func TestLimiterBlocksAtThreshold(t *testing.T) {
	store := NewMemoryStore()
	l := NewLimiter(store, testRateConfig(5, time.Hour))
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		l.RecordFailure(ctx, "10.0.0.1")
	}
	require.ErrorIs(t, l.Check(ctx, "10.0.0.1"), ErrRateLimited)

	// other sources are unaffected
	require.NoError(t, l.Check(ctx, "10.0.0.2"))
}

func TestLimiterWindowExpiry(t *testing.T) {
	store := NewMemoryStore()
	now := time.Now()
	store.now = func() time.Time { return now }

	l := NewLimiter(store, testRateConfig(5, time.Hour))
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		l.RecordFailure(ctx, "10.0.0.1")
	}
	require.ErrorIs(t, l.Check(ctx, "10.0.0.1"), ErrRateLimited)

	now = now.Add(time.Hour + time.Second)
	require.NoError(t, l.Check(ctx, "10.0.0.1"))
}

func TestLimiterDefaults(t *testing.T) {
	l := NewLimiter(NewMemoryStore(), &config.Config{})
	require.Equal(t, int64(5), l.maxAttempts)
	require.Equal(t, time.Hour, l.window)
}

// attemptsFailStore forces the attempt lookup to fail.
type attemptsFailStore struct {
	Store
	err error
}

func (s *attemptsFailStore) Attempts(context.Context, string) (int64, error) {
	return 0, s.err
}

func TestLimiterStoreFailureIsDependencyError(t *testing.T) {
	store := &attemptsFailStore{Store: NewMemoryStore(), err: errors.New("connection reset")}
	l := NewLimiter(store, testRateConfig(5, time.Hour))

	err := l.Check(context.Background(), "10.0.0.1")
	require.Error(t, err)
	require.NotErrorIs(t, err, ErrRateLimited)

	var base errutil.BaseError
	require.ErrorAs(t, err, &base)
	require.Equal(t, errutil.StatusBadGateway, base.Code)
	require.Equal(t, "STORE_UNAVAILABLE", base.Message)
}
