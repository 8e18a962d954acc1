package voucher

import (
	"errors"

	"voucherledger/pkg/errutil"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	redemptionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "voucher_redemptions_total",
		Help: "Redemption attempts by terminal outcome",
	}, []string{"outcome"})

	redemptionDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "voucher_redemption_duration_seconds",
		Help:    "End-to-end redemption latency",
		Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
	})

	vouchersCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "voucher_created_total",
		Help: "Vouchers created",
	})
)

func outcomeOf(err error) string {
	if err == nil {
		return "committed"
	}
	var base errutil.BaseError
	if errors.As(err, &base) {
		return base.Message
	}
	return "error"
}
