// Package metrics registers the commerce Prometheus collectors.
package metrics

import (
	"time"

	"github.com/ariefcatur/go-course-commerce/internal/errs"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "commerce"

var (
	Postings = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "ledger_postings_total",
		Help:      "Committed ledger entries by entry type.",
	}, []string{"type"})

	OrderTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "order_transitions_total",
		Help:      "Order status changes by target status.",
	}, []string{"status"})

	CouponRejections = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "coupon_rejections_total",
		Help:      "Coupons refused at preview or confirmation, by reason.",
	}, []string{"reason"})

	PayoutTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "payout_transitions_total",
		Help:      "Payout request status changes by target status.",
	}, []string{"status"})

	SettledSales = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "settled_sales_total",
		Help:      "Held sales moved to available by the settlement sweep.",
	})

	SettledAmount = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "settled_amount_minor_total",
		Help:      "Minor units moved from hold to available.",
	})

	ReconciliationEntries = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "reconciliation_entries_total",
		Help:      "Shortfalls recorded as pending adjustments.",
	})

	IntegrityViolations = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "ledger_integrity_violations_total",
		Help:      "Wallets frozen after a replay mismatch.",
	})

	PaymentEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "payment_events_total",
		Help:      "Verified payment events consumed, by outcome.",
	}, []string{"outcome"})

	HTTPRequests = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "http_request_duration_seconds",
		Help:      "HTTP latency by route pattern and status code.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "route", "code"})

	OperationDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "operation_duration_seconds",
		Help:      "Latency of core operations by outcome code.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"operation", "outcome"})
)

// ObserveOperation records one call of op. The outcome is "ok" or the error code.
func ObserveOperation(op string, err error, d time.Duration) {
	outcome := "ok"
	if err != nil {
		outcome = errs.Code(err)
	}
	OperationDuration.WithLabelValues(op, outcome).Observe(d.Seconds())
}
