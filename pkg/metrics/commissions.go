package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
)

// CommissionMetrics records ledger and payout activity.
type CommissionMetrics struct {
	recorded       prometheus.Counter
	recordedAmount prometheus.Counter
	transitions    *prometheus.CounterVec
	payouts        prometheus.Counter
	payoutAmount   prometheus.Counter
	payoutFailures *prometheus.CounterVec
}

// NewCommissionMetrics registers the commission metrics on the provided
// registerer. A nil registerer yields a no-op recorder.
func NewCommissionMetrics(reg prometheus.Registerer) *CommissionMetrics {
	if reg == nil {
		return &CommissionMetrics{}
	}
	recorded := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "commissions_recorded_total",
		Help: "Commission rows created by the ledger.",
	})
	recordedAmount := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "commission_amount_recorded_total",
		Help: "Sum of commission amounts created, in major currency units.",
	})
	transitions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "commission_status_transitions_total",
		Help: "Commission status changes by source and target status.",
	}, []string{"from", "to"})
	payouts := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "payouts_processed_total",
		Help: "Payout batches committed.",
	})
	payoutAmount := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "payout_amount_total",
		Help: "Sum of paid commission amounts, in major currency units.",
	})
	payoutFailures := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "payout_failures_total",
		Help: "Rejected or failed payout attempts by reason.",
	}, []string{"reason"})
	reg.MustRegister(recorded, recordedAmount, transitions, payouts, payoutAmount, payoutFailures)
	return &CommissionMetrics{
		recorded:       recorded,
		recordedAmount: recordedAmount,
		transitions:    transitions,
		payouts:        payouts,
		payoutAmount:   payoutAmount,
		payoutFailures: payoutFailures,
	}
}

// ObserveRecorded counts a committed commission batch.
func (m *CommissionMetrics) ObserveRecorded(count int, total decimal.Decimal) {
	if m == nil || m.recorded == nil || count <= 0 {
		return
	}
	m.recorded.Add(float64(count))
	m.recordedAmount.Add(total.InexactFloat64())
}

// IncTransition counts a single status change.
func (m *CommissionMetrics) IncTransition(from, to string) {
	if m == nil || m.transitions == nil {
		return
	}
	m.transitions.WithLabelValues(normalizeLabel(from), normalizeLabel(to)).Inc()
}

// ObservePayout counts a committed payout batch.
func (m *CommissionMetrics) ObservePayout(total decimal.Decimal) {
	if m == nil || m.payouts == nil {
		return
	}
	m.payouts.Inc()
	m.payoutAmount.Add(total.InexactFloat64())
}

// IncPayoutFailure counts a payout that did not commit.
func (m *CommissionMetrics) IncPayoutFailure(reason string) {
	if m == nil || m.payoutFailures == nil {
		return
	}
	m.payoutFailures.WithLabelValues(normalizeLabel(reason)).Inc()
}

func normalizeLabel(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}
