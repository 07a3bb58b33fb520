package metrics

import (
	"fmt"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
	"github.com/shopspring/decimal"
)

func TestCommissionMetricsExportsCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := NewCommissionMetrics(reg)

	metrics.ObserveRecorded(2, decimal.RequireFromString("20.00"))
	metrics.ObserveRecorded(0, decimal.RequireFromString("99"))
	metrics.IncTransition("PENDING", "APPROVED")
	metrics.IncTransition("PENDING", "APPROVED")
	metrics.ObservePayout(decimal.RequireFromString("12.50"))
	metrics.IncPayoutFailure("MIXED_AFFILIATES")
	metrics.IncPayoutFailure("")

	if got := testutil.ToFloat64(metrics.recorded); got != 2 {
		t.Fatalf("expected recorded=2, got %f", got)
	}
	if got := testutil.ToFloat64(metrics.recordedAmount); got != 20 {
		t.Fatalf("expected recorded amount=20, got %f", got)
	}
	if got := testutil.ToFloat64(metrics.payoutAmount); got != 12.5 {
		t.Fatalf("expected payout amount=12.5, got %f", got)
	}

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}
	if got, err := fetchCounterValue(mfs, "commission_status_transitions_total", "to", "APPROVED"); err != nil {
		t.Fatalf("fetch transitions: %v", err)
	} else if got != 2 {
		t.Fatalf("expected transitions=2, got %f", got)
	}
	if got, err := fetchCounterValue(mfs, "payout_failures_total", "reason", "unknown"); err != nil {
		t.Fatalf("fetch failures: %v", err)
	} else if got != 1 {
		t.Fatalf("expected unknown failures=1, got %f", got)
	}
}

func TestCommissionMetricsNilSafe(t *testing.T) {
	var nilMetrics *CommissionMetrics
	nilMetrics.ObserveRecorded(1, decimal.NewFromInt(1))
	nilMetrics.IncTransition("a", "b")
	nilMetrics.ObservePayout(decimal.NewFromInt(1))
	nilMetrics.IncPayoutFailure("x")

	noop := NewCommissionMetrics(nil)
	noop.ObserveRecorded(1, decimal.NewFromInt(1))
	noop.IncPayoutFailure("x")
}

func fetchCounterValue(mfs []*dto.MetricFamily, name, label, value string) (float64, error) {
	mf := findMetricFamily(mfs, name)
	if mf == nil {
		return 0, fmt.Errorf("metric %q not found", name)
	}
	for _, metric := range mf.GetMetric() {
		if matchesLabel(metric.GetLabel(), label, value) {
			return metric.GetCounter().GetValue(), nil
		}
	}
	return 0, fmt.Errorf("metric %q missing label %s=%s", name, label, value)
}

func findMetricFamily(mfs []*dto.MetricFamily, name string) *dto.MetricFamily {
	for _, mf := range mfs {
		if mf.GetName() == name {
			return mf
		}
	}
	return nil
}

func matchesLabel(labels []*dto.LabelPair, name, value string) bool {
	for _, label := range labels {
		if label.GetName() == name && label.GetValue() == value {
			return true
		}
	}
	return false
}

func TestWebhookMetricsCountsOutcomes(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewWebhookMetrics(reg)

	m.IncEvent("stripe", "checkout.session.completed", WebhookProcessed)
	m.IncEvent("stripe", "checkout.session.completed", WebhookDuplicate)
	m.IncEvent("stripe", "", WebhookRejected)

	if got := testutil.ToFloat64(m.events.WithLabelValues("stripe", "checkout.session.completed", WebhookProcessed)); got != 1 {
		t.Fatalf("expected 1 processed event, got %v", got)
	}
	if got := testutil.ToFloat64(m.events.WithLabelValues("stripe", "unknown", WebhookRejected)); got != 1 {
		t.Fatalf("expected rejected event with unknown type, got %v", got)
	}
	if got := testutil.CollectAndCount(m.events); got != 3 {
		t.Fatalf("expected 3 series, got %d", got)
	}

	var noop *WebhookMetrics
	noop.IncEvent("stripe", "x", WebhookFailed)
	NewWebhookMetrics(nil).IncEvent("stripe", "x", WebhookFailed)
}
