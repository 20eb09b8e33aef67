package metrics

import (
	"testing"
	"time"
)

func counterValue(t *testing.T, m *Metrics, name string, labels map[string]string) float64 {
	t.Helper()
	families, err := m.Registry.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	for _, family := range families {
		if family.GetName() != name {
			continue
		}
		for _, metric := range family.GetMetric() {
			matched := 0
			for _, pair := range metric.GetLabel() {
				if labels[pair.GetName()] == pair.GetValue() {
					matched++
				}
			}
			if matched == len(labels) {
				return metric.GetCounter().GetValue()
			}
		}
	}
	return 0
}

func TestObserveOperation(t *testing.T) {
	m := New()
	m.ObserveOperation("koala", "amm.swap", "success", 2*time.Second)
	m.ObserveOperation("koala", "amm.swap", "success", time.Second)
	m.ObserveOperation("koala", "amm.swap", "failure", time.Second)

	got := counterValue(t, m, "koala_operations_total", map[string]string{
		"network": "koala", "operation": "amm.swap", "outcome": "success",
	})
	if got != 2 {
		t.Fatalf("success count mismatch: got %v want 2", got)
	}
}

func TestObserveGasFeeIgnoresZero(t *testing.T) {
	m := New()
	m.ObserveGasFee("koala", 0)
	m.ObserveGasFee("koala", 0.25)
	if got := counterValue(t, m, "koala_gas_fee_native_total", map[string]string{"network": "koala"}); got != 0.25 {
		t.Fatalf("gas fee mismatch: got %v want 0.25", got)
	}
}

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	m.ObserveOperation("koala", "amm.swap", "success", time.Second)
	m.ObserveStageError("amm.swap", "quoting", "InvalidAmount")
	m.ObserveWrap("koala")
	m.ObserveGasFee("koala", 1)
	m.ObserveHTTP("/", "200")
}
