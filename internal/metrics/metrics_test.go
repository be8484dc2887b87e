package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// TestNewCollector_ReturnsNonNil はCollectorが正常に生成されることを検証する。
func TestNewCollector_ReturnsNonNil(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	if c == nil {
		t.Fatal("expected non-nil Collector")
	}
}

// counterValue は指定名のカウンタの値を取得するヘルパー。
func counterValue(t *testing.T, reg *prometheus.Registry, name string) float64 {
	t.Helper()

	metrics, err := reg.Gather()
	if err != nil {
		t.Fatalf("failed to gather metrics: %v", err)
	}

	for _, mf := range metrics {
		if mf.GetName() == name {
			var total float64
			for _, m := range mf.GetMetric() {
				total += m.GetCounter().GetValue()
			}
			return total
		}
	}

	t.Fatalf("metric %s not found", name)
	return 0
}

// TestRecordChargeSuccess_IncrementsCounter は決済成功カウンタが増加することを検証する。
func TestRecordChargeSuccess_IncrementsCounter(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordChargeSuccess()
	c.RecordChargeSuccess()

	if got := counterValue(t, reg, "payhub_charge_success_total"); got != 2 {
		t.Errorf("charge_success_total = %v, want 2", got)
	}
}

// TestRecordChargeFailure_IncrementsCounterWithCode はエラーコード別の決済失敗カウンタを検証する。
func TestRecordChargeFailure_IncrementsCounterWithCode(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordChargeFailure("GATEWAY_UNAVAILABLE")
	c.RecordChargeFailure("GATEWAY_UNAVAILABLE")
	c.RecordChargeFailure("DUPLICATE_PAYMENT")

	metrics, err := reg.Gather()
	if err != nil {
		t.Fatalf("failed to gather metrics: %v", err)
	}

	found := false
	for _, mf := range metrics {
		if mf.GetName() != "payhub_charge_fail_total" {
			continue
		}
		found = true
		if len(mf.GetMetric()) != 2 {
			t.Fatalf("expected 2 labeled series, got %d", len(mf.GetMetric()))
		}
		for _, m := range mf.GetMetric() {
			code := m.GetLabel()[0].GetValue()
			val := m.GetCounter().GetValue()
			switch code {
			case "GATEWAY_UNAVAILABLE":
				if val != 2 {
					t.Errorf("fail_total{code=GATEWAY_UNAVAILABLE} = %v, want 2", val)
				}
			case "DUPLICATE_PAYMENT":
				if val != 1 {
					t.Errorf("fail_total{code=DUPLICATE_PAYMENT} = %v, want 1", val)
				}
			default:
				t.Errorf("unexpected code label %q", code)
			}
		}
	}
	if !found {
		t.Error("payhub_charge_fail_total metric not found")
	}
}

// TestRecordChargeRetry_IncrementsCounter はリトライカウンタが増加することを検証する。
func TestRecordChargeRetry_IncrementsCounter(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordChargeRetry()

	if got := counterValue(t, reg, "payhub_charge_retry_total"); got != 1 {
		t.Errorf("charge_retry_total = %v, want 1", got)
	}
}

// TestRecordGatewayLatency_ObservesHistogram はゲートウェイレイテンシが記録されることを検証する。
func TestRecordGatewayLatency_ObservesHistogram(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordGatewayLatency(150 * time.Millisecond)
	c.RecordGatewayLatency(300 * time.Millisecond)

	metrics, err := reg.Gather()
	if err != nil {
		t.Fatalf("failed to gather metrics: %v", err)
	}

	found := false
	for _, mf := range metrics {
		if mf.GetName() == "payhub_gateway_latency_seconds" {
			found = true
			h := mf.GetMetric()[0].GetHistogram()
			if h.GetSampleCount() != 2 {
				t.Errorf("sample count = %d, want 2", h.GetSampleCount())
			}
		}
	}
	if !found {
		t.Error("payhub_gateway_latency_seconds metric not found")
	}
}

// TestRecordSideEffectFailure_IncrementsCounterWithKind は副作用失敗カウンタを検証する。
func TestRecordSideEffectFailure_IncrementsCounterWithKind(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordSideEffectFailure("notification")
	c.RecordSideEffectFailure("audit")

	if got := counterValue(t, reg, "payhub_side_effect_fail_total"); got != 2 {
		t.Errorf("side_effect_fail_total = %v, want 2", got)
	}
}

// TestNopCollector_ImplementsInterface はNopCollectorが全操作を受け付けることを検証する。
func TestNopCollector_ImplementsInterface(t *testing.T) {
	var c MetricsCollector = NopCollector{}

	c.RecordChargeSuccess()
	c.RecordChargeFailure("GATEWAY_UNAVAILABLE")
	c.RecordChargeRetry()
	c.RecordGatewayLatency(time.Second)
	c.RecordSideEffectFailure("coupon")
}
