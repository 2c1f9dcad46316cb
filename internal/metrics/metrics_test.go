package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

// findMetric はレジストリから指定名のメトリクスファミリーを取得する。
func findMetric(t *testing.T, reg *prometheus.Registry, name string) *dto.MetricFamily {
	t.Helper()
	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("failed to gather metrics: %v", err)
	}
	for _, mf := range families {
		if mf.GetName() == name {
			return mf
		}
	}
	t.Fatalf("%s metric not found", name)
	return nil
}

// labelValue はメトリクスから指定ラベルの値を返す。
func labelValue(m *dto.Metric, name string) string {
	for _, lp := range m.GetLabel() {
		if lp.GetName() == name {
			return lp.GetValue()
		}
	}
	return ""
}

// TestNewCollector_ReturnsNonNil はCollectorが正常に生成されることを検証する。
func TestNewCollector_ReturnsNonNil(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	if c == nil {
		t.Fatal("expected non-nil Collector")
	}
}

// TestRecordAction_IncrementsCounterPerType はアクション種別ごとにカウンタが増加することを検証する。
func TestRecordAction_IncrementsCounterPerType(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordAction("[Favorites] Add Favorite")
	c.RecordAction("[Favorites] Add Favorite")
	c.RecordAction("[Favorites] Clear Favorites")

	mf := findMetric(t, reg, "jobfinder_actions_total")
	if len(mf.GetMetric()) != 2 {
		t.Fatalf("expected 2 label sets, got %d", len(mf.GetMetric()))
	}
	for _, m := range mf.GetMetric() {
		switch labelValue(m, "type") {
		case "[Favorites] Add Favorite":
			if v := m.GetCounter().GetValue(); v != 2 {
				t.Errorf("add count = %v, want 2", v)
			}
		case "[Favorites] Clear Favorites":
			if v := m.GetCounter().GetValue(); v != 1 {
				t.Errorf("clear count = %v, want 1", v)
			}
		default:
			t.Errorf("unexpected label %q", labelValue(m, "type"))
		}
	}
}

// TestRecordFavoriteOutcome_IncrementsCounter は結果カウンタが増加することを検証する。
func TestRecordFavoriteOutcome_IncrementsCounter(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordFavoriteOutcome("add_duplicate")

	mf := findMetric(t, reg, "jobfinder_favorite_outcomes_total")
	m := mf.GetMetric()[0]
	if labelValue(m, "outcome") != "add_duplicate" {
		t.Errorf("outcome label = %q", labelValue(m, "outcome"))
	}
	if v := m.GetCounter().GetValue(); v != 1 {
		t.Errorf("outcome count = %v, want 1", v)
	}
}

// TestRecordRemoteRequest_RecordsStatusAndLatency はステータスラベルとヒストグラムの両方が記録されることを検証する。
func TestRecordRemoteRequest_RecordsStatusAndLatency(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordRemoteRequest("GET", 200, 150*time.Millisecond)
	c.RecordRemoteRequest("DELETE", 0, 2*time.Second)

	requests := findMetric(t, reg, "jobfinder_remote_requests_total")
	if len(requests.GetMetric()) != 2 {
		t.Fatalf("expected 2 label sets, got %d", len(requests.GetMetric()))
	}
	seen := map[string]bool{}
	for _, m := range requests.GetMetric() {
		seen[labelValue(m, "method")+" "+labelValue(m, "status")] = true
	}
	if !seen["GET 200"] || !seen["DELETE 0"] {
		t.Errorf("label sets = %v", seen)
	}

	latency := findMetric(t, reg, "jobfinder_remote_latency_seconds")
	h := latency.GetMetric()[0].GetHistogram()
	if h.GetSampleCount() != 2 {
		t.Errorf("sample count = %d, want 2", h.GetSampleCount())
	}
	if sum := h.GetSampleSum(); sum < 2.14 || sum > 2.16 {
		t.Errorf("sample sum = %v, want ~2.15", sum)
	}
}

// TestCollector_ImplementsMetricsCollectorInterface はインターフェース実装をコンパイル時に検証する。
func TestCollector_ImplementsMetricsCollectorInterface(t *testing.T) {
	var _ MetricsCollector = (*Collector)(nil)
	var _ MetricsCollector = Nop()
}

// TestMultipleCollectors_IndependentRegistries は別レジストリのCollectorが干渉しないことを検証する。
func TestMultipleCollectors_IndependentRegistries(t *testing.T) {
	reg1 := prometheus.NewRegistry()
	reg2 := prometheus.NewRegistry()
	c1 := NewCollector(reg1)
	_ = NewCollector(reg2)

	c1.RecordFavoriteOutcome("add_success")

	families, err := reg2.Gather()
	if err != nil {
		t.Fatal(err)
	}
	for _, mf := range families {
		if mf.GetName() == "jobfinder_favorite_outcomes_total" && len(mf.GetMetric()) > 0 {
			t.Error("reg2 should not see outcomes recorded on reg1")
		}
	}
}
