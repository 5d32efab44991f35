package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

// findMetric はレジストリから指定名・ラベルのメトリクスを探す。
func findMetric(t *testing.T, reg *prometheus.Registry, name string, labels map[string]string) *dto.Metric {
	t.Helper()

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("failed to gather metrics: %v", err)
	}
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.GetMetric() {
			if labelsMatch(m, labels) {
				return m
			}
		}
	}
	t.Fatalf("metric %s%v not found", name, labels)
	return nil
}

func labelsMatch(m *dto.Metric, labels map[string]string) bool {
	matched := 0
	for _, lp := range m.GetLabel() {
		if v, ok := labels[lp.GetName()]; ok && v == lp.GetValue() {
			matched++
		}
	}
	return matched == len(labels)
}

// TestNewCollector_ReturnsNonNil はCollectorが正常に生成されることを検証する。
func TestNewCollector_ReturnsNonNil(t *testing.T) {
	reg := prometheus.NewRegistry()
	if c := NewCollector(reg); c == nil {
		t.Fatal("expected non-nil Collector")
	}
}

// TestRecordRefresh_CountsByStatus はステータスごとにカウンタが分かれることを検証する。
func TestRecordRefresh_CountsByStatus(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordRefresh("feed", "up")
	c.RecordRefresh("feed", "up")
	c.RecordRefresh("feed", "fully_down")

	up := findMetric(t, reg, "statuswatch_refresh_total", map[string]string{"method": "feed", "status": "up"})
	if got := up.GetCounter().GetValue(); got != 2 {
		t.Errorf("refresh_total{status=up} = %v, want 2", got)
	}
	down := findMetric(t, reg, "statuswatch_refresh_total", map[string]string{"method": "feed", "status": "fully_down"})
	if got := down.GetCounter().GetValue(); got != 1 {
		t.Errorf("refresh_total{status=fully_down} = %v, want 1", got)
	}
}

// TestRecordFetchFailure_CountsByKind は失敗種別ごとにカウンタが分かれることを検証する。
func TestRecordFetchFailure_CountsByKind(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordFetchFailure("scrape", "network")

	m := findMetric(t, reg, "statuswatch_fetch_failure_total", map[string]string{"method": "scrape", "kind": "network"})
	if got := m.GetCounter().GetValue(); got != 1 {
		t.Errorf("fetch_failure_total = %v, want 1", got)
	}
}

// TestRecordHistoryAppended_IncrementsCounter は履歴追記カウンタが増加することを検証する。
func TestRecordHistoryAppended_IncrementsCounter(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordHistoryAppended()
	c.RecordHistoryAppended()
	c.RecordHistoryAppended()

	m := findMetric(t, reg, "statuswatch_history_appended_total", nil)
	if got := m.GetCounter().GetValue(); got != 3 {
		t.Errorf("history_appended_total = %v, want 3", got)
	}
}

// TestRecordCheckLatency_ObservesHistogram はレイテンシがヒストグラムに記録されることを検証する。
func TestRecordCheckLatency_ObservesHistogram(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordCheckLatency("feed", 250*time.Millisecond)

	m := findMetric(t, reg, "statuswatch_check_latency_seconds", map[string]string{"method": "feed"})
	if got := m.GetHistogram().GetSampleCount(); got != 1 {
		t.Errorf("sample_count = %d, want 1", got)
	}
	if got := m.GetHistogram().GetSampleSum(); got != 0.25 {
		t.Errorf("sample_sum = %v, want 0.25", got)
	}
}

// TestHandler_ServesMetrics はスクレイプでメトリクスが返ることを検証する。
func TestHandler_ServesMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)
	c.RecordHistoryAppended()

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w := httptest.NewRecorder()
	Handler(reg).ServeHTTP(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}
	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), "statuswatch_history_appended_total") {
		t.Error("response should contain statuswatch_history_appended_total metric")
	}
}
