package observability

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestScenarioCollectorCounts(t *testing.T) {
	reg := prometheus.NewRegistry()
	collector, err := NewScenarioCollector(reg)
	if err != nil {
		t.Fatalf("NewScenarioCollector: %v", err)
	}

	collector.ObserveScenario(ResultConverged)
	collector.ObserveScenario(ResultConverged)
	collector.ObserveScenario(ResultDiverged)
	collector.AddActions(5)
	collector.AddActions(0) // ignored
	collector.ObserveSolver(50 * time.Millisecond)

	if got := testutil.ToFloat64(collector.ScenariosTotal.WithLabelValues(ResultConverged)); got != 2 {
		t.Fatalf("scenario_runs_total{result=converged} = %v, want 2", got)
	}
	if got := testutil.ToFloat64(collector.ScenariosTotal.WithLabelValues(ResultDiverged)); got != 1 {
		t.Fatalf("scenario_runs_total{result=diverged} = %v, want 1", got)
	}
	if got := testutil.ToFloat64(collector.ActionsApplied); got != 5 {
		t.Fatalf("scenario_actions_applied_total = %v, want 5", got)
	}
	if count := histogramSampleCount(t, reg, "solver_run_duration_seconds"); count != 1 {
		t.Fatalf("solver_run_duration_seconds sample_count = %d, want 1", count)
	}
}

func TestScenarioCollectorEquipmentGauges(t *testing.T) {
	reg := prometheus.NewRegistry()
	collector, err := NewScenarioCollector(reg)
	if err != nil {
		t.Fatalf("NewScenarioCollector: %v", err)
	}

	collector.SetEquipmentRows(map[string]int{"generator": 12, "load": 30})

	if got := testutil.ToFloat64(collector.EquipmentRows.WithLabelValues("generator")); got != 12 {
		t.Fatalf("dataset_equipment_rows{type=generator} = %v, want 12", got)
	}
	if got := testutil.ToFloat64(collector.EquipmentRows.WithLabelValues("load")); got != 30 {
		t.Fatalf("dataset_equipment_rows{type=load} = %v, want 30", got)
	}
}

func TestScenarioCollectorHandler(t *testing.T) {
	reg := prometheus.NewRegistry()
	collector, err := NewScenarioCollector(reg)
	if err != nil {
		t.Fatalf("NewScenarioCollector: %v", err)
	}
	collector.ObserveScenario(ResultSkipped)
	collector.SetEquipmentRows(map[string]int{"acline": 7})

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rr := httptest.NewRecorder()
	collector.Handler().ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("/metrics status = %d, want 200", rr.Code)
	}
	body := rr.Body.String()
	for _, metric := range []string{
		"scenario_runs_total",
		"scenario_actions_applied_total",
		"dataset_equipment_rows",
	} {
		if !strings.Contains(body, metric) {
			t.Fatalf("expected %q in /metrics output", metric)
		}
	}
}

func TestScenarioCollectorDoubleRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	if _, err := NewScenarioCollector(reg); err != nil {
		t.Fatalf("first NewScenarioCollector: %v", err)
	}
	second, err := NewScenarioCollector(reg)
	if err != nil {
		t.Fatalf("second NewScenarioCollector: %v", err)
	}

	// The second collector reuses the already-registered collectors.
	second.ObserveScenario(ResultConverged)
	if got := testutil.ToFloat64(second.ScenariosTotal.WithLabelValues(ResultConverged)); got != 1 {
		t.Fatalf("scenario_runs_total after reuse = %v, want 1", got)
	}
}

func TestScenarioCollectorNilSafe(t *testing.T) {
	var collector *ScenarioCollector
	collector.ObserveScenario(ResultConverged)
	collector.AddActions(3)
	collector.ObserveSolver(time.Second)
	collector.SetEquipmentRows(map[string]int{"load": 1})
}

func histogramSampleCount(t *testing.T, gatherer prometheus.Gatherer, name string) uint64 {
	t.Helper()

	metrics, err := gatherer.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}
	for _, mf := range metrics {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.Metric {
			if h := m.GetHistogram(); h != nil {
				return h.GetSampleCount()
			}
		}
	}
	return 0
}
