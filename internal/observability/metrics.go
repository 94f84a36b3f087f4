package observability

import (
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Scenario result labels used on the scenarios counter.
const (
	ResultConverged = "converged"
	ResultDiverged  = "diverged"
	ResultSkipped   = "skipped" // solver invocation disabled
)

// ScenarioCollector bundles Prometheus metrics for batch scenario runs and
// provides a ready-to-use /metrics handler.
type ScenarioCollector struct {
	gatherer prometheus.Gatherer

	ScenariosTotal *prometheus.CounterVec
	ActionsApplied prometheus.Counter
	SolverDuration prometheus.Histogram
	EquipmentRows  *prometheus.GaugeVec
}

// NewScenarioCollector registers scenario metrics against the provided
// registerer, defaulting to the global Prometheus registry when nil.
func NewScenarioCollector(reg prometheus.Registerer) (*ScenarioCollector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	scenarios := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "scenario_runs_total",
		Help: "Total number of processed scenarios, labeled by load-flow result.",
	}, []string{"result"})
	scenarios, err := registerCounterVec(reg, scenarios, "scenario_runs_total")
	if err != nil {
		return nil, err
	}

	actions := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "scenario_actions_applied_total",
		Help: "Total number of field edits applied from action files.",
	})
	actions, err = registerCounter(reg, actions, "scenario_actions_applied_total")
	if err != nil {
		return nil, err
	}

	duration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "solver_run_duration_seconds",
		Help:    "External load-flow solver wall time in seconds.",
		Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30, 60, 120},
	})
	duration, err = registerHistogram(reg, duration, "solver_run_duration_seconds")
	if err != nil {
		return nil, err
	}

	rows := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "dataset_equipment_rows",
		Help: "Current number of rows per equipment table in the working dataset.",
	}, []string{"type"})
	rows, err = registerGaugeVec(reg, rows, "dataset_equipment_rows")
	if err != nil {
		return nil, err
	}

	return &ScenarioCollector{
		gatherer:       gatherer,
		ScenariosTotal: scenarios,
		ActionsApplied: actions,
		SolverDuration: duration,
		EquipmentRows:  rows,
	}, nil
}

// ObserveScenario records the outcome of one scenario.
func (c *ScenarioCollector) ObserveScenario(result string) {
	if c == nil || c.ScenariosTotal == nil {
		return
	}
	c.ScenariosTotal.WithLabelValues(result).Inc()
}

// AddActions records n applied field edits.
func (c *ScenarioCollector) AddActions(n int) {
	if c == nil || c.ActionsApplied == nil || n <= 0 {
		return
	}
	c.ActionsApplied.Add(float64(n))
}

// ObserveSolver records the wall time of one solver invocation.
func (c *ScenarioCollector) ObserveSolver(d time.Duration) {
	if c == nil || c.SolverDuration == nil {
		return
	}
	c.SolverDuration.Observe(d.Seconds())
}

// SetEquipmentRows drives the per-type row gauges from the working dataset.
func (c *ScenarioCollector) SetEquipmentRows(counts map[string]int) {
	if c == nil || c.EquipmentRows == nil {
		return
	}
	for etype, n := range counts {
		c.EquipmentRows.WithLabelValues(etype).Set(float64(n))
	}
}

// Handler exposes a ready-to-use /metrics handler.
func (c *ScenarioCollector) Handler() http.Handler {
	gatherer := c.gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

func registerCounterVec(reg prometheus.Registerer, vec *prometheus.CounterVec, name string) (*prometheus.CounterVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.CounterVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}

func registerCounter(reg prometheus.Registerer, c prometheus.Counter, name string) (prometheus.Counter, error) {
	if err := reg.Register(c); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Counter); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return c, nil
}

func registerHistogram(reg prometheus.Registerer, h prometheus.Histogram, name string) (prometheus.Histogram, error) {
	if err := reg.Register(h); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Histogram); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return h, nil
}

func registerGaugeVec(reg prometheus.Registerer, vec *prometheus.GaugeVec, name string) (*prometheus.GaugeVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.GaugeVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}
