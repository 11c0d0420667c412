package stats

import (
	"time"
)

// MetricSummary follows the layout of a k6 summary export so existing
// tooling can read it: {"type": ..., "values": {...}, "thresholds": {...}}.
type MetricSummary struct {
	Type       MetricType               `json:"type"`
	Values     map[string]float64       `json:"values"`
	Thresholds map[string]ThresholdFlag `json:"thresholds,omitempty"`
}

type ThresholdFlag struct {
	OK bool `json:"ok"`
}

type Summary struct {
	Scenario   string                   `json:"scenario"`
	StartedAt  time.Time                `json:"started_at"`
	DurationMs int64                    `json:"duration_ms"`
	Metrics    map[string]MetricSummary `json:"metrics"`
	Checks     []CheckSummary           `json:"checks"`
	Thresholds []ThresholdResult        `json:"thresholds"`
	Passed     bool                     `json:"passed"`
}

// BuildSummary snapshots the registry and evaluates thresholds.
func BuildSummary(scenario string, r *Registry, thresholds []Threshold, startedAt time.Time, elapsed time.Duration) *Summary {
	results := Evaluate(r, thresholds)
	metrics := r.metricSummaries(elapsed)

	for _, res := range results {
		m, ok := metrics[res.Metric]
		if !ok {
			continue
		}
		if m.Thresholds == nil {
			m.Thresholds = make(map[string]ThresholdFlag)
		}
		m.Thresholds[res.Expr] = ThresholdFlag{OK: res.OK}
		metrics[res.Metric] = m
	}

	return &Summary{
		Scenario:   scenario,
		StartedAt:  startedAt,
		DurationMs: elapsed.Milliseconds(),
		Metrics:    metrics,
		Checks:     r.CheckSummaries(),
		Thresholds: results,
		Passed:     AllPassed(results),
	}
}

// Metric returns a value from the summary, or ok=false when absent.
func (s *Summary) Metric(name, key string) (float64, bool) {
	m, ok := s.Metrics[name]
	if !ok {
		return 0, false
	}
	v, ok := m.Values[key]
	return v, ok
}
