package stats

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

var thresholdExpr = regexp.MustCompile(`^\s*(avg|min|med|max|count|rate|p\(\s*[0-9]+(?:\.[0-9]+)?\s*\))\s*(<=|>=|==|!=|<|>)\s*(-?[0-9]+(?:\.[0-9]+)?)\s*$`)

// Threshold is a pass/fail condition on one aggregated metric, written in
// the k6 form "p(95)<500" or "rate<0.01".
type Threshold struct {
	Metric string
	Expr   string

	agg   string
	op    string
	limit float64
}

func ParseThreshold(metric, expr string) (Threshold, error) {
	m := thresholdExpr.FindStringSubmatch(expr)
	if m == nil {
		return Threshold{}, fmt.Errorf("threshold %s: cannot parse %q", metric, expr)
	}
	limit, err := strconv.ParseFloat(m[3], 64)
	if err != nil {
		return Threshold{}, fmt.Errorf("threshold %s: bad limit in %q: %w", metric, expr, err)
	}
	agg := strings.ReplaceAll(m[1], " ", "")
	return Threshold{
		Metric: metric,
		Expr:   strings.TrimSpace(expr),
		agg:    agg,
		op:     m[2],
		limit:  limit,
	}, nil
}

// ParseThresholds parses a metric → expressions map into a stable, sorted list.
func ParseThresholds(byMetric map[string][]string) ([]Threshold, error) {
	metrics := make([]string, 0, len(byMetric))
	for metric := range byMetric {
		metrics = append(metrics, metric)
	}
	sort.Strings(metrics)

	var out []Threshold
	for _, metric := range metrics {
		for _, expr := range byMetric[metric] {
			t, err := ParseThreshold(metric, expr)
			if err != nil {
				return nil, err
			}
			out = append(out, t)
		}
	}
	return out, nil
}

func (t Threshold) holds(actual float64) bool {
	switch t.op {
	case "<":
		return actual < t.limit
	case "<=":
		return actual <= t.limit
	case ">":
		return actual > t.limit
	case ">=":
		return actual >= t.limit
	case "==":
		return actual == t.limit
	case "!=":
		return actual != t.limit
	}
	return false
}

type ThresholdResult struct {
	Metric string  `json:"metric"`
	Expr   string  `json:"expr"`
	Actual float64 `json:"actual"`
	OK     bool    `json:"ok"`
	Err    string  `json:"error,omitempty"`
}

// Evaluate checks every threshold against the registry. A threshold whose
// metric or aggregation cannot be resolved fails.
func Evaluate(r *Registry, thresholds []Threshold) []ThresholdResult {
	out := make([]ThresholdResult, 0, len(thresholds))
	for _, t := range thresholds {
		res := ThresholdResult{Metric: t.Metric, Expr: t.Expr}
		actual, err := r.Value(t.Metric, t.agg)
		if err != nil {
			res.Err = err.Error()
		} else {
			res.Actual = actual
			res.OK = t.holds(actual)
		}
		out = append(out, res)
	}
	return out
}

func AllPassed(results []ThresholdResult) bool {
	for _, r := range results {
		if !r.OK {
			return false
		}
	}
	return true
}
