package stats

import (
	"fmt"
	"strconv"
	"strings"
	"sync/atomic"
	"time"
)

type MetricType string

const (
	TypeTrend   MetricType = "trend"
	TypeRate    MetricType = "rate"
	TypeCounter MetricType = "counter"
)

// Built-in metric names, matching the names k6 reports so thresholds and
// summary tooling carry over unchanged.
const (
	HTTPReqDuration = "http_req_duration"
	HTTPReqFailed   = "http_req_failed"
	HTTPReqs        = "http_reqs"
	Iterations      = "iterations"
	Checks          = "checks"
)

// Trend is a named latency distribution. Values are reported in milliseconds.
type Trend struct {
	name string
	hist *SafeHistogram
}

func newTrend(name string) *Trend {
	return &Trend{name: name, hist: NewSafeHistogram()}
}

func (t *Trend) Name() string { return t.name }

func (t *Trend) Add(d time.Duration) {
	// Out-of-range values are clamped by RecordDuration, so the error is unreachable.
	_ = t.hist.RecordDuration(d)
}

func (t *Trend) Count() int64 {
	return t.hist.TotalCount()
}

// Percentile returns the p-th percentile in milliseconds.
func (t *Trend) Percentile(p float64) float64 {
	return usToMs(t.hist.ValueAtQuantile(p))
}

// Value resolves an aggregation name (avg, min, med, max, count, p(N)).
func (t *Trend) Value(agg string) (float64, error) {
	switch agg {
	case "avg":
		return t.hist.Mean() / 1000.0, nil
	case "min":
		return usToMs(t.hist.Min()), nil
	case "med":
		return t.Percentile(50), nil
	case "max":
		return usToMs(t.hist.Max()), nil
	case "count":
		return float64(t.Count()), nil
	}
	if p, ok := parsePercentile(agg); ok {
		return t.Percentile(p), nil
	}
	return 0, fmt.Errorf("trend %s: unsupported aggregation %q", t.name, agg)
}

func (t *Trend) values() map[string]float64 {
	out := map[string]float64{"count": float64(t.Count())}
	for _, agg := range []string{"avg", "min", "med", "max", "p(90)", "p(95)", "p(99)"} {
		v, _ := t.Value(agg)
		out[agg] = v
	}
	return out
}

// Rate tracks the share of true samples, e.g. failed requests or passed checks.
type Rate struct {
	name   string
	passes atomic.Uint64
	total  atomic.Uint64
}

func (r *Rate) Name() string { return r.name }

func (r *Rate) Add(v bool) {
	if v {
		r.passes.Add(1)
	}
	r.total.Add(1)
}

func (r *Rate) Passes() uint64 { return r.passes.Load() }
func (r *Rate) Total() uint64  { return r.total.Load() }

// Fails may briefly lag concurrent writers; it never underflows.
func (r *Rate) Fails() uint64 {
	total, passes := r.Total(), r.Passes()
	if passes > total {
		return 0
	}
	return total - passes
}

func (r *Rate) Rate() float64 {
	total, passes := r.Total(), r.Passes()
	if total == 0 {
		return 0
	}
	if passes > total {
		passes = total
	}
	return float64(passes) / float64(total)
}

func (r *Rate) Value(agg string) (float64, error) {
	switch agg {
	case "rate":
		return r.Rate(), nil
	case "count":
		return float64(r.Total()), nil
	}
	return 0, fmt.Errorf("rate %s: unsupported aggregation %q", r.name, agg)
}

func (r *Rate) values() map[string]float64 {
	return map[string]float64{
		"rate":   r.Rate(),
		"passes": float64(r.Passes()),
		"fails":  float64(r.Fails()),
	}
}

// Counter is a monotonically increasing count.
type Counter struct {
	name  string
	count atomic.Uint64
}

func (c *Counter) Name() string { return c.name }

func (c *Counter) Inc() { c.count.Add(1) }

func (c *Counter) Count() uint64 { return c.count.Load() }

func (c *Counter) Value(agg string) (float64, error) {
	if agg == "count" {
		return float64(c.Count()), nil
	}
	return 0, fmt.Errorf("counter %s: unsupported aggregation %q", c.name, agg)
}

func (c *Counter) values(elapsed time.Duration) map[string]float64 {
	n := float64(c.Count())
	perSec := 0.0
	if elapsed > 0 {
		perSec = n / elapsed.Seconds()
	}
	return map[string]float64{"count": n, "rate": perSec}
}

// parsePercentile accepts "p(95)" or "p(99.9)".
func parsePercentile(agg string) (float64, bool) {
	if !strings.HasPrefix(agg, "p(") || !strings.HasSuffix(agg, ")") {
		return 0, false
	}
	p, err := strconv.ParseFloat(strings.TrimSpace(agg[2:len(agg)-1]), 64)
	if err != nil || p < 0 || p > 100 {
		return 0, false
	}
	return p, true
}

func usToMs(us int64) float64 {
	return float64(us) / 1000.0
}
