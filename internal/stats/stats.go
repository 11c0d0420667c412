package stats

import (
	"fmt"
	"sort"
	"sync"
	"time"
)

// Observer mirrors samples to an external sink such as a Prometheus registry.
type Observer interface {
	ObserveTrend(name string, d time.Duration)
	ObserveCheck(name string, ok bool)
	ObserveIteration()
}

// Registry holds every named metric of a run. Samples only ever land in the
// metric they are recorded under.
type Registry struct {
	mu       sync.RWMutex
	trends   map[string]*Trend
	rates    map[string]*Rate
	counters map[string]*Counter
	checks   map[string]*Rate

	observer Observer
}

func NewRegistry() *Registry {
	r := &Registry{
		trends:   make(map[string]*Trend),
		rates:    make(map[string]*Rate),
		counters: make(map[string]*Counter),
		checks:   make(map[string]*Rate),
	}
	// Built-ins exist even before the first sample so thresholds on them
	// always resolve.
	r.Trend(HTTPReqDuration)
	r.Rate(HTTPReqFailed)
	r.Rate(Checks)
	r.Counter(HTTPReqs)
	r.Counter(Iterations)
	return r
}

// SetObserver must be called before the run starts.
func (r *Registry) SetObserver(o Observer) {
	r.observer = o
}

func (r *Registry) Trend(name string) *Trend {
	r.mu.RLock()
	t, ok := r.trends[name]
	r.mu.RUnlock()
	if ok {
		return t
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if t, ok = r.trends[name]; ok {
		return t
	}
	t = newTrend(name)
	r.trends[name] = t
	return t
}

func (r *Registry) Rate(name string) *Rate {
	r.mu.RLock()
	rt, ok := r.rates[name]
	r.mu.RUnlock()
	if ok {
		return rt
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if rt, ok = r.rates[name]; ok {
		return rt
	}
	rt = &Rate{name: name}
	r.rates[name] = rt
	return rt
}

func (r *Registry) Counter(name string) *Counter {
	r.mu.RLock()
	c, ok := r.counters[name]
	r.mu.RUnlock()
	if ok {
		return c
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok = r.counters[name]; ok {
		return c
	}
	c = &Counter{name: name}
	r.counters[name] = c
	return c
}

// AddTrend appends a latency sample to the named distribution.
func (r *Registry) AddTrend(name string, d time.Duration) {
	r.Trend(name).Add(d)
	if r.observer != nil {
		r.observer.ObserveTrend(name, d)
	}
}

// AddRequest records one HTTP call in the built-in request metrics.
func (r *Registry) AddRequest(d time.Duration, failed bool) {
	r.AddTrend(HTTPReqDuration, d)
	r.Rate(HTTPReqFailed).Add(failed)
	r.Counter(HTTPReqs).Inc()
}

// Check records the outcome of a named assertion and returns ok unchanged.
func (r *Registry) Check(name string, ok bool) bool {
	r.Rate(Checks).Add(ok)

	r.mu.Lock()
	c, found := r.checks[name]
	if !found {
		c = &Rate{name: name}
		r.checks[name] = c
	}
	r.mu.Unlock()
	c.Add(ok)

	if r.observer != nil {
		r.observer.ObserveCheck(name, ok)
	}
	return ok
}

func (r *Registry) AddIteration() {
	r.Counter(Iterations).Inc()
	if r.observer != nil {
		r.observer.ObserveIteration()
	}
}

// Value resolves metric/aggregation pairs such as ("http_req_duration", "p(95)").
func (r *Registry) Value(metric, agg string) (float64, error) {
	r.mu.RLock()
	t, isTrend := r.trends[metric]
	rt, isRate := r.rates[metric]
	c, isCounter := r.counters[metric]
	r.mu.RUnlock()

	switch {
	case isTrend:
		return t.Value(agg)
	case isRate:
		return rt.Value(agg)
	case isCounter:
		return c.Value(agg)
	}
	return 0, fmt.Errorf("unknown metric %q", metric)
}

// CheckSummary is the pass/fail tally of one named check.
type CheckSummary struct {
	Name   string `json:"name"`
	Passes uint64 `json:"passes"`
	Fails  uint64 `json:"fails"`
}

func (r *Registry) CheckSummaries() []CheckSummary {
	r.mu.RLock()
	out := make([]CheckSummary, 0, len(r.checks))
	for name, c := range r.checks {
		out = append(out, CheckSummary{Name: name, Passes: c.Passes(), Fails: c.Fails()})
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// TrendNames lists trend metrics, sorted.
func (r *Registry) TrendNames() []string {
	r.mu.RLock()
	names := make([]string, 0, len(r.trends))
	for name := range r.trends {
		names = append(names, name)
	}
	r.mu.RUnlock()
	sort.Strings(names)
	return names
}

func (r *Registry) metricSummaries(elapsed time.Duration) map[string]MetricSummary {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make(map[string]MetricSummary, len(r.trends)+len(r.rates)+len(r.counters))
	for name, t := range r.trends {
		out[name] = MetricSummary{Type: TypeTrend, Values: t.values()}
	}
	for name, rt := range r.rates {
		out[name] = MetricSummary{Type: TypeRate, Values: rt.values()}
	}
	for name, c := range r.counters {
		out[name] = MetricSummary{Type: TypeCounter, Values: c.values(elapsed)}
	}
	return out
}
