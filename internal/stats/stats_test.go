package stats

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_TrendsAreIsolated(t *testing.T) {
	r := NewRegistry()

	for i := 0; i < 10; i++ {
		r.AddTrend("msa_chat_create_message_ms", 100*time.Millisecond)
	}
	r.AddTrend("msa_session_update_status_ms", 5*time.Millisecond)

	assert.Equal(t, int64(10), r.Trend("msa_chat_create_message_ms").Count())
	assert.Equal(t, int64(1), r.Trend("msa_session_update_status_ms").Count())
	assert.Equal(t, int64(0), r.Trend("msa_tenanthub_list_ms").Count())

	p95, err := r.Value("msa_session_update_status_ms", "p(95)")
	require.NoError(t, err)
	assert.InDelta(t, 5.0, p95, 0.05)
}

func TestRegistry_AddRequest(t *testing.T) {
	r := NewRegistry()
	r.AddRequest(10*time.Millisecond, false)
	r.AddRequest(20*time.Millisecond, true)
	r.AddRequest(30*time.Millisecond, false)
	r.AddRequest(40*time.Millisecond, false)

	assert.Equal(t, uint64(4), r.Counter(HTTPReqs).Count())
	assert.Equal(t, int64(4), r.Trend(HTTPReqDuration).Count())
	assert.InDelta(t, 0.25, r.Rate(HTTPReqFailed).Rate(), 1e-9)
}

func TestRegistry_Checks(t *testing.T) {
	r := NewRegistry()
	assert.True(t, r.Check("message status 201", true))
	assert.False(t, r.Check("message status 201", false))
	r.Check("message status 201", true)
	r.Check("tenanthub list status 200", true)

	checks := r.CheckSummaries()
	require.Len(t, checks, 2)
	assert.Equal(t, CheckSummary{Name: "message status 201", Passes: 2, Fails: 1}, checks[0])
	assert.Equal(t, CheckSummary{Name: "tenanthub list status 200", Passes: 1, Fails: 0}, checks[1])

	assert.Equal(t, uint64(4), r.Rate(Checks).Total())
	assert.Equal(t, uint64(3), r.Rate(Checks).Passes())
}

func TestRegistry_ConcurrentWrites(t *testing.T) {
	r := NewRegistry()
	var wg sync.WaitGroup
	for w := 0; w < 16; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 500; i++ {
				r.AddRequest(time.Millisecond, i%50 == 0)
				r.Check("ok", true)
				r.AddIteration()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, uint64(8000), r.Counter(HTTPReqs).Count())
	assert.Equal(t, uint64(8000), r.Counter(Iterations).Count())
	assert.Equal(t, uint64(160), r.Rate(HTTPReqFailed).Passes())
}

func TestRegistry_ValueUnknown(t *testing.T) {
	r := NewRegistry()
	_, err := r.Value("nope", "avg")
	assert.Error(t, err)

	_, err = r.Value(HTTPReqFailed, "p(95)")
	assert.Error(t, err)
}

type recordingObserver struct {
	mu         sync.Mutex
	trends     map[string]int
	checks     map[string]int
	iterations int
}

func (o *recordingObserver) ObserveTrend(name string, _ time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.trends[name]++
}

func (o *recordingObserver) ObserveCheck(name string, _ bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.checks[name]++
}

func (o *recordingObserver) ObserveIteration() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.iterations++
}

func TestRegistry_Observer(t *testing.T) {
	obs := &recordingObserver{trends: map[string]int{}, checks: map[string]int{}}
	r := NewRegistry()
	r.SetObserver(obs)

	r.AddRequest(time.Millisecond, false)
	r.AddTrend("msa_tenanthub_list_ms", time.Millisecond)
	r.Check("c", false)
	r.AddIteration()

	assert.Equal(t, 1, obs.trends[HTTPReqDuration])
	assert.Equal(t, 1, obs.trends["msa_tenanthub_list_ms"])
	assert.Equal(t, 1, obs.checks["c"])
	assert.Equal(t, 1, obs.iterations)
}

func TestTrend_Values(t *testing.T) {
	tr := newTrend("x")
	for i := 1; i <= 100; i++ {
		tr.Add(time.Duration(i) * time.Millisecond)
	}

	v := tr.values()
	assert.Equal(t, 100.0, v["count"])
	assert.InDelta(t, 1.0, v["min"], 0.01)
	assert.InDelta(t, 100.0, v["max"], 0.1)
	assert.InDelta(t, 50.5, v["avg"], 0.1)
	assert.InDelta(t, 95.0, v["p(95)"], 0.1)
	assert.InDelta(t, 99.0, v["p(99)"], 0.1)

	p999, err := tr.Value("p(99.9)")
	require.NoError(t, err)
	assert.InDelta(t, 100.0, p999, 0.1)
}

func TestSafeHistogram_ClampsOutOfRange(t *testing.T) {
	h := NewSafeHistogram()
	require.NoError(t, h.RecordDuration(0))
	require.NoError(t, h.RecordDuration(time.Hour))
	assert.Equal(t, int64(2), h.TotalCount())
}
