package hotpath

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"hotpath/internal/config"
	"hotpath/internal/runner"
	"hotpath/internal/stats"
)

func runScenario(t *testing.T, sc runner.Scenario, reg *stats.Registry, vus int, d time.Duration) (*runner.Result, error) {
	t.Helper()
	r := runner.NewRunner(runner.Config{VUs: vus, Duration: d}, reg, nil, zap.NewNop())
	return r.Run(context.Background(), sc)
}

func TestChat_EveryMessageUsesSharedRoomAndToken(t *testing.T) {
	srv, ts := newDummy(t)
	sc, reg := newScenario(t, ChatName, ts.URL)

	res, err := runScenario(t, sc, reg, 4, 200*time.Millisecond)
	require.NoError(t, err)
	require.Positive(t, res.Iterations)

	assert.Equal(t, int64(1), srv.Counters.Logins.Load())
	assert.Equal(t, int64(1), srv.Counters.Rooms.Load())
	assert.Equal(t, int(res.Iterations), srv.MessagesByToken(res.Setup.RoomID, res.Setup.Token))

	msgs := srv.Messages(res.Setup.RoomID)
	seen := map[string]bool{}
	for _, m := range msgs {
		assert.True(t, strings.HasPrefix(m, "k6-message-"), m)
		assert.False(t, seen[m], "duplicate message %s", m)
		seen[m] = true
	}

	passes, fails := checkPasses(reg, "message status 201")
	assert.Equal(t, uint64(res.Iterations), passes)
	assert.Zero(t, fails)
}

func TestChat_SetupFailureGeneratesNoLoad(t *testing.T) {
	srv, ts := newDummy(t)
	reg := stats.NewRegistry()
	cfg := testConfig(ts.URL)
	cfg.Password = "wrong"
	cfg.MessageTemplate = "k6-message-{{.VU}}-{{.Iter}}"
	sc, err := NewChatScenario(cfg, NewClient(NewHTTPClient(0, 1), reg, nil), nil)
	require.NoError(t, err)

	_, err = runScenario(t, sc, reg, 8, 100*time.Millisecond)
	var setupErr *SetupError
	require.ErrorAs(t, err, &setupErr)
	assert.Equal(t, http.StatusUnauthorized, setupErr.Status)
	assert.Zero(t, srv.Counters.Messages.Load())
	assert.Zero(t, srv.Counters.Rooms.Load())
}

func TestMSA_TrendsAreIsolated(t *testing.T) {
	srv, ts := newDummy(t)
	sc, reg := newScenario(t, MSAName, ts.URL)

	res, err := runScenario(t, sc, reg, 3, 200*time.Millisecond)
	require.NoError(t, err)
	n := int64(res.Iterations)
	require.Positive(t, n)

	assert.Equal(t, n, reg.Trend(TrendChatCreateMessage).Count())
	assert.Equal(t, n, reg.Trend(TrendSessionUpdateStatus).Count())
	assert.Equal(t, n, reg.Trend(TrendTenantHubList).Count())
	assert.Equal(t, int64(1), reg.Trend(TrendOrgHubLogin).Count())

	// two setup calls plus three per iteration
	assert.Equal(t, 3*n+2, reg.Trend(stats.HTTPReqDuration).Count())

	assert.Equal(t, n, srv.Counters.Messages.Load())
	assert.Equal(t, n, srv.Counters.StatusUpdates.Load())
	assert.Equal(t, n, srv.Counters.TenantLists.Load())

	total := 0
	for status, c := range srv.StatusCounts() {
		assert.Contains(t, []string{"online", "busy", "away"}, status)
		total += c
	}
	assert.Equal(t, int(n), total)

	for _, name := range []string{"chat message status 201", "session status update 200", "tenanthub list status 200"} {
		passes, fails := checkPasses(reg, name)
		assert.Equal(t, uint64(n), passes, name)
		assert.Zero(t, fails, name)
	}
}

// stopAfterSetup cancels the run as soon as setup returns, before any VU
// gets to iterate.
type stopAfterSetup struct {
	runner.Scenario
	cancel context.CancelFunc
}

func (s stopAfterSetup) Setup(ctx context.Context) (runner.SetupContext, error) {
	setup, err := s.Scenario.Setup(ctx)
	s.cancel()
	return setup, err
}

func TestMSA_ThresholdsPassWithoutIterations(t *testing.T) {
	_, ts := newDummy(t)
	sc, reg := newScenario(t, MSAName, ts.URL)

	d, err := Defaults(MSAName)
	require.NoError(t, err)
	thresholds, err := stats.ParseThresholds(d.Thresholds)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	r := runner.NewRunner(runner.Config{VUs: 4, Duration: time.Minute}, reg, nil, nil)
	res, err := r.Run(ctx, stopAfterSetup{Scenario: sc, cancel: cancel})
	require.NoError(t, err)
	require.Zero(t, res.Iterations)

	summary := stats.BuildSummary(res.Scenario, reg, thresholds, res.StartedAt, res.Elapsed)
	for _, th := range summary.Thresholds {
		assert.True(t, th.OK, "%s %s: %s", th.Metric, th.Expr, th.Err)
	}
	assert.True(t, summary.Passed)
	for _, name := range MSATrends() {
		assert.Contains(t, summary.Metrics, name)
	}
}

type recordedCall struct {
	method string
	path   string
	auth   string
	body   string
}

// recordingBackend answers every hot path call and keeps them in order.
type recordingBackend struct {
	mu    sync.Mutex
	calls []recordedCall
	// tenantStatus overrides the tenant list response.
	tenantStatus int
}

func (b *recordingBackend) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	b.mu.Lock()
	b.calls = append(b.calls, recordedCall{method: r.Method, path: r.URL.Path, auth: r.Header.Get("Authorization"), body: string(body)})
	b.mu.Unlock()

	switch {
	case r.URL.Path == PathLogin:
		_, _ = w.Write([]byte(`{"access_token":"T"}`))
	case r.URL.Path == PathRooms:
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"id":"R"}`))
	case strings.HasSuffix(r.URL.Path, "/messages"):
		w.WriteHeader(http.StatusCreated)
	case r.URL.Path == PathSessionStatus:
		w.WriteHeader(http.StatusOK)
	case r.URL.Path == PathTenants:
		if b.tenantStatus != 0 {
			w.WriteHeader(b.tenantStatus)
			return
		}
		_, _ = w.Write([]byte(`[]`))
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func TestMSA_IterationOrderAndPayloads(t *testing.T) {
	backend := &recordingBackend{}
	ts := httptest.NewServer(backend)
	defer ts.Close()

	sc, reg := newScenario(t, MSAName, ts.URL)
	setup, err := sc.Setup(context.Background())
	require.NoError(t, err)
	assert.Equal(t, runner.SetupContext{Token: "T", RoomID: "R"}, setup)

	sc.Iterate(context.Background(), 2, 5, setup)

	backend.mu.Lock()
	calls := append([]recordedCall(nil), backend.calls[2:]...)
	backend.mu.Unlock()
	require.Len(t, calls, 3)

	assert.Equal(t, http.MethodPost, calls[0].method)
	assert.Equal(t, "/api/v1/rooms/R/messages", calls[0].path)
	assert.JSONEq(t, `{"body":"msa-k6-message-2-5","file_ids":[],"emojis":[]}`, calls[0].body)

	// (2+5)%3 == 1
	assert.Equal(t, http.MethodPatch, calls[1].method)
	assert.Equal(t, PathSessionStatus, calls[1].path)
	assert.JSONEq(t, `{"status":"busy","status_note":"k6-busy-2-5"}`, calls[1].body)

	assert.Equal(t, http.MethodGet, calls[2].method)
	assert.Equal(t, PathTenants, calls[2].path)
	assert.Empty(t, calls[2].body)

	for _, c := range calls {
		assert.Equal(t, "Bearer T", c.auth)
	}
	assert.Equal(t, int64(1), reg.Trend(TrendTenantHubList).Count())
}

func TestMSA_FailedCallDoesNotStopIteration(t *testing.T) {
	backend := &recordingBackend{tenantStatus: http.StatusServiceUnavailable}
	ts := httptest.NewServer(backend)
	defer ts.Close()

	sc, reg := newScenario(t, MSAName, ts.URL)
	setup, err := sc.Setup(context.Background())
	require.NoError(t, err)

	sc.Iterate(context.Background(), 1, 0, setup)
	sc.Iterate(context.Background(), 1, 1, setup)

	_, fails := checkPasses(reg, "tenanthub list status 200")
	assert.Equal(t, uint64(2), fails)
	passes, _ := checkPasses(reg, "chat message status 201")
	assert.Equal(t, uint64(2), passes)

	// 2 failed out of 2 setup + 6 iteration requests
	failed, err := reg.Value(stats.HTTPReqFailed, "rate")
	require.NoError(t, err)
	assert.InDelta(t, 0.25, failed, 1e-9)
}

func TestChat_CustomTemplate(t *testing.T) {
	backend := &recordingBackend{}
	ts := httptest.NewServer(backend)
	defer ts.Close()

	reg := stats.NewRegistry()
	cfg := testConfig(ts.URL)
	cfg.MessageTemplate = "{{scenario}} hello {{vu}}/{{iter}}"
	sc, err := NewChatScenario(cfg, NewClient(NewHTTPClient(0, 1), reg, nil), nil)
	require.NoError(t, err)

	sc.Iterate(context.Background(), 4, 9, runner.SetupContext{Token: "T", RoomID: "R"})

	backend.mu.Lock()
	defer backend.mu.Unlock()
	require.Len(t, backend.calls, 1)
	assert.JSONEq(t, `{"body":"chat hello 4/9","file_ids":[],"emojis":[]}`, backend.calls[0].body)
}

func TestNew_UnknownScenario(t *testing.T) {
	_, err := New("soak", config.RunConfig{}, nil, nil)
	assert.Error(t, err)
	_, err = Defaults("soak")
	assert.Error(t, err)
	assert.Equal(t, []string{"chat", "msa"}, Names())
}
