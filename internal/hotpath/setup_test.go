package hotpath

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hotpath/internal/config"
	"hotpath/internal/dummy"
	"hotpath/internal/runner"
	"hotpath/internal/stats"
)

const (
	testEmail    = "admin@example.com"
	testPassword = "pass1234"
)

func testConfig(url string) config.RunConfig {
	return config.RunConfig{
		ChatBaseURL:      url,
		SessionBaseURL:   url,
		OrgHubBaseURL:    url,
		TenantHubBaseURL: url,
		TenantID:         "default",
		Email:            testEmail,
		Password:         testPassword,
		VUs:              1,
		Duration:         time.Second,
	}
}

func newDummy(t *testing.T) (*dummy.Server, *httptest.Server) {
	t.Helper()
	s := dummy.New(dummy.ServerConfig{Email: testEmail, Password: testPassword}, nil)
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(ts.Close)
	return s, ts
}

func newScenario(t *testing.T, name, url string) (runner.Scenario, *stats.Registry) {
	t.Helper()
	reg := stats.NewRegistry()
	d, err := Defaults(name)
	require.NoError(t, err)
	cfg := testConfig(url)
	cfg.MessageTemplate = d.MessageTemplate
	sc, err := New(name, cfg, NewClient(NewHTTPClient(0, 1), reg, nil), nil)
	require.NoError(t, err)
	return sc, reg
}

func checkPasses(reg *stats.Registry, name string) (uint64, uint64) {
	for _, c := range reg.CheckSummaries() {
		if c.Name == name {
			return c.Passes, c.Fails
		}
	}
	return 0, 0
}

func TestSetup_Success(t *testing.T) {
	for _, name := range Names() {
		t.Run(name, func(t *testing.T) {
			srv, ts := newDummy(t)
			sc, reg := newScenario(t, name, ts.URL)

			setup, err := sc.Setup(context.Background())
			require.NoError(t, err)
			assert.NotEmpty(t, setup.Token)
			assert.NotEmpty(t, setup.RoomID)
			assert.Equal(t, int64(1), srv.Counters.Logins.Load())
			assert.Equal(t, int64(1), srv.Counters.Rooms.Load())

			// setup calls count as requests
			v, err := reg.Value(stats.HTTPReqs, "count")
			require.NoError(t, err)
			assert.Equal(t, 2.0, v)
		})
	}
}

func TestSetup_MSAChecksAndLoginTrend(t *testing.T) {
	_, ts := newDummy(t)
	sc, reg := newScenario(t, MSAName, ts.URL)

	_, err := sc.Setup(context.Background())
	require.NoError(t, err)

	for _, name := range []string{
		"orghub login status 200", "orghub login has token",
		"chat create room status 201", "chat create room has id",
	} {
		passes, fails := checkPasses(reg, name)
		assert.Equal(t, uint64(1), passes, name)
		assert.Zero(t, fails, name)
	}
	assert.Equal(t, int64(1), reg.Trend(TrendOrgHubLogin).Count())
}

func TestSetup_Failures(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
		step    string
		status  int
		failing string
	}{
		{
			name: "login rejected",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusUnauthorized)
				_, _ = w.Write([]byte(`{"error":"invalid credentials"}`))
			},
			step:    "login",
			status:  http.StatusUnauthorized,
			failing: "login status 200",
		},
		{
			name: "login without token",
			handler: func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(`{"token_type":"Bearer"}`))
			},
			step:    "login",
			status:  http.StatusOK,
			failing: "login has token",
		},
		{
			name: "room without id",
			handler: func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Path == PathLogin {
					_, _ = w.Write([]byte(`{"access_token":"T"}`))
					return
				}
				w.WriteHeader(http.StatusCreated)
				_, _ = w.Write([]byte(`{"name":"k6-hotpath-room"}`))
			},
			step:    "create room",
			status:  http.StatusCreated,
			failing: "create room has id",
		},
		{
			name: "login with boolean token",
			handler: func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(`{"access_token":true}`))
			},
			step:    "login",
			status:  http.StatusOK,
			failing: "login has token",
		},
		{
			name: "room with zero id",
			handler: func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Path == PathLogin {
					_, _ = w.Write([]byte(`{"access_token":"T"}`))
					return
				}
				w.WriteHeader(http.StatusCreated)
				_, _ = w.Write([]byte(`{"id":0}`))
			},
			step:    "create room",
			status:  http.StatusCreated,
			failing: "create room has id",
		},
		{
			name: "room rejected",
			handler: func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Path == PathLogin {
					_, _ = w.Write([]byte(`{"access_token":"T"}`))
					return
				}
				w.WriteHeader(http.StatusInternalServerError)
			},
			step:    "create room",
			status:  http.StatusInternalServerError,
			failing: "create room status 201",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := httptest.NewServer(tt.handler)
			defer ts.Close()
			sc, reg := newScenario(t, ChatName, ts.URL)

			_, err := sc.Setup(context.Background())
			require.Error(t, err)

			var setupErr *SetupError
			require.True(t, errors.As(err, &setupErr))
			assert.Equal(t, tt.step, setupErr.Step)
			assert.Equal(t, tt.status, setupErr.Status)
			assert.Contains(t, err.Error(), tt.step+" failed")

			_, fails := checkPasses(reg, tt.failing)
			assert.Equal(t, uint64(1), fails)
		})
	}
}

func TestSetup_NumericRoomID(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == PathLogin {
			_, _ = w.Write([]byte(`{"access_token":"T"}`))
			return
		}
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"id":12345678901}`))
	}))
	defer ts.Close()
	sc, _ := newScenario(t, ChatName, ts.URL)

	setup, err := sc.Setup(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "12345678901", setup.RoomID)
	assert.Equal(t, "T", setup.Token)
}

func TestSetup_Unreachable(t *testing.T) {
	ts := httptest.NewServer(http.NotFoundHandler())
	url := ts.URL
	ts.Close()

	sc, reg := newScenario(t, ChatName, url)
	_, err := sc.Setup(context.Background())

	var setupErr *SetupError
	require.ErrorAs(t, err, &setupErr)
	assert.Error(t, setupErr.Unwrap())

	failed, err := reg.Value(stats.HTTPReqFailed, "rate")
	require.NoError(t, err)
	assert.Equal(t, 1.0, failed)
}
