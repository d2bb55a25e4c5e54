package metrics_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shirou/gopsutil/v3/load"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/relay/core/metrics"
)

func fixedLoad() (*load.AvgStat, error) {
	return &load.AvgStat{Load1: 0.5, Load5: 0.25, Load15: 0.125}, nil
}

func TestRegistry_Counters(t *testing.T) {
	t.Parallel()

	reg := metrics.New(metrics.WithLoadFunc(nil))

	reg.ConnectionOpened()
	reg.ConnectionOpened()
	reg.ConnectionClosed()
	reg.MessageIn()
	reg.MessageIn()
	reg.MessageOut()
	reg.AuthFailure()
	reg.RateLimited()
	reg.SetRooms(4)
	reg.SetRooms(3)

	assert.Equal(t, metrics.Snapshot{
		Connections:  1,
		MessagesIn:   2,
		MessagesOut:  1,
		AuthFailures: 1,
		RateLimited:  1,
		Rooms:        3,
	}, reg.Snapshot())

	expected := `
# HELP relay_messages_in_total Inbound messages accepted for relay.
# TYPE relay_messages_in_total counter
relay_messages_in_total 2
# HELP relay_rooms Distinct rooms across all namespaces.
# TYPE relay_rooms gauge
relay_rooms 3
`
	require.NoError(t, testutil.GatherAndCompare(reg.Gatherer(), strings.NewReader(expected),
		"relay_messages_in_total", "relay_rooms"))
}

func TestRegistry_Render(t *testing.T) {
	t.Parallel()

	mock := clock.NewMock()
	reg := metrics.New(
		metrics.WithPrefix("unified"),
		metrics.WithClock(mock),
		metrics.WithLoadFunc(fixedLoad),
	)
	reg.ConnectionOpened()
	mock.Add(90 * time.Second)

	text, err := reg.Render()
	require.NoError(t, err)

	for _, line := range []string{
		"# TYPE unified_connections gauge",
		"unified_connections 1",
		"# TYPE unified_messages_in_total counter",
		"unified_messages_in_total 0",
		"unified_messages_out_total 0",
		"unified_auth_failures_total 0",
		"unified_rate_limited_total 0",
		"# TYPE unified_rooms gauge",
		"unified_process_uptime_seconds 90",
		"# TYPE unified_system_load_average gauge",
		`unified_system_load_average{period="1m"} 0.5`,
		`unified_system_load_average{period="5m"} 0.25`,
		`unified_system_load_average{period="15m"} 0.125`,
	} {
		assert.Contains(t, text, line+"\n")
	}

	again, err := reg.Render()
	require.NoError(t, err)
	assert.Equal(t, text, again, "rendering is deterministic")
}

func TestRegistry_LoadUnavailable(t *testing.T) {
	t.Parallel()

	reg := metrics.New(metrics.WithLoadFunc(func() (*load.AvgStat, error) {
		return nil, errors.New("not supported")
	}))

	text, err := reg.Render()
	require.NoError(t, err)
	assert.NotContains(t, text, "relay_system_load_average{")
	assert.Contains(t, text, "relay_connections 0")
}

func TestRegistry_RuntimeCollectors(t *testing.T) {
	t.Parallel()

	reg := metrics.New(metrics.WithRuntimeCollectors(), metrics.WithLoadFunc(nil))
	text, err := reg.Render()
	require.NoError(t, err)
	assert.Contains(t, text, "go_goroutines")
}

func TestRegistry_ConcurrentUpdates(t *testing.T) {
	t.Parallel()

	reg := metrics.New(metrics.WithLoadFunc(nil))

	var wg sync.WaitGroup
	for range 16 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 100 {
				reg.ConnectionOpened()
				reg.MessageIn()
				reg.MessageOut()
				reg.ConnectionClosed()
			}
		}()
	}
	wg.Wait()

	snap := reg.Snapshot()
	assert.Equal(t, int64(0), snap.Connections)
	assert.Equal(t, int64(1600), snap.MessagesIn)
	assert.Equal(t, int64(1600), snap.MessagesOut)
}

type pushRecorder struct {
	mu     sync.Mutex
	method string
	path   string
	body   string
	calls  int
}

func (p *pushRecorder) handler(status int) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		p.mu.Lock()
		p.method, p.path, p.body = r.Method, r.URL.Path, string(body)
		p.calls++
		p.mu.Unlock()
		w.WriteHeader(status)
	}
}

func (p *pushRecorder) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

func TestRegistry_PushExport(t *testing.T) {
	t.Parallel()

	t.Run("posts text rendering", func(t *testing.T) {
		rec := &pushRecorder{}
		srv := httptest.NewServer(rec.handler(http.StatusOK))
		defer srv.Close()

		reg := metrics.New(metrics.WithLoadFunc(nil))
		reg.MessageIn()
		reg.PushExport(context.Background(), srv.URL, "relay")

		require.Equal(t, 1, rec.count())
		assert.Equal(t, http.MethodPost, rec.method)
		assert.Equal(t, "/metrics/job/relay", rec.path)
		assert.Contains(t, rec.body, "relay_messages_in_total 1")
	})

	t.Run("swallows collector errors", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		}))
		defer srv.Close()

		reg := metrics.New(metrics.WithLoadFunc(nil))
		assert.NotPanics(t, func() {
			reg.PushExport(context.Background(), srv.URL, "relay")
		})
	})

	t.Run("swallows unreachable endpoint", func(t *testing.T) {
		reg := metrics.New(metrics.WithLoadFunc(nil))
		assert.NotPanics(t, func() {
			reg.PushExport(context.Background(), "http://127.0.0.1:1", "relay")
			reg.PushExport(context.Background(), "", "relay")
		})
	})
}

func TestPusher_Run(t *testing.T) {
	t.Parallel()

	_, err := metrics.NewPusher(metrics.New(), "", "relay", time.Second)
	assert.Error(t, err)
	_, err = metrics.NewPusher(metrics.New(), "http://localhost", "relay", 0)
	assert.Error(t, err)

	rec := &pushRecorder{}
	srv := httptest.NewServer(rec.handler(http.StatusInternalServerError))
	defer srv.Close()

	mock := clock.NewMock()
	reg := metrics.New(metrics.WithClock(mock), metrics.WithLoadFunc(nil))
	pusher, err := metrics.NewPusher(reg, srv.URL, "relay", time.Second)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- pusher.Run(ctx)() }()

	// Failed pushes do not stop subsequent attempts.
	require.Eventually(t, func() bool {
		mock.Add(time.Second)
		return rec.count() >= 2
	}, 5*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("pusher did not stop")
	}
}
