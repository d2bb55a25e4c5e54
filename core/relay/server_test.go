package relay_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	gojwt "github.com/golang-jwt/jwt/v5"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/relay/core/auth"
	"github.com/dmitrymomot/relay/core/metrics"
	"github.com/dmitrymomot/relay/core/relay"
	"github.com/dmitrymomot/relay/pkg/jwt"
)

const testSecret = "0123456789abcdef0123456789abcdef"

type harness struct {
	srv  *relay.Server
	reg  *metrics.Registry
	http *httptest.Server
}

func newHarness(t *testing.T, secret string, opts ...relay.ServerOption) *harness {
	t.Helper()

	gate, err := auth.NewGate(secret)
	require.NoError(t, err)

	reg := metrics.New(metrics.WithLoadFunc(nil))
	opts = append([]relay.ServerOption{relay.WithNamespaces("collab", "chat")}, opts...)
	srv, err := relay.NewServer(gate, reg, opts...)
	require.NoError(t, err)

	hs := httptest.NewServer(srv.Handler())
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
		hs.Close()
	})

	return &harness{srv: srv, reg: reg, http: hs}
}

func (h *harness) wsURL(path string) string {
	return "ws" + strings.TrimPrefix(h.http.URL, "http") + path
}

func (h *harness) dial(t *testing.T, path string, header http.Header) *websocket.Conn {
	t.Helper()
	conn, resp, err := websocket.DefaultDialer.Dial(h.wsURL(path), header)
	require.NoError(t, err)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func token(t *testing.T, sub string) string {
	t.Helper()
	svc, err := jwt.NewFromString(testSecret)
	require.NoError(t, err)
	tok, err := svc.Generate(jwt.StandardClaims{Subject: sub})
	require.NoError(t, err)
	return tok
}

func rejected(t *testing.T, h *harness, path string, header http.Header) {
	t.Helper()
	before := h.reg.Snapshot().AuthFailures

	_, resp, err := websocket.DefaultDialer.Dial(h.wsURL(path), header)
	require.ErrorIs(t, err, websocket.ErrBadHandshake)
	require.NotNil(t, resp)
	_ = resp.Body.Close()

	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, before+1, h.reg.Snapshot().AuthFailures)
}

func send(t *testing.T, conn *websocket.Conn, frame string) {
	t.Helper()
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(frame)))
}

func read(t *testing.T, conn *websocket.Conn) received {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, raw, err := conn.ReadMessage()
	require.NoError(t, err)

	var r received
	require.NoError(t, json.Unmarshal(raw, &r))
	return r
}

// silent asserts nothing is queued for conn ahead of a fresh acknowledgement.
// A timed out read would poison the connection, so it round-trips a leave of
// a room that never exists instead.
func silent(t *testing.T, conn *websocket.Conn) {
	t.Helper()
	send(t, conn, `{"event":"leave","data":"_sync"}`)
	got := read(t, conn)
	require.Equal(t, relay.EventLeft, got.Event, "unexpected frame %s", got.Data)
}

func TestServer_Health(t *testing.T) {
	t.Parallel()

	h := newHarness(t, "")

	resp, err := http.Get(h.http.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var body struct {
		Status string  `json:"status"`
		Uptime float64 `json:"uptime"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "ok", body.Status)
	assert.GreaterOrEqual(t, body.Uptime, 0.0)

	ready, err := http.Get(h.http.URL + "/health/ready")
	require.NoError(t, err)
	_ = ready.Body.Close()
	assert.Equal(t, http.StatusOK, ready.StatusCode)
}

func TestServer_Readiness(t *testing.T) {
	t.Parallel()

	h := newHarness(t, "", relay.WithReadinessChecks(func(context.Context) error {
		return assert.AnError
	}))

	resp, err := http.Get(h.http.URL + "/health/ready")
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestServer_Metrics(t *testing.T) {
	t.Parallel()

	h := newHarness(t, "")
	h.dial(t, "/ws", nil)
	require.Eventually(t, func() bool { return h.reg.Snapshot().Connections == 1 }, time.Second, 10*time.Millisecond)

	resp, err := http.Get(h.http.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "text/plain; version=0.0.4")
	assert.Contains(t, string(body), "relay_connections 1\n")
}

func TestServer_Auth(t *testing.T) {
	t.Parallel()

	h := newHarness(t, testSecret)

	t.Run("missing token is rejected before upgrade", func(t *testing.T) {
		rejected(t, h, "/ws/chat", nil)
	})

	t.Run("malformed token", func(t *testing.T) {
		rejected(t, h, "/ws", http.Header{"Authorization": []string{"Bearer not-a-token"}})
	})

	t.Run("expired token", func(t *testing.T) {
		svc, err := jwt.NewFromString(testSecret)
		require.NoError(t, err)
		expired, err := svc.Generate(jwt.StandardClaims{
			Subject:   "user-1",
			ExpiresAt: jwt.NumericDate(time.Now().Add(-time.Minute)),
		})
		require.NoError(t, err)
		rejected(t, h, "/ws?token="+expired, nil)
	})

	t.Run("unsigned token", func(t *testing.T) {
		unsigned, err := gojwt.NewWithClaims(gojwt.SigningMethodNone, gojwt.MapClaims{"sub": "user-1"}).
			SignedString(gojwt.UnsafeAllowNoneSignatureType)
		require.NoError(t, err)
		rejected(t, h, "/ws?token="+unsigned, nil)
	})

	t.Run("token signed with another key", func(t *testing.T) {
		svc, err := jwt.NewFromString("ffffffffffffffffffffffffffffffff")
		require.NoError(t, err)
		foreign, err := svc.Generate(jwt.StandardClaims{Subject: "user-1"})
		require.NoError(t, err)
		rejected(t, h, "/ws/chat", http.Header{"Authorization": []string{"Bearer " + foreign}})
	})

	assert.Equal(t, int64(5), h.reg.Snapshot().AuthFailures)
	assert.Equal(t, int64(0), h.reg.Snapshot().Connections)

	t.Run("bearer header", func(t *testing.T) {
		header := http.Header{"Authorization": []string{"Bearer " + token(t, "user-1")}}
		conn := h.dial(t, "/ws/chat", header)
		send(t, conn, `{"event":"join","data":"lobby"}`)
		assert.Equal(t, relay.EventJoined, read(t, conn).Event)
	})

	t.Run("query parameter", func(t *testing.T) {
		conn := h.dial(t, "/ws?token="+token(t, "user-2"), nil)
		send(t, conn, `{"event":"join","data":"lobby"}`)
		assert.Equal(t, relay.EventJoined, read(t, conn).Event)
	})
}

func TestServer_UnknownNamespace(t *testing.T) {
	t.Parallel()

	h := newHarness(t, "")

	_, resp, err := websocket.DefaultDialer.Dial(h.wsURL("/ws/nope"), nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestServer_Origin(t *testing.T) {
	t.Parallel()

	h := newHarness(t, "", relay.WithAllowedOrigins("https://app.example.com"))

	_, resp, err := websocket.DefaultDialer.Dial(h.wsURL("/ws"), http.Header{"Origin": []string{"https://evil.example.com"}})
	require.Error(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	h.dial(t, "/ws", http.Header{"Origin": []string{"https://app.example.com"}})
}

func TestServer_Relay(t *testing.T) {
	t.Parallel()

	h := newHarness(t, "")

	x := h.dial(t, "/ws/chat", nil)
	y := h.dial(t, "/ws/chat", nil)
	z := h.dial(t, "/ws/chat", nil)
	other := h.dial(t, "/ws/collab", nil)

	for _, c := range []*websocket.Conn{x, y, other} {
		send(t, c, `{"event":"join","data":"lobby"}`)
		got := read(t, c)
		require.Equal(t, relay.EventJoined, got.Event)
	}
	assert.Equal(t, int64(2), h.reg.Snapshot().Rooms)

	send(t, x, `{"event":"message","data":{"room":"lobby","data":{"text":"hi"}}}`)
	got := read(t, y)
	assert.Equal(t, relay.EventMessage, got.Event)
	assert.JSONEq(t, `{"namespace":"chat","room":"lobby","data":{"text":"hi"}}`, string(got.Data))
	silent(t, x)
	silent(t, z)
	silent(t, other)

	send(t, z, `{"event":"message","data":{"text":"everyone"}}`)
	for _, c := range []*websocket.Conn{x, y} {
		got := read(t, c)
		assert.JSONEq(t, `{"namespace":"chat","data":{"text":"everyone"}}`, string(got.Data))
	}
	silent(t, z)
	silent(t, other)

	// Malformed frames are dropped and the connection stays usable.
	send(t, x, `not json`)
	send(t, x, `{"event":"join","data":42}`)
	send(t, x, `{"event":"leave","data":"lobby"}`)
	assert.Equal(t, relay.EventLeft, read(t, x).Event)

	require.NoError(t, y.Close())
	require.Eventually(t, func() bool {
		snap := h.reg.Snapshot()
		return snap.Connections == 3 && snap.Rooms == 1
	}, 2*time.Second, 10*time.Millisecond)
}

func TestServer_RateLimit(t *testing.T) {
	t.Parallel()

	limiter := &countingLimiter{max: 1}
	h := newHarness(t, "", relay.WithRateLimiter(limiter))

	conn := h.dial(t, "/ws", nil)
	send(t, conn, `{"event":"join","data":"a"}`)
	assert.Equal(t, relay.EventJoined, read(t, conn).Event)

	send(t, conn, `{"event":"join","data":"b"}`)
	assert.Equal(t, relay.EventRateLimited, read(t, conn).Event)
	assert.Equal(t, int64(1), h.reg.Snapshot().RateLimited)

	require.NoError(t, conn.Close())
	require.Eventually(t, limiter.forgotten, 2*time.Second, 10*time.Millisecond)
}

func TestServer_Shutdown(t *testing.T) {
	t.Parallel()

	h := newHarness(t, "")
	conn := h.dial(t, "/ws/chat", nil)
	require.Eventually(t, func() bool { return h.srv.ConnectionCount() == 1 }, time.Second, 10*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, h.srv.Shutdown(ctx))

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err := conn.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure), "got %v", err)
	assert.Equal(t, 0, h.srv.ConnectionCount())
	assert.Equal(t, int64(0), h.reg.Snapshot().Connections)

	_, resp, err := websocket.DefaultDialer.Dial(h.wsURL("/ws/chat"), nil)
	require.ErrorIs(t, err, websocket.ErrBadHandshake)
	require.NotNil(t, resp)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestServer_ShutdownDuringUpgrades(t *testing.T) {
	t.Parallel()

	h := newHarness(t, "")

	var wg sync.WaitGroup
	for range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			conn, resp, err := websocket.DefaultDialer.Dial(h.wsURL("/ws"), nil)
			if resp != nil && resp.Body != nil {
				_ = resp.Body.Close()
			}
			if err != nil {
				return
			}
			defer conn.Close()
			_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					return
				}
			}
		}()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, h.srv.Shutdown(ctx))
	wg.Wait()

	assert.Equal(t, 0, h.srv.ConnectionCount())
	assert.Equal(t, int64(0), h.reg.Snapshot().Connections)
}

func TestNewServer_DuplicateNamespace(t *testing.T) {
	t.Parallel()

	_, err := relay.NewServer(nil, nil, relay.WithNamespaces("chat", "chat"))
	assert.ErrorIs(t, err, relay.ErrDuplicateName)

	_, err = relay.NewServer(nil, nil, relay.WithNamespaces(relay.RootNamespace))
	assert.ErrorIs(t, err, relay.ErrDuplicateName)
}
