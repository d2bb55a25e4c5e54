package server_test

import (
	"context"
	"io"
	"net/http"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/relay/core/server"
)

func TestNewFromConfig(t *testing.T) {
	t.Parallel()

	t.Run("defaults", func(t *testing.T) {
		cfg := server.DefaultConfig()
		assert.Equal(t, "0.0.0.0:3000", cfg.Addr())

		srv, err := server.NewFromConfig(cfg)
		require.NoError(t, err)
		assert.Equal(t, "0.0.0.0:3000", srv.Addr())
	})

	t.Run("invalid port", func(t *testing.T) {
		srv, err := server.NewFromConfig(server.Config{Port: -1})
		assert.ErrorIs(t, err, server.ErrMissingAddress)
		assert.Nil(t, srv)
	})

	t.Run("missing certificate files", func(t *testing.T) {
		cfg := server.DefaultConfig()
		cfg.TLSCertFile = "/nonexistent/cert.pem"
		cfg.TLSKeyFile = "/nonexistent/key.pem"

		_, err := server.NewFromConfig(cfg)
		assert.ErrorIs(t, err, server.ErrFailedLoadCert)
	})

	t.Run("skips TLS when only one file is set", func(t *testing.T) {
		cfg := server.DefaultConfig()
		cfg.TLSCertFile = "/nonexistent/cert.pem"

		_, err := server.NewFromConfig(cfg)
		assert.NoError(t, err)
	})
}

func TestServer_Run(t *testing.T) {
	t.Parallel()

	var shutdownHooks atomic.Int32
	srv := server.New("127.0.0.1:0",
		server.WithShutdownTimeout(time.Second),
		server.WithOnShutdown(func() { shutdownHooks.Add(1) }),
	)

	handler := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, "pong")
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Run(ctx, handler)() }()

	require.Eventually(t, srv.Running, 2*time.Second, 10*time.Millisecond)

	resp, err := http.Get("http://" + srv.Addr())
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	assert.Equal(t, "pong", string(body))

	err = srv.Start(context.Background(), handler)
	assert.ErrorIs(t, err, server.ErrServerAlreadyRunning)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("server did not stop")
	}

	assert.False(t, srv.Running())
	assert.Eventually(t, func() bool { return shutdownHooks.Load() == 1 }, time.Second, 10*time.Millisecond)
}

func TestServer_StopWhenIdle(t *testing.T) {
	t.Parallel()

	assert.NoError(t, server.New(":0").Stop())
}

func TestServer_ListenError(t *testing.T) {
	t.Parallel()

	err := server.New("256.0.0.1:1").Start(context.Background(), http.NotFoundHandler())
	assert.ErrorIs(t, err, server.ErrHTTPServer)
}
