package main

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/dmitrymomot/relay/core/logger"
	"github.com/dmitrymomot/relay/core/relay"
)

func TestRun_RejectsWeakSecret(t *testing.T) {
	t.Parallel()

	cfg := Config{Relay: relay.Config{
		JWTSecret:           "short",
		RateLimitWindowMS:   1000,
		RateLimitMaxActions: 10,
	}}

	err := run(context.Background(), cfg, logger.Nop())
	assert.ErrorIs(t, err, relay.ErrInvalidConfig)
}

func TestNewLogger(t *testing.T) {
	t.Parallel()

	log := newLogger(Config{AppName: "relay", AppEnv: "production", LogLevel: "warn"})
	assert.False(t, log.Enabled(context.Background(), -4))
	assert.True(t, log.Enabled(context.Background(), 4))
}
