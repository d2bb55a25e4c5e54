package config_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/relay/core/config"
)

type sampleConfig struct {
	Port  int    `env:"CONFIG_TEST_PORT" envDefault:"3000"`
	Label string `env:"CONFIG_TEST_LABEL"`
}

type requiredConfig struct {
	Secret string `env:"CONFIG_TEST_SECRET,required"`
}

type badConfig struct {
	Port int `env:"CONFIG_TEST_BAD_PORT"`
}

func TestLoad(t *testing.T) {
	t.Setenv("CONFIG_TEST_LABEL", "first")
	config.Reset()
	t.Cleanup(config.Reset)

	var cfg sampleConfig
	require.NoError(t, config.Load(&cfg))
	assert.Equal(t, 3000, cfg.Port)
	assert.Equal(t, "first", cfg.Label)

	t.Setenv("CONFIG_TEST_LABEL", "second")

	var again sampleConfig
	require.NoError(t, config.Load(&again))
	assert.Equal(t, "first", again.Label, "cached per type")
}

func TestLoad_Errors(t *testing.T) {
	config.Reset()
	t.Cleanup(config.Reset)

	assert.ErrorIs(t, config.Load[sampleConfig](nil), config.ErrNilConfig)

	var req requiredConfig
	assert.ErrorIs(t, config.Load(&req), config.ErrParsingConfig)

	t.Setenv("CONFIG_TEST_BAD_PORT", "not-a-number")
	var bad badConfig
	assert.ErrorIs(t, config.Load(&bad), config.ErrParsingConfig)
	assert.Panics(t, func() { config.MustLoad(&bad) })
}
