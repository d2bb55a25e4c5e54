package main

import (
	"github.com/dmitrymomot/relay/core/relay"
	"github.com/dmitrymomot/relay/core/server"
	"github.com/dmitrymomot/relay/integration/database/redis"
)

// Config is the process configuration, read from the environment.
type Config struct {
	AppName  string `env:"APP_NAME" envDefault:"relay"`
	AppEnv   string `env:"APP_ENV" envDefault:"development"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`

	Server server.Config
	Relay  relay.Config
	Redis  redis.Config
}
