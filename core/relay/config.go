package relay

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dmitrymomot/relay/pkg/ratelimiter"
)

// MinSecretLength is the shortest accepted JWT_SECRET.
const MinSecretLength = 32

// ErrInvalidConfig reports unusable relay settings.
var ErrInvalidConfig = errors.New("relay: invalid config")

// Config holds relay settings with environment variable support.
type Config struct {
	JWTSecret  string   `env:"JWT_SECRET"`
	CORSOrigin string   `env:"CORS_ORIGIN" envDefault:"*"`
	Namespaces []string `env:"RELAY_NAMESPACES" envSeparator:"," envDefault:"collab,chat,system"`

	RateLimitWindowMS      int           `env:"WS_RATE_LIMIT_WINDOW_MS" envDefault:"10000"`
	RateLimitMaxActions    int           `env:"WS_RATE_LIMIT_MAX_ACTIONS" envDefault:"100"`
	RateLimitSweepInterval time.Duration `env:"WS_RATE_LIMIT_SWEEP_INTERVAL" envDefault:"1m"`

	MaxMessageBytes int64         `env:"WS_MAX_MESSAGE_BYTES" envDefault:"1048576"`
	SendBuffer      int           `env:"WS_SEND_BUFFER" envDefault:"256"`
	PongWait        time.Duration `env:"WS_PONG_WAIT" envDefault:"60s"`

	PushgatewayURL        string `env:"PUSHGATEWAY_URL"`
	PrometheusJobName     string `env:"PROMETHEUS_JOB_NAME" envDefault:"relay"`
	MetricsPushIntervalMS int    `env:"METRICS_PUSH_INTERVAL_MS" envDefault:"30000"`
	MetricsPrefix         string `env:"METRICS_PREFIX" envDefault:"relay"`
	MetricsRuntime        bool   `env:"METRICS_RUNTIME" envDefault:"true"`
}

// Validate checks the settings the relay cannot start without.
// An empty JWT secret is valid and disables authentication.
func (c Config) Validate() error {
	if c.JWTSecret != "" && len(c.JWTSecret) < MinSecretLength {
		return fmt.Errorf("%w: JWT_SECRET must be at least %d characters", ErrInvalidConfig, MinSecretLength)
	}
	if err := c.RateLimit().Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	if c.PushgatewayURL != "" && c.MetricsPushIntervalMS <= 0 {
		return fmt.Errorf("%w: METRICS_PUSH_INTERVAL_MS must be positive", ErrInvalidConfig)
	}
	return nil
}

// RateLimit returns the fixed-window limiter settings.
func (c Config) RateLimit() ratelimiter.Config {
	return ratelimiter.Config{
		Window:     time.Duration(c.RateLimitWindowMS) * time.Millisecond,
		MaxActions: c.RateLimitMaxActions,
	}
}

// PushInterval returns the metrics push period.
func (c Config) PushInterval() time.Duration {
	return time.Duration(c.MetricsPushIntervalMS) * time.Millisecond
}

// AllowedOrigins splits CORS_ORIGIN on commas.
func (c Config) AllowedOrigins() []string {
	var out []string
	for _, o := range strings.Split(c.CORSOrigin, ",") {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	if len(out) == 0 {
		return []string{"*"}
	}
	return out
}
