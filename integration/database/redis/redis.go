package redis

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/redis/go-redis/v9"

	"github.com/dmitrymomot/relay/core/logger"
)

// Config holds Redis connection settings with environment variable support.
type Config struct {
	ConnectionURL  string        `env:"REDIS_URL"`
	RetryAttempts  int           `env:"REDIS_RETRY_ATTEMPTS" envDefault:"3"`
	RetryInterval  time.Duration `env:"REDIS_RETRY_INTERVAL" envDefault:"5s"`
	ConnectTimeout time.Duration `env:"REDIS_CONNECT_TIMEOUT" envDefault:"30s"`
}

// Enabled reports whether a connection URL is configured.
func (c Config) Enabled() bool {
	return strings.TrimSpace(c.ConnectionURL) != ""
}

// ConnectOption configures Connect.
type ConnectOption func(*connectOptions)

type connectOptions struct {
	logger *slog.Logger
}

// WithLogger reports failed ping attempts.
func WithLogger(l *slog.Logger) ConnectOption {
	return func(o *connectOptions) {
		if l != nil {
			o.logger = l
		}
	}
}

// Connect creates a client from cfg and pings it with exponential backoff
// until it answers, the attempts run out or ConnectTimeout elapses.
func Connect(ctx context.Context, cfg Config, opts ...ConnectOption) (*redis.Client, error) {
	o := connectOptions{logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
	for _, opt := range opts {
		opt(&o)
	}

	if !cfg.Enabled() {
		return nil, ErrEmptyURL
	}

	clientOpts, err := redis.ParseURL(cfg.ConnectionURL)
	if err != nil {
		return nil, errors.Join(ErrInvalidURL, err)
	}

	client := redis.NewClient(clientOpts)

	if cfg.ConnectTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.ConnectTimeout)
		defer cancel()
	}

	policy := backoff.NewExponentialBackOff()
	if cfg.RetryInterval > 0 {
		policy.InitialInterval = cfg.RetryInterval
	}
	policy.MaxElapsedTime = 0

	attempts := max(cfg.RetryAttempts, 1)
	retry := backoff.WithContext(backoff.WithMaxRetries(policy, uint64(attempts-1)), ctx)

	attempt := 0
	notify := func(err error, next time.Duration) {
		attempt++
		o.logger.WarnContext(ctx, "redis not ready, retrying",
			logger.Component("redis"),
			logger.RetryCount(attempt),
			slog.Duration("next_in", next),
			logger.Error(err))
	}

	if err := backoff.RetryNotify(func() error {
		return client.Ping(ctx).Err()
	}, retry, notify); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("%w: %w", ErrNotReady, err)
	}

	return client, nil
}

// Healthcheck returns a readiness check that pings client.
func Healthcheck(client redis.UniversalClient) func(context.Context) error {
	return func(ctx context.Context) error {
		if err := client.Ping(ctx).Err(); err != nil {
			return errors.Join(ErrUnhealthy, err)
		}
		return nil
	}
}
