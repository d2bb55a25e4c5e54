package ratelimiter

import (
	"context"
	"io"
	"log/slog"

	"github.com/dmitrymomot/relay/core/logger"
)

// Limiter answers whether an identity may perform one more action
// in its current fixed window.
type Limiter struct {
	store     Store
	cfg       Config
	logger    *slog.Logger
	onLimited func(key string)
}

// Option configures a Limiter.
type Option func(*Limiter)

// WithLogger sets the logger used for store failures.
func WithLogger(log *slog.Logger) Option {
	return func(l *Limiter) {
		if log != nil {
			l.logger = log
		}
	}
}

// WithOnLimited registers a callback invoked every time a hit is rejected.
func WithOnLimited(fn func(key string)) Option {
	return func(l *Limiter) {
		l.onLimited = fn
	}
}

// New creates a limiter on top of store.
func New(store Store, cfg Config, opts ...Option) (*Limiter, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if store == nil {
		return nil, ErrStoreUnavailable
	}

	l := &Limiter{
		store:  store,
		cfg:    cfg,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l, nil
}

// Config returns the window configuration.
func (l *Limiter) Config() Config {
	return l.cfg
}

// Check counts one action for key and reports whether it is within the ceiling.
// Store failures fail open: the action is allowed and the error is logged.
func (l *Limiter) Check(ctx context.Context, key string) bool {
	count, _, err := l.store.Hit(ctx, key, l.cfg)
	if err != nil {
		l.logger.ErrorContext(ctx, "rate limit store failed, allowing action",
			slog.String("key", key), logger.Error(err))
		return true
	}

	if count > l.cfg.MaxActions {
		if l.onLimited != nil {
			l.onLimited(key)
		}
		return false
	}
	return true
}

// Forget drops the window of key, typically once its connection is gone.
func (l *Limiter) Forget(ctx context.Context, key string) {
	if err := l.store.Reset(ctx, key); err != nil {
		l.logger.WarnContext(ctx, "rate limit reset failed",
			slog.String("key", key), logger.Error(err))
	}
}
