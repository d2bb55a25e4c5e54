package metrics

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus/push"
	"github.com/prometheus/common/expfmt"
)

// push POSTs the text rendering to <endpoint>/metrics/job/<job>.
func (r *Registry) push(ctx context.Context, endpointURL, job string) error {
	if endpointURL == "" {
		return errors.New("push endpoint is empty")
	}
	return push.New(endpointURL, job).
		Gatherer(r.reg).
		Client(r.client).
		Format(expfmt.NewFormat(expfmt.TypeTextPlain)).
		AddContext(ctx)
}

// Pusher periodically exports a registry to a Pushgateway.
type Pusher struct {
	registry *Registry
	endpoint string
	job      string
	interval time.Duration
	timeout  time.Duration
	logger   *slog.Logger
}

// PusherOption configures a Pusher.
type PusherOption func(*Pusher)

// WithPushTimeout bounds a single push attempt.
func WithPushTimeout(d time.Duration) PusherOption {
	return func(p *Pusher) {
		if d > 0 {
			p.timeout = d
		}
	}
}

// WithPusherLogger sets the lifecycle logger.
func WithPusherLogger(logger *slog.Logger) PusherOption {
	return func(p *Pusher) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// NewPusher creates a pusher; interval must be positive.
func NewPusher(registry *Registry, endpoint, job string, interval time.Duration, opts ...PusherOption) (*Pusher, error) {
	if endpoint == "" {
		return nil, errors.New("push endpoint is required")
	}
	if interval <= 0 {
		return nil, errors.New("push interval must be positive")
	}

	p := &Pusher{
		registry: registry,
		endpoint: endpoint,
		job:      job,
		interval: interval,
		timeout:  10 * time.Second,
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// Run returns an errgroup-compatible loop that pushes every interval until ctx ends.
// A failed push never stops the loop.
func (p *Pusher) Run(ctx context.Context) func() error {
	return func() error {
		p.logger.InfoContext(ctx, "metrics push started",
			slog.String("endpoint", p.endpoint),
			slog.String("job", p.job),
			slog.Duration("interval", p.interval))

		ticker := p.registry.clock.Ticker(p.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				p.logger.InfoContext(context.Background(), "metrics push stopped")
				return nil
			case <-ticker.C:
				pushCtx, cancel := context.WithTimeout(ctx, p.timeout)
				p.registry.PushExport(pushCtx, p.endpoint, p.job)
				cancel()
			}
		}
	}
}
