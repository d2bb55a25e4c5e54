package metrics

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/common/expfmt"
	"github.com/shirou/gopsutil/v3/load"

	"github.com/dmitrymomot/relay/core/logger"
)

// DefaultPrefix is prepended to every relay metric name.
const DefaultPrefix = "relay"

// LoadFunc reports system load averages.
type LoadFunc func() (*load.AvgStat, error)

// Snapshot is a copy of the relay counters at one instant.
type Snapshot struct {
	Connections  int64
	MessagesIn   int64
	MessagesOut  int64
	AuthFailures int64
	RateLimited  int64
	Rooms        int64
}

// Registry is the set of relay counters and gauges.
type Registry struct {
	reg       *prometheus.Registry
	clock     clock.Clock
	startedAt time.Time
	logger    *slog.Logger
	client    *http.Client

	prefix  string
	loadAvg LoadFunc
	runtime bool

	connections  atomic.Int64
	messagesIn   atomic.Int64
	messagesOut  atomic.Int64
	authFailures atomic.Int64
	rateLimited  atomic.Int64
	rooms        atomic.Int64
}

// Option configures a Registry.
type Option func(*Registry)

// WithPrefix sets the metric name prefix.
func WithPrefix(prefix string) Option {
	return func(r *Registry) {
		if prefix != "" {
			r.prefix = prefix
		}
	}
}

// WithClock replaces the clock used for uptime.
func WithClock(c clock.Clock) Option {
	return func(r *Registry) {
		if c != nil {
			r.clock = c
		}
	}
}

// WithLoadFunc replaces the load average source. A nil func disables the gauge.
func WithLoadFunc(fn LoadFunc) Option {
	return func(r *Registry) {
		r.loadAvg = fn
	}
}

// WithRuntimeCollectors adds the Go runtime and process collectors.
func WithRuntimeCollectors() Option {
	return func(r *Registry) {
		r.runtime = true
	}
}

// WithLogger sets the logger used for push failures.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Registry) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithHTTPClient sets the client used for push export.
func WithHTTPClient(client *http.Client) Option {
	return func(r *Registry) {
		if client != nil {
			r.client = client
		}
	}
}

// New creates a registry. The uptime gauge counts from this call.
func New(opts ...Option) *Registry {
	r := &Registry{
		reg:     prometheus.NewRegistry(),
		clock:   clock.New(),
		logger:  logger.Nop(),
		client:  &http.Client{Timeout: 10 * time.Second},
		prefix:  DefaultPrefix,
		loadAvg: load.Avg,
	}
	for _, opt := range opts {
		opt(r)
	}
	r.startedAt = r.clock.Now()

	r.reg.MustRegister(
		r.gauge("connections", "Currently admitted websocket connections.", &r.connections),
		r.counter("messages_in_total", "Inbound messages accepted for relay.", &r.messagesIn),
		r.counter("messages_out_total", "Relayed message fan-outs.", &r.messagesOut),
		r.counter("auth_failures_total", "Connections refused by the auth gate.", &r.authFailures),
		r.counter("rate_limited_total", "Actions rejected by the rate limiter.", &r.rateLimited),
		r.gauge("rooms", "Distinct rooms across all namespaces.", &r.rooms),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: r.prefix,
			Name:      "process_uptime_seconds",
			Help:      "Seconds since the registry was created.",
		}, func() float64 {
			return r.clock.Since(r.startedAt).Seconds()
		}),
	)

	if r.loadAvg != nil {
		r.reg.MustRegister(newLoadCollector(r.prefix, r.loadAvg))
	}
	if r.runtime {
		r.reg.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}

	return r
}

func (r *Registry) counter(name, help string, v *atomic.Int64) prometheus.Collector {
	return prometheus.NewCounterFunc(prometheus.CounterOpts{
		Namespace: r.prefix,
		Name:      name,
		Help:      help,
	}, func() float64 { return float64(v.Load()) })
}

func (r *Registry) gauge(name, help string, v *atomic.Int64) prometheus.Collector {
	return prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: r.prefix,
		Name:      name,
		Help:      help,
	}, func() float64 { return float64(v.Load()) })
}

// ConnectionOpened counts an admitted connection.
func (r *Registry) ConnectionOpened() { r.connections.Add(1) }

// ConnectionClosed releases a connection counted by ConnectionOpened.
func (r *Registry) ConnectionClosed() { r.connections.Add(-1) }

// MessageIn counts an accepted inbound message.
func (r *Registry) MessageIn() { r.messagesIn.Add(1) }

// MessageOut counts a relayed message once, whatever its fan-out.
func (r *Registry) MessageOut() { r.messagesOut.Add(1) }

// AuthFailure counts a connection refused by the auth gate.
func (r *Registry) AuthFailure() { r.authFailures.Add(1) }

// RateLimited counts an action dropped by the rate limiter.
func (r *Registry) RateLimited() { r.rateLimited.Add(1) }

// SetRooms stores the current distinct room count.
func (r *Registry) SetRooms(n int) { r.rooms.Store(int64(n)) }

// Snapshot returns the current counter values.
func (r *Registry) Snapshot() Snapshot {
	return Snapshot{
		Connections:  r.connections.Load(),
		MessagesIn:   r.messagesIn.Load(),
		MessagesOut:  r.messagesOut.Load(),
		AuthFailures: r.authFailures.Load(),
		RateLimited:  r.rateLimited.Load(),
		Rooms:        r.rooms.Load(),
	}
}

// Uptime returns the time since the registry was created.
func (r *Registry) Uptime() time.Duration {
	return r.clock.Since(r.startedAt)
}

// Gatherer exposes the underlying Prometheus registry.
func (r *Registry) Gatherer() prometheus.Gatherer {
	return r.reg
}

// Render returns every metric in the text exposition format, sorted by name.
func (r *Registry) Render() (string, error) {
	families, err := r.reg.Gather()
	if err != nil {
		return "", fmt.Errorf("gather metrics: %w", err)
	}

	var buf bytes.Buffer
	for _, mf := range families {
		if _, err := expfmt.MetricFamilyToText(&buf, mf); err != nil {
			return "", fmt.Errorf("encode metric family %s: %w", mf.GetName(), err)
		}
	}
	return buf.String(), nil
}

// PushExport delivers the current metrics to a Pushgateway-style collector.
// Failures are logged and swallowed.
func (r *Registry) PushExport(ctx context.Context, endpointURL, job string) {
	if err := r.push(ctx, endpointURL, job); err != nil {
		r.logger.ErrorContext(ctx, "failed to push metrics",
			slog.String("endpoint", endpointURL),
			slog.String("job", job),
			logger.Error(err))
	}
}
