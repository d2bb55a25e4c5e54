package ratelimiter

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/benbjohnson/clock"
)

// window is the state of one key's fixed window.
type window struct {
	count   int
	resetAt time.Time
}

// MemoryStore implements Store using an in-process map.
// Expired windows are dropped by a background sweep; see Start.
type MemoryStore struct {
	mu      sync.RWMutex
	windows map[string]*window

	clock           clock.Clock
	sweepInterval   time.Duration
	grace           time.Duration
	shutdownTimeout time.Duration
	logger          *slog.Logger

	ctx     context.Context
	cancel  context.CancelFunc
	running atomic.Bool
	wg      sync.WaitGroup

	windowsCreated atomic.Int64
	windowsRemoved atomic.Int64
}

// MemoryStoreStats is a point-in-time view of the store.
type MemoryStoreStats struct {
	WindowsCreated int64
	WindowsRemoved int64
	ActiveWindows  int
	IsRunning      bool
}

// MemoryStoreOption configures a MemoryStore.
type MemoryStoreOption func(*MemoryStore)

// WithSweepInterval sets how often expired windows are removed.
// Set to 0 to disable the sweep.
func WithSweepInterval(interval time.Duration) MemoryStoreOption {
	return func(ms *MemoryStore) {
		ms.sweepInterval = interval
	}
}

// WithGracePeriod sets how long an expired window is kept before the sweep may remove it.
func WithGracePeriod(d time.Duration) MemoryStoreOption {
	return func(ms *MemoryStore) {
		if d >= 0 {
			ms.grace = d
		}
	}
}

// WithMemoryStoreShutdownTimeout sets the graceful shutdown timeout.
func WithMemoryStoreShutdownTimeout(timeout time.Duration) MemoryStoreOption {
	return func(ms *MemoryStore) {
		if timeout > 0 {
			ms.shutdownTimeout = timeout
		}
	}
}

// WithMemoryStoreLogger sets the logger for internal operations.
func WithMemoryStoreLogger(logger *slog.Logger) MemoryStoreOption {
	return func(ms *MemoryStore) {
		if logger != nil {
			ms.logger = logger
		}
	}
}

// WithClock replaces the wall clock, mostly for tests.
func WithClock(c clock.Clock) MemoryStoreOption {
	return func(ms *MemoryStore) {
		if c != nil {
			ms.clock = c
		}
	}
}

// NewMemoryStore creates a new in-memory store.
// Call Start() to begin the background sweep.
func NewMemoryStore(opts ...MemoryStoreOption) *MemoryStore {
	ms := &MemoryStore{
		windows:         make(map[string]*window),
		clock:           clock.New(),
		sweepInterval:   time.Minute,
		grace:           time.Minute,
		shutdownTimeout: 30 * time.Second,
		logger:          slog.New(slog.NewTextHandler(io.Discard, nil)),
	}

	for _, opt := range opts {
		opt(ms)
	}

	return ms
}

// Hit registers one action for key.
func (ms *MemoryStore) Hit(_ context.Context, key string, cfg Config) (int, time.Time, error) {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	now := ms.clock.Now()
	w, exists := ms.windows[key]

	// The window is anchored at the hit that opened it, not at a wall-clock boundary.
	if !exists || !now.Before(w.resetAt) {
		w = &window{resetAt: now.Add(cfg.Window)}
		ms.windows[key] = w
		ms.windowsCreated.Add(1)
	}

	w.count++
	return w.count, w.resetAt, nil
}

// Reset forgets the window for key.
func (ms *MemoryStore) Reset(_ context.Context, key string) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	delete(ms.windows, key)
	return nil
}

// Start runs the sweep loop until the context is cancelled or Stop is called.
// It blocks; use Run for errgroup wiring.
func (ms *MemoryStore) Start(ctx context.Context) error {
	ms.mu.Lock()
	if ms.cancel != nil {
		ms.mu.Unlock()
		return ErrAlreadyStarted
	}

	if ms.sweepInterval <= 0 {
		ms.mu.Unlock()
		return fmt.Errorf("%w, got %v", ErrSweepDisabled, ms.sweepInterval)
	}

	ms.ctx, ms.cancel = context.WithCancel(ctx)
	runCtx := ms.ctx
	ms.mu.Unlock()

	ms.running.Store(true)
	defer ms.running.Store(false)

	ms.logger.InfoContext(runCtx, "rate limit sweep started",
		slog.Duration("sweep_interval", ms.sweepInterval))

	ticker := ms.clock.Ticker(ms.sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-runCtx.Done():
			ms.logger.InfoContext(context.Background(), "rate limit sweep stopping")
			return runCtx.Err()
		case <-ticker.C:
			ms.sweepWithWait()
		}
	}
}

// Stop shuts the sweep loop down, waiting up to the shutdown timeout
// for an in-progress sweep.
func (ms *MemoryStore) Stop() error {
	ms.mu.Lock()
	if ms.cancel == nil {
		ms.mu.Unlock()
		return ErrNotStarted
	}

	cancel := ms.cancel
	ms.cancel = nil
	ms.mu.Unlock()

	cancel()

	done := make(chan struct{})
	go func() {
		ms.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		ms.logger.InfoContext(context.Background(), "rate limit sweep stopped")
		return nil
	case <-time.After(ms.shutdownTimeout):
		ms.logger.WarnContext(context.Background(), "rate limit sweep shutdown timeout exceeded",
			slog.Duration("timeout", ms.shutdownTimeout))
		return fmt.Errorf("shutdown timeout exceeded after %s", ms.shutdownTimeout)
	}
}

// Run provides errgroup compatibility for coordinated lifecycle management.
func (ms *MemoryStore) Run(ctx context.Context) func() error {
	return func() error {
		errCh := make(chan error, 1)
		go func() {
			errCh <- ms.Start(ctx)
		}()

		select {
		case <-ctx.Done():
			_ = ms.Stop()
			<-errCh
			return nil
		case err := <-errCh:
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil
			}
			return err
		}
	}
}

func (ms *MemoryStore) sweepWithWait() {
	ms.mu.RLock()
	if ms.cancel == nil {
		ms.mu.RUnlock()
		return
	}
	ms.wg.Add(1)
	ms.mu.RUnlock()

	defer ms.wg.Done()
	ms.Sweep()
}

// Sweep removes windows that expired more than the grace period ago
// and returns how many were removed.
func (ms *MemoryStore) Sweep() int {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	cutoff := ms.clock.Now().Add(-ms.grace)

	removed := 0
	for key, w := range ms.windows {
		if w.resetAt.Before(cutoff) {
			delete(ms.windows, key)
			removed++
		}
	}

	if removed > 0 {
		ms.windowsRemoved.Add(int64(removed))
		ms.logger.Debug("rate limit windows swept", slog.Int("removed", removed))
	}
	return removed
}

// Stats returns current store statistics.
func (ms *MemoryStore) Stats() MemoryStoreStats {
	ms.mu.RLock()
	isRunning := ms.cancel != nil
	active := len(ms.windows)
	ms.mu.RUnlock()

	return MemoryStoreStats{
		WindowsCreated: ms.windowsCreated.Load(),
		WindowsRemoved: ms.windowsRemoved.Load(),
		ActiveWindows:  active,
		IsRunning:      isRunning,
	}
}

// Healthcheck reports an error when the sweep is configured but not running.
func (ms *MemoryStore) Healthcheck(context.Context) error {
	if ms.sweepInterval > 0 && !ms.Stats().IsRunning {
		return errors.New("rate limit sweep is configured but not running")
	}
	return nil
}
