package relay_test

import (
	"context"
	"sync"
)

// countingLimiter allows max actions per key until forgotten.
type countingLimiter struct {
	mu     sync.Mutex
	max    int
	counts map[string]int
	forgot int
}

func (l *countingLimiter) Check(_ context.Context, key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.counts == nil {
		l.counts = make(map[string]int)
	}
	l.counts[key]++
	return l.counts[key] <= l.max
}

func (l *countingLimiter) Forget(_ context.Context, key string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.counts, key)
	l.forgot++
}

func (l *countingLimiter) forgotten() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.forgot > 0
}

// gatedLimiter blocks every Check until release is closed.
type gatedLimiter struct {
	entered chan struct{}
	release chan struct{}
	once    sync.Once
}

func newGatedLimiter() *gatedLimiter {
	return &gatedLimiter{entered: make(chan struct{}), release: make(chan struct{})}
}

func (l *gatedLimiter) Check(context.Context, string) bool {
	l.once.Do(func() { close(l.entered) })
	<-l.release
	return true
}

func (l *gatedLimiter) Forget(context.Context, string) {}
