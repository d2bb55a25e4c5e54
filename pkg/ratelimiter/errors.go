package ratelimiter

import "errors"

// Package-level error definitions for rate limiter operations.
var (
	ErrInvalidConfig    = errors.New("invalid configuration")
	ErrStoreUnavailable = errors.New("store unavailable")
	ErrAlreadyStarted   = errors.New("memory store already started")
	ErrNotStarted       = errors.New("memory store not started")
	ErrSweepDisabled    = errors.New("sweep interval must be > 0")
)
