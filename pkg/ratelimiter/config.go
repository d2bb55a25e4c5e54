package ratelimiter

import (
	"fmt"
	"time"
)

// Config describes a fixed window: at most MaxActions hits are allowed
// within Window, counted from the first hit of the window.
type Config struct {
	Window     time.Duration
	MaxActions int
}

// Validate reports whether the window is usable.
func (c Config) Validate() error {
	if c.Window <= 0 {
		return fmt.Errorf("%w: window must be positive, got %s", ErrInvalidConfig, c.Window)
	}
	if c.MaxActions <= 0 {
		return fmt.Errorf("%w: max actions must be positive, got %d", ErrInvalidConfig, c.MaxActions)
	}
	return nil
}
