package price

import (
	"time"

	"github.com/okian/btcguess/pkg/logger"
)

// Option configures a Chain.
type Option func(*Chain)

// WithAttemptTimeout bounds each provider call.
func WithAttemptTimeout(d time.Duration) Option {
	return func(c *Chain) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithLogger sets the chain logger.
func WithLogger(l logger.Logger) Option {
	return func(c *Chain) {
		if l != nil {
			c.logger = l
		}
	}
}

// TickerOption configures a Ticker.
type TickerOption func(*Ticker)

// WithInterval sets the refresh period of Run.
func WithInterval(d time.Duration) TickerOption {
	return func(t *Ticker) {
		if d > 0 {
			t.interval = d
		}
	}
}

// WithClock overrides the time source for LastUpdated.
func WithClock(now func() time.Time) TickerOption {
	return func(t *Ticker) {
		if now != nil {
			t.now = now
		}
	}
}
