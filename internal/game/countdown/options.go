package countdown

import (
	"time"

	"github.com/okian/btcguess/pkg/logger"
)

// Option configures a Timer.
type Option func(*Timer)

// WithDuration sets the countdown length.
func WithDuration(d time.Duration) Option {
	return func(t *Timer) {
		if d > 0 {
			t.duration = d
		}
	}
}

// WithInterval sets the poll interval.
func WithInterval(d time.Duration) Option {
	return func(t *Timer) {
		if d > 0 {
			t.interval = d
		}
	}
}

// WithRetry sets how often expiry re-fires while the guess stays unresolved.
func WithRetry(d time.Duration) Option {
	return func(t *Timer) {
		if d > 0 {
			t.retry = d
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(t *Timer) {
		if now != nil {
			t.now = now
		}
	}
}

// WithTickListener receives every tick. It runs on the timer goroutine.
func WithTickListener(fn func(Tick)) Option {
	return func(t *Timer) {
		if fn != nil {
			t.onTick = fn
		}
	}
}

// WithLogger sets the timer logger.
func WithLogger(l logger.Logger) Option {
	return func(t *Timer) {
		if l != nil {
			t.logger = l
		}
	}
}
