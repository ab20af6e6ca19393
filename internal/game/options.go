package game

import (
	"time"

	"github.com/okian/btcguess/internal/domain/dedupe"
	"github.com/okian/btcguess/pkg/logger"
)

// StoreOption configures a Store.
type StoreOption func(*Store)

// WithStoreLogger sets the store logger.
func WithStoreLogger(l logger.Logger) StoreOption {
	return func(s *Store) {
		if l != nil {
			s.logger = l
		}
	}
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock overrides the time source used for createdAt and updatedAt.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

// WithClearDelay sets how long a resolved guess stays current.
func WithClearDelay(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.clearDelay = d
		}
	}
}

// WithInFlightGuard shares the set of guesses being resolved. Engines of
// different players may share one guard since guess ids are unique.
func WithInFlightGuard(d dedupe.Deduper) Option {
	return func(e *Engine) {
		if d != nil {
			e.inflight = d
		}
	}
}

// WithLogger sets the engine logger.
func WithLogger(l logger.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}
