package service

import (
	"time"

	"github.com/okian/btcguess/internal/adapters/price"
	"github.com/okian/btcguess/pkg/logger"
)

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithWorkerCount sets the number of resolution workers.
func WithWorkerCount(count int) Option {
	return func(s *Service) {
		if count > 0 {
			s.workerCount = count
		}
	}
}

// WithQueueSize sets the capacity of the resolution queue.
func WithQueueSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.queueSize = size
		}
	}
}

// WithDedupeSize bounds the set of guesses with a resolution in flight.
func WithDedupeSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.dedupeSize = size
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithGuessDuration sets how long a guess runs before it is resolved.
func WithGuessDuration(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.guessDuration = d
		}
	}
}

// WithCountdownInterval sets the countdown poll interval.
func WithCountdownInterval(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.countdownInterval = d
		}
	}
}

// WithResolveRetry sets how often an expired, unresolved guess is retried.
func WithResolveRetry(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.resolveRetry = d
		}
	}
}

// WithClearDelay sets how long a resolved guess stays current.
func WithClearDelay(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.clearDelay = d
		}
	}
}

// WithClock overrides the time source of guesses and countdowns.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithPriceSource quotes guesses from src instead of the ticker.
func WithPriceSource(src price.Source) Option {
	return func(s *Service) {
		if src != nil {
			s.prices = src
		}
	}
}

// WithoutTickerRefresh keeps Start from running the ticker refresh loop.
func WithoutTickerRefresh() Option {
	return func(s *Service) {
		s.runTicker = false
	}
}
