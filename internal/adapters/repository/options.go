package repository

import (
	"time"

	"github.com/google/uuid"
)

// Option applies a configuration option to the MemoryStore.
type Option func(*MemoryStore)

// WithClock overrides the time source used for UpdatedAt stamps.
func WithClock(now func() time.Time) Option {
	return func(s *MemoryStore) {
		if now != nil {
			s.now = now
		}
	}
}

// WithIDGenerator overrides id assignment (UUID v4 by default).
func WithIDGenerator(next func() string) Option {
	return func(s *MemoryStore) {
		if next != nil {
			s.nextID = next
		}
	}
}

func newUUID() string { return uuid.NewString() }
