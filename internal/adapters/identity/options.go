package identity

import (
	"time"

	"github.com/okian/btcguess/internal/domain/dedupe"
	"github.com/okian/btcguess/pkg/logger"
)

// Option configures a Local provider.
type Option func(*Local)

// WithTokenTTL sets the lifetime of issued tokens.
func WithTokenTTL(d time.Duration) Option {
	return func(l *Local) {
		if d > 0 {
			l.signer.ttl = d
		}
	}
}

// WithCodeTTL sets how long a confirmation code stays valid.
func WithCodeTTL(d time.Duration) Option {
	return func(l *Local) {
		if d > 0 {
			l.codeTTL = d
		}
	}
}

// WithCodeSender sets where confirmation codes are delivered.
func WithCodeSender(s CodeSender) Option {
	return func(l *Local) {
		if s != nil {
			l.sender = s
		}
	}
}

// WithRevocationSet sets the store of revoked token ids. It must keep each id
// at least as long as the token TTL, see dedupe.WithTTL.
func WithRevocationSet(d dedupe.Deduper) Option {
	return func(l *Local) {
		if d != nil {
			l.revoked = d
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(l *Local) {
		if now != nil {
			l.now = now
		}
	}
}

// WithBcryptCost sets the password hashing cost.
func WithBcryptCost(cost int) Option {
	return func(l *Local) {
		if cost > 0 {
			l.cost = cost
		}
	}
}

// WithLogger sets the provider logger.
func WithLogger(lg logger.Logger) Option {
	return func(l *Local) {
		if lg != nil {
			l.logger = lg
		}
	}
}
