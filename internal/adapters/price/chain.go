package price

import (
	"context"
	"errors"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/okian/btcguess/pkg/logger"
	"github.com/okian/btcguess/pkg/metrics"
)

const defaultAttemptTimeout = 5 * time.Second

// Source is what the game needs from the price feed.
type Source interface {
	GetPrice(ctx context.Context) (float64, error)
}

// Chain tries its providers in order and returns the first good quote.
// Concurrent callers share one in-flight upstream round; nothing is cached.
type Chain struct {
	providers []Provider
	timeout   time.Duration
	group     singleflight.Group
	logger    logger.Logger
}

// NewChain builds a chain over providers, tried in the given order.
func NewChain(providers []Provider, opts ...Option) *Chain {
	c := &Chain{
		providers: providers,
		timeout:   defaultAttemptTimeout,
		logger:    logger.Get().Named("price"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// GetPrice returns the current BTC/USD price or an *UnavailableError.
func (c *Chain) GetPrice(ctx context.Context) (float64, error) {
	ch := c.group.DoChan("btc-usd", func() (any, error) {
		// The shared round outlives any single caller's cancellation.
		return c.fetch(context.WithoutCancel(ctx))
	})
	select {
	case <-ctx.Done():
		return 0, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return 0, res.Err
		}
		return res.Val.(float64), nil
	}
}

func (c *Chain) fetch(ctx context.Context) (float64, error) {
	failed := &UnavailableError{}
	for _, p := range c.providers {
		v, err := c.attempt(ctx, p)
		if err == nil {
			metrics.UpdateLastPrice(v)
			if len(failed.Attempts) > 0 {
				c.logger.Warn(ctx, "price served by fallback",
					logger.String("provider", p.Name()),
					logger.Int("failed_attempts", len(failed.Attempts)),
				)
			}
			return v, nil
		}
		failed.Attempts = append(failed.Attempts, Attempt{Provider: p.Name(), Err: err})
	}
	c.logger.Error(ctx, "all price providers failed", logger.Error(failed))
	return 0, failed
}

func (c *Chain) attempt(ctx context.Context, p Provider) (float64, error) {
	actx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	start := time.Now()
	v, err := p.Quote(actx)
	result := "ok"
	if err != nil {
		result = "error"
		if errors.Is(err, context.DeadlineExceeded) {
			result = "timeout"
		}
	}
	metrics.RecordPriceFetch(p.Name(), result, float64(time.Since(start).Milliseconds()))
	return v, err
}
