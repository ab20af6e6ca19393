package price

import (
	"context"
	"sync"
	"time"

	"github.com/okian/btcguess/pkg/logger"
)

const defaultTickerInterval = 10 * time.Second

// Snapshot is the ticker state shown to players.
type Snapshot struct {
	Price       *float64   `json:"price"`
	IsLoading   bool       `json:"is_loading"`
	Error       string     `json:"error,omitempty"`
	LastUpdated *time.Time `json:"last_updated"`
}

// Ticker keeps the latest price. A failed refresh keeps the previous price
// and records the error message.
type Ticker struct {
	source   Source
	interval time.Duration
	now      func() time.Time
	logger   logger.Logger

	mu    sync.RWMutex
	state Snapshot
}

// NewTicker creates a ticker over source.
func NewTicker(source Source, opts ...TickerOption) *Ticker {
	t := &Ticker{
		source:   source,
		interval: defaultTickerInterval,
		now:      time.Now,
		logger:   logger.Get().Named("ticker"),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// FetchPrice refreshes the ticker and returns the fresh price.
func (t *Ticker) FetchPrice(ctx context.Context) (float64, error) {
	t.mu.Lock()
	t.state.IsLoading = true
	t.state.Error = ""
	t.mu.Unlock()

	p, err := t.source.GetPrice(ctx)

	t.mu.Lock()
	defer t.mu.Unlock()
	t.state.IsLoading = false
	if err != nil {
		t.state.Error = err.Error()
		if t.state.Error == "" {
			t.state.Error = "Failed to fetch Bitcoin price"
		}
		return 0, err
	}
	at := t.now()
	t.state.Price = &p
	t.state.LastUpdated = &at
	return p, nil
}

// Run refreshes immediately and then every interval until ctx is done.
func (t *Ticker) Run(ctx context.Context) {
	tk := time.NewTicker(t.interval)
	defer tk.Stop()

	for {
		if _, err := t.FetchPrice(ctx); err != nil && ctx.Err() == nil {
			t.logger.Warn(ctx, "ticker refresh failed", logger.Error(err))
		}
		select {
		case <-ctx.Done():
			return
		case <-tk.C:
		}
	}
}

// Snapshot returns a copy of the current state.
func (t *Ticker) Snapshot() Snapshot {
	t.mu.RLock()
	defer t.mu.RUnlock()
	s := t.state
	if s.Price != nil {
		p := *s.Price
		s.Price = &p
	}
	if s.LastUpdated != nil {
		at := *s.LastUpdated
		s.LastUpdated = &at
	}
	return s
}

// GetPrice makes the ticker a Source, so every quote the game takes also
// refreshes what players see.
func (t *Ticker) GetPrice(ctx context.Context) (float64, error) {
	return t.FetchPrice(ctx)
}
