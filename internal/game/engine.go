package game

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/okian/btcguess/internal/adapters/price"
	"github.com/okian/btcguess/internal/adapters/repository"
	"github.com/okian/btcguess/internal/domain/dedupe"
	"github.com/okian/btcguess/internal/domain/model"
	"github.com/okian/btcguess/internal/domain/resolution"
	"github.com/okian/btcguess/pkg/logger"
	"github.com/okian/btcguess/pkg/metrics"
)

const defaultClearDelay = 5 * time.Second

// Engine creates and resolves guesses for the player of its Store.
type Engine struct {
	store      *Store
	repo       repository.Store
	prices     price.Source
	inflight   dedupe.Deduper
	now        func() time.Time
	clearDelay time.Duration
	logger     logger.Logger

	mu         sync.Mutex
	clearTimer *time.Timer
	closed     bool
}

// NewEngine wires an engine to the player's store, the repository and a
// price source.
func NewEngine(store *Store, repo repository.Store, prices price.Source, opts ...Option) *Engine {
	e := &Engine{
		store:      store,
		repo:       repo,
		prices:     prices,
		now:        time.Now,
		clearDelay: defaultClearDelay,
		logger:     logger.Get().Named("engine"),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.inflight == nil {
		e.inflight = dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(0))
	}
	return e
}

// CreateGuess persists a PENDING guess at startPrice and makes it current.
func (e *Engine) CreateGuess(ctx context.Context, direction model.Direction, startPrice float64) (model.Guess, error) {
	if !direction.Valid() {
		err := fmt.Errorf("%w: direction %q", ErrInvalidState, direction)
		e.store.fail(err, MsgCreateFailed)
		return model.Guess{}, err
	}
	if startPrice <= 0 || math.IsNaN(startPrice) || math.IsInf(startPrice, 0) {
		err := fmt.Errorf("%w: %v", ErrInvalidPrice, startPrice)
		e.store.fail(err, MsgCreateFailed)
		return model.Guess{}, err
	}

	e.cancelClear()
	e.store.update(func(st *State) {
		st.IsLoading = true
		st.Error = ""
	})

	g, err := e.repo.Create(ctx, model.NewGuess{
		Owner:      e.store.Owner(),
		StartPrice: startPrice,
		Direction:  direction,
		Status:     model.Pending,
		CreatedAt:  e.now(),
	})
	if err != nil {
		if errors.Is(err, repository.ErrConflict) {
			err = fmt.Errorf("%w: %w", ErrGuessPending, err)
		}
		err = fmt.Errorf("%w: %w", ErrCreationFailed, err)
		e.store.fail(err, MsgCreateFailed)
		e.logger.Error(ctx, "create guess failed", logger.String("owner", e.store.Owner()), logger.Error(err))
		return model.Guess{}, err
	}

	e.store.update(func(st *State) {
		cur := g.Clone()
		st.CurrentGuess = &cur
		st.Guesses = append(st.Guesses, g.Clone())
		st.IsLoading = false
		st.Error = ""
	})
	metrics.RecordGuessCreated()
	e.logger.Info(ctx, "guess created",
		logger.String("guess_id", g.ID),
		logger.String("owner", g.Owner),
		logger.String("direction", string(g.Direction)),
		logger.Float64("start_price", g.StartPrice),
	)
	return g, nil
}

// ResolveGuess settles a PENDING guess against a fresh price. A RESOLVED guess
// is returned unchanged without touching storage. On success the history is
// refreshed and the guess is cleared from current after the clear delay.
func (e *Engine) ResolveGuess(ctx context.Context, g model.Guess) (model.Guess, error) {
	if g.Status == model.Resolved {
		return g, nil
	}
	if !g.Direction.Valid() {
		err := fmt.Errorf("%w: direction %q", ErrInvalidState, g.Direction)
		e.store.fail(err, MsgUpdateFailed)
		return g, err
	}
	if e.inflight.SeenAndRecord(ctx, g.ID) {
		return g, ErrResolveInFlight
	}
	defer e.inflight.Unrecord(ctx, g.ID)

	start := time.Now()
	resolvedPrice, err := e.prices.GetPrice(ctx)
	if err != nil {
		if !errors.Is(err, ErrPriceUnavailable) {
			err = fmt.Errorf("%w: %w", ErrPriceUnavailable, err)
		}
		metrics.RecordResolutionError("price")
		e.store.fail(err, MsgPriceFailed)
		e.logger.Warn(ctx, "resolution postponed, no price", logger.String("guess_id", g.ID), logger.Error(err))
		return g, err
	}

	outcome, err := resolution.Decide(g.Direction, g.StartPrice, resolvedPrice)
	if err != nil {
		err = fmt.Errorf("%w: %w", ErrInvalidState, err)
		e.store.fail(err, MsgUpdateFailed)
		return g, err
	}

	patch := model.Resolution(resolvedPrice, outcome.Score(), e.now())
	updated, err := e.repo.Update(ctx, e.store.Owner(), g.ID, patch, model.Pending)
	if errors.Is(err, repository.ErrConflict) {
		updated, err = e.alreadyResolved(ctx, g.ID, err)
		if err == nil {
			outcome = ""
		}
	}
	if err != nil {
		err = fmt.Errorf("%w: %w", ErrUpdateFailed, err)
		metrics.RecordResolutionError("update")
		e.store.fail(err, MsgUpdateFailed)
		e.logger.Error(ctx, "resolve guess failed", logger.String("guess_id", g.ID), logger.Error(err))
		return g, err
	}

	e.store.update(func(st *State) {
		cur := updated.Clone()
		st.CurrentGuess = &cur
		for i := range st.Guesses {
			if st.Guesses[i].ID == updated.ID {
				st.Guesses[i] = updated.Clone()
			}
		}
		st.Error = ""
	})
	if outcome != "" {
		metrics.RecordGuessResolved(string(outcome))
		metrics.RecordResolutionLatency(float64(time.Since(start).Milliseconds()))
		e.logger.Info(ctx, "guess resolved",
			logger.String("guess_id", updated.ID),
			logger.String("outcome", string(outcome)),
			logger.Float64("start_price", updated.StartPrice),
			logger.Float64("resolved_price", resolvedPrice),
		)
	}

	// A failed refresh is recorded in the store; the resolution stands.
	_, _ = e.store.FetchGuesses(ctx)
	e.scheduleClear(updated.ID)
	return updated, nil
}

// alreadyResolved handles a lost conditional update: another resolver settled
// the guess first, and its stored result is adopted.
func (e *Engine) alreadyResolved(ctx context.Context, id string, cause error) (model.Guess, error) {
	latest, err := e.repo.Get(ctx, e.store.Owner(), id)
	if err != nil {
		return model.Guess{}, fmt.Errorf("%w (reload: %w)", cause, err)
	}
	if latest.Status != model.Resolved {
		return model.Guess{}, cause
	}
	return latest, nil
}

func (e *Engine) scheduleClear(id string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return
	}
	if e.clearTimer != nil {
		e.clearTimer.Stop()
	}
	e.clearTimer = time.AfterFunc(e.clearDelay, func() {
		e.store.clearIfCurrent(id)
	})
}

func (e *Engine) cancelClear() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.clearTimer != nil {
		e.clearTimer.Stop()
		e.clearTimer = nil
	}
}

// Close cancels a scheduled clear. The engine must not be used afterwards.
func (e *Engine) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.closed = true
	if e.clearTimer != nil {
		e.clearTimer.Stop()
		e.clearTimer = nil
	}
}
