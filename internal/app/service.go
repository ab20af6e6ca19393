// Package service hosts the guess game: one session per player, the
// resolution queue and its workers, and the price ticker.
package service

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/okian/btcguess/internal/adapters/mq/queue"
	"github.com/okian/btcguess/internal/adapters/mq/worker"
	"github.com/okian/btcguess/internal/adapters/price"
	"github.com/okian/btcguess/internal/adapters/repository"
	"github.com/okian/btcguess/internal/domain/dedupe"
	"github.com/okian/btcguess/internal/domain/model"
	"github.com/okian/btcguess/internal/domain/tally"
	"github.com/okian/btcguess/internal/game"
	"github.com/okian/btcguess/internal/game/countdown"
	"github.com/okian/btcguess/pkg/logger"
	"github.com/okian/btcguess/pkg/metrics"
)

const stopTimeout = 30 * time.Second

// Service implements the API dependencies of the guess game.
type Service struct {
	mu sync.RWMutex

	// Core components
	repo     repository.Store
	ticker   *price.Ticker
	prices   price.Source
	inflight dedupe.Deduper
	queue    queue.Queue
	pool     *worker.Pool
	sessions map[string]*Session
	building singleflight.Group

	// Configuration
	workerCount       int
	queueSize         int
	dedupeSize        int
	guessDuration     time.Duration
	countdownInterval time.Duration
	resolveRetry      time.Duration
	clearDelay        time.Duration
	runTicker         bool
	now               func() time.Time

	// State
	started bool
	runCtx  context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup

	logger logger.Logger
}

// New constructs a Service over repo. The ticker serves the displayed price
// and, unless WithPriceSource overrides it, the quotes guesses are made at.
func New(repo repository.Store, ticker *price.Ticker, opts ...Option) *Service {
	s := &Service{
		repo:              repo,
		ticker:            ticker,
		prices:            ticker,
		workerCount:       runtime.NumCPU(),
		queueSize:         1024,
		dedupeSize:        100_000,
		guessDuration:     60 * time.Second,
		countdownInterval: 100 * time.Millisecond,
		resolveRetry:      time.Second,
		clearDelay:        5 * time.Second,
		runTicker:         true,
		now:               time.Now,
		sessions:          make(map[string]*Session),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start initializes the queue, the worker pool and the ticker loop.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	if s.logger == nil {
		s.logger = logger.Get().Named("service")
	}
	if s.repo == nil || s.prices == nil {
		return errors.New("game service needs a repository and a price source")
	}

	s.logger.Info(ctx, "starting game service...")

	s.runCtx, s.cancel = context.WithCancel(ctx)
	s.inflight = dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(s.dedupeSize))
	s.queue = queue.NewInMemoryQueue(queue.WithCapacity(s.queueSize))
	s.pool = worker.NewPool(s.workerCount, s.queue, s)
	s.pool.Start(s.runCtx)

	if s.runTicker && s.ticker != nil {
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.ticker.Run(s.runCtx)
		}()
	}

	s.started = true
	s.logger.Info(ctx, "game service started",
		logger.Int("workers", s.workerCount),
		logger.Int("queueSize", s.queueSize),
		logger.Duration("guessDuration", s.guessDuration),
	)
	return nil
}

// Stop closes every session, drains the workers and stops the ticker.
func (s *Service) Stop() {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return
	}
	s.started = false
	sessions := s.sessions
	s.sessions = make(map[string]*Session)
	pool, cancel := s.pool, s.cancel
	s.mu.Unlock()

	ctx := context.Background()
	s.logger.Info(ctx, "stopping game service...")

	for _, sess := range sessions {
		sess.close()
	}
	metrics.UpdateActiveSessions(0)

	shutdownCtx, done := context.WithTimeout(ctx, stopTimeout)
	defer done()
	if err := pool.Shutdown(shutdownCtx); err != nil {
		s.logger.Warn(ctx, "worker pool shutdown", logger.Error(err))
	}
	cancel()
	s.wg.Wait()

	s.logger.Info(ctx, "game service stopped")
}

// Session returns the player's session, building it on first use. Building
// loads the history and resumes a persisted PENDING guess.
func (s *Service) Session(ctx context.Context, userID string) (*Session, error) {
	s.mu.RLock()
	started := s.started
	sess, ok := s.sessions[userID]
	s.mu.RUnlock()
	if !started {
		return nil, ErrNotStarted
	}
	if ok {
		return sess, nil
	}

	v, err, _ := s.building.Do(userID, func() (any, error) {
		s.mu.RLock()
		existing, ok := s.sessions[userID]
		s.mu.RUnlock()
		if ok {
			return existing, nil
		}

		sess := s.newSession(userID)
		if _, err := sess.store.FetchGuesses(ctx); err != nil {
			sess.close()
			return nil, err
		}

		s.mu.Lock()
		if !s.started {
			s.mu.Unlock()
			sess.close()
			return nil, ErrNotStarted
		}
		s.sessions[userID] = sess
		n := len(s.sessions)
		s.mu.Unlock()

		metrics.UpdateActiveSessions(n)
		s.resume(ctx, sess)
		return sess, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Session), nil
}

func (s *Service) newSession(userID string) *Session {
	store := game.NewStore(userID, s.repo, game.WithStoreLogger(s.logger.Named("store")))
	ticks := game.NewBroadcaster[countdown.Tick]()
	return &Session{
		UserID: userID,
		store:  store,
		engine: game.NewEngine(store, s.repo, s.prices,
			game.WithClock(s.now),
			game.WithClearDelay(s.clearDelay),
			game.WithInFlightGuard(s.inflight),
			game.WithLogger(s.logger.Named("engine")),
		),
		timer: countdown.New(
			countdown.WithDuration(s.guessDuration),
			countdown.WithInterval(s.countdownInterval),
			countdown.WithRetry(s.resolveRetry),
			countdown.WithClock(s.now),
			countdown.WithTickListener(ticks.Publish),
		),
		ticks: ticks,
	}
}

// resume makes the newest PENDING guess current and restarts its countdown
// from the persisted createdAt. An elapsed countdown resolves on its first poll.
func (s *Service) resume(ctx context.Context, sess *Session) {
	for _, g := range sess.store.Snapshot().Guesses {
		if !g.IsPending() {
			continue
		}
		sess.store.SetCurrentGuess(&g)
		sess.timer.Start(s.runCtx, g.ID, g.CreatedAt, s.onExpire(sess.UserID))
		s.logger.Info(ctx, "resumed pending guess",
			logger.String("user_id", sess.UserID),
			logger.String("guess_id", g.ID),
			logger.Duration("age", s.now().Sub(g.CreatedAt)),
		)
		return
	}
}

// onExpire queues a resolution unless one is already running.
func (s *Service) onExpire(userID string) countdown.ExpireFunc {
	return func(ctx context.Context, guessID string) {
		if s.inflight.Seen(ctx, guessID) {
			return
		}
		err := s.queue.Enqueue(ctx, queue.Job{UserID: userID, GuessID: guessID, EnqueuedAt: s.now()})
		if err != nil && ctx.Err() == nil {
			s.logger.Warn(ctx, "failed to enqueue resolution",
				logger.String("user_id", userID),
				logger.String("guess_id", guessID),
				logger.Error(err),
			)
		}
	}
}

// CloseSession drops the player's in-memory session. A pending guess stays
// persisted and is resumed by the next Session call.
func (s *Service) CloseSession(userID string) {
	s.mu.Lock()
	sess, ok := s.sessions[userID]
	delete(s.sessions, userID)
	n := len(s.sessions)
	s.mu.Unlock()
	if ok {
		sess.close()
		metrics.UpdateActiveSessions(n)
	}
}

// PlaceGuess quotes the current price and opens a guess in direction.
func (s *Service) PlaceGuess(ctx context.Context, userID, direction string) (model.Guess, error) {
	d, ok := model.ParseDirection(direction)
	if !ok {
		return model.Guess{}, fmt.Errorf("%w: direction %q", game.ErrInvalidState, direction)
	}
	sess, err := s.Session(ctx, userID)
	if err != nil {
		return model.Guess{}, err
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()

	if cur := sess.store.Snapshot().CurrentGuess; cur != nil && cur.IsPending() {
		return model.Guess{}, game.ErrGuessPending
	}

	p, err := s.prices.GetPrice(ctx)
	if err != nil {
		if !errors.Is(err, game.ErrPriceUnavailable) {
			err = fmt.Errorf("%w: %w", game.ErrPriceUnavailable, err)
		}
		sess.store.SetError(game.Message(err, game.MsgPriceFailed))
		return model.Guess{}, err
	}

	g, err := sess.engine.CreateGuess(ctx, d, p)
	if err != nil {
		return model.Guess{}, err
	}
	sess.timer.Start(s.runCtx, g.ID, g.CreatedAt, s.onExpire(userID))
	return g, nil
}

// Resolve settles guessID once its countdown has elapsed.
func (s *Service) Resolve(ctx context.Context, userID, guessID string) (model.Guess, error) {
	sess, err := s.Session(ctx, userID)
	if err != nil {
		return model.Guess{}, err
	}
	g, err := s.findGuess(ctx, sess, guessID)
	if err != nil {
		return model.Guess{}, err
	}
	if g.IsPending() && s.now().Before(g.CreatedAt.Add(s.guessDuration)) {
		return g, fmt.Errorf("%w: countdown still running", game.ErrInvalidState)
	}

	out, err := sess.engine.ResolveGuess(ctx, g)
	if err != nil {
		return out, err
	}
	sess.timer.StopFor(out.ID)
	return out, nil
}

// ResolveJob runs a queued resolution. It implements worker.Resolver.
func (s *Service) ResolveJob(ctx context.Context, job worker.Job) error {
	_, err := s.Resolve(ctx, job.UserID, job.GuessID)
	if errors.Is(err, game.ErrResolveInFlight) {
		return nil
	}
	return err
}

func (s *Service) findGuess(ctx context.Context, sess *Session, id string) (model.Guess, error) {
	st := sess.store.Snapshot()
	if st.CurrentGuess != nil && st.CurrentGuess.ID == id {
		return *st.CurrentGuess, nil
	}
	for _, g := range st.Guesses {
		if g.ID == id {
			return g, nil
		}
	}
	g, err := s.repo.Get(ctx, sess.UserID, id)
	if err != nil {
		return model.Guess{}, fmt.Errorf("guess %s: %w", id, err)
	}
	return g, nil
}

// Guesses refreshes and returns the player's history, newest first.
func (s *Service) Guesses(ctx context.Context, userID string) ([]model.Guess, error) {
	sess, err := s.Session(ctx, userID)
	if err != nil {
		return nil, err
	}
	return sess.store.FetchGuesses(ctx)
}

// Current returns the player's current guess, if any, and its countdown.
func (s *Service) Current(ctx context.Context, userID string) (*model.Guess, countdown.Tick, error) {
	sess, err := s.Session(ctx, userID)
	if err != nil {
		return nil, countdown.Tick{}, err
	}
	return sess.store.Snapshot().CurrentGuess, sess.Countdown(), nil
}

// Score returns the player's aggregate score with its breakdown.
func (s *Service) Score(ctx context.Context, userID string) (tally.Summary, error) {
	sess, err := s.Session(ctx, userID)
	if err != nil {
		return tally.Summary{}, err
	}
	return sess.store.Summary(), nil
}

// Subscribe streams the player's state changes and countdown ticks. Both
// channels close when cancel is called or the session closes.
func (s *Service) Subscribe(ctx context.Context, userID string) (<-chan game.State, <-chan countdown.Tick, func(), error) {
	sess, err := s.Session(ctx, userID)
	if err != nil {
		return nil, nil, nil, err
	}
	states, stopStates := sess.store.Subscribe()
	ticks, stopTicks := sess.SubscribeTicks()
	return states, ticks, func() {
		stopStates()
		stopTicks()
	}, nil
}

// Price returns the ticker state.
func (s *Service) Price() price.Snapshot {
	if s.ticker == nil {
		return price.Snapshot{}
	}
	return s.ticker.Snapshot()
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx := context.Background()
	stats := map[string]interface{}{
		"started":         s.started,
		"workerCount":     s.workerCount,
		"queueSize":       s.queueSize,
		"dedupeSize":      s.dedupeSize,
		"guessDurationMs": s.guessDuration.Milliseconds(),
	}

	if s.started {
		queueLen := s.queue.Len(ctx)
		stats["queueLength"] = queueLen
		stats["sessions"] = len(s.sessions)
		stats["resolving"] = s.inflight.Size()
		if c, ok := s.repo.(interface{ Count() int }); ok {
			stats["storedGuesses"] = c.Count()
		}
		if snap := s.Price(); snap.Price != nil {
			stats["lastPrice"] = *snap.Price
		}

		metrics.UpdateActiveSessions(len(s.sessions))
		metrics.UpdateWorkerCount(s.pool.Size())
	}

	return stats
}
