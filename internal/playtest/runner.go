package playtest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/gorilla/websocket"

	"github.com/okian/btcguess/internal/domain/model"
	"github.com/okian/btcguess/internal/domain/types"
	"github.com/okian/btcguess/internal/game"
	"github.com/okian/btcguess/internal/session"
	"github.com/okian/btcguess/pkg/logger"
)

// ErrAwaitingConfirmation is returned after a sign-up without a code.
var ErrAwaitingConfirmation = errors.New("confirmation code sent; rerun with -code")

// ErrScoreMismatch is returned when the server score disagrees with the rounds.
var ErrScoreMismatch = errors.New("score does not match outcomes")

const pollInterval = 500 * time.Millisecond

// Run executes a complete playtest.
func Run(ctx context.Context, cfg *Config) (*Stats, error) {
	log := logger.Get().Named("playtest")
	stats := &Stats{StartTime: time.Now()}

	log.Info(ctx, "starting btcguess playtest",
		logger.String("baseURL", cfg.BaseURL),
		logger.String("username", cfg.Username),
		logger.Int("rounds", cfg.Rounds),
		logger.String("strategy", cfg.Strategy),
	)

	client := NewClient(cfg.BaseURL, cfg.Timeout)

	// Step 1: Check service health
	if err := client.Health(ctx); err != nil {
		return nil, fmt.Errorf("service health check failed: %w", err)
	}

	// Step 2: Register when asked
	if cfg.SignUp {
		if err := signUp(ctx, client, cfg, log); err != nil {
			return nil, err
		}
	}

	// Step 3: Sign in through a session store
	sess := session.NewStore(client, log.Named("session"))
	client.UseTokenSource(sess.Token)
	user, err := sess.SignIn(ctx, cfg.Username, cfg.Password)
	if err != nil {
		return nil, fmt.Errorf("sign in failed: %w", err)
	}
	defer sess.SignOut(context.WithoutCancel(ctx))
	log.Info(ctx, "signed in", logger.String("user", user.ID))

	if snap, err := client.Price(ctx); err == nil && snap.Price != nil {
		log.Info(ctx, "current price", logger.Float64("btcUsd", *snap.Price))
	}

	// Step 4: Settle a guess left over from an earlier run
	cur, err := client.Current(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetching current guess failed: %w", err)
	}
	if cur.Guess != nil && cur.Guess.IsPending() {
		log.Info(ctx, "waiting for a pending guess from an earlier session", logger.String("guess", cur.Guess.ID))
		waitResolved(ctx, client, cur.Guess.ID, cfg, log)
	}

	start, err := client.Score(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetching score failed: %w", err)
	}
	stats.StartScore = start.Score

	// Step 5: Play
	for i := 0; i < cfg.Rounds; i++ {
		round, err := playRound(ctx, client, cfg, i, log)
		if err != nil {
			return stats, fmt.Errorf("round %d failed: %w", i+1, err)
		}
		stats.record(round)
	}

	// Step 6: Verify
	end, err := client.Score(ctx)
	if err != nil {
		return stats, fmt.Errorf("fetching score failed: %w", err)
	}
	stats.EndScore = end.Score
	stats.EndTime = time.Now()
	stats.Duration = stats.EndTime.Sub(stats.StartTime)

	displayFinalStats(ctx, stats, log)
	return stats, verify(stats)
}

func signUp(ctx context.Context, client *Client, cfg *Config, log logger.Logger) error {
	if cfg.Code == "" {
		if _, err := client.SignUp(ctx, cfg.Username, cfg.Password, nil); err != nil {
			return fmt.Errorf("sign up failed: %w", err)
		}
		log.Info(ctx, "signed up; the confirmation code is in the server log")
		return ErrAwaitingConfirmation
	}
	err := client.ConfirmSignUp(ctx, cfg.Username, cfg.Code)
	if err != nil && !IsCode(err, "conflict") {
		return fmt.Errorf("confirmation failed: %w", err)
	}
	return nil
}

// Direction picks the direction of round i for strategy.
func Direction(strategy string, i int) model.Direction {
	switch strategy {
	case StrategyDown:
		return model.Down
	case StrategyAlternate:
		if i%2 == 1 {
			return model.Down
		}
		return model.Up
	case StrategyRandom:
		if rand.IntN(2) == 1 {
			return model.Down
		}
		return model.Up
	default:
		return model.Up
	}
}

func playRound(ctx context.Context, client *Client, cfg *Config, i int, log logger.Logger) (Round, error) {
	dir := Direction(cfg.Strategy, i)
	g, err := client.PlaceGuess(ctx, dir)
	if IsCode(err, "guess_pending") {
		// The previous guess is resolved but not yet persisted everywhere.
		time.Sleep(pollInterval)
		g, err = client.PlaceGuess(ctx, dir)
	}
	if err != nil {
		return Round{}, err
	}
	log.Info(ctx, "guess placed",
		logger.Int("round", i+1),
		logger.String("guess", g.ID),
		logger.String("direction", string(g.Direction)),
		logger.Float64("startPrice", g.StartPrice),
	)

	started := time.Now()
	resolved, ok := waitResolved(ctx, client, g.ID, cfg, log)
	round := Round{Guess: g, Waited: time.Since(started), Resolved: ok}
	if ok {
		round.Guess = resolved
		log.Info(ctx, "guess resolved",
			logger.Int("round", i+1),
			logger.Float64("resolvedPrice", *resolved.ResolvedPrice),
			logger.Int("score", *resolved.Score),
			logger.Duration("waited", round.Waited),
		)
	} else {
		log.Warn(ctx, "guess did not resolve in time", logger.String("guess", g.ID))
	}
	return round, nil
}

// waitResolved follows the websocket stream until id resolves, falling back to
// polling when the stream is unavailable.
func waitResolved(ctx context.Context, client *Client, id string, cfg *Config, log logger.Logger) (model.Guess, bool) {
	ctx, cancel := context.WithTimeout(ctx, cfg.MaxWait)
	defer cancel()

	conn, err := client.Stream(ctx)
	if err != nil {
		log.Warn(ctx, "stream unavailable; polling", logger.Error(err))
		return poll(ctx, client, id)
	}
	defer func() { _ = conn.Close() }()

	// It may have resolved before the stream was up.
	if g, ok := lookup(ctx, client, id); ok {
		return g, true
	}

	frames := make(chan types.StreamMessage)
	go func() {
		defer close(frames)
		for {
			var msg types.StreamMessage
			if err := conn.ReadJSON(&msg); err != nil {
				if !websocket.IsCloseError(err, websocket.CloseNormalClosure) && ctx.Err() == nil {
					log.Debug(ctx, "stream ended", logger.Error(err))
				}
				return
			}
			select {
			case frames <- msg:
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return model.Guess{}, false
		case msg, ok := <-frames:
			if !ok {
				return poll(ctx, client, id)
			}
			if cfg.Verbose {
				log.Debug(ctx, "frame", logger.String("type", msg.Type), logger.String("payload", string(msg.Payload)))
			}
			if msg.Type != types.StreamState {
				continue
			}
			var st game.State
			if err := json.Unmarshal(msg.Payload, &st); err != nil {
				continue
			}
			if g, ok := findResolved(st.CurrentGuess, st.Guesses, id); ok {
				return g, true
			}
		}
	}
}

func poll(ctx context.Context, client *Client, id string) (model.Guess, bool) {
	t := time.NewTicker(pollInterval)
	defer t.Stop()
	for {
		if g, ok := lookup(ctx, client, id); ok {
			return g, true
		}
		select {
		case <-ctx.Done():
			return model.Guess{}, false
		case <-t.C:
		}
	}
}

func lookup(ctx context.Context, client *Client, id string) (model.Guess, bool) {
	cur, err := client.Current(ctx)
	if err == nil {
		if g, ok := findResolved(cur.Guess, nil, id); ok {
			return g, true
		}
	}
	list, err := client.Guesses(ctx)
	if err != nil {
		return model.Guess{}, false
	}
	return findResolved(nil, list, id)
}

func findResolved(current *model.Guess, history []model.Guess, id string) (model.Guess, bool) {
	if current != nil && current.ID == id && current.Status == model.Resolved {
		return *current, true
	}
	for _, g := range history {
		if g.ID == id && g.Status == model.Resolved {
			return g, true
		}
	}
	return model.Guess{}, false
}

// verify checks the server score moved by exactly the observed outcomes.
func verify(stats *Stats) error {
	if stats.Unresolved > 0 {
		return fmt.Errorf("%d of %d guesses did not resolve", stats.Unresolved, stats.Rounds)
	}
	if got, want := stats.EndScore-stats.StartScore, stats.Net(); got != want {
		return fmt.Errorf("%w: server moved %d, rounds sum to %d", ErrScoreMismatch, got, want)
	}
	return nil
}

// displayFinalStats logs the run statistics.
func displayFinalStats(ctx context.Context, stats *Stats, log logger.Logger) {
	var avgWait time.Duration
	if stats.Rounds > 0 {
		avgWait = stats.TotalWaiting / time.Duration(stats.Rounds)
	}
	log.Info(ctx, "final statistics",
		logger.Int("rounds", stats.Rounds),
		logger.Int("wins", stats.Wins),
		logger.Int("losses", stats.Losses),
		logger.Int("ties", stats.Ties),
		logger.Int("unresolved", stats.Unresolved),
		logger.Int("startScore", stats.StartScore),
		logger.Int("endScore", stats.EndScore),
		logger.Duration("avgWait", avgWait),
		logger.Duration("duration", stats.Duration),
	)
}
