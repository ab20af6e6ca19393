// Package game holds the per-player guess lifecycle: the state container
// (Store) and the orchestration that creates and resolves guesses (Engine).
package game

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/okian/btcguess/internal/adapters/repository"
	"github.com/okian/btcguess/internal/domain/model"
	"github.com/okian/btcguess/internal/domain/tally"
	"github.com/okian/btcguess/pkg/logger"
)

// State is a player's view of the game.
type State struct {
	Guesses      []model.Guess `json:"guesses"`
	CurrentGuess *model.Guess  `json:"current_guess"`
	IsLoading    bool          `json:"is_loading"`
	Error        string        `json:"error,omitempty"`
}

func (s State) clone() State {
	out := State{IsLoading: s.IsLoading, Error: s.Error}
	if s.Guesses != nil {
		out.Guesses = make([]model.Guess, len(s.Guesses))
		for i, g := range s.Guesses {
			out.Guesses[i] = g.Clone()
		}
	}
	if s.CurrentGuess != nil {
		c := s.CurrentGuess.Clone()
		out.CurrentGuess = &c
	}
	return out
}

// Store is the state container of one player. Every mutation replaces the
// state under the lock and notifies subscribers with a copy.
type Store struct {
	owner  string
	repo   repository.Store
	logger logger.Logger

	mu    sync.RWMutex
	state State

	changes *Broadcaster[State]
}

// NewStore creates an empty store for owner backed by repo.
func NewStore(owner string, repo repository.Store, opts ...StoreOption) *Store {
	s := &Store{
		owner:   owner,
		repo:    repo,
		logger:  logger.Get().Named("store"),
		changes: NewBroadcaster[State](),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Owner returns the player id the store belongs to.
func (s *Store) Owner() string { return s.owner }

// update applies fn to the state and publishes the result. Publishing never
// blocks, so it happens under the lock to keep notifications ordered.
func (s *Store) update(fn func(*State)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(&s.state)
	s.changes.Publish(s.state.clone())
}

// Snapshot returns a copy of the current state.
func (s *Store) Snapshot() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.clone()
}

// Subscribe returns a channel receiving the state after each change.
func (s *Store) Subscribe() (<-chan State, func()) {
	return s.changes.Subscribe()
}

// SetCurrentGuess replaces the current guess. Nil clears it.
func (s *Store) SetCurrentGuess(g *model.Guess) {
	s.update(func(st *State) {
		st.CurrentGuess = cloneGuess(g)
		st.Error = ""
	})
}

// SetGuesses replaces the history.
func (s *Store) SetGuesses(list []model.Guess) {
	s.update(func(st *State) {
		st.Guesses = cloneList(list)
		st.Error = ""
	})
}

// AddGuess appends g to the history.
func (s *Store) AddGuess(g model.Guess) {
	s.update(func(st *State) {
		st.Guesses = append(st.Guesses, g.Clone())
		st.Error = ""
	})
}

// UpdateGuess merges patch into the history entry with id and into the
// current guess when it has the same id, and clears the error. Unknown ids
// leave history untouched.
func (s *Store) UpdateGuess(id string, patch model.Patch) {
	s.update(func(st *State) {
		st.Error = ""
		for i := range st.Guesses {
			if st.Guesses[i].ID == id {
				st.Guesses[i] = st.Guesses[i].Apply(patch)
			}
		}
		if st.CurrentGuess != nil && st.CurrentGuess.ID == id {
			g := st.CurrentGuess.Apply(patch)
			st.CurrentGuess = &g
		}
	})
}

// SetLoading sets the loading flag.
func (s *Store) SetLoading(loading bool) {
	s.update(func(st *State) { st.IsLoading = loading })
}

// SetError sets the error message. An empty string clears it.
func (s *Store) SetError(msg string) {
	s.update(func(st *State) { st.Error = msg })
}

// fail records err with its player-facing message and clears loading.
func (s *Store) fail(err error, fallback string) {
	s.update(func(st *State) {
		st.IsLoading = false
		st.Error = Message(err, fallback)
	})
}

// FetchGuesses loads the history from the repository, newest first. On
// failure the message is stored and the error returned.
func (s *Store) FetchGuesses(ctx context.Context) ([]model.Guess, error) {
	s.update(func(st *State) {
		st.IsLoading = true
		st.Error = ""
	})

	list, err := s.repo.List(ctx, s.owner)
	if err != nil {
		err = fmt.Errorf("%w: %w", ErrFetchFailed, err)
		s.fail(err, MsgFetchFailed)
		s.logger.Warn(ctx, "fetch guesses failed", logger.String("owner", s.owner), logger.Error(err))
		return nil, err
	}

	sorted := cloneList(list)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].CreatedAt.After(sorted[j].CreatedAt)
	})
	s.update(func(st *State) {
		st.Guesses = sorted
		st.IsLoading = false
	})
	return cloneList(sorted), nil
}

// ClearGuess drops the current guess and resets the flags.
func (s *Store) ClearGuess() {
	s.update(func(st *State) {
		st.CurrentGuess = nil
		st.Error = ""
		st.IsLoading = false
	})
}

// clearIfCurrent clears only while id is still the current guess.
func (s *Store) clearIfCurrent(id string) bool {
	cleared := false
	s.update(func(st *State) {
		if st.CurrentGuess == nil || st.CurrentGuess.ID != id {
			return
		}
		st.CurrentGuess = nil
		st.Error = ""
		st.IsLoading = false
		cleared = true
	})
	return cleared
}

// Score is the sum of scores over resolved guesses in the history.
func (s *Store) Score() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return tally.Total(s.state.Guesses)
}

// Summary returns the win/loss/tie breakdown of the history.
func (s *Store) Summary() tally.Summary {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return tally.Summarize(s.state.Guesses)
}

// Close ends every subscription.
func (s *Store) Close() {
	s.changes.Close()
}

func cloneGuess(g *model.Guess) *model.Guess {
	if g == nil {
		return nil
	}
	c := g.Clone()
	return &c
}

func cloneList(list []model.Guess) []model.Guess {
	out := make([]model.Guess, len(list))
	for i, g := range list {
		out[i] = g.Clone()
	}
	return out
}
