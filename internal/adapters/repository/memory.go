package repository

import (
	"context"
	"sync"
	"time"

	"github.com/okian/btcguess/internal/domain/model"
)

// MemoryStore is an in-process Store. Guesses are kept per owner; the
// conditional update is a compare-and-swap under the store mutex.
type MemoryStore struct {
	mu      sync.RWMutex
	byID    map[string]model.Guess
	byOwner map[string][]string

	now    func() time.Time
	nextID func() string
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore(opts ...Option) *MemoryStore {
	s := &MemoryStore{
		byID:    make(map[string]model.Guess),
		byOwner: make(map[string][]string),
		now:     time.Now,
		nextID:  newUUID,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *MemoryStore) Create(ctx context.Context, in model.NewGuess) (model.Guess, error) {
	if err := ctx.Err(); err != nil {
		return model.Guess{}, err
	}
	g := model.Guess{
		ID:         s.nextID(),
		Owner:      in.Owner,
		StartPrice: in.StartPrice,
		Direction:  in.Direction,
		Status:     in.Status,
		CreatedAt:  in.CreatedAt,
		UpdatedAt:  in.CreatedAt,
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if g.Status == model.Pending {
		for _, id := range s.byOwner[g.Owner] {
			if s.byID[id].Status == model.Pending {
				return model.Guess{}, ErrConflict
			}
		}
	}
	s.byID[g.ID] = g
	s.byOwner[g.Owner] = append(s.byOwner[g.Owner], g.ID)
	return g.Clone(), nil
}

func (s *MemoryStore) List(ctx context.Context, owner string) ([]model.Guess, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := s.byOwner[owner]
	out := make([]model.Guess, 0, len(ids))
	for _, id := range ids {
		out = append(out, s.byID[id].Clone())
	}
	return out, nil
}

func (s *MemoryStore) Get(ctx context.Context, owner, id string) (model.Guess, error) {
	if err := ctx.Err(); err != nil {
		return model.Guess{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	g, ok := s.byID[id]
	if !ok || g.Owner != owner {
		return model.Guess{}, ErrNotFound
	}
	return g.Clone(), nil
}

func (s *MemoryStore) Update(ctx context.Context, owner, id string, patch model.Patch, expect model.Status) (model.Guess, error) {
	if err := ctx.Err(); err != nil {
		return model.Guess{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	g, ok := s.byID[id]
	if !ok || g.Owner != owner {
		return model.Guess{}, ErrNotFound
	}
	if expect != "" && g.Status != expect {
		return model.Guess{}, ErrConflict
	}
	if patch.UpdatedAt == nil {
		now := s.now()
		patch.UpdatedAt = &now
	}
	g = g.Apply(patch)
	s.byID[id] = g
	return g.Clone(), nil
}

// Count returns the number of stored guesses across all owners.
func (s *MemoryStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byID)
}

func (s *MemoryStore) Close() error { return nil }
