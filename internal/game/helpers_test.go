package game_test

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/okian/btcguess/internal/adapters/repository"
	"github.com/okian/btcguess/internal/domain/model"
	"github.com/okian/btcguess/pkg/logger"
)

func init() {
	_ = logger.Init()
}

// stubRepo delegates to an in-memory store unless a hook overrides the call.
type stubRepo struct {
	*repository.MemoryStore

	createFn func(ctx context.Context, g model.NewGuess) (model.Guess, error)
	listFn   func(ctx context.Context, owner string) ([]model.Guess, error)
	updateFn func(ctx context.Context, owner, id string, p model.Patch, expect model.Status) (model.Guess, error)

	updates atomic.Int32
}

func newStubRepo() *stubRepo {
	return &stubRepo{MemoryStore: repository.NewMemoryStore()}
}

func (r *stubRepo) Create(ctx context.Context, g model.NewGuess) (model.Guess, error) {
	if r.createFn != nil {
		return r.createFn(ctx, g)
	}
	return r.MemoryStore.Create(ctx, g)
}

func (r *stubRepo) List(ctx context.Context, owner string) ([]model.Guess, error) {
	if r.listFn != nil {
		return r.listFn(ctx, owner)
	}
	return r.MemoryStore.List(ctx, owner)
}

func (r *stubRepo) Update(ctx context.Context, owner, id string, p model.Patch, expect model.Status) (model.Guess, error) {
	r.updates.Add(1)
	if r.updateFn != nil {
		return r.updateFn(ctx, owner, id, p, expect)
	}
	return r.MemoryStore.Update(ctx, owner, id, p, expect)
}

type stubPrice struct {
	mu    sync.Mutex
	price float64
	err   error
	calls int
}

func (s *stubPrice) GetPrice(context.Context) (float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	return s.price, s.err
}

func (s *stubPrice) set(p float64, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.price, s.err = p, err
}

func ptrF(v float64) *float64 { return &v }
func ptrI(v int) *int         { return &v }

func resolved(id string, score int, at time.Time) model.Guess {
	return model.Guess{
		ID: id, Owner: "p1", StartPrice: 100, Direction: model.Up,
		Status: model.Resolved, ResolvedPrice: ptrF(101), Score: ptrI(score),
		CreatedAt: at, UpdatedAt: at,
	}
}
