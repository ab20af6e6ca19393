// Package repository defines the guess store contract and its in-memory
// implementation. Postgres and Redis implementations live in subpackages.
package repository

import (
	"context"

	"github.com/okian/btcguess/internal/domain/model"
)

// Store provides create, list and update access to a player's guesses.
//
// Implementations return ErrNoData when the backend answers without a record,
// ErrNotFound for unknown ids (or ids owned by someone else) and ErrConflict
// when a conditional update finds the guess in another status.
type Store interface {
	// Create persists a new guess and returns it with its id assigned. A
	// PENDING guess is refused with ErrConflict while the owner already has one.
	Create(ctx context.Context, g model.NewGuess) (model.Guess, error)

	// List returns every guess owned by owner in no particular order.
	List(ctx context.Context, owner string) ([]model.Guess, error)

	// Get returns one guess.
	Get(ctx context.Context, owner, id string) (model.Guess, error)

	// Update merges patch into the stored guess. When expect is non-empty the
	// update only applies if the stored status equals expect.
	Update(ctx context.Context, owner, id string, patch model.Patch, expect model.Status) (model.Guess, error)

	// Close releases backend resources.
	Close() error
}
