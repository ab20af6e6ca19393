package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/okian/btcguess/internal/adapters/repository"
	"github.com/okian/btcguess/internal/domain/model"
)

const uniqueViolation = "23505"

const guessColumns = `id, owner, start_price, direction, status, resolved_price, score, created_at, updated_at`

// GuessStore implements repository.Store using PostgreSQL.
type GuessStore struct {
	pool   *pgxpool.Pool
	client *Client
}

// NewGuessStore creates a GuessStore backed by the given connection pool.
func NewGuessStore(pool *pgxpool.Pool) *GuessStore {
	return &GuessStore{pool: pool}
}

// Open connects, migrates and returns a store that owns its pool.
func Open(ctx context.Context, cfg ClientConfig) (*GuessStore, error) {
	c, err := New(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if err := c.RunMigrations(ctx); err != nil {
		c.Close()
		return nil, err
	}
	return &GuessStore{pool: c.Pool(), client: c}, nil
}

// Create inserts a new guess. The id is generated here so the row and the
// returned value agree without a second round trip.
func (s *GuessStore) Create(ctx context.Context, in model.NewGuess) (model.Guess, error) {
	const query = `
		INSERT INTO guesses (id, owner, start_price, direction, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $6)
		RETURNING ` + guessColumns

	row := s.pool.QueryRow(ctx, query,
		uuid.New(), in.Owner, in.StartPrice, string(in.Direction), string(in.Status), in.CreatedAt,
	)
	g, err := scanGuess(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return model.Guess{}, fmt.Errorf("postgres: create guess for %s: %w", in.Owner, repository.ErrConflict)
		}
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Guess{}, repository.ErrNoData
		}
		return model.Guess{}, fmt.Errorf("postgres: create guess for %s: %w", in.Owner, err)
	}
	return g, nil
}

// List returns all guesses owned by owner, newest first.
func (s *GuessStore) List(ctx context.Context, owner string) ([]model.Guess, error) {
	const query = `SELECT ` + guessColumns + ` FROM guesses WHERE owner = $1 ORDER BY created_at DESC`

	rows, err := s.pool.Query(ctx, query, owner)
	if err != nil {
		return nil, fmt.Errorf("postgres: list guesses for %s: %w", owner, err)
	}
	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (model.Guess, error) {
		return scanGuess(row)
	})
	if err != nil {
		return nil, fmt.Errorf("postgres: scan guesses for %s: %w", owner, err)
	}
	return out, nil
}

// Get returns one guess.
func (s *GuessStore) Get(ctx context.Context, owner, id string) (model.Guess, error) {
	gid, err := uuid.Parse(id)
	if err != nil {
		return model.Guess{}, repository.ErrNotFound
	}

	const query = `SELECT ` + guessColumns + ` FROM guesses WHERE id = $1 AND owner = $2`
	g, err := scanGuess(s.pool.QueryRow(ctx, query, gid, owner))
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Guess{}, repository.ErrNotFound
	}
	if err != nil {
		return model.Guess{}, fmt.Errorf("postgres: get guess %s: %w", id, err)
	}
	return g, nil
}

// Update applies patch, optionally only while the row is in status expect.
func (s *GuessStore) Update(ctx context.Context, owner, id string, patch model.Patch, expect model.Status) (model.Guess, error) {
	gid, err := uuid.Parse(id)
	if err != nil {
		return model.Guess{}, repository.ErrNotFound
	}

	const query = `
		UPDATE guesses SET
			status = COALESCE($3, status),
			resolved_price = COALESCE($4, resolved_price),
			score = COALESCE($5, score),
			updated_at = COALESCE($6, NOW())
		WHERE id = $1 AND owner = $2 AND ($7 = '' OR status = $7)
		RETURNING ` + guessColumns

	var status *string
	if patch.Status != nil {
		v := string(*patch.Status)
		status = &v
	}
	g, err := scanGuess(s.pool.QueryRow(ctx, query,
		gid, owner, status, patch.ResolvedPrice, patch.Score, patch.UpdatedAt, string(expect),
	))
	if errors.Is(err, pgx.ErrNoRows) {
		// Either the row is missing or the status guard failed.
		if _, getErr := s.Get(ctx, owner, id); getErr != nil {
			return model.Guess{}, getErr
		}
		return model.Guess{}, fmt.Errorf("postgres: update guess %s: %w", id, repository.ErrConflict)
	}
	if err != nil {
		return model.Guess{}, fmt.Errorf("postgres: update guess %s: %w", id, err)
	}
	return g, nil
}

// Close releases the pool when the store opened it.
func (s *GuessStore) Close() error {
	if s.client != nil {
		s.client.Close()
	}
	return nil
}

func scanGuess(row pgx.Row) (model.Guess, error) {
	var (
		g         model.Guess
		id        uuid.UUID
		direction string
		status    string
	)
	if err := row.Scan(
		&id, &g.Owner, &g.StartPrice, &direction, &status,
		&g.ResolvedPrice, &g.Score, &g.CreatedAt, &g.UpdatedAt,
	); err != nil {
		return model.Guess{}, err
	}
	g.ID = id.String()
	g.Direction = model.Direction(direction)
	g.Status = model.Status(status)
	return g, nil
}

var _ repository.Store = (*GuessStore)(nil)
