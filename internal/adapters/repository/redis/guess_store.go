package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/okian/btcguess/internal/adapters/repository"
	"github.com/okian/btcguess/internal/domain/model"
)

// createLua stores the guess hash and indexes it under its owner. A PENDING
// guess also claims the owner's pending slot, which fails if already taken.
//
// KEYS: guess hash, owner set, owner pending key
// ARGV: id, pending flag ("1"/"0"), field/value pairs...
const createLua = `
if ARGV[2] == '1' and redis.call('SET', KEYS[3], ARGV[1], 'NX') == false then
    return 0
end
redis.call('HSET', KEYS[1], unpack(ARGV, 3))
redis.call('SADD', KEYS[2], ARGV[1])
return 1
`

// updateLua applies field/value pairs only when the hash exists, belongs to
// owner and, if an expected status is given, still has it. Leaving PENDING
// frees the owner's pending slot.
//
// KEYS: guess hash, owner pending key
// ARGV: owner, expected status or "", field/value pairs...
const updateLua = `
if redis.call('HGET', KEYS[1], 'owner') ~= ARGV[1] then
    return -1
end
if ARGV[2] ~= '' and redis.call('HGET', KEYS[1], 'status') ~= ARGV[2] then
    return 0
end
redis.call('HSET', KEYS[1], unpack(ARGV, 3))
if redis.call('HGET', KEYS[1], 'status') ~= 'PENDING' and redis.call('GET', KEYS[2]) == redis.call('HGET', KEYS[1], 'id') then
    redis.call('DEL', KEYS[2])
end
return 1
`

// GuessStore implements repository.Store using Redis. Each guess is a hash at
// "{prefix}guess:{id}"; "{prefix}owner:{owner}:guesses" indexes an owner's ids.
type GuessStore struct {
	rdb      *redis.Client
	client   *Client
	prefix   string
	createSc *redis.Script
	updateSc *redis.Script
}

// StoreOption configures a GuessStore.
type StoreOption func(*GuessStore)

// WithKeyPrefix namespaces every key (default "btcguess:").
func WithKeyPrefix(prefix string) StoreOption {
	return func(s *GuessStore) {
		s.prefix = prefix
	}
}

// NewGuessStore creates a GuessStore backed by the given Client.
func NewGuessStore(c *Client, opts ...StoreOption) *GuessStore {
	s := &GuessStore{
		rdb:      c.Underlying(),
		prefix:   "btcguess:",
		createSc: redis.NewScript(createLua),
		updateSc: redis.NewScript(updateLua),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Open connects and returns a store that owns its client.
func Open(ctx context.Context, cfg ClientConfig, opts ...StoreOption) (*GuessStore, error) {
	c, err := New(ctx, cfg)
	if err != nil {
		return nil, err
	}
	s := NewGuessStore(c, opts...)
	s.client = c
	return s, nil
}

func (s *GuessStore) guessKey(id string) string   { return s.prefix + "guess:" + id }
func (s *GuessStore) ownerKey(owner string) string { return s.prefix + "owner:" + owner + ":guesses" }
func (s *GuessStore) pendingKey(owner string) string {
	return s.prefix + "owner:" + owner + ":pending"
}

func (s *GuessStore) Create(ctx context.Context, in model.NewGuess) (model.Guess, error) {
	g := model.Guess{
		ID:         uuid.NewString(),
		Owner:      in.Owner,
		StartPrice: in.StartPrice,
		Direction:  in.Direction,
		Status:     in.Status,
		CreatedAt:  in.CreatedAt,
		UpdatedAt:  in.CreatedAt,
	}
	pending := "0"
	if g.Status == model.Pending {
		pending = "1"
	}

	args := append([]any{g.ID, pending}, encodeGuess(g)...)
	res, err := s.createSc.Run(ctx, s.rdb,
		[]string{s.guessKey(g.ID), s.ownerKey(g.Owner), s.pendingKey(g.Owner)}, args...,
	).Int()
	if err != nil {
		return model.Guess{}, fmt.Errorf("redis: create guess for %s: %w", in.Owner, err)
	}
	if res == 0 {
		return model.Guess{}, fmt.Errorf("redis: create guess for %s: %w", in.Owner, repository.ErrConflict)
	}
	return g, nil
}

func (s *GuessStore) List(ctx context.Context, owner string) ([]model.Guess, error) {
	ids, err := s.rdb.SMembers(ctx, s.ownerKey(owner)).Result()
	if err != nil {
		return nil, fmt.Errorf("redis: list guesses for %s: %w", owner, err)
	}

	pipe := s.rdb.Pipeline()
	cmds := make([]*redis.MapStringStringCmd, len(ids))
	for i, id := range ids {
		cmds[i] = pipe.HGetAll(ctx, s.guessKey(id))
	}
	if len(ids) > 0 {
		if _, err := pipe.Exec(ctx); err != nil {
			return nil, fmt.Errorf("redis: load guesses for %s: %w", owner, err)
		}
	}

	out := make([]model.Guess, 0, len(ids))
	for _, cmd := range cmds {
		vals := cmd.Val()
		if len(vals) == 0 {
			continue
		}
		g, err := decodeGuess(vals)
		if err != nil {
			return nil, fmt.Errorf("redis: decode guess for %s: %w", owner, err)
		}
		out = append(out, g)
	}
	return out, nil
}

func (s *GuessStore) Get(ctx context.Context, owner, id string) (model.Guess, error) {
	vals, err := s.rdb.HGetAll(ctx, s.guessKey(id)).Result()
	if err != nil {
		return model.Guess{}, fmt.Errorf("redis: get guess %s: %w", id, err)
	}
	if len(vals) == 0 || vals["owner"] != owner {
		return model.Guess{}, repository.ErrNotFound
	}
	g, err := decodeGuess(vals)
	if err != nil {
		return model.Guess{}, fmt.Errorf("redis: decode guess %s: %w", id, err)
	}
	return g, nil
}

func (s *GuessStore) Update(ctx context.Context, owner, id string, patch model.Patch, expect model.Status) (model.Guess, error) {
	if patch.UpdatedAt == nil {
		now := time.Now()
		patch.UpdatedAt = &now
	}

	args := append([]any{owner, string(expect)}, encodePatch(patch)...)
	res, err := s.updateSc.Run(ctx, s.rdb,
		[]string{s.guessKey(id), s.pendingKey(owner)}, args...,
	).Int()
	if err != nil {
		return model.Guess{}, fmt.Errorf("redis: update guess %s: %w", id, err)
	}
	switch res {
	case -1:
		return model.Guess{}, repository.ErrNotFound
	case 0:
		return model.Guess{}, fmt.Errorf("redis: update guess %s: %w", id, repository.ErrConflict)
	}
	return s.Get(ctx, owner, id)
}

// Close closes the client when the store opened it.
func (s *GuessStore) Close() error {
	if s.client != nil {
		return s.client.Close()
	}
	return nil
}

func formatFloat(v float64) string { return strconv.FormatFloat(v, 'f', -1, 64) }

func formatTime(t time.Time) string { return t.UTC().Format(time.RFC3339Nano) }

func encodeGuess(g model.Guess) []any {
	return []any{
		"id", g.ID,
		"owner", g.Owner,
		"start_price", formatFloat(g.StartPrice),
		"direction", string(g.Direction),
		"status", string(g.Status),
		"created_at", formatTime(g.CreatedAt),
		"updated_at", formatTime(g.UpdatedAt),
	}
}

func encodePatch(p model.Patch) []any {
	var out []any
	if p.Status != nil {
		out = append(out, "status", string(*p.Status))
	}
	if p.ResolvedPrice != nil {
		out = append(out, "resolved_price", formatFloat(*p.ResolvedPrice))
	}
	if p.Score != nil {
		out = append(out, "score", strconv.Itoa(*p.Score))
	}
	if p.UpdatedAt != nil {
		out = append(out, "updated_at", formatTime(*p.UpdatedAt))
	}
	return out
}

var errMissingField = errors.New("missing field")

func decodeGuess(vals map[string]string) (model.Guess, error) {
	g := model.Guess{
		ID:        vals["id"],
		Owner:     vals["owner"],
		Direction: model.Direction(vals["direction"]),
		Status:    model.Status(vals["status"]),
	}
	if g.ID == "" {
		return model.Guess{}, fmt.Errorf("%w: id", errMissingField)
	}

	var err error
	if g.StartPrice, err = strconv.ParseFloat(vals["start_price"], 64); err != nil {
		return model.Guess{}, fmt.Errorf("start_price: %w", err)
	}
	if g.CreatedAt, err = time.Parse(time.RFC3339Nano, vals["created_at"]); err != nil {
		return model.Guess{}, fmt.Errorf("created_at: %w", err)
	}
	if g.UpdatedAt, err = time.Parse(time.RFC3339Nano, vals["updated_at"]); err != nil {
		return model.Guess{}, fmt.Errorf("updated_at: %w", err)
	}
	if v, ok := vals["resolved_price"]; ok && v != "" {
		p, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return model.Guess{}, fmt.Errorf("resolved_price: %w", err)
		}
		g.ResolvedPrice = &p
	}
	if v, ok := vals["score"]; ok && v != "" {
		sc, err := strconv.Atoi(v)
		if err != nil {
			return model.Guess{}, fmt.Errorf("score: %w", err)
		}
		g.Score = &sc
	}
	return g, nil
}

var _ repository.Store = (*GuessStore)(nil)
