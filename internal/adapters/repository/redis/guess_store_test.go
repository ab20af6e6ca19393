package redis_test

import (
	"context"
	"os"
	"testing"

	"github.com/google/uuid"

	"github.com/okian/btcguess/internal/adapters/repository"
	"github.com/okian/btcguess/internal/adapters/repository/redis"
	"github.com/okian/btcguess/internal/adapters/repository/repotest"
)

// Set BTCGUESS_TEST_REDIS_ADDR to run against a real server.
func TestGuessStoreContract(t *testing.T) {
	addr := os.Getenv("BTCGUESS_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("BTCGUESS_TEST_REDIS_ADDR not set")
	}

	repotest.Run(t, func(t *testing.T) (repository.Store, func()) {
		store, err := redis.Open(context.Background(), redis.ClientConfig{Addr: addr},
			redis.WithKeyPrefix("btcguess-test:"+uuid.NewString()+":"))
		if err != nil {
			t.Fatalf("open redis: %v", err)
		}
		return store, func() { _ = store.Close() }
	})
}
