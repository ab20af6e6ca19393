package postgres_test

import (
	"context"
	"os"
	"testing"

	"github.com/okian/btcguess/internal/adapters/repository"
	"github.com/okian/btcguess/internal/adapters/repository/postgres"
	"github.com/okian/btcguess/internal/adapters/repository/repotest"
)

// Set BTCGUESS_TEST_POSTGRES_DSN to run against a real database.
func TestGuessStoreContract(t *testing.T) {
	dsn := os.Getenv("BTCGUESS_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("BTCGUESS_TEST_POSTGRES_DSN not set")
	}

	repotest.Run(t, func(t *testing.T) (repository.Store, func()) {
		store, err := postgres.Open(context.Background(), postgres.ClientConfig{DSN: dsn, MaxConns: 4})
		if err != nil {
			t.Fatalf("open postgres: %v", err)
		}
		return store, func() { _ = store.Close() }
	})
}
