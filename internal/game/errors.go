package game

import (
	"errors"

	"github.com/okian/btcguess/internal/adapters/identity"
	"github.com/okian/btcguess/internal/adapters/price"
	"github.com/okian/btcguess/internal/adapters/repository"
)

// Sentinel errors of the guess lifecycle. Adapter sentinels are re-exported so
// callers only need this package for errors.Is checks.
var (
	ErrPriceUnavailable = price.ErrUnavailable
	ErrAuthFailure      = identity.ErrAuthFailure
	ErrNotFound         = repository.ErrNotFound

	ErrCreationFailed  = errors.New("failed to create guess")
	ErrUpdateFailed    = errors.New("failed to update guess")
	ErrFetchFailed     = errors.New("failed to fetch guesses")
	ErrInvalidState    = errors.New("invalid guess state")
	ErrInvalidPrice    = errors.New("invalid start price")
	ErrGuessPending    = errors.New("a guess is already pending")
	ErrResolveInFlight = errors.New("guess resolution already in progress")
)

// Fallback texts used with Message.
const (
	MsgCreateFailed = "Failed to create guess"
	MsgFetchFailed  = "Failed to fetch guesses"
	MsgUpdateFailed = "Failed to update guess"
	MsgPriceFailed  = "Failed to fetch Bitcoin price"
)

// Message returns the text shown to a player for err. Errors without a known
// player-facing text fall back to fallback.
func Message(err error, fallback string) string {
	var unavailable *price.UnavailableError
	switch {
	case err == nil:
		return ""
	case errors.As(err, &unavailable):
		return unavailable.Error()
	case errors.Is(err, ErrPriceUnavailable):
		return MsgPriceFailed
	case errors.Is(err, repository.ErrNoData):
		return fallback + ": No data returned"
	case errors.Is(err, ErrGuessPending):
		return "A guess is already pending"
	case errors.Is(err, ErrResolveInFlight):
		return "Guess is already being resolved"
	case errors.Is(err, ErrInvalidPrice):
		return "Invalid start price"
	case errors.Is(err, ErrInvalidState):
		return "Invalid guess"
	case errors.Is(err, ErrNotFound):
		return "Guess not found"
	case errors.Is(err, ErrAuthFailure):
		return "Not authenticated"
	}
	return fallback
}
