// Package resolution decides the outcome of a guess from its start and end price.
package resolution

import (
	"errors"

	"github.com/shopspring/decimal"

	"github.com/okian/btcguess/internal/domain/model"
)

// Outcome of a resolved guess.
type Outcome string

// Outcomes.
const (
	Win  Outcome = "win"
	Loss Outcome = "loss"
	Tie  Outcome = "tie"
)

// Score returns the points awarded for the outcome.
func (o Outcome) Score() int {
	switch o {
	case Win:
		return 1
	case Loss:
		return -1
	default:
		return 0
	}
}

// ErrInvalidDirection is returned for directions other than UP and DOWN.
var ErrInvalidDirection = errors.New("invalid direction")

// TieThreshold is the smallest absolute price change that counts as a move.
var TieThreshold = decimal.RequireFromString("0.01") //nolint:gochecknoglobals // constant decimal

// Decide compares both prices using their shortest decimal representation, so
// 50000.01 against 50000 is a move of exactly 0.01.
func Decide(direction model.Direction, startPrice, resolvedPrice float64) (Outcome, error) {
	if !direction.Valid() {
		return "", ErrInvalidDirection
	}

	change := decimal.NewFromFloat(resolvedPrice).Sub(decimal.NewFromFloat(startPrice))
	switch {
	case change.Abs().LessThan(TieThreshold):
		return Tie, nil
	case direction == model.Up && change.IsPositive(), direction == model.Down && change.IsNegative():
		return Win, nil
	default:
		return Loss, nil
	}
}
