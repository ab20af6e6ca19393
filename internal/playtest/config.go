// Package playtest drives a running btcguess server the way a player would:
// it signs in, places guesses, waits for them to resolve and checks that the
// reported score matches the outcomes it saw.
package playtest

import (
	"time"

	"github.com/okian/btcguess/internal/domain/model"
)

// Strategies for choosing a direction.
const (
	StrategyUp        = "up"
	StrategyDown      = "down"
	StrategyAlternate = "alternate"
	StrategyRandom    = "random"
)

// Config holds configuration for a playtest run.
type Config struct {
	BaseURL  string        // Base URL of the service
	Username string        // Player email
	Password string        // Player password
	SignUp   bool          // Register the player first
	Code     string        // Confirmation code for a fresh sign-up
	Rounds   int           // Number of guesses to play
	Strategy string        // up, down, alternate or random
	Timeout  time.Duration // HTTP request timeout
	MaxWait  time.Duration // Upper bound on waiting for one resolution
	LogFile  string        // Optional log file
	Verbose  bool          // Log every stream frame
}

// Round is the outcome of one guess.
type Round struct {
	Guess    model.Guess
	Waited   time.Duration
	Resolved bool
}

// Stats holds run statistics.
type Stats struct {
	Rounds       int
	Wins         int
	Losses       int
	Ties         int
	Unresolved   int
	StartScore   int
	EndScore     int
	TotalWaiting time.Duration
	StartTime    time.Time
	EndTime      time.Time
	Duration     time.Duration
}

func (s *Stats) record(r Round) {
	s.Rounds++
	s.TotalWaiting += r.Waited
	if !r.Resolved || r.Guess.Score == nil {
		s.Unresolved++
		return
	}
	switch {
	case *r.Guess.Score > 0:
		s.Wins++
	case *r.Guess.Score < 0:
		s.Losses++
	default:
		s.Ties++
	}
}

// Net returns the score change implied by the recorded rounds.
func (s *Stats) Net() int {
	return s.Wins - s.Losses
}
