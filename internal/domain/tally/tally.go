// Package tally aggregates a player's score over their guess history.
package tally

import "github.com/okian/btcguess/internal/domain/model"

// Total sums the score of every RESOLVED guess that carries one. Pending
// guesses contribute nothing.
func Total(guesses []model.Guess) int {
	total := 0
	for _, g := range guesses {
		if g.Status == model.Resolved && g.Score != nil {
			total += *g.Score
		}
	}
	return total
}

// Summary breaks the history down by outcome.
type Summary struct {
	Total   int `json:"total"`
	Wins    int `json:"wins"`
	Losses  int `json:"losses"`
	Ties    int `json:"ties"`
	Pending int `json:"pending"`
}

// Summarize counts outcomes alongside the total.
func Summarize(guesses []model.Guess) Summary {
	var s Summary
	for _, g := range guesses {
		switch {
		case g.Status == model.Pending:
			s.Pending++
		case g.Score == nil:
		case *g.Score > 0:
			s.Wins++
		case *g.Score < 0:
			s.Losses++
		default:
			s.Ties++
		}
	}
	s.Total = Total(guesses)
	return s
}
