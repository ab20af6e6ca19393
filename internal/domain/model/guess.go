// Package model contains domain models passed between layers.
package model

import (
	"strings"
	"time"
)

// Direction is the predicted price movement.
type Direction string

// Directions a player may pick.
const (
	Up   Direction = "UP"
	Down Direction = "DOWN"
)

// Valid reports whether d is UP or DOWN.
func (d Direction) Valid() bool {
	return d == Up || d == Down
}

// ParseDirection accepts "up"/"down" in any case.
func ParseDirection(s string) (Direction, bool) {
	d := Direction(strings.ToUpper(strings.TrimSpace(s)))
	return d, d.Valid()
}

// Status is the lifecycle state of a guess.
type Status string

// Statuses. A guess only ever moves from PENDING to RESOLVED.
const (
	Pending  Status = "PENDING"
	Resolved Status = "RESOLVED"
)

// Guess is one up/down prediction locked to a start price.
type Guess struct {
	ID            string    `json:"id"`
	Owner         string    `json:"owner"`
	StartPrice    float64   `json:"start_price"`
	Direction     Direction `json:"direction"`
	Status        Status    `json:"status"`
	ResolvedPrice *float64  `json:"resolved_price"`
	Score         *int      `json:"score"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// IsPending reports whether the guess still awaits resolution.
func (g Guess) IsPending() bool { return g.Status == Pending }

// Clone returns a copy that shares no pointers with g.
func (g Guess) Clone() Guess {
	if g.ResolvedPrice != nil {
		p := *g.ResolvedPrice
		g.ResolvedPrice = &p
	}
	if g.Score != nil {
		s := *g.Score
		g.Score = &s
	}
	return g
}

// Apply returns a copy of g with the non-nil fields of p merged in.
func (g Guess) Apply(p Patch) Guess {
	out := g.Clone()
	if p.Status != nil {
		out.Status = *p.Status
	}
	if p.ResolvedPrice != nil {
		v := *p.ResolvedPrice
		out.ResolvedPrice = &v
	}
	if p.Score != nil {
		v := *p.Score
		out.Score = &v
	}
	if p.UpdatedAt != nil {
		out.UpdatedAt = *p.UpdatedAt
	}
	return out
}

// Patch is a partial update of a guess. Nil fields are left untouched.
type Patch struct {
	Status        *Status
	ResolvedPrice *float64
	Score         *int
	UpdatedAt     *time.Time
}

// Resolution builds the patch that settles a guess.
func Resolution(resolvedPrice float64, score int, at time.Time) Patch {
	st := Resolved
	return Patch{Status: &st, ResolvedPrice: &resolvedPrice, Score: &score, UpdatedAt: &at}
}

// NewGuess carries the fields a repository needs to create a guess.
type NewGuess struct {
	Owner      string
	StartPrice float64
	Direction  Direction
	Status     Status
	CreatedAt  time.Time
}

// User is an authenticated player.
type User struct {
	ID        string `json:"user_id"`
	Username  string `json:"username"`
	Confirmed bool   `json:"confirmed"`
}
