package model

import "time"

// ResolveJob asks a worker to resolve a player's expired guess.
type ResolveJob struct {
	UserID     string
	GuessID    string
	EnqueuedAt time.Time
}
