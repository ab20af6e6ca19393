package service

import (
	"sync"

	"github.com/okian/btcguess/internal/game"
	"github.com/okian/btcguess/internal/game/countdown"
)

// Session is the game of one player: state, engine and countdown.
type Session struct {
	UserID string

	store  *game.Store
	engine *game.Engine
	timer  *countdown.Timer
	ticks  *game.Broadcaster[countdown.Tick]

	// mu serializes guess placement.
	mu sync.Mutex
}

// Store returns the player's state container.
func (s *Session) Store() *game.Store { return s.store }

// Countdown returns the countdown tick for this instant.
func (s *Session) Countdown() countdown.Tick { return s.timer.Current() }

// SubscribeTicks streams countdown ticks until cancel is called or the
// session closes.
func (s *Session) SubscribeTicks() (<-chan countdown.Tick, func()) {
	return s.ticks.Subscribe()
}

func (s *Session) close() {
	s.timer.Stop()
	s.engine.Close()
	s.ticks.Close()
	s.store.Close()
}
