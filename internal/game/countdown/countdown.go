// Package countdown runs the wall-clock countdown of a pending guess and
// reports when it reaches zero.
package countdown

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/okian/btcguess/pkg/logger"
	"github.com/okian/btcguess/pkg/metrics"
)

// State of a Timer.
type State string

// Timer states. A timer goes IDLE -> RUNNING -> EXPIRED and back to IDLE when
// stopped.
const (
	Idle    State = "IDLE"
	Running State = "RUNNING"
	Expired State = "EXPIRED"
)

const (
	defaultDuration = 60 * time.Second
	defaultInterval = 100 * time.Millisecond
	defaultRetry    = time.Second
)

// Tick is published on every poll of a running timer.
type Tick struct {
	GuessID   string        `json:"guess_id"`
	Remaining time.Duration `json:"-"`
	Seconds   int           `json:"seconds"`
	State     State         `json:"state"`
}

// MarshalJSON reports Remaining in milliseconds.
func (t Tick) MarshalJSON() ([]byte, error) {
	type alias Tick
	return json.Marshal(struct {
		alias
		RemainingMS int64 `json:"remaining_ms"`
	}{alias: alias(t), RemainingMS: t.Remaining.Milliseconds()})
}

// ExpireFunc is called on the timer goroutine when the countdown reaches zero
// and again every retry interval while it stays expired. It must not block
// and must not call Stop.
type ExpireFunc func(ctx context.Context, guessID string)

// DisplaySeconds rounds remaining up to whole seconds, never below zero.
func DisplaySeconds(remaining time.Duration) int {
	if remaining <= 0 {
		return 0
	}
	return int((remaining + time.Second - 1) / time.Second)
}

// Timer counts down from a reference instant. One timer tracks at most one
// guess; starting it again replaces the previous countdown.
type Timer struct {
	duration time.Duration
	interval time.Duration
	retry    time.Duration
	now      func() time.Time
	onTick   func(Tick)
	logger   logger.Logger

	mu        sync.Mutex
	state     State
	guessID   string
	reference time.Time
	cancel    context.CancelFunc
	done      chan struct{}
}

// New creates an idle timer.
func New(opts ...Option) *Timer {
	t := &Timer{
		duration: defaultDuration,
		interval: defaultInterval,
		retry:    defaultRetry,
		now:      time.Now,
		onTick:   func(Tick) {},
		logger:   logger.Get().Named("countdown"),
		state:    Idle,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Start begins counting down guessID from reference. A reference in the past
// shortens the countdown, so an already elapsed one expires on the first poll.
func (t *Timer) Start(ctx context.Context, guessID string, reference time.Time, onExpire ExpireFunc) {
	t.Stop()

	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})

	t.mu.Lock()
	t.state = Running
	t.guessID = guessID
	t.reference = reference
	t.cancel = cancel
	t.done = done
	t.mu.Unlock()

	metrics.CountdownStarted()
	go t.loop(ctx, guessID, reference, onExpire, done)
}

func (t *Timer) loop(ctx context.Context, guessID string, reference time.Time, onExpire ExpireFunc, done chan struct{}) {
	defer close(done)
	defer metrics.CountdownStopped()

	tk := time.NewTicker(t.interval)
	defer tk.Stop()

	var lastFired time.Time
	for {
		now := t.now()
		remaining := t.duration - now.Sub(reference)
		state := Running
		if remaining <= 0 {
			state = Expired
			t.setState(guessID, Expired)
		}

		t.onTick(Tick{
			GuessID:   guessID,
			Remaining: max(remaining, 0),
			Seconds:   DisplaySeconds(remaining),
			State:     state,
		})

		if state == Expired && (lastFired.IsZero() || now.Sub(lastFired) >= t.retry) {
			lastFired = now
			t.logger.Debug(ctx, "countdown expired", logger.String("guess_id", guessID))
			onExpire(ctx, guessID)
		}

		select {
		case <-ctx.Done():
			return
		case <-tk.C:
		}
	}
}

func (t *Timer) setState(guessID string, s State) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.guessID == guessID && t.state != Idle {
		t.state = s
	}
}

// Stop ends the countdown and waits for its goroutine to exit.
func (t *Timer) Stop() {
	t.mu.Lock()
	cancel, done := t.cancel, t.done
	t.cancel, t.done = nil, nil
	t.state = Idle
	t.guessID = ""
	t.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// StopFor stops the timer only while it tracks guessID.
func (t *Timer) StopFor(guessID string) bool {
	t.mu.Lock()
	match := t.guessID == guessID && t.cancel != nil
	t.mu.Unlock()
	if !match {
		return false
	}
	t.Stop()
	return true
}

// State returns the current state.
func (t *Timer) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// Current returns the tick for this instant. An idle timer reports zero.
func (t *Timer) Current() Tick {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state == Idle {
		return Tick{State: Idle}
	}
	remaining := t.duration - t.now().Sub(t.reference)
	return Tick{
		GuessID:   t.guessID,
		Remaining: max(remaining, 0),
		Seconds:   DisplaySeconds(remaining),
		State:     t.state,
	}
}
