// Package types contains the request and response shapes of the HTTP API,
// shared by the server and the playtest client.
package types

import (
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/okian/btcguess/internal/domain/model"
)

// SignUpRequest is the body of POST /auth/sign-up.
type SignUpRequest struct {
	Username   string            `json:"username"`
	Password   string            `json:"password"`
	Attributes map[string]string `json:"attributes,omitempty"`
}

// Validate checks required fields.
func (r SignUpRequest) Validate() error {
	switch {
	case strings.TrimSpace(r.Username) == "":
		return errors.New("missing username")
	case r.Password == "":
		return errors.New("missing password")
	}
	return nil
}

// SignInRequest is the body of POST /auth/sign-in.
type SignInRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Validate checks required fields.
func (r SignInRequest) Validate() error {
	if strings.TrimSpace(r.Username) == "" || r.Password == "" {
		return errors.New("missing username or password")
	}
	return nil
}

// ConfirmRequest is the body of POST /auth/confirm.
type ConfirmRequest struct {
	Username string `json:"username"`
	Code     string `json:"code"`
}

// Validate checks required fields.
func (r ConfirmRequest) Validate() error {
	if strings.TrimSpace(r.Username) == "" || strings.TrimSpace(r.Code) == "" {
		return errors.New("missing username or code")
	}
	return nil
}

// ResendRequest is the body of POST /auth/resend.
type ResendRequest struct {
	Username string `json:"username"`
}

// TokenResponse is returned by a successful sign-in.
type TokenResponse struct {
	AccessToken string     `json:"access_token"`
	TokenType   string     `json:"token_type"`
	ExpiresAt   time.Time  `json:"expires_at"`
	User        model.User `json:"user"`
}

// GuessRequest is the body of POST /guesses.
type GuessRequest struct {
	Direction string `json:"direction"`
}

// Validate checks the direction.
func (r GuessRequest) Validate() error {
	if _, ok := model.ParseDirection(r.Direction); !ok {
		return errors.New("direction must be UP or DOWN")
	}
	return nil
}

// Countdown is the countdown state of the current guess.
type Countdown struct {
	GuessID     string `json:"guess_id,omitempty"`
	RemainingMS int64  `json:"remaining_ms"`
	Seconds     int    `json:"seconds"`
	State       string `json:"state"`
}

// CurrentGuessResponse is returned by GET /guesses/current.
type CurrentGuessResponse struct {
	Guess     *model.Guess `json:"guess"`
	Countdown Countdown    `json:"countdown"`
}

// ScoreResponse is returned by GET /score.
type ScoreResponse struct {
	Score    int `json:"score"`
	Resolved int `json:"resolved"`
	Wins     int `json:"wins"`
	Losses   int `json:"losses"`
	Ties     int `json:"ties"`
	Pending  int `json:"pending"`
}

// Stream message types.
const (
	StreamState = "state"
	StreamTick  = "tick"
)

// StreamMessage is one websocket frame.
type StreamMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// ErrorResponse is the body of every error reply.
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
