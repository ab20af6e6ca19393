// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/okian/btcguess/internal/adapters/identity"
	"github.com/okian/btcguess/internal/adapters/price"
	service "github.com/okian/btcguess/internal/app"
	"github.com/okian/btcguess/internal/domain/model"
	"github.com/okian/btcguess/internal/domain/tally"
	"github.com/okian/btcguess/internal/domain/types"
	"github.com/okian/btcguess/internal/game"
	"github.com/okian/btcguess/internal/game/countdown"
	"github.com/okian/btcguess/pkg/logger"
)

const maxBodyBytes = 1 << 16

// Game is the game service as seen by the handlers.
type Game interface {
	PlaceGuess(ctx context.Context, userID, direction string) (model.Guess, error)
	Resolve(ctx context.Context, userID, guessID string) (model.Guess, error)
	Guesses(ctx context.Context, userID string) ([]model.Guess, error)
	Current(ctx context.Context, userID string) (*model.Guess, countdown.Tick, error)
	Score(ctx context.Context, userID string) (tally.Summary, error)
	Subscribe(ctx context.Context, userID string) (<-chan game.State, <-chan countdown.Tick, func(), error)
	CloseSession(userID string)
	Price() price.Snapshot
}

// Server wires HTTP routes for the game API.
type Server struct {
	game   Game
	auth   identity.Provider
	logger logger.Logger

	healthHandler *HealthHandler
	statsHandler  *StatsHandler
	hub           *Hub
}

// NewServer creates a new API server with all handlers.
func NewServer(g Game, auth identity.Provider, statsProvider StatsProvider) *Server {
	l := logger.Get().Named("api")
	return &Server{
		game:          g,
		auth:          auth,
		logger:        l,
		healthHandler: NewHealthHandler(),
		statsHandler:  NewStatsHandler(statsProvider),
		hub:           NewHub(g, l.Named("ws")),
	}
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(_ context.Context, mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	mux.HandleFunc("GET /stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))

	mux.HandleFunc("POST /auth/sign-up", MetricsMiddleware(s.handleSignUp, "auth_sign_up"))
	mux.HandleFunc("POST /auth/confirm", MetricsMiddleware(s.handleConfirm, "auth_confirm"))
	mux.HandleFunc("POST /auth/resend", MetricsMiddleware(s.handleResend, "auth_resend"))
	mux.HandleFunc("POST /auth/sign-in", MetricsMiddleware(s.handleSignIn, "auth_sign_in"))
	mux.HandleFunc("POST /auth/sign-out", MetricsMiddleware(s.requireAuth(s.handleSignOut), "auth_sign_out"))
	mux.HandleFunc("GET /auth/me", MetricsMiddleware(s.requireAuth(s.handleMe), "auth_me"))

	mux.HandleFunc("GET /price", MetricsMiddleware(s.handlePrice, "price"))
	mux.HandleFunc("GET /guesses", MetricsMiddleware(s.requireAuth(s.handleListGuesses), "guesses"))
	mux.HandleFunc("POST /guesses", MetricsMiddleware(s.requireAuth(s.handleCreateGuess), "guesses"))
	mux.HandleFunc("GET /guesses/current", MetricsMiddleware(s.requireAuth(s.handleCurrentGuess), "guesses_current"))
	mux.HandleFunc("POST /guesses/{id}/resolve", MetricsMiddleware(s.requireAuth(s.handleResolveGuess), "guesses_resolve"))
	mux.HandleFunc("GET /score", MetricsMiddleware(s.requireAuth(s.handleScore), "score"))
	mux.HandleFunc("GET /ws", MetricsMiddleware(s.requireAuth(s.hub.HandleWS), "ws"))
}

// Shutdown disconnects every websocket client.
func (s *Server) Shutdown() {
	s.hub.Close()
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// decodeJSON reads a size-limited JSON body into v.
func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

// classify maps an error to its HTTP status and error code.
func classify(err error) (int, string) {
	switch {
	case errors.Is(err, identity.ErrUserExists), errors.Is(err, identity.ErrAlreadyConfirmed):
		return http.StatusConflict, "conflict"
	case errors.Is(err, identity.ErrWeakPassword), errors.Is(err, identity.ErrInvalidUsername),
		errors.Is(err, identity.ErrInvalidCode):
		return http.StatusBadRequest, "bad_request"
	case errors.Is(err, identity.ErrAuthFailure), errors.Is(err, ErrUnauthorized):
		return http.StatusUnauthorized, "unauthorized"
	case errors.Is(err, ErrBadRequest), errors.Is(err, game.ErrInvalidState), errors.Is(err, game.ErrInvalidPrice):
		return http.StatusBadRequest, "bad_request"
	case errors.Is(err, game.ErrGuessPending):
		return http.StatusConflict, "guess_pending"
	case errors.Is(err, game.ErrResolveInFlight):
		return http.StatusConflict, "resolve_in_flight"
	case errors.Is(err, game.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, game.ErrPriceUnavailable):
		return http.StatusServiceUnavailable, "price_unavailable"
	case errors.Is(err, service.ErrNotStarted):
		return http.StatusServiceUnavailable, "unavailable"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}

// respondError writes err with its mapped status. Game errors carry their
// player-facing message; identity errors their own text.
func (s *Server) respondError(w http.ResponseWriter, r *http.Request, op string, err error, fallback string) {
	status, code := classify(err)
	msg := game.Message(err, fallback)
	if errors.Is(err, identity.ErrAuthFailure) || errors.Is(err, ErrBadRequest) || errors.Is(err, ErrUnauthorized) {
		msg = strings.TrimPrefix(err.Error(), op+": ")
	}
	if status >= http.StatusInternalServerError {
		s.logger.Error(r.Context(), "request failed",
			logger.String("op", op),
			logger.Int("status", status),
			logger.Error(err),
		)
	}
	writeJSON(w, status, types.ErrorResponse{Code: code, Message: msg})
}
