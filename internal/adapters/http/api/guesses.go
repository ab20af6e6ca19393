package api

import (
	"net/http"

	"github.com/okian/btcguess/internal/domain/model"
	"github.com/okian/btcguess/internal/domain/types"
	"github.com/okian/btcguess/internal/game"
	"github.com/okian/btcguess/internal/game/countdown"
)

// handlePrice handles GET /price.
func (s *Server) handlePrice(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.game.Price())
}

// handleListGuesses handles GET /guesses.
func (s *Server) handleListGuesses(w http.ResponseWriter, r *http.Request) {
	const op = "api.list_guesses"
	u, _ := UserFromContext(r.Context())
	list, err := s.game.Guesses(r.Context(), u.ID)
	if err != nil {
		s.respondError(w, r, op, err, game.MsgFetchFailed)
		return
	}
	if list == nil {
		list = []model.Guess{}
	}
	writeJSON(w, http.StatusOK, list)
}

// handleCreateGuess handles POST /guesses.
func (s *Server) handleCreateGuess(w http.ResponseWriter, r *http.Request) {
	const op = "api.create_guess"
	var req types.GuessRequest
	if err := decodeJSON(r, &req); err != nil {
		s.respondError(w, r, op, WrapKind(op, ErrBadRequest, err), "")
		return
	}
	if err := req.Validate(); err != nil {
		s.respondError(w, r, op, WrapKind(op, ErrBadRequest, err), "")
		return
	}
	u, _ := UserFromContext(r.Context())
	g, err := s.game.PlaceGuess(r.Context(), u.ID, req.Direction)
	if err != nil {
		s.respondError(w, r, op, err, game.MsgCreateFailed)
		return
	}
	writeJSON(w, http.StatusCreated, g)
}

// handleCurrentGuess handles GET /guesses/current.
func (s *Server) handleCurrentGuess(w http.ResponseWriter, r *http.Request) {
	const op = "api.current_guess"
	u, _ := UserFromContext(r.Context())
	g, tick, err := s.game.Current(r.Context(), u.ID)
	if err != nil {
		s.respondError(w, r, op, err, game.MsgFetchFailed)
		return
	}
	writeJSON(w, http.StatusOK, types.CurrentGuessResponse{Guess: g, Countdown: countdownView(tick)})
}

// handleResolveGuess handles POST /guesses/{id}/resolve.
func (s *Server) handleResolveGuess(w http.ResponseWriter, r *http.Request) {
	const op = "api.resolve_guess"
	id := r.PathValue("id")
	if id == "" {
		s.respondError(w, r, op, NewKind(op, ErrBadRequest), "")
		return
	}
	u, _ := UserFromContext(r.Context())
	g, err := s.game.Resolve(r.Context(), u.ID, id)
	if err != nil {
		s.respondError(w, r, op, err, game.MsgUpdateFailed)
		return
	}
	writeJSON(w, http.StatusOK, g)
}

// handleScore handles GET /score.
func (s *Server) handleScore(w http.ResponseWriter, r *http.Request) {
	const op = "api.score"
	u, _ := UserFromContext(r.Context())
	sum, err := s.game.Score(r.Context(), u.ID)
	if err != nil {
		s.respondError(w, r, op, err, game.MsgFetchFailed)
		return
	}
	writeJSON(w, http.StatusOK, types.ScoreResponse{
		Score:    sum.Total,
		Resolved: sum.Wins + sum.Losses + sum.Ties,
		Wins:     sum.Wins,
		Losses:   sum.Losses,
		Ties:     sum.Ties,
		Pending:  sum.Pending,
	})
}

func countdownView(t countdown.Tick) types.Countdown {
	return types.Countdown{
		GuessID:     t.GuessID,
		RemainingMS: t.Remaining.Milliseconds(),
		Seconds:     t.Seconds,
		State:       string(t.State),
	}
}
