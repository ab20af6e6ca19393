package api

import (
	"context"
	"net/http"
	"strings"

	"github.com/gorilla/websocket"

	"github.com/okian/btcguess/internal/domain/model"
	"github.com/okian/btcguess/internal/domain/types"
)

type ctxKey int

const (
	userKey ctxKey = iota + 1
	tokenKey
)

// UserFromContext returns the authenticated user of the request.
func UserFromContext(ctx context.Context) (model.User, bool) {
	u, ok := ctx.Value(userKey).(model.User)
	return u, ok
}

func tokenFromContext(ctx context.Context) string {
	t, _ := ctx.Value(tokenKey).(string)
	return t
}

// requireAuth resolves the bearer token to a user. Websocket upgrades may pass
// the token as the token query parameter since browsers cannot set headers.
func (s *Server) requireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "api.auth"
		tok := bearerToken(r.Header.Get("Authorization"))
		if tok == "" && websocket.IsWebSocketUpgrade(r) {
			tok = r.URL.Query().Get("token")
		}
		if tok == "" {
			s.respondError(w, r, op, NewKind(op, ErrUnauthorized), "")
			return
		}
		u, err := s.auth.GetCurrentUser(r.Context(), tok)
		if err != nil {
			s.respondError(w, r, op, err, "Not authenticated")
			return
		}
		ctx := context.WithValue(r.Context(), userKey, u)
		ctx = context.WithValue(ctx, tokenKey, tok)
		next.ServeHTTP(w, r.WithContext(ctx))
	}
}

func bearerToken(v string) string {
	scheme, tok, ok := strings.Cut(strings.TrimSpace(v), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(tok)
}

// handleSignUp handles POST /auth/sign-up.
func (s *Server) handleSignUp(w http.ResponseWriter, r *http.Request) {
	const op = "api.sign_up"
	var req types.SignUpRequest
	if err := decodeJSON(r, &req); err != nil {
		s.respondError(w, r, op, WrapKind(op, ErrBadRequest, err), "")
		return
	}
	if err := req.Validate(); err != nil {
		s.respondError(w, r, op, WrapKind(op, ErrBadRequest, err), "")
		return
	}
	u, err := s.auth.SignUp(r.Context(), req.Username, req.Password, req.Attributes)
	if err != nil {
		s.respondError(w, r, op, err, "Sign up failed")
		return
	}
	writeJSON(w, http.StatusCreated, u)
}

// handleConfirm handles POST /auth/confirm.
func (s *Server) handleConfirm(w http.ResponseWriter, r *http.Request) {
	const op = "api.confirm"
	var req types.ConfirmRequest
	if err := decodeJSON(r, &req); err != nil {
		s.respondError(w, r, op, WrapKind(op, ErrBadRequest, err), "")
		return
	}
	if err := req.Validate(); err != nil {
		s.respondError(w, r, op, WrapKind(op, ErrBadRequest, err), "")
		return
	}
	if err := s.auth.ConfirmSignUp(r.Context(), req.Username, strings.TrimSpace(req.Code)); err != nil {
		s.respondError(w, r, op, err, "Confirmation failed")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleResend handles POST /auth/resend.
func (s *Server) handleResend(w http.ResponseWriter, r *http.Request) {
	const op = "api.resend"
	var req types.ResendRequest
	if err := decodeJSON(r, &req); err != nil || strings.TrimSpace(req.Username) == "" {
		s.respondError(w, r, op, NewKind(op, ErrBadRequest), "")
		return
	}
	if err := s.auth.ResendCode(r.Context(), req.Username); err != nil {
		s.respondError(w, r, op, err, "Resend failed")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleSignIn handles POST /auth/sign-in.
func (s *Server) handleSignIn(w http.ResponseWriter, r *http.Request) {
	const op = "api.sign_in"
	var req types.SignInRequest
	if err := decodeJSON(r, &req); err != nil {
		s.respondError(w, r, op, WrapKind(op, ErrBadRequest, err), "")
		return
	}
	if err := req.Validate(); err != nil {
		s.respondError(w, r, op, WrapKind(op, ErrBadRequest, err), "")
		return
	}
	tok, err := s.auth.SignIn(r.Context(), req.Username, req.Password)
	if err != nil {
		s.respondError(w, r, op, err, "Sign in failed")
		return
	}
	u, err := s.auth.GetCurrentUser(r.Context(), tok.AccessToken)
	if err != nil {
		s.respondError(w, r, op, err, "Sign in failed")
		return
	}
	writeJSON(w, http.StatusOK, types.TokenResponse{
		AccessToken: tok.AccessToken,
		TokenType:   tok.TokenType,
		ExpiresAt:   tok.ExpiresAt,
		User:        u,
	})
}

// handleSignOut handles POST /auth/sign-out. The player's in-memory session
// is dropped; a pending guess resumes on the next sign-in.
func (s *Server) handleSignOut(w http.ResponseWriter, r *http.Request) {
	const op = "api.sign_out"
	u, _ := UserFromContext(r.Context())
	if err := s.auth.SignOut(r.Context(), tokenFromContext(r.Context())); err != nil {
		s.respondError(w, r, op, err, "Sign out failed")
		return
	}
	s.game.CloseSession(u.ID)
	w.WriteHeader(http.StatusNoContent)
}

// handleMe handles GET /auth/me.
func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	u, _ := UserFromContext(r.Context())
	writeJSON(w, http.StatusOK, u)
}
