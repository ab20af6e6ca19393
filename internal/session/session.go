// Package session keeps the authentication state of one client: the signed-in
// user and its token.
package session

import (
	"context"
	"sync"

	"github.com/okian/btcguess/internal/adapters/identity"
	"github.com/okian/btcguess/internal/domain/model"
	"github.com/okian/btcguess/pkg/logger"
)

// State is the authentication state.
type State struct {
	User            *model.User `json:"user"`
	IsAuthenticated bool        `json:"is_authenticated"`
	IsLoading       bool        `json:"is_loading"`
}

// Store holds the session of one client. It starts loading until the first
// CheckAuth completes.
type Store struct {
	provider identity.Provider
	logger   logger.Logger

	mu    sync.RWMutex
	token string
	state State
}

// NewStore creates a store that authenticates through provider.
func NewStore(provider identity.Provider, l logger.Logger) *Store {
	if l == nil {
		l = logger.Get().Named("session")
	}
	return &Store{
		provider: provider,
		logger:   l,
		state:    State{IsLoading: true},
	}
}

// Snapshot returns a copy of the state.
func (s *Store) Snapshot() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st := s.state
	if st.User != nil {
		u := *st.User
		st.User = &u
	}
	return st
}

// Token returns the bearer token in use.
func (s *Store) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

// SetUser replaces the user. Nil signs the client out locally.
func (s *Store) SetUser(u *model.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u == nil {
		s.state = State{}
		s.token = ""
		return
	}
	cp := *u
	s.state = State{User: &cp, IsAuthenticated: true}
}

// SignIn authenticates with the provider and loads the user.
func (s *Store) SignIn(ctx context.Context, username, password string) (model.User, error) {
	tok, err := s.provider.SignIn(ctx, username, password)
	if err != nil {
		return model.User{}, err
	}
	s.mu.Lock()
	s.token = tok.AccessToken
	s.mu.Unlock()

	u, err := s.CheckAuth(ctx)
	if err != nil {
		return model.User{}, err
	}
	return *u, nil
}

// UseToken adopts a token obtained elsewhere. Call CheckAuth to validate it.
func (s *Store) UseToken(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = token
}

// CheckAuth asks the provider for the current user. On failure the session
// is cleared and the error returned.
func (s *Store) CheckAuth(ctx context.Context) (*model.User, error) {
	s.mu.Lock()
	s.state.IsLoading = true
	token := s.token
	s.mu.Unlock()

	u, err := s.provider.GetCurrentUser(ctx, token)
	if err != nil {
		s.SetUser(nil)
		return nil, err
	}
	s.SetUser(&u)
	return &u, nil
}

// SignOut signs out at the provider and clears local state. A provider error
// is logged; local state is cleared regardless.
func (s *Store) SignOut(ctx context.Context) {
	token := s.Token()
	if token != "" {
		if err := s.provider.SignOut(ctx, token); err != nil {
			s.logger.Warn(ctx, "provider sign-out failed", logger.Error(err))
		}
	}
	s.SetUser(nil)
}
