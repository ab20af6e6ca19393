// Package identity authenticates players: sign-up with email confirmation,
// sign-in returning a bearer token, and sign-out revoking it.
package identity

import (
	"context"
	"time"

	"github.com/okian/btcguess/internal/domain/model"
)

// Token is a signed session token.
type Token struct {
	AccessToken string    `json:"access_token"`
	TokenType   string    `json:"token_type"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// Provider is the set of identity operations the service depends on.
type Provider interface {
	GetCurrentUser(ctx context.Context, token string) (model.User, error)
	SignIn(ctx context.Context, username, password string) (Token, error)
	SignUp(ctx context.Context, username, password string, attrs map[string]string) (model.User, error)
	ConfirmSignUp(ctx context.Context, username, code string) error
	ResendCode(ctx context.Context, username string) error
	SignOut(ctx context.Context, token string) error
}

// CodeSender delivers confirmation codes to users.
type CodeSender interface {
	SendCode(ctx context.Context, username, code string) error
}
