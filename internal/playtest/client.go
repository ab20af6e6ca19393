package playtest

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/okian/btcguess/internal/adapters/identity"
	"github.com/okian/btcguess/internal/adapters/price"
	"github.com/okian/btcguess/internal/domain/model"
	"github.com/okian/btcguess/internal/domain/types"
)

// APIError is a non-2xx reply from the server.
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%d %s: %s", e.Status, e.Code, e.Message)
}

// Unwrap lets auth failures match identity.ErrAuthFailure.
func (e *APIError) Unwrap() error {
	if e.Status == http.StatusUnauthorized {
		return identity.ErrAuthFailure
	}
	return nil
}

// Client talks to the btcguess HTTP API. It implements identity.Provider so a
// session.Store can sit on top of it.
type Client struct {
	base  string
	http  *http.Client
	token func() string
}

var _ identity.Provider = (*Client)(nil)

// NewClient creates a client for baseURL.
func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		base: strings.TrimRight(baseURL, "/"),
		http: &http.Client{Timeout: timeout},
	}
}

// UseTokenSource sets where game calls read the bearer token from.
func (c *Client) UseTokenSource(fn func() string) {
	c.token = fn
}

func (c *Client) do(ctx context.Context, method, path, token string, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.base+path, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode >= http.StatusBadRequest {
		apiErr := &APIError{Status: resp.StatusCode}
		var e types.ErrorResponse
		if json.Unmarshal(data, &e) == nil {
			apiErr.Code, apiErr.Message = e.Code, e.Message
		}
		return apiErr
	}
	if out == nil || len(data) == 0 {
		return nil
	}
	return json.Unmarshal(data, out)
}

func (c *Client) bearer() string {
	if c.token == nil {
		return ""
	}
	return c.token()
}

// Health checks GET /healthz.
func (c *Client) Health(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/healthz", "", nil, nil)
}

// GetCurrentUser implements identity.Provider.
func (c *Client) GetCurrentUser(ctx context.Context, token string) (model.User, error) {
	var u model.User
	err := c.do(ctx, http.MethodGet, "/auth/me", token, nil, &u)
	return u, err
}

// SignIn implements identity.Provider.
func (c *Client) SignIn(ctx context.Context, username, password string) (identity.Token, error) {
	var resp types.TokenResponse
	err := c.do(ctx, http.MethodPost, "/auth/sign-in", "", types.SignInRequest{Username: username, Password: password}, &resp)
	return identity.Token{AccessToken: resp.AccessToken, TokenType: resp.TokenType, ExpiresAt: resp.ExpiresAt}, err
}

// SignUp implements identity.Provider.
func (c *Client) SignUp(ctx context.Context, username, password string, attrs map[string]string) (model.User, error) {
	var u model.User
	err := c.do(ctx, http.MethodPost, "/auth/sign-up", "",
		types.SignUpRequest{Username: username, Password: password, Attributes: attrs}, &u)
	return u, err
}

// ConfirmSignUp implements identity.Provider.
func (c *Client) ConfirmSignUp(ctx context.Context, username, code string) error {
	return c.do(ctx, http.MethodPost, "/auth/confirm", "", types.ConfirmRequest{Username: username, Code: code}, nil)
}

// ResendCode implements identity.Provider.
func (c *Client) ResendCode(ctx context.Context, username string) error {
	return c.do(ctx, http.MethodPost, "/auth/resend", "", types.ResendRequest{Username: username}, nil)
}

// SignOut implements identity.Provider.
func (c *Client) SignOut(ctx context.Context, token string) error {
	return c.do(ctx, http.MethodPost, "/auth/sign-out", token, nil, nil)
}

// Price returns the server's ticker snapshot.
func (c *Client) Price(ctx context.Context) (price.Snapshot, error) {
	var s price.Snapshot
	err := c.do(ctx, http.MethodGet, "/price", "", nil, &s)
	return s, err
}

// PlaceGuess creates a guess in direction.
func (c *Client) PlaceGuess(ctx context.Context, direction model.Direction) (model.Guess, error) {
	var g model.Guess
	err := c.do(ctx, http.MethodPost, "/guesses", c.bearer(), types.GuessRequest{Direction: string(direction)}, &g)
	return g, err
}

// Current returns the current guess and countdown.
func (c *Client) Current(ctx context.Context) (types.CurrentGuessResponse, error) {
	var resp types.CurrentGuessResponse
	err := c.do(ctx, http.MethodGet, "/guesses/current", c.bearer(), nil, &resp)
	return resp, err
}

// Guesses returns the history.
func (c *Client) Guesses(ctx context.Context) ([]model.Guess, error) {
	var list []model.Guess
	err := c.do(ctx, http.MethodGet, "/guesses", c.bearer(), nil, &list)
	return list, err
}

// Score returns the aggregate score.
func (c *Client) Score(ctx context.Context) (types.ScoreResponse, error) {
	var s types.ScoreResponse
	err := c.do(ctx, http.MethodGet, "/score", c.bearer(), nil, &s)
	return s, err
}

// Stream dials GET /ws.
func (c *Client) Stream(ctx context.Context) (*websocket.Conn, error) {
	u, err := url.Parse(c.base + "/ws")
	if err != nil {
		return nil, err
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	h := http.Header{}
	h.Set("Authorization", "Bearer "+c.bearer())

	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, u.String(), h)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		if resp != nil && resp.StatusCode == http.StatusUnauthorized {
			return nil, fmt.Errorf("%w: %w", identity.ErrAuthFailure, err)
		}
		return nil, err
	}
	return conn, nil
}

// IsCode reports whether err is an APIError with the given code.
func IsCode(err error, code string) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Code == code
}
