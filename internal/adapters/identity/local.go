package identity

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/okian/btcguess/internal/domain/dedupe"
	"github.com/okian/btcguess/internal/domain/model"
	"github.com/okian/btcguess/pkg/logger"
	"github.com/okian/btcguess/pkg/metrics"
)

const (
	defaultTokenTTL = 24 * time.Hour
	defaultCodeTTL  = 24 * time.Hour
)

type userRecord struct {
	id        string
	username  string
	hash      []byte
	confirmed bool
	code      string
	codeUntil time.Time
	createdAt time.Time
}

func (u *userRecord) user() model.User {
	return model.User{ID: u.id, Username: u.username, Confirmed: u.confirmed}
}

// Local is an in-process identity provider. Users live in memory, passwords
// are bcrypt hashes and sessions are HS256 JWTs.
type Local struct {
	signer  signer
	codeTTL time.Duration
	cost    int
	sender  CodeSender
	revoked dedupe.Deduper
	now     func() time.Time
	logger  logger.Logger

	mu    sync.RWMutex
	users map[string]*userRecord // by username
}

// NewLocal creates a provider signing tokens with secret.
func NewLocal(secret []byte, opts ...Option) (*Local, error) {
	if len(secret) == 0 {
		return nil, errors.New("identity: empty signing secret")
	}
	l := &Local{
		signer:  signer{secret: secret, ttl: defaultTokenTTL},
		codeTTL: defaultCodeTTL,
		cost:    bcrypt.DefaultCost,
		now:     time.Now,
		logger:  logger.Get().Named("identity"),
		users:   make(map[string]*userRecord),
	}
	for _, opt := range opts {
		opt(l)
	}
	if l.sender == nil {
		l.sender = LogSender{Logger: l.logger}
	}
	if l.revoked == nil {
		// A revoked jti must outlive the token it belongs to.
		l.revoked = dedupe.NewInMemoryDeduper(
			dedupe.WithTTL(l.signer.ttl),
			dedupe.WithClock(l.now),
		)
	}
	return l, nil
}

func fail(op string, err error) error {
	metrics.RecordAuthEvent(op, "error")
	return fmt.Errorf("%w: %w", ErrAuthFailure, err)
}

// SignUp registers an unconfirmed user and sends a confirmation code.
func (l *Local) SignUp(ctx context.Context, username, password string, _ map[string]string) (model.User, error) {
	username, err := normalizeUsername(username)
	if err != nil {
		return model.User{}, fail("sign_up", err)
	}
	if err := ValidatePassword(password); err != nil {
		return model.User{}, fail("sign_up", err)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), l.cost)
	if err != nil {
		return model.User{}, fail("sign_up", err)
	}
	code, err := newCode()
	if err != nil {
		return model.User{}, fail("sign_up", err)
	}

	l.mu.Lock()
	if _, exists := l.users[username]; exists {
		l.mu.Unlock()
		return model.User{}, fail("sign_up", ErrUserExists)
	}
	now := l.now()
	rec := &userRecord{
		id:        uuid.NewString(),
		username:  username,
		hash:      hash,
		code:      code,
		codeUntil: now.Add(l.codeTTL),
		createdAt: now,
	}
	l.users[username] = rec
	u := rec.user()
	l.mu.Unlock()

	if err := l.sender.SendCode(ctx, username, code); err != nil {
		l.logger.Warn(ctx, "failed to deliver confirmation code",
			logger.String("username", username), logger.Error(err))
	}
	metrics.RecordAuthEvent("sign_up", "ok")
	return u, nil
}

// ConfirmSignUp marks username confirmed when code matches.
func (l *Local) ConfirmSignUp(_ context.Context, username, code string) error {
	username, err := normalizeUsername(username)
	if err != nil {
		return fail("confirm", err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	rec, ok := l.users[username]
	switch {
	case !ok:
		return fail("confirm", ErrUserNotFound)
	case rec.confirmed:
		return fail("confirm", ErrAlreadyConfirmed)
	case rec.code == "" || rec.code != code || l.now().After(rec.codeUntil):
		return fail("confirm", ErrInvalidCode)
	}
	rec.confirmed = true
	rec.code = ""
	metrics.RecordAuthEvent("confirm", "ok")
	return nil
}

// ResendCode issues a fresh confirmation code.
func (l *Local) ResendCode(ctx context.Context, username string) error {
	username, err := normalizeUsername(username)
	if err != nil {
		return fail("resend", err)
	}
	code, err := newCode()
	if err != nil {
		return fail("resend", err)
	}

	l.mu.Lock()
	rec, ok := l.users[username]
	switch {
	case !ok:
		l.mu.Unlock()
		return fail("resend", ErrUserNotFound)
	case rec.confirmed:
		l.mu.Unlock()
		return fail("resend", ErrAlreadyConfirmed)
	}
	rec.code = code
	rec.codeUntil = l.now().Add(l.codeTTL)
	l.mu.Unlock()

	if err := l.sender.SendCode(ctx, username, code); err != nil {
		return fail("resend", err)
	}
	metrics.RecordAuthEvent("resend", "ok")
	return nil
}

// SignIn checks the password of a confirmed user and issues a token.
func (l *Local) SignIn(_ context.Context, username, password string) (Token, error) {
	username, err := normalizeUsername(username)
	if err != nil {
		return Token{}, fail("sign_in", ErrInvalidCredentials)
	}

	l.mu.RLock()
	rec, ok := l.users[username]
	var (
		hash      []byte
		confirmed bool
		id        string
	)
	if ok {
		hash, confirmed, id = rec.hash, rec.confirmed, rec.id
	}
	l.mu.RUnlock()

	if !ok {
		return Token{}, fail("sign_in", ErrInvalidCredentials)
	}
	if err := bcrypt.CompareHashAndPassword(hash, []byte(password)); err != nil {
		return Token{}, fail("sign_in", ErrInvalidCredentials)
	}
	if !confirmed {
		return Token{}, fail("sign_in", ErrNotConfirmed)
	}

	tok, _, err := l.signer.sign(id, username, l.now())
	if err != nil {
		return Token{}, fail("sign_in", err)
	}
	metrics.RecordAuthEvent("sign_in", "ok")
	return tok, nil
}

// GetCurrentUser resolves a token to its user.
func (l *Local) GetCurrentUser(ctx context.Context, token string) (model.User, error) {
	claims, err := l.claims(ctx, token)
	if err != nil {
		return model.User{}, fail("current_user", err)
	}

	l.mu.RLock()
	defer l.mu.RUnlock()
	rec, ok := l.users[claims.Username]
	if !ok || rec.id != claims.Subject {
		return model.User{}, fail("current_user", ErrUserNotFound)
	}
	return rec.user(), nil
}

// SignOut revokes token. Revoking an already revoked token is not an error.
func (l *Local) SignOut(ctx context.Context, token string) error {
	claims, err := l.claims(ctx, token)
	if err != nil && !errors.Is(err, ErrTokenRevoked) {
		return fail("sign_out", err)
	}
	if err == nil {
		l.revoked.SeenAndRecord(ctx, claims.ID)
	}
	metrics.RecordAuthEvent("sign_out", "ok")
	return nil
}

func (l *Local) claims(ctx context.Context, token string) (Claims, error) {
	if token == "" {
		return Claims{}, ErrInvalidToken
	}
	c, err := l.signer.verify(token, l.now())
	if err != nil {
		return Claims{}, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
	if l.revoked.Seen(ctx, c.ID) {
		return Claims{}, ErrTokenRevoked
	}
	return c, nil
}

var _ Provider = (*Local)(nil)
