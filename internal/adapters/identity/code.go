package identity

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"

	"github.com/okian/btcguess/pkg/logger"
)

// LogSender writes confirmation codes to the log. It is the development
// default; production wiring plugs in a mail sender.
type LogSender struct {
	Logger logger.Logger
}

// SendCode logs the code for username.
func (s LogSender) SendCode(ctx context.Context, username, code string) error {
	l := s.Logger
	if l == nil {
		l = logger.Get().Named("identity")
	}
	l.Info(ctx, "confirmation code issued",
		logger.String("username", username),
		logger.String("code", code),
	)
	return nil
}

var codeSpace = big.NewInt(1_000_000) //nolint:gochecknoglobals // constant

// newCode returns a random zero-padded 6-digit code.
func newCode() (string, error) {
	n, err := rand.Int(rand.Reader, codeSpace)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}
