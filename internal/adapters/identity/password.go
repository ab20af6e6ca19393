package identity

import (
	"fmt"
	"net/mail"
	"strings"
	"unicode"
)

const minPasswordLength = 8

// ValidatePassword enforces at least 8 characters with a digit, an uppercase
// letter and a symbol.
func ValidatePassword(p string) error {
	if len(p) < minPasswordLength {
		return fmt.Errorf("%w: at least %d characters", ErrWeakPassword, minPasswordLength)
	}
	var digit, upper, symbol bool
	for _, r := range p {
		switch {
		case unicode.IsDigit(r):
			digit = true
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsPunct(r) || unicode.IsSymbol(r):
			symbol = true
		}
	}
	switch {
	case !digit:
		return fmt.Errorf("%w: needs a number", ErrWeakPassword)
	case !upper:
		return fmt.Errorf("%w: needs an uppercase letter", ErrWeakPassword)
	case !symbol:
		return fmt.Errorf("%w: needs a symbol", ErrWeakPassword)
	}
	return nil
}

// normalizeUsername lower-cases an email login and checks its shape.
func normalizeUsername(u string) (string, error) {
	u = strings.ToLower(strings.TrimSpace(u))
	addr, err := mail.ParseAddress(u)
	if err != nil || addr.Address != u {
		return "", ErrInvalidUsername
	}
	return u, nil
}
