package identity

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const issuer = "btcguess"

// Claims carried by a session token. Subject is the user id and ID the jti
// used for revocation.
type Claims struct {
	Username string `json:"username"`

	jwt.RegisteredClaims
}

type signer struct {
	secret []byte
	ttl    time.Duration
}

func (s signer) sign(userID, username string, now time.Time) (Token, Claims, error) {
	expiresAt := now.Add(s.ttl)
	claims := Claims{
		Username: username,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   userID,
			Issuer:    issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now.Add(-5 * time.Second)),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	str, err := t.SignedString(s.secret)
	if err != nil {
		return Token{}, Claims{}, err
	}
	return Token{AccessToken: str, TokenType: "Bearer", ExpiresAt: expiresAt}, claims, nil
}

func (s signer) verify(token string, now time.Time) (Claims, error) {
	parsed, err := jwt.ParseWithClaims(token, &Claims{}, func(t *jwt.Token) (any, error) {
		if t.Method != jwt.SigningMethodHS256 {
			return nil, errors.New("unexpected signing method")
		}
		return s.secret, nil
	},
		jwt.WithIssuer(issuer),
		jwt.WithTimeFunc(func() time.Time { return now }),
	)
	if err != nil {
		return Claims{}, err
	}
	c, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid || c.ID == "" || c.Subject == "" {
		return Claims{}, errors.New("invalid token")
	}
	return *c, nil
}
