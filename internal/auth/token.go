// Package auth issues and checks the HS256 tokens that guard the audio
// WebSocket.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Issuer is stamped into every token.
const Issuer = "voxaos"

// DefaultTTL is the lifetime of a token minted by the CLI.
const DefaultTTL = 24 * time.Hour

// ErrNoSecret is returned when signing is attempted without a secret.
var ErrNoSecret = errors.New("auth: signing secret is empty")

// Claims identify the client holding a token.
type Claims struct {
	Client string `json:"client"`
	jwt.RegisteredClaims
}

// Issue signs a token for client valid for ttl.
func Issue(secret []byte, client string, ttl time.Duration) (string, error) {
	if len(secret) == 0 {
		return "", ErrNoSecret
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	now := time.Now()
	claims := &Claims{
		Client: client,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    Issuer,
			Subject:   client,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}

// Validate parses token and checks signature, algorithm, issuer and expiry.
func Validate(secret []byte, token string) (*Claims, error) {
	if len(secret) == 0 {
		return nil, ErrNoSecret
	}
	parsed, err := jwt.ParseWithClaims(token, &Claims{}, func(t *jwt.Token) (any, error) {
		return secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(Issuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return nil, fmt.Errorf("auth: %w", err)
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, fmt.Errorf("auth: %w", jwt.ErrTokenInvalidClaims)
	}
	return claims, nil
}
