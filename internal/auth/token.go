// Package auth mints and checks the bearer tokens that identify a session.
//
// TOKEN FORMAT:
// A session token is an HS256-signed JWT:
//
//	HEADER.PAYLOAD.SIGNATURE
//	- Payload: {"iss":"portfolio-feed","sub":"<username>","jti":"<xid>","iat":...}
//
// Clients treat the token as an opaque string. There is no "exp" claim:
// sessions never expire. The signature lets the server reject forged or
// mangled tokens before it looks the token up in the sessions collection,
// and that lookup stays the source of truth.
package auth

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/xid"
)

const issuer = "portfolio-feed"

// TokenService signs and verifies session tokens with an HMAC secret.
type TokenService struct {
	secret []byte
	now    func() time.Time
}

// NewTokenService creates a TokenService with the given secret.
// Example: TOKEN_SECRET=$(openssl rand -hex 32)
func NewTokenService(secret string) (*TokenService, error) {
	if len(secret) < 16 {
		return nil, errors.New("auth: token secret must be at least 16 characters")
	}
	return &TokenService{secret: []byte(secret), now: time.Now}, nil
}

// GenerateSecret returns a random 32-byte secret, hex encoded.
// Callers that need sessions to outlive the process must persist it.
func GenerateSecret() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("auth: generating secret: %w", err)
	}
	return hex.EncodeToString(b), nil
}

// Issue creates a new token for username. Every call returns a distinct
// token, even for the same user within the same second, because the jti is
// a fresh xid.
func (s *TokenService) Issue(username string) (string, error) {
	if username == "" {
		return "", errors.New("auth: username must not be empty")
	}

	c := jwt.RegisteredClaims{
		Subject:  username,
		ID:       xid.New().String(),
		IssuedAt: jwt.NewNumericDate(s.now()),
		Issuer:   issuer,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, c)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("auth: signing token: %w", err)
	}
	return signed, nil
}

// Verify checks the signature and issuer and returns the username in "sub".
//
// jwt.WithValidMethods pins HS256 so a token declaring "alg":"none" or an
// asymmetric algorithm is rejected.
func (s *TokenService) Verify(tokenStr string) (string, error) {
	token, err := jwt.ParseWithClaims(
		tokenStr,
		&jwt.RegisteredClaims{},
		func(token *jwt.Token) (any, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("auth: unexpected signing method: %v", token.Header["alg"])
			}
			return s.secret, nil
		},
		jwt.WithValidMethods([]string{"HS256"}),
		jwt.WithIssuer(issuer),
	)
	if err != nil {
		return "", fmt.Errorf("auth: invalid token: %w", err)
	}

	c, ok := token.Claims.(*jwt.RegisteredClaims)
	if !ok || !token.Valid {
		return "", fmt.Errorf("auth: invalid token claims")
	}
	if c.Subject == "" {
		return "", fmt.Errorf("auth: token has no subject")
	}
	return c.Subject, nil
}
