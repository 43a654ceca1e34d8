package auth

import (
	"fmt"
	"team-chat/domain"
	"team-chat/errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const issuer = "team-chat"

// CustomClaims defines the data stored inside the JWT.
// The identity travels in the "id" claim.
type CustomClaims struct {
	UserID string   `json:"id"`
	Roles  []string `json:"roles"`
	jwt.RegisteredClaims
}

// TokenManager signs and verifies bearer credentials.
// The secret is injected from configuration, never hardcoded.
type TokenManager struct {
	secret   []byte
	lifetime time.Duration
	now      func() time.Time
}

func NewTokenManager(secret string, lifetime time.Duration) *TokenManager {
	return &TokenManager{secret: []byte(secret), lifetime: lifetime, now: time.Now}
}

// Generate creates a signed HS256 token for a user.
func (m *TokenManager) Generate(identity domain.Identity, roles []string) (string, error) {
	now := m.now()
	claims := &CustomClaims{
		UserID: identity.String(),
		Roles:  roles,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(m.lifetime)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    issuer,
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return "", fmt.Errorf("%w: %v", errors.ErrTokenGeneration, err)
	}
	return signed, nil
}

// Validate checks the signature, the algorithm and the expiration.
// Any failure is reported as ErrInvalidCredential.
func (m *TokenManager) Validate(tokenString string) (*CustomClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &CustomClaims{}, func(token *jwt.Token) (any, error) {
		return m.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(m.now))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errors.ErrInvalidCredential, err)
	}

	claims, ok := token.Claims.(*CustomClaims)
	if !ok || !token.Valid {
		return nil, errors.ErrInvalidCredential
	}
	return claims, nil
}
