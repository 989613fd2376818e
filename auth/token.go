// Package auth is the boundary to the platform's identity layer. Token
// issuance is someone else's product; this package only validates incoming
// bearer tokens and turns their claims into a domain identity.
package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/hphungg/chatbot-sub001/domain"
	"github.com/hphungg/chatbot-sub001/errors"
)

// CustomClaims defines the structure of the data stored inside the JWT.
type CustomClaims struct {
	UserID        string `json:"user_id"`
	Role          string `json:"role"`
	EmailVerified bool   `json:"email_verified"`
	jwt.RegisteredClaims
}

type TokenManager struct {
	secret   []byte
	duration time.Duration
}

func NewTokenManager(secret string, duration time.Duration) *TokenManager {
	if duration <= 0 {
		duration = 24 * time.Hour
	}
	return &TokenManager{secret: []byte(secret), duration: duration}
}

// Generate creates a signed JWT for a specific user. Used by tests and the
// inspector; production tokens come from the identity service sharing the
// same secret.
func (m *TokenManager) Generate(identity domain.Identity) (string, error) {
	now := time.Now()
	claims := &CustomClaims{
		UserID:        identity.UserID,
		Role:          identity.Role,
		EmailVerified: identity.EmailVerified,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(m.duration)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    "chatbot-core",
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(m.secret)
}

// Validate parses and validates the signature and expiration of a JWT
// string, then maps the claims to an identity.
func (m *TokenManager) Validate(tokenString string) (domain.Identity, error) {
	token, err := jwt.ParseWithClaims(tokenString, &CustomClaims{}, func(token *jwt.Token) (interface{}, error) {
		return m.secret, nil
	})
	if err != nil {
		return domain.Identity{}, fmt.Errorf("parsing token: %w", errors.ErrUnauthenticated)
	}

	claims, ok := token.Claims.(*CustomClaims)
	if !ok || !token.Valid || claims.UserID == "" {
		return domain.Identity{}, fmt.Errorf("invalid claims: %w", errors.ErrUnauthenticated)
	}

	return domain.Identity{
		UserID:        claims.UserID,
		Role:          claims.Role,
		EmailVerified: claims.EmailVerified,
	}, nil
}
