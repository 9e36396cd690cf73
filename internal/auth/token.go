// Package auth establishes the caller's identity for the transport layer.
// It verifies directory credentials and issues short-lived bearer tokens;
// the engine itself never authenticates anyone.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Claims carried in an access token.
type Claims struct {
	jwt.RegisteredClaims
	UserID   string `json:"user_id"`
	Username string `json:"username"`
}

// TokenManager signs and validates HS256 access tokens.
type TokenManager struct {
	secret []byte
	issuer string
	expiry time.Duration
}

// NewTokenManager constructs a TokenManager.
func NewTokenManager(secret, issuer string, expiry time.Duration) (*TokenManager, error) {
	if secret == "" {
		return nil, errors.New("auth: signing secret required")
	}
	if expiry <= 0 {
		expiry = time.Hour
	}
	return &TokenManager{secret: []byte(secret), issuer: issuer, expiry: expiry}, nil
}

// Issue creates a signed token for the given account.
func (m *TokenManager) Issue(userID, username string) (string, error) {
	now := time.Now()
	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    m.issuer,
			Subject:   userID,
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.expiry)),
		},
		UserID:   userID,
		Username: username,
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(m.secret)
	if err != nil {
		return "", fmt.Errorf("auth: sign token: %w", err)
	}
	return signed, nil
}

// Validate parses a token and returns its claims.
func (m *TokenManager) Validate(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("auth: unexpected signing method %v", t.Header["alg"])
		}
		return m.secret, nil
	}, jwt.WithIssuer(m.issuer))
	if err != nil {
		return nil, fmt.Errorf("auth: invalid token: %w", err)
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, errors.New("auth: invalid token claims")
	}
	return claims, nil
}

// Expiry reports the configured token lifetime.
func (m *TokenManager) Expiry() time.Duration {
	return m.expiry
}
