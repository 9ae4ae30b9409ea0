// Package auth issues and validates the tokens renderer clients present when
// opening the session WebSocket.
package auth

import (
	"crypto/rand"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// RoleRenderer is the only role allowed on the session WebSocket
const RoleRenderer = "renderer"

const secretSize = 32

// ErrInvalidRole is returned for tokens issued to another role
var ErrInvalidRole = errors.New("token role is not allowed")

// JWTClaims represents the claims in our JWT token
type JWTClaims struct {
	ViewerID string `json:"viewer_id"`
	Role     string `json:"role"`
	jwt.RegisteredClaims
}

// Issuer signs and validates renderer tokens with one HMAC secret
type Issuer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewIssuer creates an issuer. An empty secret is replaced by a random one,
// so tokens only survive for the life of the process.
func NewIssuer(secret string, ttl time.Duration) (*Issuer, error) {
	key := []byte(secret)
	if len(key) == 0 {
		key = make([]byte, secretSize)
		if _, err := rand.Read(key); err != nil {
			return nil, fmt.Errorf("failed to generate token secret: %w", err)
		}
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Issuer{secret: key, ttl: ttl, now: time.Now}, nil
}

// GenerateRendererToken generates a JWT token for a renderer client
func (i *Issuer) GenerateRendererToken(viewerID string) (string, error) {
	if viewerID == "" {
		return "", fmt.Errorf("viewer id is required")
	}

	now := i.now()
	claims := &JWTClaims{
		ViewerID: viewerID,
		Role:     RoleRenderer,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(i.ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(i.secret)
}

// ValidateToken validates a renderer token and returns the claims
func (i *Issuer) ValidateToken(tokenString string) (*JWTClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &JWTClaims{},
		func(token *jwt.Token) (interface{}, error) {
			return i.secret, nil
		},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(i.now),
	)
	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(*JWTClaims)
	if !ok || !token.Valid {
		return nil, jwt.ErrInvalidKey
	}
	if claims.Role != RoleRenderer {
		return nil, fmt.Errorf("%w: %q", ErrInvalidRole, claims.Role)
	}
	if claims.ViewerID == "" {
		return nil, fmt.Errorf("viewer id not found in token")
	}
	return claims, nil
}
