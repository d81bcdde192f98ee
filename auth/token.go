package auth

import (
	"fmt"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const issuer = "chat-sync"

// Claims identifies the installation and the sender posting messages.
type Claims struct {
	ClientID string `json:"client_id"`
	SenderID string `json:"sender_id"`
	jwt.RegisteredClaims
}

// TokenSigner issues the bearer token of the REST transport.
// A token is reused until it reaches half of its lifetime.
type TokenSigner struct {
	secret   []byte
	clientID uuid.UUID
	senderID string
	ttl      time.Duration
	now      func() time.Time

	mu      sync.Mutex
	token   string
	renewAt time.Time
}

func NewTokenSigner(secret string, clientID uuid.UUID, senderID string, ttl time.Duration) (*TokenSigner, error) {
	if secret == "" {
		return nil, fmt.Errorf("empty signing secret")
	}
	if ttl <= 0 {
		return nil, fmt.Errorf("token lifetime must be positive, got %s", ttl)
	}
	return &TokenSigner{
		secret:   []byte(secret),
		clientID: clientID,
		senderID: senderID,
		ttl:      ttl,
		now:      time.Now,
	}, nil
}

// Token returns a signed HS256 JWT.
func (s *TokenSigner) Token() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if s.token != "" && now.Before(s.renewAt) {
		return s.token, nil
	}

	claims := &Claims{
		ClientID: s.clientID.String(),
		SenderID: s.senderID,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    issuer,
			Subject:   s.senderID,
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", err
	}
	s.token, s.renewAt = signed, now.Add(s.ttl/2)
	return signed, nil
}

// ValidateToken parses and validates the signature and expiration of a JWT string.
func ValidateToken(secret, tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithIssuer(issuer))
	if err != nil {
		return nil, err
	}

	if claims, ok := token.Claims.(*Claims); ok && token.Valid {
		return claims, nil
	}
	return nil, jwt.ErrSignatureInvalid
}
