package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

const secret = "a_long_enough_test_secret_for_hs256"

func TestTokenSigner_Sign_And_Validate(t *testing.T) {
	req := require.New(t)
	clientID := uuid.New()
	signer, err := NewTokenSigner(secret, clientID, "alice", time.Hour)
	req.NoError(err)

	token, err := signer.Token()
	req.NoError(err)

	claims, err := ValidateToken(secret, token)
	req.NoError(err)
	req.Equal(clientID.String(), claims.ClientID)
	req.Equal("alice", claims.SenderID)
	req.Equal("alice", claims.Subject)
}

func TestTokenSigner_Wrong_Secret(t *testing.T) {
	req := require.New(t)
	signer, err := NewTokenSigner(secret, uuid.New(), "alice", time.Hour)
	req.NoError(err)
	token, err := signer.Token()
	req.NoError(err)

	_, err = ValidateToken("another_secret", token)
	req.ErrorIs(err, jwt.ErrSignatureInvalid)
}

func TestTokenSigner_Reuses_Then_Renews(t *testing.T) {
	req := require.New(t)
	signer, err := NewTokenSigner(secret, uuid.New(), "alice", time.Hour)
	req.NoError(err)
	now := time.Now()
	signer.now = func() time.Time { return now }

	first, err := signer.Token()
	req.NoError(err)

	// Given less than half the lifetime elapsed
	now = now.Add(20 * time.Minute)
	second, err := signer.Token()
	req.NoError(err)
	req.Equal(first, second)

	// Given more than half the lifetime elapsed
	now = now.Add(20 * time.Minute)
	third, err := signer.Token()
	req.NoError(err)
	req.NotEqual(first, third)
}

func TestTokenSigner_Expired_Token_Is_Rejected(t *testing.T) {
	req := require.New(t)
	signer, err := NewTokenSigner(secret, uuid.New(), "alice", time.Minute)
	req.NoError(err)
	signer.now = func() time.Time { return time.Now().Add(-time.Hour) }

	token, err := signer.Token()
	req.NoError(err)

	_, err = ValidateToken(secret, token)
	req.ErrorIs(err, jwt.ErrTokenExpired)
}

func TestNewTokenSigner_Rejects_Empty_Secret(t *testing.T) {
	_, err := NewTokenSigner("", uuid.New(), "alice", time.Hour)
	require.Error(t, err)
}
