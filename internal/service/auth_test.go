package service

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret-key"

func signToken(t *testing.T, secret string, claims jwt.MapClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	require.NoError(t, err)
	return signed
}

func TestNewAuthService_EmptySecret(t *testing.T) {
	_, err := NewAuthService("")
	assert.Error(t, err)
}

func TestAuthService_VerifyToken_Valid(t *testing.T) {
	// Arrange
	authService, err := NewAuthService(testSecret)
	require.NoError(t, err)
	issuedAt := time.Now().Add(-time.Minute).Truncate(time.Second)
	expiresAt := time.Now().Add(time.Hour).Truncate(time.Second)
	tokenStr := signToken(t, testSecret, jwt.MapClaims{
		"user_id": 42,
		"iat":     issuedAt.Unix(),
		"exp":     expiresAt.Unix(),
	})

	// Act
	participant, err := authService.VerifyToken(tokenStr)

	// Assert
	require.NoError(t, err)
	assert.Equal(t, uint(42), participant.UserID)
	assert.Equal(t, issuedAt.Unix(), participant.IssuedAt.Unix())
	assert.Equal(t, expiresAt.Unix(), participant.ExpiresAt.Unix())
}

func TestAuthService_VerifyToken_Failures(t *testing.T) {
	authService, err := NewAuthService(testSecret)
	require.NoError(t, err)

	testCases := []struct {
		name     string
		tokenStr string
	}{
		{"empty token", ""},
		{"garbage token", "not.a.jwt"},
		{"wrong secret", signToken(t, "other-secret", jwt.MapClaims{"user_id": 42})},
		{"expired", signToken(t, testSecret, jwt.MapClaims{
			"user_id": 42,
			"exp":     time.Now().Add(-time.Hour).Unix(),
		})},
		{"missing user_id", signToken(t, testSecret, jwt.MapClaims{"sub": "someone"})},
		{"user_id zero", signToken(t, testSecret, jwt.MapClaims{"user_id": 0})},
		{"user_id negative", signToken(t, testSecret, jwt.MapClaims{"user_id": -3})},
		{"user_id fractional", signToken(t, testSecret, jwt.MapClaims{"user_id": 1.5})},
		{"user_id string", signToken(t, testSecret, jwt.MapClaims{"user_id": "42"})},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			participant, err := authService.VerifyToken(tc.tokenStr)
			assert.ErrorIs(t, err, ErrUnauthenticated)
			assert.Nil(t, participant)
		})
	}
}

func TestAuthService_VerifyToken_RejectsNoneAlgorithm(t *testing.T) {
	// Arrange: alg=none 的未签名 token
	authService, err := NewAuthService(testSecret)
	require.NoError(t, err)
	token := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{"user_id": 42})
	tokenStr, err := token.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	// Act & Assert
	_, err = authService.VerifyToken(tokenStr)
	assert.ErrorIs(t, err, ErrUnauthenticated)
}
