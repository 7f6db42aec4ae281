package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestJWTService() *JWTService {
	return NewJWTService("test-secret-key-for-testing-purposes", 15*time.Minute)
}

func TestNewJWTService(t *testing.T) {
	service := newTestJWTService()
	assert.NotNil(t, service)
	assert.Equal(t, 15*time.Minute, service.GetAccessTokenExpiry())
}

func TestJWTService_GenerateAccessToken_Success(t *testing.T) {
	service := newTestJWTService()

	token, expiresAt, err := service.GenerateAccessToken(Identity{
		UserID: "user-123",
		Email:  "test@example.com",
		Role:   RoleShopper,
	})

	require.NoError(t, err)
	assert.NotEmpty(t, token)
	assert.True(t, expiresAt.After(time.Now()))
	assert.True(t, expiresAt.Before(time.Now().Add(16*time.Minute)))
}

func TestJWTService_GenerateAccessToken_RequiresRole(t *testing.T) {
	service := newTestJWTService()

	_, _, err := service.GenerateAccessToken(Identity{UserID: "user-123"})
	assert.ErrorIs(t, err, ErrMissingRole)
}

func TestJWTService_ValidateAccessToken_Valid(t *testing.T) {
	service := newTestJWTService()

	id := Identity{
		UserID:   "user-456",
		Email:    "vendor@example.com",
		Role:     RoleVendor,
		VendorID: "vendor-9",
	}
	token, _, err := service.GenerateAccessToken(id)
	require.NoError(t, err)

	claims, err := service.ValidateAccessToken(token)

	require.NoError(t, err)
	assert.Equal(t, id.UserID, claims.UserID)
	assert.Equal(t, id.Email, claims.Email)
	assert.Equal(t, id.Role, claims.Role)
	assert.Equal(t, id.VendorID, claims.VendorID)
	assert.Equal(t, id.UserID, claims.Subject)
}

func TestJWTService_ValidateAccessToken_Expired(t *testing.T) {
	service := newTestJWTService()
	issued := time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)
	service.now = func() time.Time { return issued }

	token, _, err := service.GenerateAccessToken(Identity{UserID: "user-123", Role: RoleAdmin})
	require.NoError(t, err)

	service.now = func() time.Time { return issued.Add(time.Hour) }
	claims, err := service.ValidateAccessToken(token)

	assert.ErrorIs(t, err, ErrExpiredToken)
	assert.Nil(t, claims)
}

func TestJWTService_ValidateAccessToken_Invalid(t *testing.T) {
	service := newTestJWTService()

	tests := []struct {
		name  string
		token string
	}{
		{"empty token", ""},
		{"random string", "not-a-valid-token"},
		{"malformed JWT", "eyJhbGciOiJIUzI1NiIsInR5cCI6IkpXVCJ9.invalid.signature"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			claims, err := service.ValidateAccessToken(tt.token)
			assert.ErrorIs(t, err, ErrInvalidToken)
			assert.Nil(t, claims)
		})
	}
}

func TestJWTService_ValidateAccessToken_WrongSignature(t *testing.T) {
	service1 := NewJWTService("secret-key-1", 15*time.Minute)
	service2 := NewJWTService("secret-key-2", 15*time.Minute)

	token, _, err := service1.GenerateAccessToken(Identity{UserID: "user-123", Role: RoleShopper})
	require.NoError(t, err)

	claims, err := service2.ValidateAccessToken(token)

	assert.ErrorIs(t, err, ErrInvalidToken)
	assert.Nil(t, claims)
}

func TestJWTService_ValidateAccessToken_WrongAlgorithm(t *testing.T) {
	service := newTestJWTService()

	token := jwt.NewWithClaims(jwt.SigningMethodNone, &Claims{
		UserID: "user-123",
		Email:  "test@example.com",
		Role:   RoleAdmin,
	})
	tokenString, err := token.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	claims, err := service.ValidateAccessToken(tokenString)

	assert.ErrorIs(t, err, ErrInvalidToken)
	assert.Nil(t, claims)
}

func TestJWTService_ValidateAccessToken_RejectsRoleless(t *testing.T) {
	service := newTestJWTService()

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   "user-123",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute)),
	})
	tokenString, err := token.SignedString(service.secretKey)
	require.NoError(t, err)

	claims, err := service.ValidateAccessToken(tokenString)

	assert.ErrorIs(t, err, ErrInvalidToken)
	assert.Nil(t, claims)
}
