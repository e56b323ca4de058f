package auth

import (
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/hyunjun8803/car-care-platform-sub000/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

const testSecret = "test-secret"

func newTestService(t *testing.T) *Service {
	t.Helper()
	service, err := NewService(testSecret, time.Hour)
	require.NoError(t, err)
	return service
}

func testUser() *models.User {
	return &models.User{
		ID:       primitive.NewObjectID(),
		Username: "testuser",
		Role:     models.RoleCustomer,
	}
}

func TestNewService(t *testing.T) {
	service, err := NewService(testSecret, 0)
	assert.NoError(t, err)
	assert.Equal(t, DefaultTokenExpiry, service.tokenExp)

	_, err = NewService("", time.Hour)
	assert.Error(t, err)
}

func TestService_HashPassword(t *testing.T) {
	service := newTestService(t)

	password := "testpassword123"
	hash, err := service.HashPassword(password)

	assert.NoError(t, err)
	assert.NotEmpty(t, hash)
	assert.NotEqual(t, password, hash)
	assert.True(t, service.CheckPassword(password, hash))
	assert.False(t, service.CheckPassword("wrongpassword", hash))
}

func TestService_ValidateToken(t *testing.T) {
	service := newTestService(t)
	user := testUser()

	token, err := service.GenerateToken(user)
	require.NoError(t, err)

	claims, err := service.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, user.ID.Hex(), claims.UserID)
	assert.Equal(t, user.Username, claims.Username)
	assert.Equal(t, user.Role, claims.Role)

	_, err = service.ValidateToken("Bearer " + token)
	assert.NoError(t, err)

	_, err = service.ValidateToken("invalid-token")
	assert.Equal(t, ErrInvalidToken, err)
}

func TestService_ValidateTokenRejects(t *testing.T) {
	service := newTestService(t)
	user := testUser()

	t.Run("other secret", func(t *testing.T) {
		other, err := NewService("another-secret", time.Hour)
		require.NoError(t, err)
		token, err := other.GenerateToken(user)
		require.NoError(t, err)

		_, err = service.ValidateToken(token)
		assert.Equal(t, ErrInvalidToken, err)
	})

	t.Run("expired", func(t *testing.T) {
		expired := &Service{jwtSecret: []byte(testSecret), tokenExp: -time.Minute}
		token, err := expired.GenerateToken(user)
		require.NoError(t, err)

		_, err = service.ValidateToken(token)
		assert.Equal(t, ErrExpiredToken, err)
	})

	t.Run("unsigned", func(t *testing.T) {
		token := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{
			"user_id": user.ID.Hex(),
			"role":    "admin",
			"iss":     issuer,
			"exp":     time.Now().Add(time.Hour).Unix(),
		})
		signed, err := token.SignedString(jwt.UnsafeAllowNoneSignatureType)
		require.NoError(t, err)

		_, err = service.ValidateToken(signed)
		assert.Equal(t, ErrInvalidToken, err)
	})

	t.Run("unknown role", func(t *testing.T) {
		token, err := service.GenerateToken(&models.User{ID: user.ID, Username: "x", Role: "superuser"})
		require.NoError(t, err)

		_, err = service.ValidateToken(token)
		assert.Equal(t, ErrInvalidToken, err)
	})
}

func TestService_ExtractTokenFromHeader(t *testing.T) {
	service := newTestService(t)

	extracted, err := service.ExtractTokenFromHeader("Bearer valid-token")
	assert.NoError(t, err)
	assert.Equal(t, "valid-token", extracted)

	for _, header := range []string{"", "InvalidFormat", "Bearer ", "Basic abc"} {
		_, err = service.ExtractTokenFromHeader(header)
		assert.Equal(t, ErrInvalidToken, err, header)
	}
}

func TestService_Validators(t *testing.T) {
	service := newTestService(t)

	assert.NoError(t, service.ValidatePassword("validpassword123"))
	assert.ErrorContains(t, service.ValidatePassword("short"), "at least 8 characters")

	assert.NoError(t, service.ValidateEmail("test@example.com"))
	for _, email := range []string{"testexample.com", "test@", "test", "@example.com"} {
		assert.ErrorContains(t, service.ValidateEmail(email), "invalid email format", email)
	}

	assert.NoError(t, service.ValidateUsername("testuser"))
	assert.ErrorContains(t, service.ValidateUsername("ab"), "at least 3 characters")
	assert.ErrorContains(t, service.ValidateUsername(strings.Repeat("a", 51)), "less than 50 characters")
}

func TestService_GenerateRefreshToken(t *testing.T) {
	service := newTestService(t)

	token, err := service.GenerateRefreshToken()
	assert.NoError(t, err)
	assert.Len(t, token, 44)

	other, err := service.GenerateRefreshToken()
	assert.NoError(t, err)
	assert.NotEqual(t, token, other)
}

func TestService_TokenExpiration(t *testing.T) {
	service := newTestService(t)

	token, err := service.GenerateToken(testUser())
	require.NoError(t, err)

	claims, err := service.ValidateToken(token)
	require.NoError(t, err)

	now := time.Now().Unix()
	assert.Greater(t, claims.Exp, now)
	assert.LessOrEqual(t, claims.Exp, now+int64(service.tokenExp.Seconds())+1)
}
