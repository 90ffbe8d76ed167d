package auth

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/msggate/control-plane/internal/config"
	"github.com/msggate/control-plane/internal/models"
)

func testAccount() *models.Account {
	return &models.Account{
		ID:       uuid.New(),
		Email:    "user@example.com",
		Username: "user",
		Role:     models.RoleUser,
	}
}

func TestGenerateAndValidateToken(t *testing.T) {
	manager := NewJWTManager(&config.JWTConfig{
		Secret:         "test-secret",
		AccessTokenTTL: time.Hour,
	})

	account := testAccount()
	token, err := manager.GenerateToken(account)
	require.NoError(t, err)
	require.NotEmpty(t, token)

	claims, err := manager.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, account.ID, claims.UserID)
	assert.Equal(t, account.Email, claims.Email)
	assert.Equal(t, account.Username, claims.Username)
	assert.Equal(t, models.RoleUser, claims.Role)
}

func TestValidateToken_WrongSecret(t *testing.T) {
	manager := NewJWTManager(&config.JWTConfig{
		Secret:         "test-secret",
		AccessTokenTTL: time.Hour,
	})
	other := NewJWTManager(&config.JWTConfig{
		Secret:         "different-secret",
		AccessTokenTTL: time.Hour,
	})

	token, err := manager.GenerateToken(testAccount())
	require.NoError(t, err)

	_, err = other.ValidateToken(token)
	assert.Error(t, err)
}

func TestValidateToken_Expired(t *testing.T) {
	manager := NewJWTManager(&config.JWTConfig{
		Secret:         "test-secret",
		AccessTokenTTL: -time.Minute,
	})

	token, err := manager.GenerateToken(testAccount())
	require.NoError(t, err)

	_, err = manager.ValidateToken(token)
	assert.Error(t, err)
}

func TestValidateToken_Garbage(t *testing.T) {
	manager := NewJWTManager(&config.JWTConfig{
		Secret:         "test-secret",
		AccessTokenTTL: time.Hour,
	})

	_, err := manager.ValidateToken("not-a-token")
	assert.Error(t, err)
}
