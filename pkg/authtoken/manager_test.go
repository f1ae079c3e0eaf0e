package authtoken_test

import (
	"testing"
	"time"

	"github.com/pharmstock/pharmstock-backend/pkg/authtoken"
	"github.com/pharmstock/pharmstock-backend/pkg/config"
	"github.com/pharmstock/pharmstock-backend/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testManager(expiry time.Duration) *authtoken.Manager {
	return authtoken.NewManager(&config.JWTConfig{
		Secret:       "test-secret",
		AccessExpiry: expiry,
		Issuer:       "pharmstock-test",
	})
}

func TestGenerateAndValidateAccessToken(t *testing.T) {
	manager := testManager(15 * time.Minute)

	token, err := manager.GenerateAccessToken(&authtoken.UserInfo{
		ID:          "user-1",
		Email:       "pharmacist@pharmstock.io",
		Name:        "Test Pharmacist",
		Role:        "pharmacist",
		Permissions: []string{"stock.batches.read", "stock.batches.write"},
	})
	require.NoError(t, err)
	require.NotEmpty(t, token)

	claims, err := manager.ValidateAccessToken(token)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.UserID)
	assert.Equal(t, "pharmacist", claims.Role)
	assert.Equal(t, []string{"stock.batches.read", "stock.batches.write"}, claims.Permissions)

	a := claims.Actor()
	assert.Equal(t, "user-1", a.ID)
	assert.Equal(t, "Test Pharmacist", a.Name)
}

func TestValidateAccessToken_Expired(t *testing.T) {
	manager := testManager(-1 * time.Minute)

	token, err := manager.GenerateAccessToken(&authtoken.UserInfo{ID: "user-1"})
	require.NoError(t, err)

	claims, err := manager.ValidateAccessToken(token)
	assert.Nil(t, claims)

	var appErr *errors.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, "TOKEN_EXPIRED", appErr.Code)
}

func TestValidateAccessToken_WrongSecret(t *testing.T) {
	token, err := testManager(15 * time.Minute).GenerateAccessToken(&authtoken.UserInfo{ID: "user-1"})
	require.NoError(t, err)

	other := authtoken.NewManager(&config.JWTConfig{Secret: "different-secret"})
	claims, err := other.ValidateAccessToken(token)
	assert.Nil(t, claims)

	var appErr *errors.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, "TOKEN_INVALID", appErr.Code)
}

func TestValidateAccessToken_Garbage(t *testing.T) {
	manager := testManager(15 * time.Minute)

	claims, err := manager.ValidateAccessToken("not.a.token")
	assert.Nil(t, claims)
	assert.Error(t, err)
}
