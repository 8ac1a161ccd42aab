package utils

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dripcrm/config"
)

func TestJWTRoundTrip(t *testing.T) {
	config.AppConfig.JWTSecret = "test-secret"

	token, err := GenerateJWT(42, time.Hour)
	require.NoError(t, err)
	require.NotEmpty(t, token)

	claims, err := ParseJWTToken(token)
	require.NoError(t, err)
	assert.EqualValues(t, 42, claims.UserID)
}

func TestParseJWTTokenRejectsExpired(t *testing.T) {
	config.AppConfig.JWTSecret = "test-secret"

	token, err := GenerateJWT(42, -time.Minute)
	require.NoError(t, err)

	_, err = ParseJWTToken(token)
	assert.Error(t, err)
}

func TestParseJWTTokenRejectsWrongSecret(t *testing.T) {
	config.AppConfig.JWTSecret = "test-secret"
	token, err := GenerateJWT(42, time.Hour)
	require.NoError(t, err)

	config.AppConfig.JWTSecret = "other-secret"
	_, err = ParseJWTToken(token)
	assert.Error(t, err)
	config.AppConfig.JWTSecret = "test-secret"
}

func TestValidateStructMessages(t *testing.T) {
	type payload struct {
		Name  string `validate:"required"`
		Email string `validate:"omitempty,email"`
	}

	assert.NoError(t, ValidateStruct(payload{Name: "x"}))

	err := ValidateStruct(payload{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "name is required")

	err = ValidateStruct(payload{Name: "x", Email: "nope"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "email must be a valid email")
}

func TestValidateEmailFormat(t *testing.T) {
	assert.NoError(t, ValidateEmailFormat("pat@example.com"))
	assert.Error(t, ValidateEmailFormat("not-an-email"))
}
