package user

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateAccessTokenRoundTrip(t *testing.T) {
	token, err := generateAccessJWT("secret", "user-42", time.Now().Add(accessTokenTTL))
	require.NoError(t, err)

	userID, err := ValidateAccessToken("secret", token)
	require.NoError(t, err)
	assert.Equal(t, "user-42", userID)
}

func TestValidateAccessTokenRejectsWrongSecret(t *testing.T) {
	token, err := generateAccessJWT("secret", "user-42", time.Now().Add(accessTokenTTL))
	require.NoError(t, err)

	_, err = ValidateAccessToken("other-secret", token)
	assert.Error(t, err)
}

func TestValidateAccessTokenRejectsExpired(t *testing.T) {
	token, err := generateAccessJWT("secret", "user-42", time.Now().Add(-time.Minute))
	require.NoError(t, err)

	_, err = ValidateAccessToken("secret", token)
	assert.Error(t, err)
}

func TestValidateAccessTokenRejectsGarbage(t *testing.T) {
	_, err := ValidateAccessToken("secret", "not-a-jwt")
	assert.Error(t, err)
}

func TestValidateAccessTokenRejectsMissingSubject(t *testing.T) {
	claims := jwt.MapClaims{
		"typ": string(TokenTypeAccess),
		"exp": time.Now().Add(time.Minute).Unix(),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("secret"))
	require.NoError(t, err)

	_, err = ValidateAccessToken("secret", token)
	assert.Error(t, err)
}
