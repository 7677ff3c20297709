package jwt

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateAndValidate(t *testing.T) {
	token, err := GenerateToken("u1", "a@b.c", "0xabc", "admin", "secret", time.Hour)
	require.NoError(t, err)

	claims, err := ValidateToken(token, "secret")
	require.NoError(t, err)
	assert.Equal(t, "u1", claims.UserID)
	assert.Equal(t, "0xabc", claims.Wallet)
	assert.Equal(t, "admin", claims.Role)
}

func TestValidateRejects(t *testing.T) {
	token, err := GenerateToken("u1", "", "", "student", "secret", time.Hour)
	require.NoError(t, err)
	_, err = ValidateToken(token, "other")
	assert.Error(t, err)

	expired, err := GenerateToken("u1", "", "", "student", "secret", -time.Minute)
	require.NoError(t, err)
	_, err = ValidateToken(expired, "secret")
	assert.Error(t, err)

	none := jwt.NewWithClaims(jwt.SigningMethodNone, &Claims{UserID: "u1"})
	unsigned, err := none.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	_, err = ValidateToken(unsigned, "secret")
	assert.Error(t, err)
}
