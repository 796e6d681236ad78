package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var secret = []byte("test-secret-key-with-enough-length")

func TestGenerateAndValidateToken(t *testing.T) {
	token, err := GenerateJWT(42, secret, time.Hour)
	require.NoError(t, err)

	operatorID, err := ValidateToken(token, secret)
	require.NoError(t, err)
	assert.EqualValues(t, 42, operatorID)
}

func TestGenerateRejectsBadInput(t *testing.T) {
	_, err := GenerateJWT(0, secret, time.Hour)
	assert.Error(t, err)
	_, err = GenerateJWT(1, nil, time.Hour)
	assert.Error(t, err)
}

func TestValidateRejectsWrongSecretAndExpiry(t *testing.T) {
	token, err := GenerateJWT(7, secret, time.Hour)
	require.NoError(t, err)
	_, err = ValidateToken(token, []byte("another-secret"))
	assert.Error(t, err)

	expired := jwt.NewWithClaims(jwt.SigningMethodHS256, OperatorClaims{
		OperatorID: 7,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
		},
	})
	signed, err := expired.SignedString(secret)
	require.NoError(t, err)
	_, err = ValidateToken(signed, secret)
	assert.Error(t, err)
}

func TestValidateRejectsTokenWithoutOperator(t *testing.T) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"exp": time.Now().Add(time.Hour).Unix()})
	signed, err := token.SignedString(secret)
	require.NoError(t, err)

	_, err = ValidateToken(signed, secret)
	assert.ErrorIs(t, err, ErrInvalidToken)
}
