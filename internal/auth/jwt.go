// File: internal/auth/jwt.go
package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const DefaultTokenTTL = 24 * time.Hour

var ErrInvalidToken = errors.New("invalid token")

// OperatorClaims identifies a signed-in operator.
type OperatorClaims struct {
	OperatorID uint `json:"operator_id"`
	jwt.RegisteredClaims
}

// GenerateJWT signs a token for an operator that expires after ttl.
func GenerateJWT(operatorID uint, secretKey []byte, ttl time.Duration) (string, error) {
	if operatorID == 0 {
		return "", errors.New("operator ID cannot be zero")
	}
	if len(secretKey) == 0 {
		return "", errors.New("secret key cannot be empty")
	}
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}

	now := time.Now()
	claims := OperatorClaims{
		OperatorID: operatorID,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(secretKey)
}

// ValidateToken checks signature and expiry and returns the operator ID.
func ValidateToken(tokenString string, secretKey []byte) (uint, error) {
	var claims OperatorClaims
	token, err := jwt.ParseWithClaims(tokenString, &claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return secretKey, nil
	})
	if err != nil {
		return 0, err
	}
	if !token.Valid || claims.OperatorID == 0 {
		return 0, ErrInvalidToken
	}
	return claims.OperatorID, nil
}
