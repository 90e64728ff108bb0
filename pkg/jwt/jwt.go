package jwt

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	SubjectAccess  = "access"
	SubjectRefresh = "refresh"
)

type Claims struct {
	UserID string `json:"user_id"`
	jwt.RegisteredClaims
}

func GenerateToken(userID string, expiration time.Duration, secret string) (string, error) {
	return sign(userID, expiration, secret, SubjectAccess)
}

func GenerateRefreshToken(userID string, expiration time.Duration, secret string) (string, error) {
	return sign(userID, expiration, secret, SubjectRefresh)
}

func sign(userID string, expiration time.Duration, secret, subject string) (string, error) {
	now := time.Now()
	claims := Claims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(expiration)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

func ValidateToken(tokenString, secret string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, err
	}
	if !token.Valid || claims.UserID == "" {
		return nil, fmt.Errorf("invalid token")
	}
	return claims, nil
}

// ValidateAccessToken accepts only tokens minted by GenerateToken.
func ValidateAccessToken(tokenString, secret string) (*Claims, error) {
	return validateSubject(tokenString, secret, SubjectAccess)
}

// ValidateRefreshToken accepts only tokens minted by GenerateRefreshToken.
func ValidateRefreshToken(tokenString, secret string) (*Claims, error) {
	return validateSubject(tokenString, secret, SubjectRefresh)
}

func validateSubject(tokenString, secret, subject string) (*Claims, error) {
	claims, err := ValidateToken(tokenString, secret)
	if err != nil {
		return nil, err
	}
	if claims.Subject != subject {
		return nil, fmt.Errorf("expected %s token, got %q", subject, claims.Subject)
	}
	return claims, nil
}
