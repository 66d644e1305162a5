package core

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var (
	ErrInvalidSessionToken = errors.New("invalid session token")
	ErrExpiredSessionToken = errors.New("session token expired")
)

const sessionTokenSubject = "routemapper-ui"

// GenerateSessionToken issues the short-lived token the UI shell
// presents on /api calls. The Strava access token itself never leaves
// the server.
func GenerateSessionToken(config *Config) (string, error) {
	now := time.Now()
	expiresAt := now.Add(time.Duration(config.SessionTokenDuration) * time.Second)

	claims := &jwt.RegisteredClaims{
		ID:        uuid.NewString(),
		Subject:   sessionTokenSubject,
		ExpiresAt: jwt.NewNumericDate(expiresAt),
		IssuedAt:  jwt.NewNumericDate(now),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signedToken, err := token.SignedString([]byte(config.JWTSecret))
	if err != nil {
		return "", err
	}

	return signedToken, nil
}

func ValidateSessionToken(tokenString string, config *Config) error {
	token, err := jwt.ParseWithClaims(tokenString, &jwt.RegisteredClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidSessionToken
		}
		return []byte(config.JWTSecret), nil
	})

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return ErrExpiredSessionToken
		}
		return ErrInvalidSessionToken
	}

	if !token.Valid {
		return ErrInvalidSessionToken
	}

	claims, ok := token.Claims.(*jwt.RegisteredClaims)
	if !ok || claims.Subject != sessionTokenSubject {
		return ErrInvalidSessionToken
	}

	return nil
}
