// Package auth issues and checks the bearer tokens that identify the acting
// user on every request.
package auth

import (
	"errors"
	"time"

	"github.com/dmitrijs2005/gophqms/internal/common"
	"github.com/golang-jwt/jwt/v5"
)

// Claims holds the registered claims and the acting user.
type Claims struct {
	jwt.RegisteredClaims
	ActorID string `json:"actor_id"`
}

func GenerateToken(actorID string, secretKey []byte, validityDuration time.Duration) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   actorID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(validityDuration)),
		},
		ActorID: actorID,
	})

	tokenString, err := token.SignedString(secretKey)
	if err != nil {
		return "", err
	}

	return tokenString, nil
}

func GetActorIDFromToken(tokenString string, secretKey []byte) (string, error) {
	claims := &Claims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		return secretKey, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", common.ErrTokenExpired
		}
		return "", err
	}

	if !token.Valid || claims.ActorID == "" {
		return "", common.ErrInvalidToken
	}

	return claims.ActorID, nil
}
