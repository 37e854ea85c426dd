// Package auth issues and validates the identity service's HS256 tokens.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/primeauth/internal/common"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Kind separates access tokens from refresh tokens signed with the same key.
type Kind string

const (
	KindAccess  Kind = "access"
	KindRefresh Kind = "refresh"
)

// Claims are the registered claims plus the account id and token kind. ID
// (jti) is unique per token so a single refresh token can be blacklisted.
type Claims struct {
	jwt.RegisteredClaims
	UserID int64 `json:"user_id"`
	Kind   Kind  `json:"token_type"`
}

func GenerateToken(userID int64, kind Kind, secretKey []byte, validityDuration time.Duration) (string, *Claims, error) {
	now := time.Now()
	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(validityDuration)),
		},
		UserID: userID,
		Kind:   kind,
	}

	tokenString, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secretKey)
	if err != nil {
		return "", nil, fmt.Errorf("sign %s token: %w", kind, err)
	}
	return tokenString, claims, nil
}

// ParseToken validates tokenString and requires it to be of the given kind.
// Expired tokens yield common.ErrTokenExpired (common.ErrRefreshTokenExpired
// for refresh tokens); every other failure is common.ErrInvalidToken.
func ParseToken(tokenString string, kind Kind, secretKey []byte) (*Claims, error) {
	claims := &Claims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		return secretKey, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			if kind == KindRefresh {
				return nil, common.ErrRefreshTokenExpired
			}
			return nil, common.ErrTokenExpired
		}
		return nil, common.ErrInvalidToken
	}

	if !token.Valid || claims.Kind != kind {
		return nil, common.ErrInvalidToken
	}
	return claims, nil
}
