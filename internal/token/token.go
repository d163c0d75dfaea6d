// Package token подписывает и проверяет JWT с ролью вызывающей стороны.
package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"

	"github.com/iurnickita/fuelcredit/internal/model"
)

var ErrInvalidToken = errors.New("invalid token")

type Claims struct {
	jwt.RegisteredClaims
	Role     model.Role `json:"role"`
	ClientID string     `json:"client_id,omitempty"`
}

// BuildJWTString выпускает токен для вызывающей стороны.
func BuildJWTString(secretKey string, ttl time.Duration, caller model.Caller) (string, error) {
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
		},
		Role: caller.Role,
	}
	if caller.ClientID != uuid.Nil {
		claims.ClientID = caller.ClientID.String()
	}
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return tok.SignedString([]byte(secretKey))
}

// GetCaller проверяет подпись и срок токена и возвращает вызывающую сторону.
func GetCaller(secretKey string, tokenString string) (model.Caller, error) {
	claims := &Claims{}
	tok, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(secretKey), nil
	})
	if err != nil {
		return model.Caller{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !tok.Valid {
		return model.Caller{}, ErrInvalidToken
	}

	caller := model.Caller{Role: claims.Role}
	switch claims.Role {
	case model.RoleAdmin, model.RoleAssistant:
	case model.RoleClient:
		id, err := uuid.Parse(claims.ClientID)
		if err != nil {
			return model.Caller{}, fmt.Errorf("%w: client id", ErrInvalidToken)
		}
		caller.ClientID = id
	default:
		return model.Caller{}, fmt.Errorf("%w: role %q", ErrInvalidToken, claims.Role)
	}
	return caller, nil
}
