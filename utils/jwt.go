package utils

import (
	"errors"

	"github.com/golang-jwt/jwt/v5"
)

// Roles issued by the identity provider.
const (
	RoleAdmin  = "admin"
	RoleStaff  = "staff"
	RoleClient = "client"
)

// CustomClaims is the identity the provider puts in its tokens. Tokens are
// issued elsewhere; this service only verifies them.
type CustomClaims struct {
	UserID string `json:"user_id"`
	Role   string `json:"role"`
	jwt.RegisteredClaims
}

func IsStaffRole(role string) bool {
	return role == RoleAdmin || role == RoleStaff
}

func ParseToken(tokenString string, secret []byte) (*CustomClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &CustomClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return secret, nil
	}, jwt.WithExpirationRequired())

	if err != nil || !token.Valid {
		return nil, errors.New("invalid or expired token")
	}

	claims, ok := token.Claims.(*CustomClaims)
	if !ok {
		return nil, errors.New("invalid token claims")
	}
	if claims.UserID == "" {
		return nil, errors.New("invalid user ID in token")
	}
	switch claims.Role {
	case RoleAdmin, RoleStaff, RoleClient:
	default:
		return nil, errors.New("unknown role in token")
	}

	return claims, nil
}
