package gateway

import (
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

var errNoSecret = errors.New("gateway: jwt secret not configured")

// sessionClaims is the token payload minted by the account service.
type sessionClaims struct {
	Account uint32 `json:"acct"`
	Group   uint32 `json:"grp"`
	jwt.RegisteredClaims
}

// verifyToken checks the HS256 signature and returns the account identity.
func verifyToken(secret, token string) (*sessionClaims, error) {
	if secret == "" {
		return nil, errNoSecret
	}
	claims := &sessionClaims{}
	_, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %q", t.Header["alg"])
		}
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{"HS256"}))
	if err != nil {
		return nil, err
	}
	if claims.Account == 0 {
		return nil, errors.New("token missing account id")
	}
	return claims, nil
}
