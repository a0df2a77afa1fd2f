package gateway

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func signToken(t *testing.T, secret string, claims sessionClaims) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	s, err := tok.SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	return s
}

func TestVerifyToken(t *testing.T) {
	t.Parallel()

	const secret = "test-secret"
	raw := signToken(t, secret, sessionClaims{
		Account: 42,
		Group:   7,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})

	claims, err := verifyToken(secret, raw)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if claims.Account != 42 || claims.Group != 7 {
		t.Fatalf("claims = %+v", claims)
	}
}

func TestVerifyTokenRejectsBadSignature(t *testing.T) {
	t.Parallel()

	raw := signToken(t, "other-secret", sessionClaims{Account: 42})
	if _, err := verifyToken("test-secret", raw); err == nil {
		t.Fatalf("forged token accepted")
	}
}

func TestVerifyTokenRejectsExpired(t *testing.T) {
	t.Parallel()

	const secret = "test-secret"
	raw := signToken(t, secret, sessionClaims{
		Account: 42,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Hour)),
		},
	})
	if _, err := verifyToken(secret, raw); err == nil {
		t.Fatalf("expired token accepted")
	}
}

func TestVerifyTokenRequiresAccount(t *testing.T) {
	t.Parallel()

	const secret = "test-secret"
	raw := signToken(t, secret, sessionClaims{})
	if _, err := verifyToken(secret, raw); err == nil {
		t.Fatalf("token without account id accepted")
	}
}

func TestVerifyTokenRequiresSecret(t *testing.T) {
	t.Parallel()

	if _, err := verifyToken("", "whatever"); err == nil {
		t.Fatalf("empty secret accepted")
	}
}
