package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func TestCreateAndVerifyToken(t *testing.T) {
	cfg := TokenConfig{Secret: "secret", Expiry: time.Hour, Issuer: "test"}
	tok, err := CreateToken("user-1", cfg)
	if err != nil {
		t.Fatalf("CreateToken: %v", err)
	}

	claims, err := VerifyToken(tok, cfg)
	if err != nil {
		t.Fatalf("VerifyToken: %v", err)
	}
	if claims.UID != "user-1" {
		t.Fatalf("expected user-1, got %q", claims.UID)
	}
}

func TestVerifyToken_WrongSecret(t *testing.T) {
	cfg := TokenConfig{Secret: "secret", Expiry: time.Hour, Issuer: "test"}
	tok, err := CreateToken("user-1", cfg)
	if err != nil {
		t.Fatalf("CreateToken: %v", err)
	}

	_, err = VerifyToken(tok, TokenConfig{Secret: "wrong", Expiry: time.Hour, Issuer: "test"})
	if err == nil {
		t.Fatalf("expected error")
	}
}

func TestVerifyToken_WrongIssuer(t *testing.T) {
	tok, err := CreateToken("user-1", TokenConfig{Secret: "secret", Expiry: time.Hour, Issuer: "someone-else"})
	if err != nil {
		t.Fatalf("CreateToken: %v", err)
	}

	if _, err := VerifyToken(tok, TokenConfig{Secret: "secret", Issuer: "test"}); err == nil {
		t.Fatalf("expected issuer mismatch error")
	}
}

func TestVerifyToken_SubjectFallback(t *testing.T) {
	claims := jwt.RegisteredClaims{
		Subject:   "user-2",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("secret"))
	if err != nil {
		t.Fatalf("SignedString: %v", err)
	}

	got, err := VerifyToken(tok, TokenConfig{Secret: "secret"})
	if err != nil {
		t.Fatalf("VerifyToken: %v", err)
	}
	if got.UID != "user-2" {
		t.Fatalf("expected user-2, got %q", got.UID)
	}
}

func TestCreateToken_InvalidInput(t *testing.T) {
	if _, err := CreateToken("user-1", TokenConfig{Secret: "secret", Expiry: -time.Second}); err == nil {
		t.Fatalf("expected error for negative expiry")
	}
	if _, err := CreateToken("", DefaultTokenConfig("secret")); err != ErrMissingUID {
		t.Fatalf("expected ErrMissingUID, got %v", err)
	}
	if _, err := CreateToken("user-1", DefaultTokenConfig("")); err != ErrMissingSecret {
		t.Fatalf("expected ErrMissingSecret, got %v", err)
	}
}
