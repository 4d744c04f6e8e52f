package services

import (
	"testing"

	"trdelnik-backend/internal/config"
)

func TestJWTRoundTrip(t *testing.T) {
	svc := NewJWTService(&config.Config{JWTSecret: "test-secret"})

	token, err := svc.GenerateToken(testPlayer)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	claims, err := svc.ValidateToken(token)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if claims.Player != testPlayer {
		t.Errorf("expected player %s, got %s", testPlayer, claims.Player)
	}
}

func TestJWTRejectsWrongSecret(t *testing.T) {
	issuer := NewJWTService(&config.Config{JWTSecret: "secret-a"})
	verifier := NewJWTService(&config.Config{JWTSecret: "secret-b"})

	token, err := issuer.GenerateToken(testPlayer)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, err := verifier.ValidateToken(token); err == nil {
		t.Error("expected validation to fail with a different secret")
	}
}

func TestJWTRejectsGarbage(t *testing.T) {
	svc := NewJWTService(&config.Config{JWTSecret: "test-secret"})

	if _, err := svc.ValidateToken("not.a.token"); err == nil {
		t.Error("expected error for malformed token")
	}
}
