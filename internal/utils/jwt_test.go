package utils

import (
	"testing"
	"time"
)

const testSecret = "test-secret-key-for-testing"

func init() {
	SetJWTSecret(testSecret)
}

func TestGenerateToken_RoundTrip(t *testing.T) {
	token, err := GenerateToken(42, "jane@example.com", "admin", 24)
	if err != nil {
		t.Fatalf("GenerateToken() error = %v", err)
	}
	if token == "" {
		t.Fatal("GenerateToken() returned empty token")
	}

	claims, err := ParseToken(token)
	if err != nil {
		t.Fatalf("ParseToken() error = %v", err)
	}
	if claims.UserID != 42 {
		t.Errorf("UserID = %d, expected 42", claims.UserID)
	}
	if claims.Email != "jane@example.com" {
		t.Errorf("Email = %q, expected jane@example.com", claims.Email)
	}
	if claims.Role != "admin" {
		t.Errorf("Role = %q, expected admin", claims.Role)
	}
}

func TestGenerateToken_DistinctPerUser(t *testing.T) {
	a, _ := GenerateToken(1, "a@example.com", "user", 24)
	b, _ := GenerateToken(2, "b@example.com", "user", 24)
	if a == b {
		t.Error("different users should produce different tokens")
	}
}

func TestParseToken_Rejects(t *testing.T) {
	for _, token := range []string{
		"",
		"garbage",
		"not.a.token",
		"eyJhbGciOiJIUzI1NiIsInR5cCI6IkpXVCJ9.invalid.signature",
	} {
		if _, err := ParseToken(token); err == nil {
			t.Errorf("ParseToken(%q) should return error", token)
		}
	}
}

func TestParseToken_WrongSecret(t *testing.T) {
	SetJWTSecret("issuer-secret")
	token, _ := GenerateToken(1, "a@example.com", "admin", 24)

	SetJWTSecret("verifier-secret")
	_, err := ParseToken(token)
	SetJWTSecret(testSecret)

	if err == nil {
		t.Error("ParseToken should fail with wrong secret")
	}
}

func TestParseToken_Expired(t *testing.T) {
	token, _ := GenerateToken(1, "a@example.com", "user", -1)
	if _, err := ParseToken(token); err == nil {
		t.Error("expired token should be rejected")
	}
}

func TestGenerateToken_Expiration(t *testing.T) {
	token, _ := GenerateToken(1, "a@example.com", "user", 1)
	claims, err := ParseToken(token)
	if err != nil {
		t.Fatalf("ParseToken() error = %v", err)
	}

	diff := claims.ExpiresAt.Time.Sub(time.Now().Add(time.Hour))
	if diff < -time.Minute || diff > time.Minute {
		t.Errorf("expiration time is off by more than 1 minute: %v", diff)
	}
}
