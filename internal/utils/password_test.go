package utils

import (
	"strings"
	"testing"
)

func TestHashPassword(t *testing.T) {
	hash, err := HashPassword("s3cret-passphrase")
	if err != nil {
		t.Fatalf("HashPassword() error = %v", err)
	}
	if hash == "" || hash == "s3cret-passphrase" {
		t.Errorf("unexpected hash %q", hash)
	}
	if !strings.HasPrefix(hash, "$2") {
		t.Errorf("expected a bcrypt hash, got %q", hash)
	}
}

func TestHashPassword_Salted(t *testing.T) {
	h1, _ := HashPassword("same")
	h2, _ := HashPassword("same")
	if h1 == h2 {
		t.Error("same password should produce different hashes")
	}
}

func TestHashPassword_TooLong(t *testing.T) {
	if _, err := HashPassword(strings.Repeat("x", 100)); err == nil {
		t.Error("bcrypt should reject passwords over 72 bytes")
	}
}

func TestCheckPassword(t *testing.T) {
	hash, _ := HashPassword("correctpassword")

	tests := []struct {
		name     string
		password string
		hash     string
		expected bool
	}{
		{"correct", "correctpassword", hash, true},
		{"wrong", "wrongpassword", hash, false},
		{"empty", "", hash, false},
		{"case sensitive", "CorrectPassword", hash, false},
		{"invalid hash", "correctpassword", "invalid_hash", false},
		{"empty hash", "correctpassword", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CheckPassword(tt.password, tt.hash); got != tt.expected {
				t.Errorf("CheckPassword(%q) = %v, expected %v", tt.password, got, tt.expected)
			}
		})
	}
}
