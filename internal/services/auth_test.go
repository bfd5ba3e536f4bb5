package services

import (
	"testing"

	"golang.org/x/crypto/bcrypt"
)

func TestNormalizeEmail(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"Ada@Example.COM", "ada@example.com"},
		{"  ada@example.com ", "ada@example.com"},
		{"ada@example.com", "ada@example.com"},
	}

	for _, test := range tests {
		if got := NormalizeEmail(test.in); got != test.want {
			t.Errorf("NormalizeEmail(%q) = %q, expected %q", test.in, got, test.want)
		}
	}
}

func TestVerifyPassword(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("correct horse"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("bcrypt failed: %v", err)
	}

	if !VerifyPassword(string(hash), "correct horse") {
		t.Error("Expected matching password to verify")
	}

	if VerifyPassword(string(hash), "battery staple") {
		t.Error("Expected wrong password to fail verification")
	}

	if VerifyPassword("not-a-hash", "correct horse") {
		t.Error("Expected malformed hash to fail verification")
	}
}
