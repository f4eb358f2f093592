package secrets

import (
	"strings"
	"testing"
)

func TestGenerateTemp(t *testing.T) {
	seen := map[string]bool{}
	for i := 0; i < 50; i++ {
		secret, err := GenerateTemp()
		if err != nil {
			t.Fatalf("generate: %v", err)
		}
		if len(secret) != TempSecretLength {
			t.Fatalf("expected %d characters, got %d (%q)", TempSecretLength, len(secret), secret)
		}
		if !strings.ContainsAny(secret, digits) {
			t.Fatalf("expected at least one digit in %q", secret)
		}
		if !strings.ContainsAny(secret, symbols) {
			t.Fatalf("expected at least one symbol in %q", secret)
		}
		if seen[secret] {
			t.Fatalf("duplicate secret generated: %q", secret)
		}
		seen[secret] = true
	}
}

func TestHashAndVerify(t *testing.T) {
	secret, err := GenerateTemp()
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	hash, err := Hash(secret)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if hash == secret {
		t.Fatal("hash must not equal plaintext")
	}

	if err := Verify(secret, hash); err != nil {
		t.Fatalf("verify with correct secret: %v", err)
	}
	if err := Verify("wrong-secret", hash); err == nil {
		t.Fatal("expected verification failure for wrong secret")
	}
}

func TestHashRejectsEmptySecret(t *testing.T) {
	if _, err := Hash(""); err == nil {
		t.Fatal("expected error for empty secret")
	}
}
