package utils

import (
	"strings"
	"testing"
)

func TestNewOpaqueToken(t *testing.T) {
	plain, hash := NewOpaqueToken()

	if len(plain) != 32 {
		t.Errorf("plain token length = %d, expected 32", len(plain))
	}
	if strings.Contains(plain, "-") {
		t.Errorf("plain token %q should not contain dashes", plain)
	}
	if hash != HashToken(plain) {
		t.Error("hash should match HashToken(plain)")
	}
	if hash == plain {
		t.Error("hash should differ from the plain token")
	}
}

func TestNewOpaqueToken_Unique(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		plain, _ := NewOpaqueToken()
		if seen[plain] {
			t.Fatalf("duplicate token after %d iterations", i)
		}
		seen[plain] = true
	}
}
