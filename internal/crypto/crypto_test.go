package crypto

import (
	"regexp"
	"testing"
)

func TestPasswordHashing(t *testing.T) {
	hash, err := HashPassword("secret")
	if err != nil {
		t.Fatalf("hash error: %v", err)
	}
	if hash == "secret" {
		t.Fatalf("expected password to be hashed")
	}
	if err := CheckPassword(hash, "secret"); err != nil {
		t.Fatalf("expected password to match")
	}
	if err := CheckPassword(hash, "wrong"); err == nil {
		t.Fatalf("expected password mismatch")
	}
}

func TestNewAPIKey(t *testing.T) {
	format := regexp.MustCompile(`^AQ-[0-9a-f]{32}$`)
	seen := map[string]bool{}
	for i := 0; i < 64; i++ {
		key, err := NewAPIKey()
		if err != nil {
			t.Fatalf("key error: %v", err)
		}
		if !format.MatchString(key) {
			t.Fatalf("unexpected key format %q", key)
		}
		if seen[key] {
			t.Fatalf("duplicate key %q", key)
		}
		seen[key] = true
	}
}
