package category

import (
	"encoding/base64"
	"strings"
	"testing"
)

func TestGenerateToken(t *testing.T) {
	token, err := GenerateToken()
	if err != nil {
		t.Fatalf("GenerateToken() error = %v", err)
	}

	// 32 random bytes -> 43 unpadded url-safe base64 chars
	if len(token) != 43 {
		t.Errorf("GenerateToken() len = %d, want 43", len(token))
	}
	if strings.ContainsAny(token, "+/=") {
		t.Errorf("GenerateToken() = %q, contains non-url-safe chars", token)
	}
	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		t.Fatalf("GenerateToken() is not valid url-safe base64: %v", err)
	}
	if len(raw) != tokenBytes {
		t.Errorf("GenerateToken() decodes to %d bytes, want %d", len(raw), tokenBytes)
	}
}

func TestGenerateToken_unique(t *testing.T) {
	seen := make(map[string]bool, 1000)
	for i := 0; i < 1000; i++ {
		token, err := GenerateToken()
		if err != nil {
			t.Fatalf("GenerateToken() error = %v", err)
		}
		if seen[token] {
			t.Fatalf("GenerateToken() produced a duplicate: %q", token)
		}
		seen[token] = true
	}
}
