package auth

import (
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func TestJWTManager_AccessTokenRoundTrip(t *testing.T) {
	t.Parallel()

	m := NewJWTManager(testSecret, "hashvault", 15*time.Minute)
	userID := uuid.New()

	token, err := m.GenerateAccessToken(userID, "admin")
	if err != nil {
		t.Fatalf("GenerateAccessToken: %v", err)
	}

	gotID, gotRole, err := m.ValidateAccessToken(token)
	if err != nil {
		t.Fatalf("ValidateAccessToken: %v", err)
	}
	if gotID != userID {
		t.Errorf("userID = %v, want %v", gotID, userID)
	}
	if gotRole != "admin" {
		t.Errorf("role = %q, want %q", gotRole, "admin")
	}
}

func TestJWTManager_RejectsExpired(t *testing.T) {
	t.Parallel()

	m := NewJWTManager(testSecret, "hashvault", -time.Minute)

	token, err := m.GenerateAccessToken(uuid.New(), "user")
	if err != nil {
		t.Fatalf("GenerateAccessToken: %v", err)
	}

	if _, _, err := m.ValidateAccessToken(token); err == nil {
		t.Fatal("expected an error for an expired token")
	}
}

func TestJWTManager_RejectsWrongSecret(t *testing.T) {
	t.Parallel()

	m := NewJWTManager(testSecret, "hashvault", 15*time.Minute)
	other := NewJWTManager("another-secret-another-secret-32", "hashvault", 15*time.Minute)

	token, err := m.GenerateAccessToken(uuid.New(), "user")
	if err != nil {
		t.Fatalf("GenerateAccessToken: %v", err)
	}

	if _, _, err := other.ValidateAccessToken(token); err == nil {
		t.Fatal("expected an error for a token signed with a different secret")
	}
}

func TestJWTManager_RejectsWrongIssuer(t *testing.T) {
	t.Parallel()

	m := NewJWTManager(testSecret, "hashvault", 15*time.Minute)
	other := NewJWTManager(testSecret, "someone-else", 15*time.Minute)

	token, err := m.GenerateAccessToken(uuid.New(), "user")
	if err != nil {
		t.Fatalf("GenerateAccessToken: %v", err)
	}

	if _, _, err := other.ValidateAccessToken(token); err == nil {
		t.Fatal("expected an error for a token with a different issuer")
	}
}

func TestJWTManager_RejectsEmpty(t *testing.T) {
	t.Parallel()

	m := NewJWTManager(testSecret, "hashvault", 15*time.Minute)
	if _, _, err := m.ValidateAccessToken(""); err == nil {
		t.Fatal("expected an error for an empty token")
	}
}

func TestGenerateRefreshToken(t *testing.T) {
	t.Parallel()

	m := NewJWTManager(testSecret, "hashvault", 15*time.Minute)

	raw, hash, err := m.GenerateRefreshToken()
	if err != nil {
		t.Fatalf("GenerateRefreshToken: %v", err)
	}

	if raw == "" || hash == "" {
		t.Fatal("raw and hash must be non-empty")
	}
	if raw == hash {
		t.Fatal("hash must differ from the raw token")
	}
	if HashToken(raw) != hash {
		t.Error("hash must be the SHA-256 of the raw token")
	}
	if len(hash) != 64 {
		t.Errorf("hash length = %d, want 64 hex chars", len(hash))
	}
	if strings.ContainsAny(raw, "+/=") {
		t.Errorf("raw token %q must be URL-safe", raw)
	}

	raw2, hash2, err := m.GenerateRefreshToken()
	if err != nil {
		t.Fatalf("GenerateRefreshToken: %v", err)
	}
	if raw == raw2 || hash == hash2 {
		t.Error("two generated tokens must differ")
	}
}
