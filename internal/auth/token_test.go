package auth

import (
	"strings"
	"testing"
	"time"
)

func TestIssueAndParseToken(t *testing.T) {
	secret := []byte("secret")
	issued, expiresAt, err := IssueToken(secret, "user-1", "Avery", "member", "jti-1", time.Hour)
	if err != nil {
		t.Fatalf("IssueToken() error = %v", err)
	}
	if time.Until(expiresAt) <= 0 {
		t.Fatalf("IssueToken() expiresAt = %v, want future", expiresAt)
	}
	claims, err := ParseToken(secret, issued)
	if err != nil {
		t.Fatalf("ParseToken() error = %v", err)
	}
	if claims.Subject != "user-1" || claims.Name != "Avery" || claims.Role != "member" || claims.ID != "jti-1" {
		t.Fatalf("unexpected claims: %+v", claims)
	}
}

func TestParseTokenRejectsExpired(t *testing.T) {
	secret := []byte("secret")
	issued, _, err := IssueToken(secret, "user-1", "Avery", "member", "jti-1", -time.Minute)
	if err != nil {
		t.Fatalf("IssueToken() error = %v", err)
	}
	if _, err := ParseToken(secret, issued); err != ErrExpiredToken {
		t.Fatalf("ParseToken() error = %v, want ErrExpiredToken", err)
	}
}

func TestParseTokenRejectsTampering(t *testing.T) {
	issued, _, err := IssueToken([]byte("secret"), "user-1", "Avery", "admin", "jti-1", time.Hour)
	if err != nil {
		t.Fatalf("IssueToken() error = %v", err)
	}

	tests := map[string]string{
		"wrong secret": issued,
		"garbage":      "not-a-token",
		"truncated":    issued[:strings.LastIndex(issued, ".")],
	}
	for name, token := range tests {
		t.Run(name, func(t *testing.T) {
			secret := []byte("secret")
			if name == "wrong secret" {
				secret = []byte("other")
			}
			if _, err := ParseToken(secret, token); err != ErrInvalidToken {
				t.Fatalf("ParseToken() error = %v, want ErrInvalidToken", err)
			}
		})
	}
}

func TestHashTokenStable(t *testing.T) {
	if HashToken("abc") != HashToken("abc") {
		t.Fatal("HashToken() not deterministic")
	}
	if HashToken("abc") == HashToken("abd") {
		t.Fatal("HashToken() collision")
	}
	if len(HashToken("abc")) != 64 {
		t.Fatalf("HashToken() length = %d", len(HashToken("abc")))
	}
}
