package auth

import (
	"testing"
	"time"
)

func TestTokenRoundTrip(t *testing.T) {
	secret := []byte("test-secret")
	claims := Claims{
		Sub:  "part_1",
		Name: "Avery",
		JTI:  "jti-1",
		Exp:  time.Now().Add(time.Hour).Unix(),
	}

	token, err := IssueToken(secret, claims)
	if err != nil {
		t.Fatalf("IssueToken() error = %v", err)
	}

	parsed, err := ParseToken(secret, token)
	if err != nil {
		t.Fatalf("ParseToken() error = %v", err)
	}
	if parsed.Sub != claims.Sub || parsed.Name != claims.Name || parsed.JTI != claims.JTI {
		t.Fatalf("parsed claims = %+v, want %+v", parsed, claims)
	}
}

func TestTokenWrongSecret(t *testing.T) {
	claims := Claims{Sub: "part_1", Name: "Avery", JTI: "jti-1", Exp: time.Now().Add(time.Hour).Unix()}
	token, _ := IssueToken([]byte("secret-a"), claims)

	if _, err := ParseToken([]byte("secret-b"), token); err != ErrInvalidToken {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
}

func TestTokenExpired(t *testing.T) {
	secret := []byte("test-secret")
	claims := Claims{Sub: "part_1", Name: "Avery", JTI: "jti-1", Exp: time.Now().Add(-time.Minute).Unix()}
	token, _ := IssueToken(secret, claims)

	if _, err := ParseToken(secret, token); err != ErrExpiredToken {
		t.Fatalf("expected ErrExpiredToken, got %v", err)
	}
}

func TestTokenMalformed(t *testing.T) {
	secret := []byte("test-secret")
	for _, token := range []string{"", "a", "a.b.c", "!!!.???"} {
		if _, err := ParseToken(secret, token); err != ErrInvalidToken {
			t.Fatalf("ParseToken(%q) = %v, want ErrInvalidToken", token, err)
		}
	}
}
