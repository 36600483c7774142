package auth

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func TestValidateRegistration(t *testing.T) {
	tests := []struct {
		name                      string
		username, email, password string
		want                      error
	}{
		{"ok", "dare_devil", "d@example.com", "secret1", nil},
		{"short username", "ab", "d@example.com", "secret1", ErrInvalidUsername},
		{"long username", strings.Repeat("a", 31), "d@example.com", "secret1", ErrInvalidUsername},
		{"bad characters", "dare devil", "d@example.com", "secret1", ErrInvalidUsername},
		{"no at", "daredevil", "example.com", "secret1", ErrInvalidEmail},
		{"at first", "daredevil", "@example.com", "secret1", ErrInvalidEmail},
		{"at last", "daredevil", "d@", "secret1", ErrInvalidEmail},
		{"short password", "daredevil", "d@example.com", "12345", ErrWeakPassword},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := ValidateRegistration(tt.username, tt.email, tt.password); !errors.Is(err, tt.want) {
				t.Errorf("ValidateRegistration() = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestPasswordHash(t *testing.T) {
	h, err := HashPassword("hunter22")
	if err != nil {
		t.Fatalf("hash failed: %v", err)
	}
	if h == "hunter22" {
		t.Fatalf("password stored in clear")
	}
	if !CheckPassword(h, "hunter22") {
		t.Errorf("correct password rejected")
	}
	if CheckPassword(h, "hunter23") {
		t.Errorf("wrong password accepted")
	}
}

func TestTokenRoundTrip(t *testing.T) {
	tok, err := IssueToken("k", time.Hour, 42, "admin")
	if err != nil {
		t.Fatalf("issue failed: %v", err)
	}
	claims, err := ParseToken("k", tok)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if claims.UserID != 42 || claims.Role != "admin" {
		t.Errorf("unexpected claims %+v", claims)
	}

	if _, err := ParseToken("other", tok); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("token signed with another secret accepted")
	}
	if _, err := ParseToken("k", tok+"x"); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("tampered token accepted")
	}
}

func TestExpiredToken(t *testing.T) {
	tok, err := IssueToken("k", -time.Minute, 1, "user")
	if err != nil {
		t.Fatalf("issue failed: %v", err)
	}
	if _, err := ParseToken("k", tok); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("expired token accepted")
	}
}
