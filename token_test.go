package ringslog

import (
	"errors"
	"testing"
	"time"
)

func TestTokenRoundTrip(t *testing.T) {
	ti := NewTokenIssuer("secret", time.Hour)
	tok, err := ti.Sign("user-1")
	if err != nil {
		t.Fatalf("Sign failed: %v", err)
	}
	uid, err := ti.Parse(tok)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if uid != "user-1" {
		t.Errorf("uid = %q, want user-1", uid)
	}
}

func TestTokenRejected(t *testing.T) {
	ti := NewTokenIssuer("secret", time.Hour)
	tok, _ := ti.Sign("user-1")

	other := NewTokenIssuer("other", time.Hour)
	if _, err := other.Parse(tok); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("wrong secret: expected ErrInvalidToken, got %v", err)
	}
	if _, err := ti.Parse(""); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("empty: expected ErrInvalidToken, got %v", err)
	}
	if _, err := ti.Parse("not.a.jwt"); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("garbage: expected ErrInvalidToken, got %v", err)
	}
}

func TestTokenExpired(t *testing.T) {
	ti := NewTokenIssuer("secret", time.Minute)
	issued := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	ti.now = func() time.Time { return issued }
	tok, err := ti.Sign("user-1")
	if err != nil {
		t.Fatal(err)
	}
	ti.now = func() time.Time { return issued.Add(2 * time.Minute) }
	if _, err := ti.Parse(tok); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("expected ErrInvalidToken for expired token, got %v", err)
	}
}
