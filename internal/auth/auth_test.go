package auth

import (
	"errors"
	"testing"
	"time"
)

func TestPINVerifierPlain(t *testing.T) {
	v := NewPINVerifier("1234", "")
	if !v.Verify("1234") {
		t.Fatalf("expected correct pin to pass")
	}
	if v.Verify("0000") || v.Verify("") || v.Verify("12345") {
		t.Fatalf("expected wrong pins to fail")
	}
}

func TestPINVerifierEmptyPINRejectsEverything(t *testing.T) {
	v := NewPINVerifier("", "")
	if v.Verify("") {
		t.Fatalf("expected empty configuration to reject")
	}
}

func TestPINVerifierHashTakesPrecedence(t *testing.T) {
	hash, err := HashPIN("9876")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	v := NewPINVerifier("1234", hash)
	if !v.Verify("9876") {
		t.Fatalf("expected hashed pin to pass")
	}
	if v.Verify("1234") {
		t.Fatalf("expected plain pin to be ignored when a hash is set")
	}
}

func TestSessionTokensRoundTrip(t *testing.T) {
	tokens := NewSessionTokens("secret", time.Hour)
	tok, err := tokens.Issue("session-1")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	id, err := tokens.Parse(tok)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if id != "session-1" {
		t.Fatalf("expected session-1, got %q", id)
	}
}

func TestSessionTokensRejectForeignAndExpired(t *testing.T) {
	tokens := NewSessionTokens("secret", time.Hour)
	other := NewSessionTokens("other", time.Hour)

	tok, _ := other.Issue("session-1")
	if _, err := tokens.Parse(tok); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected foreign token rejected, got %v", err)
	}
	if _, err := tokens.Parse("garbage"); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected garbage rejected, got %v", err)
	}

	issuedAt := time.Now()
	tokens.now = func() time.Time { return issuedAt }
	tok, _ = tokens.Issue("session-2")
	tokens.now = func() time.Time { return issuedAt.Add(2 * time.Hour) }
	if _, err := tokens.Parse(tok); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected expired token rejected, got %v", err)
	}
}
