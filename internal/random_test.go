package internal

import (
	"strings"
	"testing"
)

func TestRefreshTokenRoundTrip(t *testing.T) {
	tid, err := NewTokenID()
	if err != nil {
		t.Fatalf("new token id: %v", err)
	}
	secret, err := NewRefreshSecret()
	if err != nil {
		t.Fatalf("new secret: %v", err)
	}

	wire, err := EncodeRefreshToken(tid.String(), secret)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	gotID, gotSecret, err := DecodeRefreshToken(wire)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if gotID != tid.String() {
		t.Fatalf("token id = %q, want %q", gotID, tid.String())
	}
	if gotSecret != secret {
		t.Fatal("secret mismatch after roundtrip")
	}
}

func TestDecodeRefreshTokenRejectsBadInput(t *testing.T) {
	for _, tok := range []string{"", "!!!", "short", strings.Repeat("A", 100)} {
		if _, _, err := DecodeRefreshToken(tok); err == nil {
			t.Fatalf("DecodeRefreshToken(%q): expected error", tok)
		}
	}
}

func TestHashRefreshSecretDeterministic(t *testing.T) {
	secret, err := NewRefreshSecret()
	if err != nil {
		t.Fatalf("new secret: %v", err)
	}
	a := HashRefreshSecret(secret)
	b := HashRefreshSecret(secret)
	if !ConstantTimeHashEqual(a, b) {
		t.Fatal("hash of same secret must be stable")
	}

	other, err := NewRefreshSecret()
	if err != nil {
		t.Fatalf("new secret: %v", err)
	}
	if ConstantTimeHashEqual(a, HashRefreshSecret(other)) {
		t.Fatal("distinct secrets must hash differently")
	}
}
