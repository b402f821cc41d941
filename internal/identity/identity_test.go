package identity

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"veilpoll/go-client/internal/chain"
)

func encodeTestToken(t *testing.T, payload map[string]any) string {
	t.Helper()
	header := base64.RawURLEncoding.EncodeToString([]byte(`{"alg":"RS256","typ":"JWT"}`))
	body, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	return header + "." + base64.RawURLEncoding.EncodeToString(body) + ".sig"
}

func TestParseTokenExtractsClaims(t *testing.T) {
	raw := encodeTestToken(t, map[string]any{
		"iss":   "https://issuer",
		"aud":   "client-a",
		"sub":   "user-1",
		"nonce": "n-123",
		"email": "user@example.com",
	})
	claims, err := ParseToken(raw)
	if err != nil {
		t.Fatalf("parse token: %v", err)
	}
	if claims.Issuer != "https://issuer" || claims.Audience != "client-a" || claims.Subject != "user-1" {
		t.Fatalf("unexpected claims: %+v", claims)
	}
	if claims.Nonce != "n-123" {
		t.Fatalf("nonce = %q, want n-123", claims.Nonce)
	}
	if claims.Email != "user@example.com" {
		t.Fatalf("email = %q", claims.Email)
	}
}

func TestParseTokenRejectsMissingSubject(t *testing.T) {
	raw := encodeTestToken(t, map[string]any{
		"iss": "https://issuer",
		"aud": "client-a",
	})
	_, err := ParseToken(raw)
	if !errors.Is(err, ErrMalformedClaims) {
		t.Fatalf("err = %v, want ErrMalformedClaims", err)
	}
}

func TestParseTokenRejectsGarbage(t *testing.T) {
	for _, raw := range []string{"", "not-a-token", "a.b"} {
		if _, err := ParseToken(raw); !errors.Is(err, ErrMalformedClaims) {
			t.Fatalf("token %q: err = %v, want ErrMalformedClaims", raw, err)
		}
	}
}

func TestSaltWidthAndDeterminism(t *testing.T) {
	claims := Claims{Issuer: "p", Audience: "a", Subject: "u1"}
	first, err := Salt(claims)
	if err != nil {
		t.Fatalf("salt: %v", err)
	}
	if len(first) != chain.SaltSize {
		t.Fatalf("salt width = %d, want %d", len(first), chain.SaltSize)
	}
	second, err := Salt(claims)
	if err != nil {
		t.Fatalf("salt again: %v", err)
	}
	if string(first) != string(second) {
		t.Fatal("salt must be deterministic")
	}
}

func TestDeriveAddressStableAcrossInstances(t *testing.T) {
	claims := Claims{Issuer: "p", Audience: "a", Subject: "u1"}
	first, err := DeriveAddress(claims)
	if err != nil {
		t.Fatalf("derive address: %v", err)
	}
	// Fresh value with identical claims, as after a later re-login.
	relogin := Claims{Issuer: "p", Audience: "a", Subject: "u1"}
	second, err := DeriveAddress(relogin)
	if err != nil {
		t.Fatalf("derive address on re-login: %v", err)
	}
	if first != second {
		t.Fatalf("address must be stable: %s != %s", first, second)
	}
	if !strings.HasPrefix(first, "0x") {
		t.Fatalf("address missing 0x prefix: %s", first)
	}
}

func TestDeriveAddressDistinctSubjects(t *testing.T) {
	seen := make(map[string]string)
	for _, sub := range []string{"u1", "u2", "u3", "alice", "bob", "carol"} {
		addr, err := DeriveAddress(Claims{Issuer: "p", Audience: "a", Subject: sub})
		if err != nil {
			t.Fatalf("derive address for %s: %v", sub, err)
		}
		if prior, ok := seen[addr]; ok {
			t.Fatalf("address collision between %s and %s", prior, sub)
		}
		seen[addr] = sub
	}
}

func TestDeriveAddressRejectsIncompleteClaims(t *testing.T) {
	if _, err := DeriveAddress(Claims{Issuer: "p", Audience: "a"}); !errors.Is(err, ErrMalformedClaims) {
		t.Fatalf("err = %v, want ErrMalformedClaims", err)
	}
}
