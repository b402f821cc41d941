// Package identity maps federated-login claims to a stable ledger address.
// Derivation is pure: equal claim triples yield a bit-identical salt and
// address across time, devices and sessions, which is what lets a user log
// back in without any account database.
package identity

import (
	"errors"
	"fmt"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

var ErrMalformedClaims = errors.New("malformed identity claims")

// Claims is the validated subset of the identity token this subsystem
// consumes. Required fields are checked once here, at the boundary.
type Claims struct {
	Issuer   string
	Audience string
	Subject  string
	Nonce    string
	Email    string
}

type tokenClaims struct {
	jwt.RegisteredClaims
	Nonce string `json:"nonce"`
	Email string `json:"email"`
}

// ParseToken extracts and validates claims from a raw identity token. The
// token's signature is verified by the proof service and the ledger, not
// locally, so the parse is unverified by contract.
func ParseToken(raw string) (Claims, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Claims{}, fmt.Errorf("%w: empty token", ErrMalformedClaims)
	}
	var parsed tokenClaims
	parser := jwt.NewParser(jwt.WithoutClaimsValidation())
	if _, _, err := parser.ParseUnverified(raw, &parsed); err != nil {
		return Claims{}, fmt.Errorf("%w: %v", ErrMalformedClaims, err)
	}
	aud := ""
	if len(parsed.Audience) > 0 {
		aud = parsed.Audience[0]
	}
	claims := Claims{
		Issuer:   strings.TrimSpace(parsed.Issuer),
		Audience: strings.TrimSpace(aud),
		Subject:  strings.TrimSpace(parsed.Subject),
		Nonce:    strings.TrimSpace(parsed.Nonce),
		Email:    strings.TrimSpace(parsed.Email),
	}
	if err := claims.Validate(); err != nil {
		return Claims{}, err
	}
	return claims, nil
}

// Validate reports whether the claim triple is complete. Nonce and email
// are optional here; the nonce binding check belongs to the login flow.
func (c Claims) Validate() error {
	if c.Issuer == "" {
		return fmt.Errorf("%w: missing iss", ErrMalformedClaims)
	}
	if c.Audience == "" {
		return fmt.Errorf("%w: missing aud", ErrMalformedClaims)
	}
	if c.Subject == "" {
		return fmt.Errorf("%w: missing sub", ErrMalformedClaims)
	}
	return nil
}
