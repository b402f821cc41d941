package identity

import (
	"crypto/sha256"

	"veilpoll/go-client/internal/chain"
)

// subjectClaim is the token claim the address is bound to.
const subjectClaim = "sub"

// Salt derives the 128-bit identity salt from the claim triple. The width
// is fixed by the proof service's input contract; chain-side checks reject
// anything else.
func Salt(claims Claims) ([]byte, error) {
	if err := claims.Validate(); err != nil {
		return nil, err
	}
	h := sha256.New()
	h.Write([]byte(claims.Issuer))
	h.Write([]byte(claims.Audience))
	h.Write([]byte(claims.Subject))
	sum := h.Sum(nil)
	return sum[:chain.SaltSize], nil
}

// AddressSeed binds the salt to the subject claim. Recomputed per
// transaction and compared against the value the proof artifact commits to.
func AddressSeed(claims Claims) ([]byte, error) {
	salt, err := Salt(claims)
	if err != nil {
		return nil, err
	}
	return chain.AddressSeed(salt, subjectClaim, claims.Subject, claims.Audience)
}

// DeriveAddress computes the ledger address for a claim triple. Pure and
// deterministic; the address is not a secret.
func DeriveAddress(claims Claims) (string, error) {
	salt, err := Salt(claims)
	if err != nil {
		return "", err
	}
	return chain.DeriveAddress(salt, subjectClaim, claims.Subject, claims.Audience, claims.Issuer)
}
