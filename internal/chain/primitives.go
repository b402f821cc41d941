// Package chain is the boundary with the external ledger. It carries the
// ledger's delegated derivation primitives (nonce binding, address
// derivation) and the epoch source used to bound ephemeral sessions. The
// ledger verifies everything derived here on submission; nothing in this
// package is re-verified locally.
package chain

import (
	"crypto/ed25519"
	"encoding/binary"
	"encoding/hex"
	"errors"

	"github.com/mr-tron/base58/base58"
	"golang.org/x/crypto/blake2b"
)

var (
	ErrInvalidPublicKey  = errors.New("invalid ephemeral public key")
	ErrInvalidRandomness = errors.New("invalid nonce randomness")
	ErrInvalidSalt       = errors.New("invalid identity salt")
)

const (
	// RandomnessSize is the nonce randomness width the ledger's binding
	// primitive expects.
	RandomnessSize = 16

	// SaltSize is the identity salt width the proof service accepts. A
	// wider or narrower salt is rejected downstream, so it is enforced
	// here as well.
	SaltSize = 16

	nonceBindLabel   = "veilpoll/chain/nonce-bind/v1"
	addressSeedLabel = "veilpoll/chain/address-seed/v1"
	addressLabel     = "veilpoll/chain/address/v1"

	// addressSchemeFlag distinguishes federated-login addresses from
	// plain keypair addresses on the ledger.
	addressSchemeFlag = 0x05

	// keypairSchemeFlag marks plain wallet keypair addresses.
	keypairSchemeFlag = 0x00

	nonceRawLen = 20
)

// BindNonce ties an ephemeral public key, an epoch bound and fresh
// randomness into the single opaque value the identity provider embeds in
// its token. Deterministic: recomputing it from stored session data must
// reproduce the token's nonce exactly.
func BindNonce(pub ed25519.PublicKey, maxEpoch uint64, randomness []byte) (string, error) {
	if len(pub) != ed25519.PublicKeySize {
		return "", ErrInvalidPublicKey
	}
	if len(randomness) != RandomnessSize {
		return "", ErrInvalidRandomness
	}
	h, err := blake2b.New256([]byte(nonceBindLabel))
	if err != nil {
		return "", err
	}
	h.Write(pub)
	var epoch [8]byte
	binary.BigEndian.PutUint64(epoch[:], maxEpoch)
	h.Write(epoch[:])
	h.Write(randomness)
	sum := h.Sum(nil)
	return base58.Encode(sum[:nonceRawLen]), nil
}

// AddressSeed binds the identity salt to one claim of the federated token.
// The proof artifact commits to the same value, so the two must be derived
// from identical inputs or the assembled signature is rejected on-chain.
func AddressSeed(salt []byte, claimName, claimValue, aud string) ([]byte, error) {
	if len(salt) != SaltSize {
		return nil, ErrInvalidSalt
	}
	h, err := blake2b.New256([]byte(addressSeedLabel))
	if err != nil {
		return nil, err
	}
	h.Write(salt)
	writeLenPrefixed(h, claimName)
	writeLenPrefixed(h, claimValue)
	writeLenPrefixed(h, aud)
	return h.Sum(nil), nil
}

// DeriveAddress is the ledger's standard address derivation for
// federated-login identities. Equal inputs yield a bit-identical address
// across time, devices and sessions.
func DeriveAddress(salt []byte, claimName, claimValue, aud, iss string) (string, error) {
	seed, err := AddressSeed(salt, claimName, claimValue, aud)
	if err != nil {
		return "", err
	}
	h, err := blake2b.New256([]byte(addressLabel))
	if err != nil {
		return "", err
	}
	h.Write([]byte{addressSchemeFlag})
	writeLenPrefixed(h, iss)
	h.Write(seed)
	sum := h.Sum(nil)
	return "0x" + hex.EncodeToString(sum), nil
}

// AddressFromPublicKey is the ledger's address derivation for plain
// keypair (wallet) accounts.
func AddressFromPublicKey(pub ed25519.PublicKey) (string, error) {
	if len(pub) != ed25519.PublicKeySize {
		return "", ErrInvalidPublicKey
	}
	h, err := blake2b.New256([]byte(addressLabel))
	if err != nil {
		return "", err
	}
	h.Write([]byte{keypairSchemeFlag})
	h.Write(pub)
	sum := h.Sum(nil)
	return "0x" + hex.EncodeToString(sum), nil
}

func writeLenPrefixed(h interface{ Write([]byte) (int, error) }, s string) {
	var n [4]byte
	binary.BigEndian.PutUint32(n[:], uint32(len(s)))
	h.Write(n[:])
	h.Write([]byte(s))
}
