// Package session persists the short-lived, non-secret artifacts of one
// login: the ephemeral keypair, the epoch bound, the nonce randomness and
// the raw identity token. The record is replaced wholesale on refresh and
// discarded on logout or detected invalidity, never mutated in place.
package session

import (
	"crypto/ed25519"
	"errors"
	"time"
)

var ErrIncomplete = errors.New("incomplete ephemeral session")

// Ephemeral is the full per-login session record. The private key never
// leaves the local store.
type Ephemeral struct {
	PrivateKey ed25519.PrivateKey `json:"private_key"`
	PublicKey  ed25519.PublicKey  `json:"public_key"`
	MaxEpoch   uint64             `json:"max_epoch"`
	Randomness []byte             `json:"randomness"`
	Nonce      string             `json:"nonce"`
	IDToken    string             `json:"id_token,omitempty"`
	CreatedAt  time.Time          `json:"created_at"`
}

// Validate checks structural completeness. Token presence is situational:
// the record exists without a token between BeginLogin and CompleteLogin.
func (e Ephemeral) Validate() error {
	if len(e.PrivateKey) != ed25519.PrivateKeySize || len(e.PublicKey) != ed25519.PublicKeySize {
		return ErrIncomplete
	}
	if e.MaxEpoch == 0 || len(e.Randomness) == 0 || e.Nonce == "" {
		return ErrIncomplete
	}
	return nil
}

// Clone returns an independent copy so callers cannot alias stored key
// material.
func (e Ephemeral) Clone() Ephemeral {
	out := e
	out.PrivateKey = append(ed25519.PrivateKey(nil), e.PrivateKey...)
	out.PublicKey = append(ed25519.PublicKey(nil), e.PublicKey...)
	out.Randomness = append([]byte(nil), e.Randomness...)
	return out
}

// Store owns the ephemeral session for one client scope. Implementations
// must make Set atomic: a record is either fully written or absent.
type Store interface {
	Get() (Ephemeral, bool, error)
	Set(Ephemeral) error
	Clear() error
}

// Profile holds the durable, non-secret hints kept across sessions. No
// password or derived symmetric key ever lands here.
type Profile struct {
	Address string `json:"address"`
	Email   string `json:"email,omitempty"`
}

// ProfileStore persists the profile hints.
type ProfileStore interface {
	Profile() (Profile, bool, error)
	SetProfile(Profile) error
	ClearProfile() error
}
