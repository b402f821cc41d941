// Package recovery reconstructs the shared campaign password per identity
// instead of transmitting or storing it. Two paths exist: the creator
// re-derives the password from the public campaign seed and their own
// identity key; a participant decrypts the escrowed response seed with
// their personal key. Both seeds are public and reveal nothing without
// control of the corresponding identity.
//
// Failure semantics are deliberate: a missing identity is the soft
// ErrUnavailable outcome (fall back to manual password entry); a present
// but wrong identity, or a tampered escrow, is a hard integrity failure
// from the decrypt itself.
package recovery

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"

	"veilpoll/go-client/internal/campaign"
	"veilpoll/go-client/internal/contentcrypt"
)

var ErrUnavailable = errors.New("automatic recovery unavailable")

const passwordLabel = "veilpoll/recovery/password/v1"

// Identity is the recovery view of the caller: the identity-bound key and
// the derived ledger address.
type Identity struct {
	Key     string
	Address string
}

// IdentitySource yields the caller's current identity, or ErrUnavailable
// when no login or wallet is present. Implementations must not invent a
// fallback identity.
type IdentitySource interface {
	Current(ctx context.Context) (Identity, error)
}

// PasswordFromSeed derives the campaign password from a public seed and an
// identity key. Pure: identical inputs always produce the identical
// password.
func PasswordFromSeed(seed campaign.Seed, key string) string {
	h := sha256.New()
	h.Write([]byte(passwordLabel))
	h.Write(seed[:])
	h.Write([]byte(key))
	return hex.EncodeToString(h.Sum(nil))
}

// Manager runs both recovery paths against one identity source.
type Manager struct {
	source IdentitySource
}

func NewManager(source IdentitySource) *Manager {
	return &Manager{source: source}
}

// RecoverCreatorPassword regenerates the password the creator derived at
// campaign creation. Short-circuits to ErrUnavailable, not an error, when
// the caller's address is not the recorded creator address: wrong account,
// nothing to decrypt, manual entry is the correct fallback.
func (m *Manager) RecoverCreatorPassword(ctx context.Context, seed campaign.Seed, creatorAddress string) (string, error) {
	id, err := m.source.Current(ctx)
	if err != nil {
		return "", err
	}
	if creatorAddress == "" || id.Address != creatorAddress {
		return "", fmt.Errorf("%w: caller is not the campaign creator", ErrUnavailable)
	}
	return PasswordFromSeed(seed, id.Key), nil
}

// EscrowParticipant seals the shared password under the participant's
// personal key for public storage as the response seed.
func (m *Manager) EscrowParticipant(ctx context.Context, password string) (campaign.ResponseSeed, error) {
	id, err := m.source.Current(ctx)
	if err != nil {
		return campaign.ResponseSeed{}, err
	}
	blob, err := contentcrypt.Encrypt([]byte(password), id.Key)
	if err != nil {
		return campaign.ResponseSeed{}, fmt.Errorf("escrow password: %w", err)
	}
	return campaign.ResponseSeed{Blob: blob}, nil
}

// RecoverParticipantPassword opens the escrowed response seed with the
// participant's re-derived personal key. A wrong key or a tampered blob is
// a hard contentcrypt.ErrIntegrity, never a plausible-but-wrong password.
func (m *Manager) RecoverParticipantPassword(ctx context.Context, rs campaign.ResponseSeed) (string, error) {
	id, err := m.source.Current(ctx)
	if err != nil {
		return "", err
	}
	plaintext, err := contentcrypt.Decrypt(rs.Blob, id.Key)
	if err != nil {
		return "", err
	}
	return string(plaintext), nil
}
