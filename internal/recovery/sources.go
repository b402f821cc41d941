package recovery

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"veilpoll/go-client/internal/identity"
	"veilpoll/go-client/internal/session"
)

// RecoveryMessage is the fixed constant a wallet signs to produce its
// recovery key. Changing it orphans every wallet-escrowed password.
const RecoveryMessage = "veilpoll:password-recovery:v1"

// TokenIdentitySource derives the recovery identity from the federated
// login session: the stable subject claim is the key, the derived ledger
// address identifies the account.
type TokenIdentitySource struct {
	store session.Store
}

func NewTokenIdentitySource(store session.Store) *TokenIdentitySource {
	return &TokenIdentitySource{store: store}
}

func (s *TokenIdentitySource) Current(_ context.Context) (Identity, error) {
	record, ok, err := s.store.Get()
	if err != nil {
		return Identity{}, fmt.Errorf("load session: %w", err)
	}
	if !ok || record.IDToken == "" {
		return Identity{}, fmt.Errorf("%w: no active login", ErrUnavailable)
	}
	claims, err := identity.ParseToken(record.IDToken)
	if err != nil {
		return Identity{}, err
	}
	address, err := identity.DeriveAddress(claims)
	if err != nil {
		return Identity{}, err
	}
	return Identity{Key: claims.Subject, Address: address}, nil
}

// WalletSigner is the slice of a local wallet the recovery path needs.
type WalletSigner interface {
	SignMessage(message []byte) ([]byte, error)
	Address() (string, error)
}

// WalletIdentitySource derives the recovery identity from a wallet
// signature over the fixed constant message. Deterministic per wallet:
// ed25519 signatures over a fixed message are stable, so the derived key
// reproduces on any device holding the same wallet.
type WalletIdentitySource struct {
	signer WalletSigner
}

func NewWalletIdentitySource(signer WalletSigner) *WalletIdentitySource {
	return &WalletIdentitySource{signer: signer}
}

func (s *WalletIdentitySource) Current(_ context.Context) (Identity, error) {
	if s.signer == nil {
		return Identity{}, fmt.Errorf("%w: no wallet connected", ErrUnavailable)
	}
	signature, err := s.signer.SignMessage([]byte(RecoveryMessage))
	if err != nil {
		return Identity{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	address, err := s.signer.Address()
	if err != nil {
		return Identity{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	digest := sha256.Sum256(signature)
	return Identity{Key: hex.EncodeToString(digest[:]), Address: address}, nil
}
