// Package wallet is the local keypair identity used for wallet-based
// login and password recovery. The mnemonic is the root of trust: the
// signing key is re-derived from it, so importing the same mnemonic on
// another device reproduces the same address and recovery key.
package wallet

import (
	"crypto/ed25519"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/tyler-smith/go-bip39"
	"golang.org/x/crypto/hkdf"

	"veilpoll/go-client/internal/chain"
)

var (
	ErrInvalidMnemonic    = errors.New("invalid mnemonic")
	ErrPassphraseRequired = errors.New("passphrase is required")
	ErrMnemonicRequired   = errors.New("mnemonic is required")
	ErrLocked             = errors.New("wallet is locked")
	ErrAttemptsLocked     = errors.New("unlock attempts are temporarily locked")
)

const (
	hkdfInfoSigning = "veilpoll/wallet/signing/v1"

	maxFailedUnlocks = 5
	unlockLockout    = 5 * time.Minute
)

// Wallet holds the unlocked signing key for one mnemonic identity.
type Wallet struct {
	mu             sync.RWMutex
	priv           ed25519.PrivateKey
	pub            ed25519.PublicKey
	store          *Storage
	failedAttempts int
	lockedUntil    time.Time
	now            func() time.Time
}

func New(store *Storage) *Wallet {
	return &Wallet{store: store, now: time.Now}
}

func newWithClock(store *Storage, now func() time.Time) *Wallet {
	return &Wallet{store: store, now: now}
}

// Create draws a fresh 256-bit mnemonic, derives its keys and persists
// the mnemonic encrypted under the passphrase. The mnemonic is returned
// once for the user to back up.
func (w *Wallet) Create(passphrase string) (string, error) {
	if strings.TrimSpace(passphrase) == "" {
		return "", ErrPassphraseRequired
	}
	entropy, err := bip39.NewEntropy(256)
	if err != nil {
		return "", err
	}
	mnemonic, err := bip39.NewMnemonic(entropy)
	if err != nil {
		return "", err
	}
	if err := w.Import(mnemonic, passphrase); err != nil {
		return "", err
	}
	return mnemonic, nil
}

// Import validates the mnemonic, derives the signing keypair and persists
// the mnemonic sealed under the passphrase.
func (w *Wallet) Import(mnemonic, passphrase string) error {
	mnemonic = strings.TrimSpace(mnemonic)
	if mnemonic == "" {
		return ErrMnemonicRequired
	}
	if strings.TrimSpace(passphrase) == "" {
		return ErrPassphraseRequired
	}
	if !bip39.IsMnemonicValid(mnemonic) {
		return ErrInvalidMnemonic
	}

	priv, pub, err := deriveSigningKey(bip39.NewSeed(mnemonic, ""))
	if err != nil {
		return err
	}
	if w.store != nil {
		if err := w.store.Save(mnemonic, passphrase); err != nil {
			return fmt.Errorf("persist mnemonic: %w", err)
		}
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	w.priv = priv
	w.pub = pub
	w.failedAttempts = 0
	w.lockedUntil = time.Time{}
	return nil
}

// Unlock re-derives the keys from the persisted mnemonic. Repeated wrong
// passphrases lock further attempts for a while.
func (w *Wallet) Unlock(passphrase string) error {
	if w.store == nil {
		return ErrLocked
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.now().Before(w.lockedUntil) {
		return ErrAttemptsLocked
	}

	mnemonic, err := w.store.Load(passphrase)
	if err != nil {
		w.failedAttempts++
		if w.failedAttempts >= maxFailedUnlocks {
			w.lockedUntil = w.now().Add(unlockLockout)
			w.failedAttempts = 0
		}
		return err
	}
	priv, pub, err := deriveSigningKey(bip39.NewSeed(mnemonic, ""))
	if err != nil {
		return err
	}
	w.priv = priv
	w.pub = pub
	w.failedAttempts = 0
	w.lockedUntil = time.Time{}
	return nil
}

// Export reveals the persisted mnemonic for backup. The passphrase is
// required again even while unlocked; revealing the root of trust must
// not ride on an old unlock.
func (w *Wallet) Export(passphrase string) (string, error) {
	if strings.TrimSpace(passphrase) == "" {
		return "", ErrPassphraseRequired
	}
	if w.store == nil {
		return "", ErrLocked
	}
	return w.store.Load(passphrase)
}

// Lock drops the in-memory key material.
func (w *Wallet) Lock() {
	w.mu.Lock()
	defer w.mu.Unlock()
	for i := range w.priv {
		w.priv[i] = 0
	}
	w.priv = nil
	w.pub = nil
}

// SignMessage signs an arbitrary message with the wallet key. Ed25519 is
// deterministic, so equal messages always produce equal signatures — the
// property the recovery key derivation relies on.
func (w *Wallet) SignMessage(message []byte) ([]byte, error) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if len(w.priv) != ed25519.PrivateKeySize {
		return nil, ErrLocked
	}
	return ed25519.Sign(w.priv, message), nil
}

// Address is the ledger address of the wallet keypair.
func (w *Wallet) Address() (string, error) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if len(w.pub) != ed25519.PublicKeySize {
		return "", ErrLocked
	}
	return chain.AddressFromPublicKey(w.pub)
}

func deriveSigningKey(seedBytes []byte) (ed25519.PrivateKey, ed25519.PublicKey, error) {
	reader := hkdf.New(sha256.New, seedBytes, nil, []byte(hkdfInfoSigning))
	seed := make([]byte, ed25519.SeedSize)
	if _, err := io.ReadFull(reader, seed); err != nil {
		return nil, nil, err
	}
	priv := ed25519.NewKeyFromSeed(seed)
	return priv, priv.Public().(ed25519.PublicKey), nil
}
