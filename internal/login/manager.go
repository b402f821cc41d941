// Package login runs the ephemeral side of the federated login flow: it
// generates the per-login keypair, binds it to an epoch window through the
// nonce handed to the identity provider, and checks that binding when the
// provider's token comes back. A token obtained for one ephemeral key can
// never be combined with a different one.
package login

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"veilpoll/go-client/internal/chain"
	"veilpoll/go-client/internal/identity"
	"veilpoll/go-client/internal/session"
)

var (
	ErrNoSession     = errors.New("no login in progress")
	ErrNonceMismatch = errors.New("token nonce does not match ephemeral session")
)

// epochWindow is how many epochs past the current one a fresh session stays
// valid.
const epochWindow = 10

// Manager drives BeginLogin/CompleteLogin against one session store.
type Manager struct {
	store      session.Store
	epochs     chain.EpochSource
	rand       io.Reader
	clock      func() time.Time
	log        *slog.Logger
	onComplete func()
}

// OnComplete registers a callback invoked after every successful
// CompleteLogin. Must be set before the manager is used.
func (m *Manager) OnComplete(fn func()) {
	m.onComplete = fn
}

// Challenge is handed to the identity provider when redirecting the user.
type Challenge struct {
	Nonce    string
	MaxEpoch uint64
}

func NewManager(store session.Store, epochs chain.EpochSource, log *slog.Logger) *Manager {
	return &Manager{
		store:  store,
		epochs: epochs,
		rand:   rand.Reader,
		clock:  time.Now,
		log:    log,
	}
}

// BeginLogin creates a fresh ephemeral session and returns the challenge
// for the provider redirect. The store is written only after the epoch
// fetch has fully succeeded; an unreachable epoch source aborts the flow
// with no fallback epoch.
func (m *Manager) BeginLogin(ctx context.Context) (Challenge, error) {
	current, err := m.epochs.CurrentEpoch(ctx)
	if err != nil {
		return Challenge{}, fmt.Errorf("fetch current epoch: %w", err)
	}
	maxEpoch := current + epochWindow

	pub, priv, err := ed25519.GenerateKey(m.rand)
	if err != nil {
		return Challenge{}, fmt.Errorf("generate ephemeral keypair: %w", err)
	}
	randomness := make([]byte, chain.RandomnessSize)
	if _, err := io.ReadFull(m.rand, randomness); err != nil {
		return Challenge{}, fmt.Errorf("draw nonce randomness: %w", err)
	}
	nonce, err := chain.BindNonce(pub, maxEpoch, randomness)
	if err != nil {
		return Challenge{}, fmt.Errorf("bind nonce: %w", err)
	}

	record := session.Ephemeral{
		PrivateKey: priv,
		PublicKey:  pub,
		MaxEpoch:   maxEpoch,
		Randomness: randomness,
		Nonce:      nonce,
		CreatedAt:  m.clock().UTC(),
	}
	if err := m.store.Set(record); err != nil {
		return Challenge{}, fmt.Errorf("persist ephemeral session: %w", err)
	}
	m.log.Info("login challenge issued", "max_epoch", maxEpoch)
	return Challenge{Nonce: nonce, MaxEpoch: maxEpoch}, nil
}

// CompleteLogin accepts the provider's raw token, checks that its nonce is
// the one this session issued, and stores the token alongside the keypair.
// A mismatch means the stored ephemeral key is stale or substituted; the
// session is not trustworthy and the caller must restart the flow.
func (m *Manager) CompleteLogin(ctx context.Context, rawToken string) (identity.Claims, error) {
	record, ok, err := m.store.Get()
	if err != nil {
		return identity.Claims{}, fmt.Errorf("load ephemeral session: %w", err)
	}
	if !ok {
		return identity.Claims{}, ErrNoSession
	}

	claims, err := identity.ParseToken(rawToken)
	if err != nil {
		return identity.Claims{}, err
	}
	if claims.Nonce != record.Nonce {
		return identity.Claims{}, ErrNonceMismatch
	}

	record.IDToken = rawToken
	if err := m.store.Set(record); err != nil {
		return identity.Claims{}, fmt.Errorf("persist identity token: %w", err)
	}

	if profiles, ok := m.store.(session.ProfileStore); ok {
		address, err := identity.DeriveAddress(claims)
		if err != nil {
			return identity.Claims{}, err
		}
		if err := profiles.SetProfile(session.Profile{Address: address, Email: claims.Email}); err != nil {
			return identity.Claims{}, fmt.Errorf("persist profile: %w", err)
		}
	}
	m.log.Info("login completed", "issuer", claims.Issuer)
	if m.onComplete != nil {
		m.onComplete()
	}
	return claims, nil
}

// Logout discards the ephemeral session. The durable profile is kept; it
// holds nothing secret.
func (m *Manager) Logout() error {
	return m.store.Clear()
}
