// Package authorize assembles the on-chain authorization artifact for one
// transaction: the external proof, the address-binding seed, the epoch
// bound and the ephemeral signature. Every step is a hard precondition on
// the next; in particular the stored nonce binding is re-verified before
// any signature is produced, so a stale or substituted ephemeral key is
// caught here instead of failing silently on-chain.
package authorize

import (
	"context"
	"crypto/ed25519"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"veilpoll/go-client/internal/chain"
	"veilpoll/go-client/internal/identity"
	"veilpoll/go-client/internal/prover"
	"veilpoll/go-client/internal/session"
)

var (
	ErrSessionInvalid = errors.New("no valid ephemeral session")
	ErrNonceMismatch  = errors.New("stored session does not match token nonce")
	ErrEmptyTx        = errors.New("empty transaction bytes")
)

// Package is the final authorization artifact. Built once per transaction,
// never persisted.
type Package struct {
	Proof       json.RawMessage `json:"proof"`
	AddressSeed []byte          `json:"address_seed"`
	MaxEpoch    uint64          `json:"max_epoch"`
	Signature   []byte          `json:"ephemeral_signature"`
}

// Result pairs the package with the non-fatal address advisory. A
// mismatch against the previously displayed address is surfaced but never
// blocks: the signature's validity is enforced on-chain regardless.
type Result struct {
	Package        Package
	AddressWarning string
	DerivedAddress string
}

// Assembler depends on the session store and the proof client only.
type Assembler struct {
	store  session.Store
	prover prover.Client
	log    *slog.Logger
}

func NewAssembler(store session.Store, proofs prover.Client, log *slog.Logger) *Assembler {
	return &Assembler{store: store, prover: proofs, log: log}
}

// Authorize produces the authorization artifact for txBytes. expectedAddr
// is the address previously shown to the user, or empty to skip the
// cross-check.
func (a *Assembler) Authorize(ctx context.Context, txBytes []byte, expectedAddr string) (Result, error) {
	if len(txBytes) == 0 {
		return Result{}, ErrEmptyTx
	}

	record, ok, err := a.store.Get()
	if err != nil {
		return Result{}, fmt.Errorf("load ephemeral session: %w", err)
	}
	if !ok || record.IDToken == "" {
		return Result{}, ErrSessionInvalid
	}

	claims, err := identity.ParseToken(record.IDToken)
	if err != nil {
		return Result{}, err
	}
	recomputed, err := chain.BindNonce(record.PublicKey, record.MaxEpoch, record.Randomness)
	if err != nil {
		return Result{}, fmt.Errorf("recompute nonce: %w", err)
	}
	if recomputed != claims.Nonce || recomputed != record.Nonce {
		return Result{}, ErrNonceMismatch
	}

	salt, err := identity.Salt(claims)
	if err != nil {
		return Result{}, err
	}
	artifact, err := a.prover.Prove(ctx, prover.Request{
		PublicKey:  record.PublicKey,
		MaxEpoch:   record.MaxEpoch,
		Randomness: record.Randomness,
		Salt:       salt,
		IDToken:    record.IDToken,
	})
	if err != nil {
		return Result{}, fmt.Errorf("request proof: %w", err)
	}

	signature := ed25519.Sign(record.PrivateKey, txBytes)
	seed, err := identity.AddressSeed(claims)
	if err != nil {
		return Result{}, err
	}

	result := Result{
		Package: Package{
			Proof:       artifact.Proof,
			AddressSeed: seed,
			MaxEpoch:    record.MaxEpoch,
			Signature:   signature,
		},
	}
	address, err := identity.DeriveAddress(claims)
	if err != nil {
		return Result{}, err
	}
	result.DerivedAddress = address
	if expectedAddr != "" && expectedAddr != address {
		result.AddressWarning = fmt.Sprintf("derived address %s differs from displayed address %s", address, expectedAddr)
		a.log.Warn("address mismatch on authorize", "derived", address, "displayed", expectedAddr)
	}
	return result, nil
}
