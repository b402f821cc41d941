package recovery

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"veilpoll/go-client/internal/campaign"
	"veilpoll/go-client/internal/chain"
	"veilpoll/go-client/internal/contentcrypt"
	"veilpoll/go-client/internal/identity"
	"veilpoll/go-client/internal/session"
)

type fixedSource struct {
	id  Identity
	err error
}

func (f fixedSource) Current(context.Context) (Identity, error) {
	return f.id, f.err
}

func unavailableSource() fixedSource {
	return fixedSource{err: ErrUnavailable}
}

func testSeed(t *testing.T) campaign.Seed {
	t.Helper()
	seed, err := campaign.NewSeed()
	if err != nil {
		t.Fatalf("new seed: %v", err)
	}
	return seed
}

func TestPasswordFromSeedIsPure(t *testing.T) {
	seed := testSeed(t)
	first := PasswordFromSeed(seed, "creator-key")
	second := PasswordFromSeed(seed, "creator-key")
	if first != second {
		t.Fatal("password derivation must be pure")
	}
	if PasswordFromSeed(seed, "other-key") == first {
		t.Fatal("distinct keys must yield distinct passwords")
	}
	other := testSeed(t)
	if PasswordFromSeed(other, "creator-key") == first {
		t.Fatal("distinct seeds must yield distinct passwords")
	}
}

func TestCreatorRecoveryReproducesPassword(t *testing.T) {
	seed := testSeed(t)
	creator := Identity{Key: "creator-key", Address: "0xcreator"}
	expected := PasswordFromSeed(seed, creator.Key)

	m := NewManager(fixedSource{id: creator})
	got, err := m.RecoverCreatorPassword(context.Background(), seed, "0xcreator")
	if err != nil {
		t.Fatalf("recover creator password: %v", err)
	}
	if got != expected {
		t.Fatal("creator path must reproduce the derived password")
	}
}

func TestCreatorRecoveryUnavailableForWrongAddress(t *testing.T) {
	m := NewManager(fixedSource{id: Identity{Key: "k", Address: "0xother"}})
	_, err := m.RecoverCreatorPassword(context.Background(), testSeed(t), "0xcreator")
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("err = %v, want ErrUnavailable", err)
	}
}

func TestCreatorRecoveryUnavailableWithoutIdentity(t *testing.T) {
	m := NewManager(unavailableSource())
	_, err := m.RecoverCreatorPassword(context.Background(), testSeed(t), "0xcreator")
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("err = %v, want ErrUnavailable", err)
	}
}

func TestParticipantEscrowRoundTrip(t *testing.T) {
	participant := Identity{Key: "personal-key", Address: "0xp1"}
	m := NewManager(fixedSource{id: participant})

	password := PasswordFromSeed(testSeed(t), "creator-key")
	escrow, err := m.EscrowParticipant(context.Background(), password)
	if err != nil {
		t.Fatalf("escrow: %v", err)
	}
	recovered, err := m.RecoverParticipantPassword(context.Background(), escrow)
	if err != nil {
		t.Fatalf("recover participant password: %v", err)
	}
	if recovered != password {
		t.Fatal("participant path must return the exact escrowed password")
	}
}

func TestParticipantRecoveryWrongKeyFailsClosed(t *testing.T) {
	m := NewManager(fixedSource{id: Identity{Key: "personal-key", Address: "0xp1"}})
	escrow, err := m.EscrowParticipant(context.Background(), "the-password")
	if err != nil {
		t.Fatalf("escrow: %v", err)
	}

	other := NewManager(fixedSource{id: Identity{Key: "different-key", Address: "0xp2"}})
	recovered, err := other.RecoverParticipantPassword(context.Background(), escrow)
	if !errors.Is(err, contentcrypt.ErrIntegrity) {
		t.Fatalf("err = %v, want contentcrypt.ErrIntegrity", err)
	}
	if recovered != "" {
		t.Fatal("wrong key must never yield a plausible password")
	}
}

func TestParticipantRecoveryUnavailableWithoutIdentity(t *testing.T) {
	m := NewManager(unavailableSource())
	_, err := m.RecoverParticipantPassword(context.Background(), campaign.ResponseSeed{Blob: "vpc1.x"})
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("err = %v, want ErrUnavailable", err)
	}
}

func sessionWithToken(t *testing.T, sub string) *session.MemoryStore {
	t.Helper()
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("generate keypair: %v", err)
	}
	header := base64.RawURLEncoding.EncodeToString([]byte(`{"alg":"RS256","typ":"JWT"}`))
	body, err := json.Marshal(map[string]any{"iss": "https://issuer", "aud": "client-a", "sub": sub, "nonce": "n"})
	if err != nil {
		t.Fatalf("marshal claims: %v", err)
	}
	store := session.NewMemoryStore()
	err = store.Set(session.Ephemeral{
		PrivateKey: priv,
		PublicKey:  pub,
		MaxEpoch:   110,
		Randomness: make([]byte, chain.RandomnessSize),
		Nonce:      "n",
		IDToken:    header + "." + base64.RawURLEncoding.EncodeToString(body) + ".sig",
		CreatedAt:  time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("seed store: %v", err)
	}
	return store
}

func TestTokenIdentitySource(t *testing.T) {
	store := sessionWithToken(t, "user-1")
	source := NewTokenIdentitySource(store)
	id, err := source.Current(context.Background())
	if err != nil {
		t.Fatalf("current: %v", err)
	}
	if id.Key != "user-1" {
		t.Fatalf("key = %q", id.Key)
	}
	want, err := identity.DeriveAddress(identity.Claims{Issuer: "https://issuer", Audience: "client-a", Subject: "user-1"})
	if err != nil {
		t.Fatalf("derive address: %v", err)
	}
	if id.Address != want {
		t.Fatal("source address must match derived address")
	}

	empty := NewTokenIdentitySource(session.NewMemoryStore())
	if _, err := empty.Current(context.Background()); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("err = %v, want ErrUnavailable", err)
	}
}

type testWallet struct {
	priv ed25519.PrivateKey
	addr string
}

func (w testWallet) SignMessage(message []byte) ([]byte, error) {
	return ed25519.Sign(w.priv, message), nil
}

func (w testWallet) Address() (string, error) {
	return w.addr, nil
}

func TestWalletIdentitySourceDeterministic(t *testing.T) {
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("generate keypair: %v", err)
	}
	source := NewWalletIdentitySource(testWallet{priv: priv, addr: "0xw"})
	first, err := source.Current(context.Background())
	if err != nil {
		t.Fatalf("current: %v", err)
	}
	second, err := source.Current(context.Background())
	if err != nil {
		t.Fatalf("current again: %v", err)
	}
	if first.Key != second.Key {
		t.Fatal("wallet recovery key must be deterministic")
	}

	none := NewWalletIdentitySource(nil)
	if _, err := none.Current(context.Background()); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("err = %v, want ErrUnavailable", err)
	}
}

func TestCrossDeviceCreatorScenario(t *testing.T) {
	// Device 1: creator derives the password and encrypts the campaign.
	seed := testSeed(t)
	device1 := NewTokenIdentitySource(sessionWithToken(t, "creator-sub"))
	id1, err := device1.Current(context.Background())
	if err != nil {
		t.Fatalf("device 1 identity: %v", err)
	}
	password := PasswordFromSeed(seed, id1.Key)
	sealed, err := campaign.EncryptCampaign(campaign.Campaign{Title: "T", Description: "D"}, password)
	if err != nil {
		t.Fatalf("encrypt campaign: %v", err)
	}

	// Device 2: fresh session store, same account.
	device2 := NewManager(NewTokenIdentitySource(sessionWithToken(t, "creator-sub")))
	recovered, err := device2.RecoverCreatorPassword(context.Background(), seed, id1.Address)
	if err != nil {
		t.Fatalf("recover on device 2: %v", err)
	}
	if recovered != password {
		t.Fatal("re-derived password must be identical across devices")
	}
	if _, err := campaign.DecryptCampaign(sealed, recovered); err != nil {
		t.Fatalf("decrypt with recovered password: %v", err)
	}
}
