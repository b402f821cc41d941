package chain

import (
	"bytes"
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func testKeypair(t *testing.T) (ed25519.PublicKey, ed25519.PrivateKey) {
	t.Helper()
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("generate keypair: %v", err)
	}
	return pub, priv
}

func TestBindNonceDeterministic(t *testing.T) {
	pub, _ := testKeypair(t)
	randomness := bytes.Repeat([]byte{0x42}, RandomnessSize)

	first, err := BindNonce(pub, 110, randomness)
	if err != nil {
		t.Fatalf("bind nonce: %v", err)
	}
	second, err := BindNonce(pub, 110, randomness)
	if err != nil {
		t.Fatalf("bind nonce again: %v", err)
	}
	if first != second {
		t.Fatalf("nonce must be deterministic: %s != %s", first, second)
	}
}

func TestBindNonceChangesWithEveryInput(t *testing.T) {
	pub, _ := testKeypair(t)
	otherPub, _ := testKeypair(t)
	randomness := bytes.Repeat([]byte{0x01}, RandomnessSize)
	otherRandomness := bytes.Repeat([]byte{0x02}, RandomnessSize)

	base, err := BindNonce(pub, 110, randomness)
	if err != nil {
		t.Fatalf("bind nonce: %v", err)
	}
	variants := []struct {
		name       string
		pub        ed25519.PublicKey
		maxEpoch   uint64
		randomness []byte
	}{
		{"different key", otherPub, 110, randomness},
		{"different epoch", pub, 111, randomness},
		{"different randomness", pub, 110, otherRandomness},
	}
	for _, v := range variants {
		got, err := BindNonce(v.pub, v.maxEpoch, v.randomness)
		if err != nil {
			t.Fatalf("%s: bind nonce: %v", v.name, err)
		}
		if got == base {
			t.Fatalf("%s: nonce must differ from base", v.name)
		}
	}
}

func TestBindNonceRejectsBadInputs(t *testing.T) {
	pub, _ := testKeypair(t)
	if _, err := BindNonce(pub[:16], 1, bytes.Repeat([]byte{1}, RandomnessSize)); err == nil {
		t.Fatal("expected error for truncated public key")
	}
	if _, err := BindNonce(pub, 1, []byte{1, 2, 3}); err == nil {
		t.Fatal("expected error for short randomness")
	}
}

func TestDeriveAddressDeterministicAndDistinct(t *testing.T) {
	salt := bytes.Repeat([]byte{0x07}, SaltSize)

	a1, err := DeriveAddress(salt, "sub", "user-1", "client-a", "https://issuer")
	if err != nil {
		t.Fatalf("derive address: %v", err)
	}
	a2, err := DeriveAddress(salt, "sub", "user-1", "client-a", "https://issuer")
	if err != nil {
		t.Fatalf("derive address again: %v", err)
	}
	if a1 != a2 {
		t.Fatalf("address must be deterministic: %s != %s", a1, a2)
	}
	if !strings.HasPrefix(a1, "0x") || len(a1) != 2+64 {
		t.Fatalf("unexpected address form: %s", a1)
	}

	b, err := DeriveAddress(salt, "sub", "user-2", "client-a", "https://issuer")
	if err != nil {
		t.Fatalf("derive other address: %v", err)
	}
	if b == a1 {
		t.Fatal("distinct subjects must yield distinct addresses")
	}
}

func TestDeriveAddressRejectsWrongSaltWidth(t *testing.T) {
	if _, err := DeriveAddress(bytes.Repeat([]byte{1}, 32), "sub", "u", "a", "i"); err == nil {
		t.Fatal("expected error for 32-byte salt")
	}
	if _, err := DeriveAddress(bytes.Repeat([]byte{1}, 8), "sub", "u", "a", "i"); err == nil {
		t.Fatal("expected error for 8-byte salt")
	}
}

func TestAddressSeedBindsAudience(t *testing.T) {
	salt := bytes.Repeat([]byte{0x07}, SaltSize)
	a, err := AddressSeed(salt, "sub", "user-1", "client-a")
	if err != nil {
		t.Fatalf("address seed: %v", err)
	}
	b, err := AddressSeed(salt, "sub", "user-1", "client-b")
	if err != nil {
		t.Fatalf("address seed: %v", err)
	}
	if bytes.Equal(a, b) {
		t.Fatal("distinct audiences must yield distinct seeds")
	}
}

func TestRPCClientCurrentEpoch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req rpcRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode rpc request: %v", err)
		}
		if req.Method != "veil_getLatestEpoch" {
			t.Fatalf("unexpected method %q", req.Method)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"jsonrpc": "2.0",
			"id":      req.ID,
			"result":  map[string]string{"epoch": "421"},
		})
	}))
	defer server.Close()

	epoch, err := NewRPCClient(server.URL).CurrentEpoch(context.Background())
	if err != nil {
		t.Fatalf("current epoch: %v", err)
	}
	if epoch != 421 {
		t.Fatalf("epoch = %d, want 421", epoch)
	}
}

func TestRPCClientUnreachableIsError(t *testing.T) {
	client := NewRPCClient("http://127.0.0.1:1")
	if _, err := client.CurrentEpoch(context.Background()); err == nil {
		t.Fatal("expected error for unreachable endpoint")
	}
}
