package daemon

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"veilpoll/go-client/internal/campaign"
	"veilpoll/go-client/internal/config"
	"veilpoll/go-client/internal/prover"
)

func testDaemon(t *testing.T) *Daemon {
	t.Helper()
	cfg := config.Config{
		RPCEndpoint:    "http://127.0.0.1:0",
		ProverEndpoint: "http://127.0.0.1:0",
		DataDir:        t.TempDir(),
		PollInterval:   time.Minute,
	}
	return New(cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestNewComposesAllSubsystems(t *testing.T) {
	d := testDaemon(t)
	if d.Store == nil || d.Login == nil || d.Authorize == nil || d.Monitor == nil || d.Recovery == nil || d.Wallet == nil {
		t.Fatal("daemon must compose every subsystem")
	}
	if d.Sponsor != nil {
		t.Fatal("sponsor client must be absent without an endpoint")
	}
}

func TestSponsorOnlyWithEndpoint(t *testing.T) {
	cfg := config.Config{
		RPCEndpoint:     "http://127.0.0.1:0",
		ProverEndpoint:  "http://127.0.0.1:0",
		SponsorEndpoint: "http://127.0.0.1:0",
		DataDir:         t.TempDir(),
		PollInterval:    time.Minute,
	}
	d := New(cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if d.Sponsor == nil {
		t.Fatal("sponsor client must be built when an endpoint is configured")
	}
}

func TestDecryptFailureIsCounted(t *testing.T) {
	d := testDaemon(t)
	enc, err := campaign.EncryptCampaign(campaign.Campaign{Title: "t", Description: "d"}, "correct")
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}
	if _, err := d.DecryptCampaign(enc, "wrong"); err == nil {
		t.Fatal("expected decrypt failure")
	}
	if got := testutil.ToFloat64(d.Metrics().DecryptFailures); got != 1 {
		t.Fatalf("decrypt_failures = %v, want 1", got)
	}
	if _, err := d.DecryptCampaign(enc, "correct"); err != nil {
		t.Fatalf("decrypt with right password: %v", err)
	}
	if got := testutil.ToFloat64(d.Metrics().DecryptFailures); got != 1 {
		t.Fatalf("successful decrypt must not count, got %v", got)
	}
}

type failingProver struct{}

func (failingProver) Prove(context.Context, prover.Request) (prover.Artifact, error) {
	return prover.Artifact{}, prover.ErrUnavailable
}

func TestMeasuredProverCountsByOutcome(t *testing.T) {
	d := testDaemon(t)
	mp := measuredProver{next: failingProver{}, metrics: d.Metrics()}
	if _, err := mp.Prove(context.Background(), prover.Request{}); !errors.Is(err, prover.ErrUnavailable) {
		t.Fatalf("err = %v, want ErrUnavailable", err)
	}
	got := testutil.ToFloat64(d.Metrics().ProverRequests.WithLabelValues("unavailable"))
	if got != 1 {
		t.Fatalf("prover_requests{unavailable} = %v, want 1", got)
	}
}
