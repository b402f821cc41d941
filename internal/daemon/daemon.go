// Package daemon wires the client subsystems together and runs the
// long-lived pieces: the lifecycle monitor and the metrics endpoint.
package daemon

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"veilpoll/go-client/internal/authorize"
	"veilpoll/go-client/internal/campaign"
	"veilpoll/go-client/internal/chain"
	"veilpoll/go-client/internal/config"
	"veilpoll/go-client/internal/lifecycle"
	"veilpoll/go-client/internal/login"
	"veilpoll/go-client/internal/observe"
	"veilpoll/go-client/internal/prover"
	"veilpoll/go-client/internal/recovery"
	"veilpoll/go-client/internal/session"
	"veilpoll/go-client/internal/sponsor"
	"veilpoll/go-client/internal/wallet"
)

// Daemon is the composed client.
type Daemon struct {
	cfg     config.Config
	log     *slog.Logger
	metrics *observe.Metrics

	Store     *session.FileStore
	Login     *login.Manager
	Authorize *authorize.Assembler
	Monitor   *lifecycle.Monitor
	Recovery  *recovery.Manager
	Wallet    *wallet.Wallet
	Sponsor   *sponsor.Client
}

func New(cfg config.Config, log *slog.Logger) *Daemon {
	metrics := observe.New()
	store := session.NewFileStore(cfg.DataDir)
	epochs := chain.NewRPCClient(cfg.RPCEndpoint)
	proofs := prover.NewHTTPClient(cfg.ProverEndpoint)

	monitor := lifecycle.NewMonitor(store, epochs, log)
	monitor.SetInterval(cfg.PollInterval)
	monitor.OnChange(func(status lifecycle.Status) {
		metrics.LifecyclePolls.WithLabelValues(string(status.State)).Inc()
		if status.State == lifecycle.StateExpired {
			metrics.SessionsDiscarded.Inc()
		}
	})

	w := wallet.New(wallet.NewStorage(cfg.DataDir))

	loginMgr := login.NewManager(store, epochs, log)
	loginMgr.OnComplete(func() { metrics.LoginsCompleted.Inc() })

	d := &Daemon{
		cfg:       cfg,
		log:       log,
		metrics:   metrics,
		Store:     store,
		Login:     loginMgr,
		Authorize: authorize.NewAssembler(store, measuredProver{next: proofs, metrics: metrics}, log),
		Monitor:   monitor,
		Recovery:  recovery.NewManager(recovery.NewTokenIdentitySource(store)),
		Wallet:    w,
	}
	if cfg.SponsorEndpoint != "" {
		d.Sponsor = sponsor.NewClient(cfg.SponsorEndpoint)
	}
	return d
}

// Metrics exposes the daemon counters for consumers that report on them.
func (d *Daemon) Metrics() *observe.Metrics {
	return d.metrics
}

// DecryptCampaign decrypts campaign content with the given password,
// counting failed attempts.
func (d *Daemon) DecryptCampaign(enc campaign.Encrypted, password string) (campaign.Campaign, error) {
	c, err := campaign.DecryptCampaign(enc, password)
	if err != nil {
		d.metrics.DecryptFailures.Inc()
	}
	return c, err
}

// DecryptResponse decrypts a single response with the given password,
// counting failed attempts.
func (d *Daemon) DecryptResponse(enc campaign.EncryptedResponse, password string) (campaign.Response, error) {
	r, err := campaign.DecryptResponse(enc, password)
	if err != nil {
		d.metrics.DecryptFailures.Inc()
	}
	return r, err
}

// measuredProver counts prover calls by outcome around the real client.
type measuredProver struct {
	next    prover.Client
	metrics *observe.Metrics
}

func (p measuredProver) Prove(ctx context.Context, req prover.Request) (prover.Artifact, error) {
	artifact, err := p.next.Prove(ctx, req)
	outcome := "ok"
	switch {
	case errors.Is(err, prover.ErrUnavailable):
		outcome = "unavailable"
	case errors.Is(err, prover.ErrRejected):
		outcome = "rejected"
	case err != nil:
		outcome = "error"
	}
	p.metrics.ProverRequests.WithLabelValues(outcome).Inc()
	return artifact, err
}

// Run blocks until ctx is cancelled.
func (d *Daemon) Run(ctx context.Context) error {
	if d.cfg.MetricsAddr != "" {
		server := &http.Server{
			Addr:              d.cfg.MetricsAddr,
			Handler:           d.metrics.Handler(),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				d.log.Error("metrics server failed", "error", err)
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = server.Shutdown(shutdownCtx)
		}()
		d.log.Info("metrics listening", "addr", d.cfg.MetricsAddr)
	}

	d.log.Info("veilpoll daemon running", "data_dir", d.cfg.DataDir)
	d.Monitor.Run(ctx)
	return ctx.Err()
}
