// Package lifecycle classifies session health against the ledger's epoch
// clock. Expiry is terminal: the ephemeral session is discarded entirely,
// not flagged, and the caller restarts at login.
package lifecycle

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"veilpoll/go-client/internal/chain"
	"veilpoll/go-client/internal/session"
)

// State is the session health classification.
type State string

const (
	StateUninitialized State = "uninitialized"
	StateAwaitingLogin State = "awaiting_login"
	StateActive        State = "active"
	StateExpiring      State = "expiring"
	StateExpired       State = "expired"
)

const (
	// DefaultInterval is the poll cadence.
	DefaultInterval = 5 * time.Minute

	// refreshWindow is the number of remaining epochs at or below which a
	// refresh advisory is raised.
	refreshWindow = 3
)

// Status is one poll's verdict. ShouldRefresh is advisory and dismissible;
// it recurs on the next poll while the session is still expiring.
type Status struct {
	State           State
	EpochsRemaining int64
	ShouldRefresh   bool
}

// Monitor polls the epoch source and reclassifies the stored session. The
// store read is re-validated against the live epoch on every poll, so a
// stale record from another scope is never trusted as-is.
type Monitor struct {
	store    session.Store
	epochs   chain.EpochSource
	interval time.Duration
	log      *slog.Logger
	onChange func(Status)
	inFlight atomic.Bool
}

func NewMonitor(store session.Store, epochs chain.EpochSource, log *slog.Logger) *Monitor {
	return &Monitor{
		store:    store,
		epochs:   epochs,
		interval: DefaultInterval,
		log:      log,
	}
}

// SetInterval overrides the poll cadence. Test hook.
func (m *Monitor) SetInterval(d time.Duration) {
	if d > 0 {
		m.interval = d
	}
}

// OnChange registers a status callback invoked after every successful
// check.
func (m *Monitor) OnChange(fn func(Status)) {
	m.onChange = fn
}

// Check runs one classification against the current epoch. An expired
// session is discarded before returning.
func (m *Monitor) Check(ctx context.Context) (Status, error) {
	record, ok, err := m.store.Get()
	if err != nil {
		return Status{}, fmt.Errorf("load session: %w", err)
	}
	if !ok {
		return Status{State: StateUninitialized}, nil
	}
	if record.IDToken == "" {
		return Status{State: StateAwaitingLogin}, nil
	}

	current, err := m.epochs.CurrentEpoch(ctx)
	if err != nil {
		// Transient; classification is deferred, the session untouched.
		return Status{}, fmt.Errorf("fetch current epoch: %w", err)
	}

	remaining := int64(record.MaxEpoch) - int64(current)
	switch {
	case remaining <= 0:
		if err := m.store.Clear(); err != nil {
			return Status{}, fmt.Errorf("discard expired session: %w", err)
		}
		m.log.Info("session expired and discarded", "max_epoch", record.MaxEpoch, "current_epoch", current)
		return Status{State: StateExpired, EpochsRemaining: remaining}, nil
	case remaining <= refreshWindow:
		return Status{State: StateExpiring, EpochsRemaining: remaining, ShouldRefresh: true}, nil
	default:
		return Status{State: StateActive, EpochsRemaining: remaining}, nil
	}
}

// Run polls until ctx is cancelled, once eagerly and then on the interval.
// At most one check is in flight; a tick that lands during an outstanding
// check is a no-op.
func (m *Monitor) Run(ctx context.Context) {
	m.poll(ctx)
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.poll(ctx)
		}
	}
}

func (m *Monitor) poll(ctx context.Context) {
	if !m.inFlight.CompareAndSwap(false, true) {
		return
	}
	defer m.inFlight.Store(false)

	status, err := m.Check(ctx)
	if err != nil {
		m.log.Warn("lifecycle check failed", "error", err)
		return
	}
	if m.onChange != nil {
		m.onChange(status)
	}
}
