package daemon

import (
	"context"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/1broseidon/dispswitch/internal/display"
)

// Refresher fetches the live display state.
type Refresher interface {
	Refresh(ctx context.Context) (*display.DisplayState, error)
}

// ReconcilerConfig holds configuration for the reconciler.
type ReconcilerConfig struct {
	// Interval between resyncs. Zero disables periodic resync.
	Interval time.Duration
	Clock    clockwork.Clock
	Logger   *slog.Logger
}

// Reconciler periodically refreshes the cached state so that a missed change
// notification cannot leave it stale.
type Reconciler struct {
	interval time.Duration
	clock    clockwork.Clock
	engine   Refresher
	logger   *slog.Logger
	resetCh  chan time.Duration
}

// NewReconciler creates a new reconciler with the given configuration.
func NewReconciler(cfg ReconcilerConfig, engine Refresher) *Reconciler {
	clock := cfg.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Reconciler{
		interval: cfg.Interval,
		clock:    clock,
		engine:   engine,
		logger:   logger,
		resetCh:  make(chan time.Duration, 1),
	}
}

// Run starts the reconciliation loop. Blocks until context is cancelled.
func (r *Reconciler) Run(ctx context.Context) {
	var ticker clockwork.Ticker
	var tick <-chan time.Time
	start := func(d time.Duration) {
		if ticker != nil {
			ticker.Stop()
			ticker, tick = nil, nil
		}
		if d > 0 {
			ticker = r.clock.NewTicker(d)
			tick = ticker.Chan()
		}
	}
	start(r.interval)
	defer func() {
		if ticker != nil {
			ticker.Stop()
		}
	}()

	r.logger.Info("reconciler started", "interval", r.interval)

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("reconciler stopped")
			return
		case d := <-r.resetCh:
			r.interval = d
			start(d)
			r.logger.Info("reconciler interval changed", "interval", d)
		case <-tick:
			r.reconcile(ctx)
		}
	}
}

// SetInterval changes the resync interval of a running loop. Zero disables
// periodic resync.
func (r *Reconciler) SetInterval(d time.Duration) {
	for {
		select {
		case r.resetCh <- d:
			return
		default:
		}
		// Replace a pending change nobody has picked up yet.
		select {
		case <-r.resetCh:
		default:
		}
	}
}

// reconcile performs a single reconciliation pass.
func (r *Reconciler) reconcile(ctx context.Context) {
	// Recover from panics to prevent crashing the daemon
	defer func() {
		if err := recover(); err != nil {
			r.logger.Error("reconciler panic recovered", "error", err)
		}
	}()

	if _, err := r.engine.Refresh(ctx); err != nil {
		r.logger.Warn("reconciler: refresh failed", "error", err)
	}
}

// ReconcileNow triggers an immediate reconciliation pass.
func (r *Reconciler) ReconcileNow(ctx context.Context) {
	r.reconcile(ctx)
}
