// Package engine keeps the live display state and drives apply and cycle
// requests against a platform.DisplayService.
package engine

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/1broseidon/dispswitch/internal/display"
	"github.com/1broseidon/dispswitch/internal/metrics"
	"github.com/1broseidon/dispswitch/internal/platform"
)

var (
	// ErrNoState is returned by operations that need a live state before the
	// first successful fetch.
	ErrNoState = errors.New("display state not available yet")
	// ErrNothingToCycle is returned by Cycle when no saved configuration
	// applies to the connected displays.
	ErrNothingToCycle = errors.New("no saved configuration matches the connected displays")
)

const defaultFetchTimeout = 5 * time.Second

// Config holds configuration for the engine.
type Config struct {
	FetchTimeout time.Duration
	Logger       *slog.Logger
}

// Listener is called after a fetched state has been accepted. prev is the
// state of the previous notification, nil for the first one. Listeners are
// called one at a time in acceptance order and must not call Refresh.
type Listener func(prev, next *display.DisplayState)

// Engine caches the most recently issued fetch that succeeded. Fetches may
// overlap; a reply is only accepted if no later-issued fetch has been
// accepted already.
type Engine struct {
	svc          platform.DisplayService
	fetchTimeout time.Duration
	logger       *slog.Logger

	mu       sync.Mutex
	issued   uint64
	accepted uint64
	state    *display.DisplayState
	lastErr  error
	updated  time.Time

	listenersMu sync.Mutex
	listeners   []Listener

	// notifyMu serializes listener calls. notified is the token of the last
	// state delivered to listeners.
	notifyMu      sync.Mutex
	notified      uint64
	notifiedState *display.DisplayState
}

func New(svc platform.DisplayService, cfg Config) *Engine {
	timeout := cfg.FetchTimeout
	if timeout <= 0 {
		timeout = defaultFetchTimeout
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		svc:          svc,
		fetchTimeout: timeout,
		logger:       logger,
	}
}

// Backend returns the name of the display service.
func (e *Engine) Backend() string { return e.svc.Name() }

// Subscribe registers l for accepted states.
func (e *Engine) Subscribe(l Listener) {
	e.listenersMu.Lock()
	e.listeners = append(e.listeners, l)
	e.listenersMu.Unlock()
}

// State returns the cached state (nil before the first accepted fetch) and
// the error of the most recent failed refresh, if it is newer than the
// cached state.
func (e *Engine) State() (*display.DisplayState, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state, e.lastErr
}

// Updated returns when the cached state was last replaced.
func (e *Engine) Updated() time.Time {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.updated
}

// Refresh fetches and canonicalizes the live state. On failure the previous
// state is kept. A reply that lost the race against a later-issued fetch is
// discarded and the newer cached state is returned.
func (e *Engine) Refresh(ctx context.Context) (*display.DisplayState, error) {
	e.mu.Lock()
	e.issued++
	token := e.issued
	e.mu.Unlock()

	fctx, cancel := context.WithTimeout(ctx, e.fetchTimeout)
	start := time.Now()
	raw, err := e.svc.FetchState(fctx)
	cancel()
	metrics.FetchDuration.Observe(time.Since(start).Seconds())

	if err != nil {
		err = platform.Unavailable("fetch display state", err)
		metrics.FetchesTotal.WithLabelValues(metrics.ResultUnavailable).Inc()
		e.recordFailure(ctx, token, err)
		return nil, err
	}

	state, err := display.Canonicalize(raw)
	if err != nil {
		metrics.FetchesTotal.WithLabelValues(metrics.ResultIdentityError).Inc()
		e.recordFailure(ctx, token, err)
		return nil, err
	}
	metrics.FetchesTotal.WithLabelValues(metrics.ResultOK).Inc()

	e.mu.Lock()
	if token <= e.accepted {
		current := e.state
		e.mu.Unlock()
		metrics.StaleRepliesTotal.Inc()
		e.logger.DebugContext(ctx, "discarding stale display state", "token", token, "serial", state.Serial)
		return current, nil
	}
	e.accepted = token
	e.state = state
	e.lastErr = nil
	e.updated = time.Now()
	e.mu.Unlock()

	e.logger.DebugContext(ctx, "display state updated",
		"serial", state.Serial,
		"displays", len(state.PhysicalDisplays),
		"hash", state.Hash())
	e.notify(token, state)
	return state, nil
}

func (e *Engine) recordFailure(ctx context.Context, token uint64, err error) {
	e.mu.Lock()
	if token > e.accepted {
		e.lastErr = err
	}
	e.mu.Unlock()
	e.logger.WarnContext(ctx, "display state refresh failed", "token", token, "error", err)
}

// notify delivers next to the listeners unless a state accepted later has
// already been delivered.
func (e *Engine) notify(token uint64, next *display.DisplayState) {
	e.notifyMu.Lock()
	defer e.notifyMu.Unlock()
	if token <= e.notified {
		e.logger.Debug("skipping notification for superseded state", "token", token, "serial", next.Serial)
		return
	}
	prev := e.notifiedState
	e.notified = token
	e.notifiedState = next

	e.listenersMu.Lock()
	ls := append([]Listener(nil), e.listeners...)
	e.listenersMu.Unlock()
	for _, l := range ls {
		l(prev, next)
	}
}

// Run performs an initial refresh and then starts one refresh per state
// change notification without waiting for earlier ones to finish. Blocks
// until ctx is cancelled or the service closes its notification channel.
func (e *Engine) Run(ctx context.Context) {
	var wg sync.WaitGroup
	defer wg.Wait()

	_, _ = e.Refresh(ctx)

	changes := e.svc.StateChanged()
	for {
		select {
		case <-ctx.Done():
			return
		case _, ok := <-changes:
			if !ok {
				e.logger.Info("display service stopped sending change notifications")
				return
			}
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, _ = e.Refresh(ctx)
			}()
		}
	}
}
