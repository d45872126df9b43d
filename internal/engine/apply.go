package engine

import (
	"context"
	"fmt"

	"github.com/1broseidon/dispswitch/internal/display"
	"github.com/1broseidon/dispswitch/internal/metrics"
	"github.com/1broseidon/dispswitch/internal/platform"
)

// ApplyResult describes a sent configuration.
type ApplyResult struct {
	Name   string              `json:"name"`
	Serial uint32              `json:"serial"`
	Method display.ApplyMethod `json:"method"`
	Gaps   []display.Identity  `json:"gaps,omitempty"`
}

// Apply retargets cfg onto the cached state and sends it with the cached
// serial. Failures are returned and not retried; the next state change
// notification reconciles the cache.
func (e *Engine) Apply(ctx context.Context, cfg display.SavedConfiguration, method display.ApplyMethod) (ApplyResult, error) {
	state, _ := e.State()
	if state == nil {
		return ApplyResult{}, ErrNoState
	}

	req, gaps, err := display.BuildApplyRequest(cfg, state, method)
	if err != nil {
		metrics.AppliesTotal.WithLabelValues(method.String(), metrics.ResultError).Inc()
		e.logger.WarnContext(ctx, "cannot map configuration onto connected displays", "name", cfg.Name, "error", err)
		return ApplyResult{}, err
	}
	if len(gaps) > 0 {
		metrics.RetargetGapsTotal.Add(float64(len(gaps)))
		e.logger.InfoContext(ctx, "dropping saved outputs that are not connected", "name", cfg.Name, "missing", len(gaps))
	}

	actx, cancel := context.WithTimeout(ctx, e.fetchTimeout)
	defer cancel()
	if err := e.svc.Apply(actx, req); err != nil {
		err = platform.Unavailable("apply configuration", err)
		metrics.AppliesTotal.WithLabelValues(method.String(), metrics.ResultError).Inc()
		e.logger.ErrorContext(ctx, "apply failed", "name", cfg.Name, "serial", req.Serial, "error", err)
		return ApplyResult{}, err
	}

	metrics.AppliesTotal.WithLabelValues(method.String(), metrics.ResultOK).Inc()
	e.logger.InfoContext(ctx, "configuration applied", "name", cfg.Name, "serial", req.Serial, "method", method.String())
	return ApplyResult{Name: cfg.Name, Serial: req.Serial, Method: method, Gaps: gaps}, nil
}

// Cycle applies the applicable configuration after the active one, or the
// first applicable one when none is active.
func (e *Engine) Cycle(ctx context.Context, configs []display.SavedConfiguration, method display.ApplyMethod) (ApplyResult, error) {
	state, _ := e.State()
	if state == nil {
		return ApplyResult{}, ErrNoState
	}
	applicable := display.FilterApplicable(configs, state.PhysicalDisplays)
	next, ok := display.Next(applicable, state.Hash())
	if !ok {
		return ApplyResult{}, ErrNothingToCycle
	}
	e.logger.DebugContext(ctx, "cycling configuration", "next", next.Name, "applicable", len(applicable))
	res, err := e.Apply(ctx, next, method)
	if err != nil {
		return ApplyResult{}, fmt.Errorf("cycle to %q: %w", next.Name, err)
	}
	return res, nil
}

// Entry is a saved configuration annotated against the live state.
type Entry struct {
	display.SavedConfiguration
	Applicable bool `json:"applicable"`
	Active     bool `json:"active"`
}

// Annotate marks which configurations apply to the cached state and which
// one is active. Without a state every entry is inapplicable.
func (e *Engine) Annotate(configs []display.SavedConfiguration) []Entry {
	state, _ := e.State()
	out := make([]Entry, 0, len(configs))
	var hash uint64
	if state != nil {
		hash = state.Hash()
	}
	for _, cfg := range configs {
		entry := Entry{SavedConfiguration: cfg}
		if state != nil {
			entry.Applicable = display.IsApplicable(cfg, state.PhysicalDisplays)
			entry.Active = cfg.Hash == hash
		}
		out = append(out, entry)
	}
	return out
}
