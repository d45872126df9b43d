package daemon

import (
	"context"
	"log/slog"
	"slices"
	"sync/atomic"

	"github.com/1broseidon/dispswitch/internal/display"
	"github.com/1broseidon/dispswitch/internal/engine"
)

// Applier sends a saved configuration to the display service.
type Applier interface {
	Apply(ctx context.Context, cfg display.SavedConfiguration, method display.ApplyMethod) (engine.ApplyResult, error)
}

// StateSynchronizer applies the only matching saved configuration when the
// set of connected displays changes.
type StateSynchronizer struct {
	ctx     context.Context
	applier Applier
	configs func() []display.SavedConfiguration
	enabled atomic.Bool
	logger  *slog.Logger
}

// NewStateSynchronizer creates a synchronizer. ctx bounds every apply it
// starts.
func NewStateSynchronizer(ctx context.Context, applier Applier, configs func() []display.SavedConfiguration, logger *slog.Logger) *StateSynchronizer {
	if logger == nil {
		logger = slog.Default()
	}
	return &StateSynchronizer{
		ctx:     ctx,
		applier: applier,
		configs: configs,
		logger:  logger,
	}
}

// SetEnabled toggles auto-apply.
func (s *StateSynchronizer) SetEnabled(on bool) { s.enabled.Store(on) }

// Enabled reports whether auto-apply is on.
func (s *StateSynchronizer) Enabled() bool { return s.enabled.Load() }

// HandleStateChange is an engine.Listener. The first state after startup is
// never acted on; the compositor has already restored its own arrangement.
func (s *StateSynchronizer) HandleStateChange(prev, next *display.DisplayState) {
	if !s.enabled.Load() || prev == nil || next == nil {
		return
	}
	if sameDisplays(prev.PhysicalDisplays, next.PhysicalDisplays) {
		return
	}

	applicable := display.FilterApplicable(s.configs(), next.PhysicalDisplays)
	if len(applicable) != 1 {
		s.logger.Debug("display set changed, not auto-applying", "applicable", len(applicable))
		return
	}
	target := applicable[0]
	if target.Hash == next.Hash() {
		return
	}

	s.logger.Info("display set changed, applying saved configuration", "name", target.Name)
	if _, err := s.applier.Apply(s.ctx, target, display.MethodTemporary); err != nil {
		s.logger.Warn("auto-apply failed", "name", target.Name, "error", err)
	}
}

func sameDisplays(a, b []display.PhysicalDisplay) bool {
	return slices.EqualFunc(a, b, func(x, y display.PhysicalDisplay) bool {
		return x.Identity == y.Identity
	})
}
