package platform

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/1broseidon/dispswitch/internal/display"
)

// ErrServiceUnavailable marks a failed or timed-out display service call.
var ErrServiceUnavailable = errors.New("display service unavailable")

// DisplayService abstracts the compositor or X server that owns the monitor
// configuration.
type DisplayService interface {
	// Name identifies the backend in logs and status output.
	Name() string
	FetchState(ctx context.Context) (*display.RawSnapshot, error)
	// Apply sends a configuration. The service rejects a stale serial.
	Apply(ctx context.Context, req display.ApplyRequest) error
	// StateChanged delivers one value per change notification and is
	// closed by Close.
	StateChanged() <-chan struct{}
	Close() error
}

// Kind selects a DisplayService implementation.
type Kind string

const (
	KindAuto   Kind = "auto"
	KindMutter Kind = "mutter"
	KindX11    Kind = "x11"
)

// ParseKind validates a backend name from configuration.
func ParseKind(s string) (Kind, error) {
	switch k := Kind(strings.ToLower(strings.TrimSpace(s))); k {
	case "":
		return KindAuto, nil
	case KindAuto, KindMutter, KindX11:
		return k, nil
	default:
		return "", fmt.Errorf("unknown backend %q (expected auto, mutter or x11)", s)
	}
}

// Unavailable wraps err so that it matches ErrServiceUnavailable while
// keeping the original error in the chain.
func Unavailable(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrServiceUnavailable) {
		return err
	}
	return fmt.Errorf("%s: %w: %w", op, ErrServiceUnavailable, err)
}
