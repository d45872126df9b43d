//go:build linux

package platform

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/1broseidon/dispswitch/internal/mutter"
	"github.com/1broseidon/dispswitch/internal/x11"
)

var (
	_ DisplayService = (*mutter.Client)(nil)
	_ DisplayService = (*x11.Service)(nil)
)

// Open connects to the requested backend. KindAuto tries Mutter on the
// session bus first and falls back to X11 RandR.
func Open(ctx context.Context, kind Kind, logger *slog.Logger) (DisplayService, error) {
	if logger == nil {
		logger = slog.Default()
	}
	switch kind {
	case KindMutter:
		c, err := mutter.Connect(ctx, logger)
		if err != nil {
			return nil, Unavailable("connect to mutter", err)
		}
		return c, nil
	case KindX11:
		s, err := x11.Connect(logger)
		if err != nil {
			return nil, Unavailable("connect to X11", err)
		}
		return s, nil
	case KindAuto, "":
		c, mErr := mutter.Connect(ctx, logger)
		if mErr == nil {
			return c, nil
		}
		logger.Info("mutter display config not available, trying X11", "error", mErr)
		s, xErr := x11.Connect(logger)
		if xErr == nil {
			return s, nil
		}
		return nil, Unavailable("open display backend", errors.Join(mErr, xErr))
	default:
		return nil, fmt.Errorf("unknown backend %q", kind)
	}
}
