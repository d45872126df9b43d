//go:build !linux

package platform

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
)

// Open reports that no display backend exists on this platform.
func Open(ctx context.Context, kind Kind, logger *slog.Logger) (DisplayService, error) {
	return nil, Unavailable("open display backend", fmt.Errorf("unsupported platform %s", runtime.GOOS))
}
