// Package x11 implements the display service over the X11 RandR extension
// for sessions without Mutter.
package x11

import (
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/BurntSushi/xgb/randr"
	"github.com/BurntSushi/xgb/xproto"
	"github.com/BurntSushi/xgbutil"
)

// Service manages the X11 connection and turns RandR change events into
// state change notifications.
type Service struct {
	XUtil *xgbutil.XUtil
	Root  xproto.Window

	logger  *slog.Logger
	serial  atomic.Uint32
	changes chan struct{}
	done    chan struct{}
	once    sync.Once
	wg      sync.WaitGroup

	// applyMu serializes configuration changes.
	applyMu sync.Mutex
}

// Connect establishes a connection to the X server and selects RandR
// screen, CRTC and output change events on the root window.
func Connect(logger *slog.Logger) (*Service, error) {
	xu, err := xgbutil.NewConn()
	if err != nil {
		return nil, err
	}

	if err := randr.Init(xu.Conn()); err != nil {
		xu.Conn().Close()
		return nil, fmt.Errorf("randr init failed: %w", err)
	}
	ver, err := randr.QueryVersion(xu.Conn(), 1, 3).Reply()
	if err != nil {
		xu.Conn().Close()
		return nil, fmt.Errorf("randr version query failed: %w", err)
	}
	if ver.MajorVersion < 1 || (ver.MajorVersion == 1 && ver.MinorVersion < 3) {
		xu.Conn().Close()
		return nil, fmt.Errorf("randr %d.%d is too old, need 1.3", ver.MajorVersion, ver.MinorVersion)
	}

	s := &Service{
		XUtil:   xu,
		Root:    xu.RootWin(),
		logger:  logger.With("backend", "x11"),
		changes: make(chan struct{}, 16),
		done:    make(chan struct{}),
	}
	s.serial.Store(1)

	err = randr.SelectInputChecked(xu.Conn(), s.Root,
		randr.NotifyMaskScreenChange|
			randr.NotifyMaskCrtcChange|
			randr.NotifyMaskOutputChange).Check()
	if err != nil {
		xu.Conn().Close()
		return nil, fmt.Errorf("select randr events: %w", err)
	}

	s.wg.Add(1)
	go s.eventLoop()

	s.logger.Info("connected to X server", "randr", fmt.Sprintf("%d.%d", ver.MajorVersion, ver.MinorVersion))
	return s, nil
}

func (s *Service) Name() string { return "x11" }

// StateChanged delivers one value per RandR change event.
func (s *Service) StateChanged() <-chan struct{} { return s.changes }

// eventLoop reads events until the connection is closed. Every RandR
// event bumps the serial so a configuration computed from older state is
// rejected.
func (s *Service) eventLoop() {
	defer s.wg.Done()
	defer close(s.changes)
	for {
		ev, err := s.XUtil.Conn().WaitForEvent()
		if ev == nil && err == nil {
			return
		}
		if err != nil {
			s.logger.Debug("X11 event error", "error", err)
			continue
		}

		switch ev.(type) {
		case randr.ScreenChangeNotifyEvent, randr.NotifyEvent:
			serial := s.serial.Add(1)
			s.logger.Debug("randr configuration changed", "serial", serial)
			select {
			case s.changes <- struct{}{}:
			case <-s.done:
				return
			}
		}
	}
}

// Close cleanly disconnects from the X11 server.
func (s *Service) Close() error {
	s.once.Do(func() {
		close(s.done)
		s.XUtil.Conn().Close()
		s.wg.Wait()
	})
	return nil
}
