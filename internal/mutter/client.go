// Package mutter talks to org.gnome.Mutter.DisplayConfig on the session bus.
package mutter

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/godbus/dbus/v5"

	"github.com/1broseidon/dispswitch/internal/display"
)

const (
	busName       = "org.gnome.Mutter.DisplayConfig"
	objectPath    = dbus.ObjectPath("/org/gnome/Mutter/DisplayConfig")
	interfaceName = "org.gnome.Mutter.DisplayConfig"

	methodGetCurrentState     = interfaceName + ".GetCurrentState"
	methodApplyMonitorsConfig = interfaceName + ".ApplyMonitorsConfig"
	propApplyAllowed          = interfaceName + ".ApplyMonitorsConfigAllowed"
	signalMonitorsChanged     = "MonitorsChanged"
)

// ErrApplyNotAllowed is returned when Mutter refuses configuration changes,
// for example while the session is locked.
var ErrApplyNotAllowed = errors.New("mutter does not allow applying monitor configurations")

// Client is a DisplayService backed by Mutter.
type Client struct {
	conn    *dbus.Conn
	obj     dbus.BusObject
	logger  *slog.Logger
	signals chan *dbus.Signal
	changes chan struct{}
	done    chan struct{}
	once    sync.Once
	wg      sync.WaitGroup
}

// Connect opens a private session bus connection, checks that the
// DisplayConfig service answers and subscribes to MonitorsChanged.
func Connect(ctx context.Context, logger *slog.Logger) (*Client, error) {
	conn, err := dbus.ConnectSessionBus(dbus.WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("connect session bus: %w", err)
	}

	var owner string
	if err := conn.BusObject().CallWithContext(ctx, "org.freedesktop.DBus.GetNameOwner", 0, busName).Store(&owner); err != nil {
		conn.Close()
		return nil, fmt.Errorf("%s has no owner: %w", busName, err)
	}

	if err := conn.AddMatchSignalContext(ctx,
		dbus.WithMatchObjectPath(objectPath),
		dbus.WithMatchInterface(interfaceName),
		dbus.WithMatchMember(signalMonitorsChanged),
	); err != nil {
		conn.Close()
		return nil, fmt.Errorf("subscribe to %s: %w", signalMonitorsChanged, err)
	}

	c := &Client{
		conn:    conn,
		obj:     conn.Object(busName, objectPath),
		logger:  logger.With("backend", "mutter"),
		signals: make(chan *dbus.Signal, 16),
		changes: make(chan struct{}, 16),
		done:    make(chan struct{}),
	}
	conn.Signal(c.signals)

	c.wg.Add(1)
	go c.forwardSignals()

	c.logger.Info("connected to display config", "owner", owner)
	return c, nil
}

func (c *Client) Name() string { return "mutter" }

// StateChanged delivers one value per MonitorsChanged signal.
func (c *Client) StateChanged() <-chan struct{} { return c.changes }

func (c *Client) forwardSignals() {
	defer c.wg.Done()
	defer close(c.changes)
	for {
		select {
		case <-c.done:
			return
		case sig, ok := <-c.signals:
			if !ok {
				return
			}
			if sig.Path != objectPath || sig.Name != interfaceName+"."+signalMonitorsChanged {
				continue
			}
			c.logger.Debug("monitors changed")
			select {
			case c.changes <- struct{}{}:
			case <-c.done:
				return
			}
		}
	}
}

// FetchState calls GetCurrentState.
func (c *Client) FetchState(ctx context.Context) (*display.RawSnapshot, error) {
	var (
		serial   uint32
		monitors []wireMonitor
		logical  []wireLogicalMonitor
		props    map[string]dbus.Variant
	)
	call := c.obj.CallWithContext(ctx, methodGetCurrentState, 0)
	if call.Err != nil {
		return nil, fmt.Errorf("GetCurrentState: %w", call.Err)
	}
	if err := call.Store(&serial, &monitors, &logical, &props); err != nil {
		return nil, fmt.Errorf("decode GetCurrentState reply: %w", err)
	}
	return decodeState(serial, monitors, logical, props), nil
}

// Apply calls ApplyMonitorsConfig after checking ApplyMonitorsConfigAllowed.
func (c *Client) Apply(ctx context.Context, req display.ApplyRequest) error {
	allowed, err := c.applyAllowed()
	if err != nil {
		return err
	}
	if !allowed {
		return ErrApplyNotAllowed
	}

	lms, props := encodeApply(req)
	call := c.obj.CallWithContext(ctx, methodApplyMonitorsConfig, 0, req.Serial, uint32(req.Method), lms, props)
	if call.Err != nil {
		return fmt.Errorf("ApplyMonitorsConfig: %w", call.Err)
	}
	c.logger.Debug("applied monitors config", "serial", req.Serial, "method", req.Method.String(), "logical_monitors", len(lms))
	return nil
}

func (c *Client) applyAllowed() (bool, error) {
	v, err := c.obj.GetProperty(propApplyAllowed)
	if err != nil {
		// Older Mutter versions do not expose the property.
		var dbusErr dbus.Error
		if errors.As(err, &dbusErr) {
			switch dbusErr.Name {
			case "org.freedesktop.DBus.Error.UnknownProperty", "org.freedesktop.DBus.Error.InvalidArgs":
				return true, nil
			}
		}
		return false, fmt.Errorf("read ApplyMonitorsConfigAllowed: %w", err)
	}
	allowed, ok := v.Value().(bool)
	if !ok {
		return false, fmt.Errorf("ApplyMonitorsConfigAllowed has type %s", v.Signature())
	}
	return allowed, nil
}

// Close stops signal delivery and closes the bus connection.
func (c *Client) Close() error {
	var err error
	c.once.Do(func() {
		close(c.done)
		c.conn.RemoveSignal(c.signals)
		err = c.conn.Close()
		c.wg.Wait()
	})
	return err
}
