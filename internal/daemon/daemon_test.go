package daemon

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/1broseidon/dispswitch/internal/config"
	"github.com/1broseidon/dispswitch/internal/display"
	"github.com/1broseidon/dispswitch/internal/engine"
	"github.com/1broseidon/dispswitch/internal/ipc"
	"github.com/1broseidon/dispswitch/internal/repository"
	"github.com/1broseidon/dispswitch/internal/store"
)

var (
	edp  = display.Identity{Connector: "eDP-1", Vendor: "BOE", Product: "0x0bca", Serial: "0x00000000"}
	dell = display.Identity{Connector: "DP-1", Vendor: "DEL", Product: "U2720Q", Serial: "ABC123"}
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func current(id string) display.RawMode {
	return display.RawMode{ID: id, Width: 1920, Height: 1080, RefreshRate: 60, Properties: map[string]any{"is-current": true}}
}

// snapshot is the laptop panel with the Dell at dellX, or the panel alone
// when dellX is negative.
func snapshot(serial uint32, dellX int) *display.RawSnapshot {
	s := &display.RawSnapshot{
		Serial:  serial,
		Outputs: []display.RawOutput{{Identity: edp, Modes: []display.RawMode{current("1920x1200@60.000")}}},
		LogicalMonitors: []display.RawLogicalMonitor{
			{X: 0, Y: 0, Scale: 1, Primary: true, Monitors: []display.Identity{edp}},
		},
	}
	if dellX >= 0 {
		s.Outputs = append(s.Outputs, display.RawOutput{Identity: dell, Modes: []display.RawMode{current("3840x2160@59.997")}})
		s.LogicalMonitors = append(s.LogicalMonitors, display.RawLogicalMonitor{X: dellX, Y: 0, Scale: 1, Monitors: []display.Identity{dell}})
	}
	return s
}

func canonical(t *testing.T, raw *display.RawSnapshot) *display.DisplayState {
	t.Helper()
	state, err := display.Canonicalize(raw)
	require.NoError(t, err)
	return state
}

// liveService answers every fetch with the current snapshot.
type liveService struct {
	mu       sync.Mutex
	snap     *display.RawSnapshot
	fetchErr error
	fetches  int
	applied  []display.ApplyRequest
	changes  chan struct{}
}

func newLiveService(snap *display.RawSnapshot) *liveService {
	return &liveService{snap: snap, changes: make(chan struct{}, 16)}
}

func (s *liveService) Name() string { return "fake" }

func (s *liveService) FetchState(ctx context.Context) (*display.RawSnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fetches++
	if s.fetchErr != nil {
		return nil, s.fetchErr
	}
	return s.snap, nil
}

func (s *liveService) Apply(ctx context.Context, req display.ApplyRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.applied = append(s.applied, req)
	return nil
}

func (s *liveService) StateChanged() <-chan struct{} { return s.changes }

func (s *liveService) Close() error { return nil }

func (s *liveService) set(snap *display.RawSnapshot) {
	s.mu.Lock()
	s.snap = snap
	s.mu.Unlock()
}

func (s *liveService) fetchCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fetches
}

func (s *liveService) appliedRequests() []display.ApplyRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]display.ApplyRequest(nil), s.applied...)
}

type memStore struct {
	mu      sync.Mutex
	configs []display.SavedConfiguration
}

func (m *memStore) Load() ([]display.SavedConfiguration, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]display.SavedConfiguration(nil), m.configs...), nil
}

func (m *memStore) Save(configs []display.SavedConfiguration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.configs = append([]display.SavedConfiguration(nil), configs...)
	return nil
}

func newTestDaemon(t *testing.T, svc *liveService, st store.Store, clock clockwork.Clock) *Daemon {
	t.Helper()
	d, err := New(Deps{
		Config:  config.DefaultConfig(),
		Service: svc,
		Store:   st,
		Clock:   clock,
		Logger:  quietLogger(),
	})
	require.NoError(t, err)
	return d
}

func TestNewRequiresService(t *testing.T) {
	_, err := New(Deps{Store: &memStore{}})
	require.Error(t, err)
	_, err = New(Deps{Service: newLiveService(nil)})
	require.Error(t, err)
}

func TestHandlerSaveListApply(t *testing.T) {
	ctx := context.Background()
	svc := newLiveService(snapshot(1, 1920))
	d := newTestDaemon(t, svc, &memStore{}, clockwork.NewFakeClock())

	_, err := d.Save(ctx, "desk")
	require.ErrorIs(t, err, engine.ErrNoState)

	_, err = d.State(ctx)
	require.ErrorIs(t, err, engine.ErrNoState)

	data, err := d.Refresh(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint32(1), data.State.Serial)
	assert.Empty(t, data.Active)

	saved, err := d.Save(ctx, "desk")
	require.NoError(t, err)
	assert.Equal(t, "desk", saved.Name)

	data, err = d.State(ctx)
	require.NoError(t, err)
	assert.Equal(t, "desk", data.Active)
	assert.Equal(t, ipc.FormatHash(saved.Hash), data.Hash)

	// panel-only arrangement is saved under a second name
	svc.set(snapshot(2, -1))
	_, err = d.Refresh(ctx)
	require.NoError(t, err)
	_, err = d.Save(ctx, "laptop")
	require.NoError(t, err)

	entries, err := d.List(ctx, false)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "laptop", entries[0].Name)
	assert.True(t, entries[0].Active)

	entries, err = d.List(ctx, true)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "desk", entries[0].Name)
	assert.False(t, entries[0].Applicable)

	_, err = d.Apply(ctx, "desk", "")
	require.Error(t, err)

	svc.set(snapshot(3, 1920))
	_, err = d.Refresh(ctx)
	require.NoError(t, err)

	res, err := d.Apply(ctx, "laptop", "persistent")
	require.NoError(t, err)
	assert.Equal(t, display.MethodPersistent, res.Method)
	assert.Equal(t, uint32(3), res.Serial)

	res, err = d.Apply(ctx, "laptop", "")
	require.NoError(t, err)
	assert.Equal(t, display.MethodTemporary, res.Method)

	_, err = d.Apply(ctx, "laptop", "forever")
	require.Error(t, err)

	_, err = d.Apply(ctx, "nope", "")
	require.ErrorIs(t, err, repository.ErrNotFound)

	require.Len(t, svc.appliedRequests(), 2)

	entry, err := d.Show(ctx, "laptop")
	require.NoError(t, err)
	assert.True(t, entry.Applicable)
	assert.False(t, entry.Active)
}

func TestHandlerCycleAndEdits(t *testing.T) {
	ctx := context.Background()
	svc := newLiveService(snapshot(1, 1920))
	d := newTestDaemon(t, svc, &memStore{}, clockwork.NewFakeClock())

	_, err := d.Refresh(ctx)
	require.NoError(t, err)
	_, err = d.Save(ctx, "right")
	require.NoError(t, err)

	// same displays, Dell nudged one pixel to the right
	svc.set(snapshot(2, 1921))
	_, err = d.Refresh(ctx)
	require.NoError(t, err)
	_, err = d.Save(ctx, "gap")
	require.NoError(t, err)

	res, err := d.Cycle(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, "right", res.Name)

	require.NoError(t, d.Rename(ctx, "gap", "offset"))
	require.NoError(t, d.Move(ctx, "offset", 0))
	names := func() []string {
		var out []string
		for _, c := range d.Repository().List() {
			out = append(out, c.Name)
		}
		return out
	}
	assert.Equal(t, []string{"offset", "right"}, names())

	require.NoError(t, d.Reorder(ctx, []string{"right", "offset"}))
	assert.Equal(t, []string{"right", "offset"}, names())

	require.NoError(t, d.Remove(ctx, "right"))
	assert.Equal(t, []string{"offset"}, names())
}

func TestHandlerStatus(t *testing.T) {
	ctx := context.Background()
	clock := clockwork.NewFakeClock()
	svc := newLiveService(snapshot(4, 1920))
	d := newTestDaemon(t, svc, &memStore{}, clock)

	status := d.Status(ctx)
	assert.False(t, status.HasState)
	assert.Equal(t, "fake", status.Backend)
	assert.True(t, status.DaemonRunning)

	_, err := d.Refresh(ctx)
	require.NoError(t, err)
	_, err = d.Save(ctx, "desk")
	require.NoError(t, err)

	svc.mu.Lock()
	svc.fetchErr = errors.New("bus gone")
	svc.mu.Unlock()
	_, err = d.Refresh(ctx)
	require.Error(t, err)

	clock.Advance(90 * time.Second)
	status = d.Status(ctx)
	assert.True(t, status.HasState)
	assert.Equal(t, uint32(4), status.Serial)
	assert.Equal(t, 1, status.Configurations)
	assert.Equal(t, 1, status.Applicable)
	assert.Equal(t, "desk", status.Active)
	assert.Contains(t, status.LastError, "bus gone")
	assert.Equal(t, int64(90), status.UptimeSeconds)
	assert.False(t, status.AutoApply)
}

func TestReloadConfig(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.yaml")
	cfg := config.DefaultConfig()
	require.NoError(t, cfg.Save(cfgPath))

	d, err := New(Deps{
		Config:     cfg,
		ConfigPath: cfgPath,
		Service:    newLiveService(snapshot(1, 1920)),
		Store:      &memStore{},
		Clock:      clockwork.NewFakeClock(),
		Logger:     quietLogger(),
	})
	require.NoError(t, err)

	next := config.DefaultConfig()
	next.AutoApply = true
	next.DefaultMethod = "persistent"
	require.NoError(t, next.Save(cfgPath))

	require.NoError(t, d.Reload(context.Background()))
	assert.True(t, d.Status(context.Background()).AutoApply)
	m, err := d.method("")
	require.NoError(t, err)
	assert.Equal(t, display.MethodPersistent, m)
}

func TestServeOverSocket(t *testing.T) {
	dir := t.TempDir()
	svc := newLiveService(snapshot(1, 1920))
	fs := store.NewFileStore(filepath.Join(dir, "configurations.json"))
	socket := filepath.Join(dir, "d.sock")

	d, err := New(Deps{
		Config:     config.DefaultConfig(),
		Service:    svc,
		Store:      fs,
		SocketPath: socket,
		Clock:      clockwork.NewFakeClock(),
		Logger:     quietLogger(),
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- d.Serve(ctx) }()

	client := ipc.NewClientWithSocket(socket)
	require.Eventually(t, func() bool {
		status, err := client.GetStatus()
		return err == nil && status.HasState
	}, 5*time.Second, 20*time.Millisecond)

	saved, err := client.Save("desk")
	require.NoError(t, err)
	assert.Equal(t, "desk", saved.Name)

	stored, err := fs.Load()
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.Equal(t, saved.Hash, stored[0].Hash)

	entries, err := client.List(false)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.True(t, entries[0].Active)

	// a change notification triggers another fetch
	before := svc.fetchCount()
	svc.changes <- struct{}{}
	require.Eventually(t, func() bool { return svc.fetchCount() > before }, 5*time.Second, 10*time.Millisecond)

	// an external edit of the store file is picked up by the watcher
	require.NoError(t, fs.Save(nil))
	require.Eventually(t, func() bool { return len(d.Repository().List()) == 0 }, 5*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Serve did not return after cancel")
	}
	assert.Error(t, client.Ping())
}
