package daemon

import (
	"context"
	"fmt"

	"github.com/1broseidon/dispswitch/internal/display"
	"github.com/1broseidon/dispswitch/internal/engine"
	"github.com/1broseidon/dispswitch/internal/ipc"
)

var _ ipc.Handler = (*Daemon)(nil)

func (d *Daemon) Status(ctx context.Context) ipc.StatusData {
	state, lastErr := d.engine.State()
	configs := d.repo.List()
	status := ipc.StatusData{
		Backend:        d.engine.Backend(),
		HasState:       state != nil,
		Configurations: len(configs),
		AutoApply:      d.sync.Enabled(),
		UptimeSeconds:  int64(d.clock.Since(d.started).Seconds()),
		DaemonRunning:  true,
	}
	if lastErr != nil {
		status.LastError = lastErr.Error()
	}
	if state != nil {
		hash := state.Hash()
		status.Serial = state.Serial
		status.StateHash = ipc.FormatHash(hash)
		status.LastUpdated = d.engine.Updated()
		status.Applicable = len(display.FilterApplicable(configs, state.PhysicalDisplays))
		if i := display.ActiveIndex(configs, hash); i >= 0 {
			status.Active = configs[i].Name
		}
	}
	return status
}

func (d *Daemon) State(ctx context.Context) (ipc.StateData, error) {
	state, lastErr := d.engine.State()
	if state == nil {
		if lastErr != nil {
			return ipc.StateData{}, fmt.Errorf("%w: %w", engine.ErrNoState, lastErr)
		}
		return ipc.StateData{}, engine.ErrNoState
	}
	return d.stateData(state), nil
}

func (d *Daemon) stateData(state *display.DisplayState) ipc.StateData {
	hash := state.Hash()
	data := ipc.StateData{State: state, Hash: ipc.FormatHash(hash)}
	configs := d.repo.List()
	if i := display.ActiveIndex(configs, hash); i >= 0 {
		data.Active = configs[i].Name
	}
	return data
}

func (d *Daemon) Refresh(ctx context.Context) (ipc.StateData, error) {
	state, err := d.engine.Refresh(ctx)
	if err != nil {
		return ipc.StateData{}, err
	}
	return d.stateData(state), nil
}

func (d *Daemon) Reload(ctx context.Context) error {
	if err := d.ReloadConfig(); err != nil {
		return err
	}
	return d.repo.Reload()
}

// List returns applicable configurations in stored order, or every
// configuration when all is set.
func (d *Daemon) List(ctx context.Context, all bool) ([]engine.Entry, error) {
	entries := d.engine.Annotate(d.repo.List())
	if all {
		return entries, nil
	}
	out := entries[:0]
	for _, e := range entries {
		if e.Applicable {
			out = append(out, e)
		}
	}
	return out, nil
}

func (d *Daemon) Show(ctx context.Context, name string) (engine.Entry, error) {
	cfg, err := d.repo.Get(name)
	if err != nil {
		return engine.Entry{}, err
	}
	return d.engine.Annotate([]display.SavedConfiguration{cfg})[0], nil
}

func (d *Daemon) Apply(ctx context.Context, name, method string) (engine.ApplyResult, error) {
	m, err := d.method(method)
	if err != nil {
		return engine.ApplyResult{}, err
	}
	cfg, err := d.repo.Get(name)
	if err != nil {
		return engine.ApplyResult{}, err
	}
	return d.engine.Apply(ctx, cfg, m)
}

func (d *Daemon) Cycle(ctx context.Context, method string) (engine.ApplyResult, error) {
	m, err := d.method(method)
	if err != nil {
		return engine.ApplyResult{}, err
	}
	return d.engine.Cycle(ctx, d.repo.List(), m)
}

// Save stores the cached live arrangement under name.
func (d *Daemon) Save(ctx context.Context, name string) (display.SavedConfiguration, error) {
	state, _ := d.engine.State()
	if state == nil {
		return display.SavedConfiguration{}, engine.ErrNoState
	}
	return d.repo.Add(name, state)
}

func (d *Daemon) Rename(ctx context.Context, oldName, newName string) error {
	return d.repo.Rename(oldName, newName)
}

func (d *Daemon) Remove(ctx context.Context, name string) error {
	return d.repo.Remove(name)
}

func (d *Daemon) Reorder(ctx context.Context, names []string) error {
	return d.repo.Reorder(names)
}

func (d *Daemon) Move(ctx context.Context, name string, index int) error {
	return d.repo.Move(name, index)
}
