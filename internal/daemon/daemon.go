// Package daemon wires the display service, configuration repository and
// IPC server into the long-running dispswitch process.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/1broseidon/dispswitch/internal/config"
	"github.com/1broseidon/dispswitch/internal/display"
	"github.com/1broseidon/dispswitch/internal/engine"
	"github.com/1broseidon/dispswitch/internal/ipc"
	"github.com/1broseidon/dispswitch/internal/logging"
	"github.com/1broseidon/dispswitch/internal/metrics"
	"github.com/1broseidon/dispswitch/internal/platform"
	"github.com/1broseidon/dispswitch/internal/repository"
	"github.com/1broseidon/dispswitch/internal/runtimepath"
	"github.com/1broseidon/dispswitch/internal/store"
)

// Options control where Run looks for its inputs.
type Options struct {
	// ConfigPath overrides config.ConfigPath.
	ConfigPath string
	// SocketPath overrides runtimepath.SocketPath.
	SocketPath string
	LogOutput  io.Writer
}

// Deps are the collaborators of a Daemon.
type Deps struct {
	Config     *config.Config
	ConfigPath string
	Service    platform.DisplayService
	Store      store.Store
	SocketPath string
	Clock      clockwork.Clock
	Logger     *slog.Logger
}

// Daemon serves IPC requests against a live engine and repository.
type Daemon struct {
	cfgMu      sync.RWMutex
	cfg        *config.Config
	cfgPath    string
	logger     *slog.Logger
	clock      clockwork.Clock
	started    time.Time
	store      store.Store
	repo       *repository.Repository
	engine     *engine.Engine
	reconciler *Reconciler
	sync       *StateSynchronizer
	server     *ipc.Server

	baseCtx context.Context
	stop    context.CancelFunc
}

// storeWatcher is implemented by stores that can report external edits.
type storeWatcher interface {
	Watch(ctx context.Context, logger *slog.Logger, onChange func()) error
}

// New builds a daemon. A store that fails to load is logged and the daemon
// starts with an empty list, so that a corrupt file can be repaired by
// saving over it.
func New(deps Deps) (*Daemon, error) {
	if deps.Config == nil {
		deps.Config = config.DefaultConfig()
	}
	if deps.Service == nil {
		return nil, errors.New("daemon: display service is required")
	}
	if deps.Store == nil {
		return nil, errors.New("daemon: store is required")
	}
	if deps.Clock == nil {
		deps.Clock = clockwork.NewRealClock()
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	logger := deps.Logger

	repo, err := repository.New(deps.Store, logger.With("component", "repository"))
	if err != nil {
		logger.Error("failed to load saved configurations", "error", err)
	}

	eng := engine.New(deps.Service, engine.Config{
		FetchTimeout: deps.Config.FetchTimeout,
		Logger:       logger.With("component", "engine"),
	})

	baseCtx, stop := context.WithCancel(context.Background())
	d := &Daemon{
		cfg:     deps.Config,
		cfgPath: deps.ConfigPath,
		logger:  logger,
		clock:   deps.Clock,
		started: deps.Clock.Now(),
		store:   deps.Store,
		repo:    repo,
		engine:  eng,
		baseCtx: baseCtx,
		stop:    stop,
	}
	d.reconciler = NewReconciler(ReconcilerConfig{
		Interval: deps.Config.ResyncInterval,
		Clock:    deps.Clock,
		Logger:   logger.With("component", "reconciler"),
	}, eng)
	d.sync = NewStateSynchronizer(baseCtx, eng, repo.List, logger.With("component", "auto-apply"))
	d.sync.SetEnabled(deps.Config.AutoApply)
	eng.Subscribe(d.sync.HandleStateChange)

	if deps.SocketPath != "" {
		d.server = ipc.NewServer(deps.SocketPath, d, logger)
	}
	return d, nil
}

// Engine exposes the live state cache.
func (d *Daemon) Engine() *engine.Engine { return d.engine }

// Repository exposes the saved configuration list.
func (d *Daemon) Repository() *repository.Repository { return d.repo }

func (d *Daemon) config() *config.Config {
	d.cfgMu.RLock()
	defer d.cfgMu.RUnlock()
	return d.cfg
}

// Serve runs the engine, reconciler, store watcher, metrics listener and
// IPC server until ctx is cancelled.
func (d *Daemon) Serve(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	defer d.stop()

	cfg := d.config()
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		d.engine.Run(ctx)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		d.reconciler.Run(ctx)
	}()

	if w, ok := d.store.(storeWatcher); ok && cfg.WatchStore {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := w.Watch(ctx, d.logger.With("component", "store"), d.reloadStore); err != nil {
				d.logger.Warn("store watcher disabled", "error", err)
			}
		}()
	}

	if cfg.MetricsAddr != "" {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := metrics.Serve(ctx, cfg.MetricsAddr, d.logger); err != nil {
				d.logger.Error("metrics listener failed", "addr", cfg.MetricsAddr, "error", err)
			}
		}()
	}

	if d.server != nil {
		if err := d.server.Start(); err != nil {
			cancel()
			wg.Wait()
			return err
		}
	}

	d.logger.Info("dispswitch daemon started", "backend", d.engine.Backend())
	<-ctx.Done()
	d.stop()
	d.logger.Info("shutting down dispswitch daemon")

	if d.server != nil {
		d.server.Stop()
	}
	wg.Wait()
	return nil
}

func (d *Daemon) reloadStore() {
	if err := d.repo.Reload(); err != nil {
		d.logger.Warn("failed to reload saved configurations", "error", err)
		return
	}
	d.logger.Info("saved configurations reloaded", "count", len(d.repo.List()))
}

// ReloadConfig rereads the configuration file. default_method, auto_apply
// and resync_interval take effect immediately; other keys need a restart.
func (d *Daemon) ReloadConfig() error {
	res, err := config.LoadFromPath(d.cfgPath)
	if err != nil {
		return err
	}
	next := res.Config

	d.cfgMu.Lock()
	prev := d.cfg
	d.cfg = next
	d.cfgMu.Unlock()

	d.sync.SetEnabled(next.AutoApply)
	if next.ResyncInterval != prev.ResyncInterval {
		d.reconciler.SetInterval(next.ResyncInterval)
	}
	if next.Backend != prev.Backend || next.StorePath != prev.StorePath ||
		next.LogLevel != prev.LogLevel || next.LogFormat != prev.LogFormat ||
		next.MetricsAddr != prev.MetricsAddr || next.FetchTimeout != prev.FetchTimeout ||
		next.WatchStore != prev.WatchStore {
		d.logger.Warn("some configuration changes take effect after a daemon restart")
	}
	d.logger.Info("configuration reloaded", "path", d.cfgPath)
	return nil
}

func (d *Daemon) method(name string) (display.ApplyMethod, error) {
	if name == "" {
		name = d.config().DefaultMethod
	}
	return display.ParseApplyMethod(name)
}

// Run loads configuration, connects to the display service and serves until
// SIGINT or SIGTERM. SIGHUP reloads the configuration.
func Run(ctx context.Context, opts Options) error {
	cfgPath := opts.ConfigPath
	if cfgPath == "" {
		p, err := config.ConfigPath()
		if err != nil {
			return err
		}
		cfgPath = p
	}
	res, err := config.LoadFromPath(cfgPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	cfg := res.Config

	out := opts.LogOutput
	if out == nil {
		out = os.Stderr
	}
	logger, err := logging.Init(out, cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return err
	}
	logger.Info("configuration loaded", "path", cfgPath, "files", len(res.Files), "backend", cfg.Backend)

	kind, err := platform.ParseKind(cfg.Backend)
	if err != nil {
		return err
	}
	svc, err := platform.Open(ctx, kind, logger.With("component", "backend"))
	if err != nil {
		return fmt.Errorf("failed to connect to display service: %w", err)
	}
	defer svc.Close()
	logger.Info("display service connected", "backend", svc.Name())

	storePath, err := cfg.ResolvedStorePath()
	if err != nil {
		return err
	}
	if storePath == "" {
		if storePath, err = store.DefaultPath(); err != nil {
			return err
		}
	}

	socketPath := opts.SocketPath
	if socketPath == "" {
		if socketPath, err = runtimepath.SocketPath(); err != nil {
			return fmt.Errorf("failed to resolve IPC socket path: %w", err)
		}
	}

	d, err := New(Deps{
		Config:     cfg,
		ConfigPath: cfgPath,
		Service:    svc,
		Store:      store.NewFileStore(storePath),
		SocketPath: socketPath,
		Logger:     logger,
	})
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-hup:
				logger.Info("received SIGHUP, reloading config")
				if err := d.ReloadConfig(); err != nil {
					logger.Error("config reload failed", "error", err)
				}
			}
		}
	}()

	return d.Serve(ctx)
}
