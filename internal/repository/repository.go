// Package repository manages the ordered list of saved display
// configurations on top of a store.Store.
package repository

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"

	"github.com/1broseidon/dispswitch/internal/display"
	"github.com/1broseidon/dispswitch/internal/metrics"
	"github.com/1broseidon/dispswitch/internal/store"
)

var (
	ErrNotFound      = errors.New("configuration not found")
	ErrDuplicateName = errors.New("configuration name already in use")
	ErrAlreadySaved  = errors.New("current display arrangement is already saved")
	ErrInvalidName   = errors.New("configuration name cannot be empty")
	ErrInvalidOrder  = errors.New("new order must list every configuration exactly once")
	ErrNoState       = errors.New("no display state available")
)

// Repository caches the stored list and writes every change back as a full
// list. The cache is only replaced after a successful save.
type Repository struct {
	mu      sync.RWMutex
	store   store.Store
	configs []display.SavedConfiguration
	logger  *slog.Logger
}

// New loads the store once. A load failure is returned but the repository is
// still usable with an empty list.
func New(s store.Store, logger *slog.Logger) (*Repository, error) {
	if logger == nil {
		logger = slog.Default()
	}
	r := &Repository{store: s, logger: logger}
	err := r.Reload()
	return r, err
}

// List returns a copy of the saved configurations in stored order.
func (r *Repository) List() []display.SavedConfiguration {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Clone(r.configs)
}

// Get returns the configuration with the given name.
func (r *Repository) Get(name string) (display.SavedConfiguration, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	i := indexOf(r.configs, strings.TrimSpace(name))
	if i < 0 {
		return display.SavedConfiguration{}, fmt.Errorf("%w: %q", ErrNotFound, name)
	}
	return r.configs[i], nil
}

// Reload replaces the cache with the store contents.
func (r *Repository) Reload() error {
	configs, err := r.store.Load()
	if err != nil {
		return err
	}
	r.mu.Lock()
	r.configs = configs
	r.mu.Unlock()
	metrics.SavedConfigurations.Set(float64(len(configs)))
	return nil
}

// Add stores the projection of state under name, appended to the end of the
// list.
func (r *Repository) Add(name string, state *display.DisplayState) (display.SavedConfiguration, error) {
	name, err := cleanName(name)
	if err != nil {
		return display.SavedConfiguration{}, err
	}
	if state == nil {
		return display.SavedConfiguration{}, ErrNoState
	}
	cfg := state.Projection(name)

	err = r.update(func(configs []display.SavedConfiguration) ([]display.SavedConfiguration, error) {
		if indexOf(configs, name) >= 0 {
			return nil, fmt.Errorf("%w: %q", ErrDuplicateName, name)
		}
		if i := display.ActiveIndex(configs, cfg.Hash); i >= 0 {
			return nil, fmt.Errorf("%w as %q", ErrAlreadySaved, configs[i].Name)
		}
		return append(configs, cfg), nil
	})
	if err != nil {
		return display.SavedConfiguration{}, err
	}
	r.logger.Info("configuration saved", "name", name, "hash", cfg.Hash)
	return cfg, nil
}

// Rename changes only the name of an entry.
func (r *Repository) Rename(oldName, newName string) error {
	oldName = strings.TrimSpace(oldName)
	newName, err := cleanName(newName)
	if err != nil {
		return err
	}
	err = r.update(func(configs []display.SavedConfiguration) ([]display.SavedConfiguration, error) {
		i := indexOf(configs, oldName)
		if i < 0 {
			return nil, fmt.Errorf("%w: %q", ErrNotFound, oldName)
		}
		if j := indexOf(configs, newName); j >= 0 && j != i {
			return nil, fmt.Errorf("%w: %q", ErrDuplicateName, newName)
		}
		configs[i].Name = newName
		return configs, nil
	})
	if err != nil {
		return err
	}
	r.logger.Info("configuration renamed", "from", oldName, "to", newName)
	return nil
}

// Remove deletes an entry.
func (r *Repository) Remove(name string) error {
	name = strings.TrimSpace(name)
	err := r.update(func(configs []display.SavedConfiguration) ([]display.SavedConfiguration, error) {
		i := indexOf(configs, name)
		if i < 0 {
			return nil, fmt.Errorf("%w: %q", ErrNotFound, name)
		}
		return slices.Delete(configs, i, i+1), nil
	})
	if err != nil {
		return err
	}
	r.logger.Info("configuration removed", "name", name)
	return nil
}

// Reorder rearranges the list to match names, which must be a permutation
// of the current names.
func (r *Repository) Reorder(names []string) error {
	err := r.update(func(configs []display.SavedConfiguration) ([]display.SavedConfiguration, error) {
		if len(names) != len(configs) {
			return nil, fmt.Errorf("%w: got %d names for %d configurations", ErrInvalidOrder, len(names), len(configs))
		}
		out := make([]display.SavedConfiguration, 0, len(configs))
		used := make([]bool, len(configs))
		for _, n := range names {
			i := indexOf(configs, strings.TrimSpace(n))
			if i < 0 {
				return nil, fmt.Errorf("%w: %q", ErrNotFound, n)
			}
			if used[i] {
				return nil, fmt.Errorf("%w: %q listed twice", ErrInvalidOrder, n)
			}
			used[i] = true
			out = append(out, configs[i])
		}
		return out, nil
	})
	if err != nil {
		return err
	}
	r.logger.Info("configurations reordered", "order", names)
	return nil
}

// Move places the named entry at index, shifting the others. Index is
// clamped to the list bounds.
func (r *Repository) Move(name string, index int) error {
	name = strings.TrimSpace(name)
	err := r.update(func(configs []display.SavedConfiguration) ([]display.SavedConfiguration, error) {
		i := indexOf(configs, name)
		if i < 0 {
			return nil, fmt.Errorf("%w: %q", ErrNotFound, name)
		}
		cfg := configs[i]
		configs = slices.Delete(configs, i, i+1)
		index = max(0, min(index, len(configs)))
		return slices.Insert(configs, index, cfg), nil
	})
	if err != nil {
		return err
	}
	r.logger.Info("configuration moved", "name", name, "index", index)
	return nil
}

// update reads the current list from the store, applies fn to a copy and
// saves the result. The cache only changes when the save succeeds.
func (r *Repository) update(fn func([]display.SavedConfiguration) ([]display.SavedConfiguration, error)) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	current, err := r.store.Load()
	if err != nil {
		return err
	}
	next, err := fn(slices.Clone(current))
	if err != nil {
		return err
	}
	if err := r.store.Save(next); err != nil {
		metrics.StoreWritesTotal.WithLabelValues(metrics.ResultError).Inc()
		r.logger.Error("failed to save configurations", "error", err)
		return err
	}
	metrics.StoreWritesTotal.WithLabelValues(metrics.ResultOK).Inc()
	r.configs = next
	metrics.SavedConfigurations.Set(float64(len(next)))
	return nil
}

func cleanName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", ErrInvalidName
	}
	return name, nil
}

func indexOf(configs []display.SavedConfiguration, name string) int {
	return slices.IndexFunc(configs, func(c display.SavedConfiguration) bool {
		return c.Name == name
	})
}
