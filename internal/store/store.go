// Package store persists the ordered list of saved display configurations.
package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/1broseidon/dispswitch/internal/display"
)

// ErrStore is matched by every error returned from a Store.
var ErrStore = errors.New("configuration store error")

// StoreError wraps a failed read or write of the configuration list.
type StoreError struct {
	Op   string
	Path string
	Err  error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("%s configurations %s: %v", e.Op, e.Path, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }

func (e *StoreError) Is(target error) bool { return target == ErrStore }

// Store loads and saves the full ordered configuration list.
type Store interface {
	Load() ([]display.SavedConfiguration, error)
	Save(configs []display.SavedConfiguration) error
}

const fileVersion = 1

type fileFormat struct {
	Version        int                          `json:"version"`
	Configurations []display.SavedConfiguration `json:"configurations"`
}

// DefaultPath returns ~/.config/dispswitch/configurations.json.
func DefaultPath() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(homeDir, ".config", "dispswitch", "configurations.json"), nil
}

// FileStore keeps the list in a single JSON file that is replaced atomically
// on every save.
type FileStore struct {
	path string
}

var _ Store = (*FileStore)(nil)

func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

func (s *FileStore) Path() string { return s.path }

// Load returns the stored list. A missing file is an empty list.
func (s *FileStore) Load() ([]display.SavedConfiguration, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, &StoreError{Op: "read", Path: s.path, Err: err}
	}

	var f fileFormat
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, &StoreError{Op: "parse", Path: s.path, Err: err}
	}
	if f.Version != fileVersion {
		return nil, &StoreError{Op: "parse", Path: s.path, Err: fmt.Errorf("unsupported version %d", f.Version)}
	}
	return f.Configurations, nil
}

// Save writes the full list to a temporary file next to the store and
// renames it into place.
func (s *FileStore) Save(configs []display.SavedConfiguration) error {
	if configs == nil {
		configs = []display.SavedConfiguration{}
	}
	data, err := json.MarshalIndent(fileFormat{Version: fileVersion, Configurations: configs}, "", "  ")
	if err != nil {
		return &StoreError{Op: "encode", Path: s.path, Err: err}
	}
	data = append(data, '\n')

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return &StoreError{Op: "write", Path: s.path, Err: err}
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return &StoreError{Op: "write", Path: s.path, Err: err}
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		_ = os.Remove(tmpPath)
		return &StoreError{Op: "write", Path: s.path, Err: err}
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		_ = os.Remove(tmpPath)
		return &StoreError{Op: "write", Path: s.path, Err: err}
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return &StoreError{Op: "write", Path: s.path, Err: err}
	}
	if err := os.Chmod(tmpPath, 0644); err != nil {
		_ = os.Remove(tmpPath)
		return &StoreError{Op: "write", Path: s.path, Err: err}
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		_ = os.Remove(tmpPath)
		return &StoreError{Op: "write", Path: s.path, Err: err}
	}
	return nil
}
