package store

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/1broseidon/dispswitch/internal/display"
)

func sampleConfigs() []display.SavedConfiguration {
	edp := display.Identity{Connector: "eDP-1", Vendor: "BOE", Product: "0x0bca", Serial: "0x00000000"}
	dell := display.Identity{Connector: "DP-1", Vendor: "DEL", Product: "U2720Q", Serial: "ABC123"}
	monitors := []display.LogicalMonitor{
		{X: 0, Y: 0, Scale: 1.5, Primary: true, Monitors: []display.MonitorAssignment{{Identity: edp, ModeID: "1920x1200@60.000"}}},
		{X: 1280, Y: 0, Scale: 2, Monitors: []display.MonitorAssignment{{
			Identity:   dell,
			ModeID:     "3840x2160@59.997",
			Properties: display.Properties{display.PropUnderscanning: display.Bool(true)},
		}}},
	}
	props := display.Properties{display.PropLayoutMode: display.Uint32(display.LayoutModeLogical)}
	ids := []display.Identity{dell, edp}
	return []display.SavedConfiguration{
		{Name: "Desk", Hash: display.Hash(monitors, props, ids), LogicalMonitors: monitors, Properties: props, PhysicalDisplays: ids},
		{Name: "Laptop", Hash: 42, LogicalMonitors: monitors[:1], PhysicalDisplays: []display.Identity{edp}},
	}
}

func TestLoadMissingFileReturnsEmpty(t *testing.T) {
	s := NewFileStore(filepath.Join(t.TempDir(), "nope", "configurations.json"))
	got, err := s.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("expected empty list, got %d entries", len(got))
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "configurations.json")
	s := NewFileStore(path)
	want := sampleConfigs()

	if err := s.Save(want); err != nil {
		t.Fatalf("Save: %v", err)
	}
	got, err := s.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(got) != len(want) {
		t.Fatalf("expected %d configurations, got %d", len(want), len(got))
	}
	for i := range want {
		if got[i].Name != want[i].Name || got[i].Hash != want[i].Hash {
			t.Fatalf("entry %d: got %q/%d, want %q/%d", i, got[i].Name, got[i].Hash, want[i].Name, want[i].Hash)
		}
	}
	if got[0].Hash != display.Hash(got[0].LogicalMonitors, got[0].Properties, got[0].PhysicalDisplays) {
		t.Fatalf("hash of reloaded configuration changed")
	}
	v, ok := got[0].LogicalMonitors[1].Monitors[0].Properties[display.PropUnderscanning].AsBool()
	if !ok || !v {
		t.Fatalf("underscanning property lost in round trip")
	}
}

func TestSaveIsByteStable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "configurations.json")
	s := NewFileStore(path)
	if err := s.Save(sampleConfigs()); err != nil {
		t.Fatalf("Save: %v", err)
	}
	first, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}

	loaded, err := s.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if err := s.Save(loaded); err != nil {
		t.Fatalf("Save: %v", err)
	}
	second, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if !bytes.Equal(first, second) {
		t.Fatalf("save(load()) changed the file:\n%s\n---\n%s", first, second)
	}
}

func TestSaveEmptyWritesEmptyArray(t *testing.T) {
	path := filepath.Join(t.TempDir(), "configurations.json")
	s := NewFileStore(path)
	if err := s.Save(nil); err != nil {
		t.Fatalf("Save: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if !bytes.Contains(data, []byte(`"configurations": []`)) {
		t.Fatalf("expected empty array, got %s", data)
	}
}

func TestSaveLeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	s := NewFileStore(filepath.Join(dir, "configurations.json"))
	if err := s.Save(sampleConfigs()); err != nil {
		t.Fatalf("Save: %v", err)
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	if len(entries) != 1 || entries[0].Name() != "configurations.json" {
		names := make([]string, 0, len(entries))
		for _, e := range entries {
			names = append(names, e.Name())
		}
		t.Fatalf("unexpected directory contents: %v", names)
	}
}

func TestLoadLegacyShortIdentities(t *testing.T) {
	path := filepath.Join(t.TempDir(), "configurations.json")
	legacy := `{
  "version": 1,
  "configurations": [
    {
      "name": "Old",
      "hash": 12345,
      "logical_monitors": [
        {"x": 0, "y": 0, "scale": 1, "transform": 0, "primary": true,
         "monitors": [{"identity": ["HDMI-1"], "mode_id": "1920x1080@60.000"}]}
      ],
      "physical_displays": [["HDMI-1"]]
    }
  ]
}`
	if err := os.WriteFile(path, []byte(legacy), 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	got, err := NewFileStore(path).Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected 1 configuration, got %d", len(got))
	}
	id := got[0].PhysicalDisplays[0]
	if id.Arity() != 1 || id.Connector != "HDMI-1" {
		t.Fatalf("unexpected identity %v", id)
	}
	full := display.Identity{Connector: "HDMI-1", Vendor: "GSM", Product: "LG", Serial: "1"}
	if !id.Matches(full) {
		t.Fatalf("legacy identity should match by prefix")
	}
	if got[0].Hash != 12345 {
		t.Fatalf("stored hash must be kept, got %d", got[0].Hash)
	}
}

func TestLoadCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "configurations.json")
	if err := os.WriteFile(path, []byte("{not json"), 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	_, err := NewFileStore(path).Load()
	if err == nil {
		t.Fatalf("expected error for corrupt file")
	}
	if !errors.Is(err, ErrStore) {
		t.Fatalf("expected ErrStore, got %v", err)
	}
	var se *StoreError
	if !errors.As(err, &se) || se.Op != "parse" {
		t.Fatalf("expected parse StoreError, got %#v", err)
	}
}

func TestLoadUnsupportedVersion(t *testing.T) {
	path := filepath.Join(t.TempDir(), "configurations.json")
	if err := os.WriteFile(path, []byte(`{"version": 9, "configurations": []}`), 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if _, err := NewFileStore(path).Load(); !errors.Is(err, ErrStore) {
		t.Fatalf("expected ErrStore, got %v", err)
	}
}

func TestSaveFailsWhenDirectoryIsAFile(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "blocker")
	if err := os.WriteFile(blocker, []byte("x"), 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	s := NewFileStore(filepath.Join(blocker, "configurations.json"))
	if err := s.Save(sampleConfigs()); !errors.Is(err, ErrStore) {
		t.Fatalf("expected ErrStore, got %v", err)
	}
}

func TestWatchReportsSave(t *testing.T) {
	waitForSaveNotification(t, NewFileStore(filepath.Join(t.TempDir(), "configurations.json")))
}

func TestWatchCreatesMissingDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "config", "dispswitch")
	waitForSaveNotification(t, NewFileStore(filepath.Join(dir, "configurations.json")))

	info, err := os.Stat(dir)
	if err != nil {
		t.Fatalf("Stat: %v", err)
	}
	if !info.IsDir() {
		t.Fatalf("%s is not a directory", dir)
	}
}

// waitForSaveNotification starts a watcher on s and saves until it reports
// a change.
func waitForSaveNotification(t *testing.T, s *FileStore) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	changed := make(chan struct{}, 16)
	done := make(chan error, 1)
	go func() {
		done <- s.Watch(ctx, logger, func() {
			select {
			case changed <- struct{}{}:
			default:
			}
		})
	}()

	// The watcher registers asynchronously; keep saving until it notices.
	deadline := time.After(5 * time.Second)
	tick := time.NewTicker(50 * time.Millisecond)
	defer tick.Stop()
	for {
		if err := s.Save(sampleConfigs()); err != nil {
			t.Fatalf("Save: %v", err)
		}
		select {
		case <-changed:
			cancel()
			if err := <-done; err != nil {
				t.Fatalf("Watch: %v", err)
			}
			return
		case <-deadline:
			t.Fatalf("no change notification received")
		case <-tick.C:
		}
	}
}
