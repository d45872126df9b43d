package display

// RawSnapshot is the live state as reported by a DisplayService, before
// canonicalization. Property maps hold plain Go values (bool, uint32, ...).
type RawSnapshot struct {
	Serial          uint32
	Outputs         []RawOutput
	LogicalMonitors []RawLogicalMonitor
	Properties      map[string]any
}

// RawOutput is one connected output with every mode it supports.
type RawOutput struct {
	Identity   Identity
	Modes      []RawMode
	Properties map[string]any
}

// RawMode is a supported mode of an output. The active mode carries
// "is-current": true in its properties.
type RawMode struct {
	ID              string
	Width           int
	Height          int
	RefreshRate     float64
	PreferredScale  float64
	SupportedScales []float64
	Properties      map[string]any
}

// IsCurrent reports whether the mode is flagged as active.
func (m RawMode) IsCurrent() bool {
	b, _ := m.Properties["is-current"].(bool)
	return b
}

// RawLogicalMonitor is a logical monitor as reported by the compositor. The
// monitors it lists are referenced by identity only.
type RawLogicalMonitor struct {
	X          int
	Y          int
	Scale      float64
	Transform  uint32
	Primary    bool
	Monitors   []Identity
	Properties map[string]any
}
