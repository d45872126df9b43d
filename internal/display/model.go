// Package display models display arrangements reported by the compositor and
// implements the logic that captures, matches and retargets saved ones.
package display

import "fmt"

// Transform is the rotation/reflection of a logical monitor, using the
// compositor's numbering: 0-3 rotate by 0/90/180/270 degrees, 4-7 are the
// same rotations applied to a horizontally flipped output.
type Transform uint32

const (
	TransformNormal Transform = iota
	Transform90
	Transform180
	Transform270
	TransformFlipped
	TransformFlipped90
	TransformFlipped180
	TransformFlipped270
)

func (t Transform) Valid() bool { return t <= TransformFlipped270 }

// PhysicalDisplay is a connected output with its currently active mode.
type PhysicalDisplay struct {
	Identity      Identity   `json:"identity"`
	CurrentModeID string     `json:"current_mode_id"`
	Properties    Properties `json:"properties,omitempty"`
}

// MonitorAssignment maps one physical output into a logical monitor.
type MonitorAssignment struct {
	Identity   Identity   `json:"identity"`
	ModeID     string     `json:"mode_id"`
	Properties Properties `json:"properties,omitempty"`
}

// LogicalMonitor is a rectangle in the desktop coordinate space backed by one
// or more physical outputs (more than one when cloned).
type LogicalMonitor struct {
	X         int                 `json:"x"`
	Y         int                 `json:"y"`
	Scale     float64             `json:"scale"`
	Transform Transform           `json:"transform"`
	Primary   bool                `json:"primary"`
	Monitors  []MonitorAssignment `json:"monitors"`
}

// DisplayState is a canonicalized live snapshot.
type DisplayState struct {
	// Serial must be echoed back on the next apply call.
	Serial             uint32            `json:"serial"`
	PhysicalDisplays   []PhysicalDisplay `json:"physical_displays"`
	LogicalMonitors    []LogicalMonitor  `json:"logical_monitors"`
	Properties         Properties        `json:"properties,omitempty"`
	SupportsLayoutMode bool              `json:"supports_layout_mode,omitempty"`
}

// SavedConfiguration is a named, persisted display arrangement.
type SavedConfiguration struct {
	Name             string           `json:"name"`
	Hash             uint64           `json:"hash"`
	LogicalMonitors  []LogicalMonitor `json:"logical_monitors"`
	Properties       Properties       `json:"properties,omitempty"`
	PhysicalDisplays []Identity       `json:"physical_displays"`
}

// ApplyMethod selects how the compositor applies a new arrangement.
type ApplyMethod uint32

const (
	// MethodTemporary applies without persisting the arrangement.
	MethodTemporary ApplyMethod = 1
	// MethodPersistent applies and persists; the compositor asks the user to
	// confirm the change.
	MethodPersistent ApplyMethod = 2
)

func (m ApplyMethod) String() string {
	switch m {
	case MethodTemporary:
		return "temporary"
	case MethodPersistent:
		return "persistent"
	default:
		return fmt.Sprintf("method(%d)", uint32(m))
	}
}

// ParseApplyMethod parses "temporary" or "persistent".
func ParseApplyMethod(s string) (ApplyMethod, error) {
	switch s {
	case "temporary":
		return MethodTemporary, nil
	case "persistent":
		return MethodPersistent, nil
	default:
		return 0, fmt.Errorf("apply method must be temporary or persistent, got %q", s)
	}
}

// ApplyRequest is the wire-ready input of a DisplayService apply call.
type ApplyRequest struct {
	Serial          uint32
	Method          ApplyMethod
	LogicalMonitors []LogicalMonitor
	Properties      Properties
}
