package mutter

import (
	"github.com/godbus/dbus/v5"

	"github.com/1broseidon/dispswitch/internal/display"
)

// wireSpec is the (ssss) monitor spec: connector, vendor, product, serial.
type wireSpec struct {
	Connector string
	Vendor    string
	Product   string
	Serial    string
}

// wireMode is (siiddada{sv}).
type wireMode struct {
	ID              string
	Width           int32
	Height          int32
	RefreshRate     float64
	PreferredScale  float64
	SupportedScales []float64
	Properties      map[string]dbus.Variant
}

// wireMonitor is ((ssss)a(siiddada{sv})a{sv}).
type wireMonitor struct {
	Spec       wireSpec
	Modes      []wireMode
	Properties map[string]dbus.Variant
}

// wireLogicalMonitor is (iiduba(ssss)a{sv}).
type wireLogicalMonitor struct {
	X          int32
	Y          int32
	Scale      float64
	Transform  uint32
	Primary    bool
	Monitors   []wireSpec
	Properties map[string]dbus.Variant
}

// wireApplyMonitor is (ssa{sv}): connector, mode id, properties.
type wireApplyMonitor struct {
	Connector  string
	ModeID     string
	Properties map[string]dbus.Variant
}

// wireApplyLogicalMonitor is (iiduba(ssa{sv})).
type wireApplyLogicalMonitor struct {
	X         int32
	Y         int32
	Scale     float64
	Transform uint32
	Primary   bool
	Monitors  []wireApplyMonitor
}

func (s wireSpec) identity() display.Identity {
	return display.Identity{Connector: s.Connector, Vendor: s.Vendor, Product: s.Product, Serial: s.Serial}
}

func variantsToMap(in map[string]dbus.Variant) map[string]any {
	if len(in) == 0 {
		return nil
	}
	out := make(map[string]any, len(in))
	for k, v := range in {
		out[k] = v.Value()
	}
	return out
}

func propertiesToVariants(p display.Properties) map[string]dbus.Variant {
	out := make(map[string]dbus.Variant, len(p))
	for k, v := range p {
		out[k] = dbus.MakeVariant(v.Interface())
	}
	return out
}

// decodeState converts the GetCurrentState reply into a raw snapshot.
func decodeState(serial uint32, monitors []wireMonitor, logical []wireLogicalMonitor, props map[string]dbus.Variant) *display.RawSnapshot {
	snap := &display.RawSnapshot{
		Serial:     serial,
		Properties: variantsToMap(props),
	}
	for _, m := range monitors {
		out := display.RawOutput{
			Identity:   m.Spec.identity(),
			Properties: variantsToMap(m.Properties),
		}
		for _, mode := range m.Modes {
			out.Modes = append(out.Modes, display.RawMode{
				ID:              mode.ID,
				Width:           int(mode.Width),
				Height:          int(mode.Height),
				RefreshRate:     mode.RefreshRate,
				PreferredScale:  mode.PreferredScale,
				SupportedScales: mode.SupportedScales,
				Properties:      variantsToMap(mode.Properties),
			})
		}
		snap.Outputs = append(snap.Outputs, out)
	}
	for _, lm := range logical {
		raw := display.RawLogicalMonitor{
			X:          int(lm.X),
			Y:          int(lm.Y),
			Scale:      lm.Scale,
			Transform:  lm.Transform,
			Primary:    lm.Primary,
			Properties: variantsToMap(lm.Properties),
		}
		for _, spec := range lm.Monitors {
			raw.Monitors = append(raw.Monitors, spec.identity())
		}
		snap.LogicalMonitors = append(snap.LogicalMonitors, raw)
	}
	return snap
}

// encodeApply converts an apply request into ApplyMonitorsConfig arguments.
// Monitors are addressed by connector.
func encodeApply(req display.ApplyRequest) ([]wireApplyLogicalMonitor, map[string]dbus.Variant) {
	lms := make([]wireApplyLogicalMonitor, 0, len(req.LogicalMonitors))
	for _, lm := range req.LogicalMonitors {
		w := wireApplyLogicalMonitor{
			X:         int32(lm.X),
			Y:         int32(lm.Y),
			Scale:     lm.Scale,
			Transform: uint32(lm.Transform),
			Primary:   lm.Primary,
		}
		for _, a := range lm.Monitors {
			w.Monitors = append(w.Monitors, wireApplyMonitor{
				Connector:  a.Identity.Connector,
				ModeID:     a.ModeID,
				Properties: propertiesToVariants(a.Properties),
			})
		}
		lms = append(lms, w)
	}
	return lms, propertiesToVariants(req.Properties)
}
