package mutter

import (
	"testing"

	"github.com/godbus/dbus/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/1broseidon/dispswitch/internal/display"
)

func sampleReply() (uint32, []wireMonitor, []wireLogicalMonitor, map[string]dbus.Variant) {
	edp := wireSpec{"eDP-1", "BOE", "0x0bca", "0x00000000"}
	dell := wireSpec{"DP-1", "DEL", "DELL U2720Q", "ABC123"}
	monitors := []wireMonitor{
		{
			Spec: edp,
			Modes: []wireMode{
				{ID: "1920x1200@60.000", Width: 1920, Height: 1200, RefreshRate: 60, PreferredScale: 1.5, SupportedScales: []float64{1, 1.5, 2},
					Properties: map[string]dbus.Variant{"is-current": dbus.MakeVariant(true), "is-preferred": dbus.MakeVariant(true)}},
				{ID: "1280x800@60.000", Width: 1280, Height: 800, RefreshRate: 60, PreferredScale: 1, SupportedScales: []float64{1}},
			},
			Properties: map[string]dbus.Variant{"is-builtin": dbus.MakeVariant(true), "display-name": dbus.MakeVariant("Built-in display")},
		},
		{
			Spec: dell,
			Modes: []wireMode{
				{ID: "3840x2160@59.997", Width: 3840, Height: 2160, RefreshRate: 59.997, PreferredScale: 2, SupportedScales: []float64{1, 2},
					Properties: map[string]dbus.Variant{"is-current": dbus.MakeVariant(true)}},
			},
			Properties: map[string]dbus.Variant{"is-underscanning": dbus.MakeVariant(true)},
		},
	}
	logical := []wireLogicalMonitor{
		{X: 0, Y: 0, Scale: 1.5, Transform: 0, Primary: true, Monitors: []wireSpec{edp}},
		{X: 1280, Y: 0, Scale: 2, Transform: 1, Monitors: []wireSpec{dell}},
	}
	props := map[string]dbus.Variant{
		"layout-mode":                   dbus.MakeVariant(uint32(1)),
		"supports-changing-layout-mode": dbus.MakeVariant(true),
	}
	return 42, monitors, logical, props
}

func TestDecodeState(t *testing.T) {
	snap := decodeState(sampleReply())

	assert.Equal(t, uint32(42), snap.Serial)
	require.Len(t, snap.Outputs, 2)
	assert.Equal(t, display.Identity{Connector: "eDP-1", Vendor: "BOE", Product: "0x0bca", Serial: "0x00000000"}, snap.Outputs[0].Identity)
	require.Len(t, snap.Outputs[0].Modes, 2)
	assert.True(t, snap.Outputs[0].Modes[0].IsCurrent())
	assert.False(t, snap.Outputs[0].Modes[1].IsCurrent())
	assert.Equal(t, 1200, snap.Outputs[0].Modes[0].Height)
	assert.Equal(t, true, snap.Outputs[1].Properties["is-underscanning"])
	assert.Equal(t, uint32(1), snap.Properties["layout-mode"])

	require.Len(t, snap.LogicalMonitors, 2)
	assert.Equal(t, 1280, snap.LogicalMonitors[1].X)
	assert.Equal(t, uint32(1), snap.LogicalMonitors[1].Transform)
	assert.Equal(t, "DP-1", snap.LogicalMonitors[1].Monitors[0].Connector)
}

func TestDecodedStateCanonicalizes(t *testing.T) {
	state, err := display.Canonicalize(decodeState(sampleReply()))
	require.NoError(t, err)

	assert.True(t, state.SupportsLayoutMode)
	v, ok := state.Properties[display.PropLayoutMode].AsUint32()
	require.True(t, ok)
	assert.Equal(t, uint32(1), v)

	require.Len(t, state.PhysicalDisplays, 2)
	assert.Equal(t, "DP-1", state.PhysicalDisplays[0].Identity.Connector)
	assert.Equal(t, "3840x2160@59.997", state.PhysicalDisplays[0].CurrentModeID)
	under, ok := state.PhysicalDisplays[0].Properties[display.PropUnderscanning].AsBool()
	require.True(t, ok)
	assert.True(t, under)
}

func TestEncodeApply(t *testing.T) {
	dell := display.Identity{Connector: "DP-1", Vendor: "DEL", Product: "DELL U2720Q", Serial: "ABC123"}
	req := display.ApplyRequest{
		Serial: 42,
		Method: display.MethodPersistent,
		LogicalMonitors: []display.LogicalMonitor{
			{X: -3840, Y: 0, Scale: 2, Transform: display.Transform(3), Primary: true, Monitors: []display.MonitorAssignment{{
				Identity:   dell,
				ModeID:     "3840x2160@59.997",
				Properties: display.Properties{display.PropUnderscanning: display.Bool(true)},
			}}},
		},
		Properties: display.Properties{display.PropLayoutMode: display.Uint32(2)},
	}

	lms, props := encodeApply(req)
	require.Len(t, lms, 1)
	assert.Equal(t, int32(-3840), lms[0].X)
	assert.Equal(t, uint32(3), lms[0].Transform)
	assert.True(t, lms[0].Primary)
	require.Len(t, lms[0].Monitors, 1)
	assert.Equal(t, "DP-1", lms[0].Monitors[0].Connector)
	assert.Equal(t, "3840x2160@59.997", lms[0].Monitors[0].ModeID)
	assert.Equal(t, true, lms[0].Monitors[0].Properties["underscanning"].Value())
	assert.Equal(t, uint32(2), props["layout-mode"].Value())
}

func TestEncodeApplyWireSignature(t *testing.T) {
	lms, props := encodeApply(display.ApplyRequest{
		LogicalMonitors: []display.LogicalMonitor{{Scale: 1, Monitors: []display.MonitorAssignment{{
			Identity: display.Identity{Connector: "HDMI-1"}, ModeID: "1920x1080@60.000",
		}}}},
	})
	assert.Equal(t, "a(iiduba(ssa{sv}))", dbus.SignatureOf(lms).String())
	assert.Equal(t, "a{sv}", dbus.SignatureOf(props).String())
}

func TestGetCurrentStateSignature(t *testing.T) {
	assert.Equal(t, "a((ssss)a(siiddada{sv})a{sv})", dbus.SignatureOf([]wireMonitor{}).String())
	assert.Equal(t, "a(iiduba(ssss)a{sv})", dbus.SignatureOf([]wireLogicalMonitor{}).String())
}
