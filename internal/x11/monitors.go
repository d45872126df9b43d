package x11

import (
	"context"
	"fmt"

	"github.com/BurntSushi/xgb"
	"github.com/BurntSushi/xgb/randr"
	"github.com/BurntSushi/xgb/xproto"
	"github.com/BurntSushi/xgbutil/xprop"

	"github.com/1broseidon/dispswitch/internal/display"
)

const (
	modeFlagInterlace  = 0x10
	modeFlagDoubleScan = 0x20
)

// resources is one consistent read of the RandR configuration.
type resources struct {
	config    xproto.Timestamp
	modes     map[randr.Mode]randr.ModeInfo
	crtcs     map[randr.Crtc]*randr.GetCrtcInfoReply
	crtcOrder []randr.Crtc
	outputs   []output
	primary   randr.Output
}

type output struct {
	id   randr.Output
	name string
	info *randr.GetOutputInfoReply
}

func (s *Service) readResources() (*resources, error) {
	conn := s.XUtil.Conn()
	res, err := randr.GetScreenResourcesCurrent(conn, s.Root).Reply()
	if err != nil {
		return nil, fmt.Errorf("failed to get screen resources: %w", err)
	}

	r := &resources{
		config: res.ConfigTimestamp,
		modes:  make(map[randr.Mode]randr.ModeInfo, len(res.Modes)),
		crtcs:  make(map[randr.Crtc]*randr.GetCrtcInfoReply, len(res.Crtcs)),
	}
	for _, m := range res.Modes {
		r.modes[randr.Mode(m.Id)] = m
	}
	for _, crtc := range res.Crtcs {
		info, err := randr.GetCrtcInfo(conn, crtc, res.ConfigTimestamp).Reply()
		if err != nil {
			return nil, fmt.Errorf("failed to get crtc %d: %w", crtc, err)
		}
		r.crtcs[crtc] = info
		r.crtcOrder = append(r.crtcOrder, crtc)
	}
	for _, id := range res.Outputs {
		info, err := randr.GetOutputInfo(conn, id, res.ConfigTimestamp).Reply()
		if err != nil {
			return nil, fmt.Errorf("failed to get output %d: %w", id, err)
		}
		if info.Connection != randr.ConnectionConnected {
			continue
		}
		r.outputs = append(r.outputs, output{id: id, name: string(info.Name), info: info})
	}

	if p, err := randr.GetOutputPrimary(conn, s.Root).Reply(); err == nil {
		r.primary = p.Output
	}
	return r, nil
}

// FetchState reads connected outputs and active CRTCs. Each active CRTC is
// one logical monitor at scale 1.
func (s *Service) FetchState(ctx context.Context) (*display.RawSnapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	serial := s.serial.Load()
	r, err := s.readResources()
	if err != nil {
		return nil, err
	}

	snap := &display.RawSnapshot{Serial: serial}
	ids := make(map[randr.Output]display.Identity, len(r.outputs))
	for _, out := range r.outputs {
		raw := s.rawOutput(r, out)
		ids[out.id] = raw.Identity
		snap.Outputs = append(snap.Outputs, raw)
	}

	for _, crtc := range r.crtcOrder {
		info := r.crtcs[crtc]
		if info.Mode == 0 || len(info.Outputs) == 0 {
			continue
		}
		lm := display.RawLogicalMonitor{
			X:         int(info.X),
			Y:         int(info.Y),
			Scale:     1,
			Transform: uint32(transformFromRotation(info.Rotation)),
		}
		for _, o := range info.Outputs {
			id, ok := ids[o]
			if !ok {
				continue
			}
			lm.Monitors = append(lm.Monitors, id)
			if o == r.primary {
				lm.Primary = true
			}
		}
		if len(lm.Monitors) == 0 {
			continue
		}
		snap.LogicalMonitors = append(snap.LogicalMonitors, lm)
	}
	return snap, nil
}

func (s *Service) rawOutput(r *resources, out output) display.RawOutput {
	id := display.Identity{Connector: out.name, Vendor: unknownField, Product: unknownField, Serial: unknownField}
	if data, err := s.outputProperty(out.id, "EDID"); err == nil && len(data) > 0 {
		if info, err := ParseEDID(data); err == nil {
			id.Vendor, id.Product, id.Serial = info.Vendor, info.Product, info.Serial
		} else {
			s.logger.Debug("ignoring unreadable EDID", "output", out.name, "error", err)
		}
	}

	var current randr.Mode
	if out.info.Crtc != 0 {
		if crtc, ok := r.crtcs[out.info.Crtc]; ok {
			current = crtc.Mode
		}
	}

	raw := display.RawOutput{Identity: id}
	for i, m := range out.info.Modes {
		info, ok := r.modes[m]
		if !ok {
			continue
		}
		props := map[string]any{}
		if m == current {
			props["is-current"] = true
		}
		if i < int(out.info.NumPreferred) {
			props["is-preferred"] = true
		}
		raw.Modes = append(raw.Modes, display.RawMode{
			ID:              modeID(info),
			Width:           int(info.Width),
			Height:          int(info.Height),
			RefreshRate:     refreshRate(info),
			PreferredScale:  1,
			SupportedScales: []float64{1},
			Properties:      props,
		})
	}

	if s.underscanning(out.id) {
		raw.Properties = map[string]any{"is-underscanning": true}
	}
	return raw
}

// outputProperty returns the raw bytes of a RandR output property.
func (s *Service) outputProperty(id randr.Output, name string) ([]byte, error) {
	atom, err := xprop.Atm(s.XUtil, name)
	if err != nil {
		return nil, err
	}
	reply, err := randr.GetOutputProperty(s.XUtil.Conn(), id, atom, xproto.AtomAny, 0, 256, false, false).Reply()
	if err != nil {
		return nil, err
	}
	return reply.Data, nil
}

func (s *Service) underscanning(id randr.Output) bool {
	data, err := s.outputProperty(id, "underscan")
	if err != nil || len(data) < 4 {
		return false
	}
	name, err := xprop.AtomName(s.XUtil, xproto.Atom(xgb.Get32(data)))
	if err != nil {
		return false
	}
	return name == "on"
}

// modeID formats a mode the way Mutter names them, WIDTHxHEIGHT@RATE.
func modeID(m randr.ModeInfo) string {
	return fmt.Sprintf("%dx%d@%.3f", m.Width, m.Height, refreshRate(m))
}

func refreshRate(m randr.ModeInfo) float64 {
	vtotal := float64(m.Vtotal)
	if m.ModeFlags&modeFlagDoubleScan != 0 {
		vtotal *= 2
	}
	if m.ModeFlags&modeFlagInterlace != 0 {
		vtotal /= 2
	}
	if m.Htotal == 0 || vtotal == 0 {
		return 0
	}
	return float64(m.DotClock) / (float64(m.Htotal) * vtotal)
}

// transformFromRotation maps a RandR rotation mask onto a display transform.
func transformFromRotation(rot uint16) display.Transform {
	var t display.Transform
	switch {
	case rot&randr.RotationRotate90 != 0:
		t = 1
	case rot&randr.RotationRotate180 != 0:
		t = 2
	case rot&randr.RotationRotate270 != 0:
		t = 3
	}
	if rot&randr.RotationReflectX != 0 {
		t += 4
	}
	return t
}

// rotationFromTransform is the inverse of transformFromRotation.
func rotationFromTransform(t display.Transform) uint16 {
	rot := uint16(randr.RotationRotate0) << (uint16(t) % 4)
	if t >= 4 {
		rot |= randr.RotationReflectX
	}
	return rot
}
