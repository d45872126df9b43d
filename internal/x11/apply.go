package x11

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/BurntSushi/xgb"
	"github.com/BurntSushi/xgb/randr"
	"github.com/BurntSushi/xgb/xproto"
	"github.com/BurntSushi/xgbutil/xprop"

	"github.com/1broseidon/dispswitch/internal/display"
)

// ErrSerialMismatch is returned when the RandR configuration changed since
// the state the request was built from.
var ErrSerialMismatch = errors.New("display configuration changed since it was read")

// ErrUnsupportedScale is returned for fractional or integer scales other
// than 1, which RandR cannot express per CRTC.
var ErrUnsupportedScale = errors.New("x11 backend only supports scale 1")

const defaultDPI = 96.0

type crtcAssignment struct {
	crtc     randr.Crtc
	x, y     int16
	mode     randr.Mode
	rotation uint16
	outputs  []randr.Output
}

type layoutPlan struct {
	width, height uint16
	disable       []randr.Crtc
	assignments   []crtcAssignment
	primary       randr.Output
	underscan     []randr.Output
}

// planLayout maps logical monitors onto CRTCs. Coordinates are shifted so
// the top-left monitor sits at the screen origin.
func planLayout(r *resources, req display.ApplyRequest) (*layoutPlan, error) {
	if len(req.LogicalMonitors) == 0 {
		return nil, errors.New("no logical monitors to apply")
	}

	minX, minY := req.LogicalMonitors[0].X, req.LogicalMonitors[0].Y
	for _, lm := range req.LogicalMonitors {
		minX = min(minX, lm.X)
		minY = min(minY, lm.Y)
	}

	byName := make(map[string]output, len(r.outputs))
	for _, out := range r.outputs {
		byName[out.name] = out
	}

	// Outputs that already drive a CRTC keep it. Other monitors avoid those.
	reserved := map[randr.Crtc]bool{}
	for _, lm := range req.LogicalMonitors {
		if len(lm.Monitors) == 0 {
			continue
		}
		if out, ok := byName[lm.Monitors[0].Identity.Connector]; ok && out.info.Crtc != 0 {
			reserved[out.info.Crtc] = true
		}
	}

	plan := &layoutPlan{}
	used := map[randr.Crtc]bool{}
	var width, height int

	for i, lm := range req.LogicalMonitors {
		if lm.Scale != 1 {
			return nil, fmt.Errorf("logical monitor %d: %w (got %g)", i, ErrUnsupportedScale, lm.Scale)
		}
		if len(lm.Monitors) == 0 {
			return nil, fmt.Errorf("logical monitor %d has no monitors", i)
		}

		a := crtcAssignment{
			x:        int16(lm.X - minX),
			y:        int16(lm.Y - minY),
			rotation: rotationFromTransform(lm.Transform),
		}
		var info randr.ModeInfo
		var candidates []randr.Crtc
		var own randr.Crtc
		for j, m := range lm.Monitors {
			out, ok := byName[m.Identity.Connector]
			if !ok {
				return nil, fmt.Errorf("output %s is not connected", m.Identity.Connector)
			}
			mode, mi, ok := findMode(r, out, m.ModeID)
			if !ok {
				return nil, fmt.Errorf("output %s has no mode %s", out.name, m.ModeID)
			}
			if j == 0 {
				a.mode, info = mode, mi
				candidates = slices.Clone(out.info.Crtcs)
				own = out.info.Crtc
			} else {
				if mi.Width != info.Width || mi.Height != info.Height {
					return nil, fmt.Errorf("cloned output %s mode %s differs from %s", out.name, m.ModeID, lm.Monitors[0].ModeID)
				}
				candidates = slices.DeleteFunc(candidates, func(c randr.Crtc) bool {
					return !slices.Contains(out.info.Crtcs, c)
				})
			}
			a.outputs = append(a.outputs, out.id)
			if lm.Primary && plan.primary == 0 {
				plan.primary = out.id
			}
			if v, ok := m.Properties[display.PropUnderscanning].AsBool(); ok && v {
				plan.underscan = append(plan.underscan, out.id)
			}
		}

		rank := func(c randr.Crtc) int {
			switch {
			case c == own:
				return 0
			case reserved[c]:
				return 3
			case r.crtcs[c] == nil || r.crtcs[c].Mode == 0:
				return 1
			default:
				return 2
			}
		}
		slices.SortStableFunc(candidates, func(a, b randr.Crtc) int { return rank(a) - rank(b) })
		idx := slices.IndexFunc(candidates, func(c randr.Crtc) bool { return !used[c] })
		if idx < 0 {
			return nil, fmt.Errorf("logical monitor %d: no free CRTC", i)
		}
		a.crtc = candidates[idx]
		used[a.crtc] = true

		w, h := int(info.Width), int(info.Height)
		if lm.Transform%2 == 1 {
			w, h = h, w
		}
		width = max(width, int(a.x)+w)
		height = max(height, int(a.y)+h)
		plan.assignments = append(plan.assignments, a)
	}

	if width > 0xffff || height > 0xffff {
		return nil, fmt.Errorf("screen size %dx%d too large", width, height)
	}
	plan.width, plan.height = uint16(width), uint16(height)

	for _, crtc := range r.crtcOrder {
		info := r.crtcs[crtc]
		if info.Mode == 0 {
			continue
		}
		outside := int(info.X)+int(info.Width) > width || int(info.Y)+int(info.Height) > height
		if !used[crtc] || outside {
			plan.disable = append(plan.disable, crtc)
		}
	}
	return plan, nil
}

func findMode(r *resources, out output, id string) (randr.Mode, randr.ModeInfo, bool) {
	for _, m := range out.info.Modes {
		info, ok := r.modes[m]
		if ok && modeID(info) == id {
			return m, info, true
		}
	}
	return 0, randr.ModeInfo{}, false
}

// Apply reconfigures CRTCs to match req. RandR has no separate persistent
// store, so both methods behave the same.
func (s *Service) Apply(ctx context.Context, req display.ApplyRequest) error {
	s.applyMu.Lock()
	defer s.applyMu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	if cur := s.serial.Load(); req.Serial != cur {
		return fmt.Errorf("%w: request serial %d, current %d", ErrSerialMismatch, req.Serial, cur)
	}

	r, err := s.readResources()
	if err != nil {
		return err
	}
	plan, err := planLayout(r, req)
	if err != nil {
		return err
	}

	conn := s.XUtil.Conn()
	xproto.GrabServer(conn)
	defer xproto.UngrabServer(conn)

	for _, crtc := range plan.disable {
		reply, err := randr.SetCrtcConfig(conn, crtc, xproto.TimeCurrentTime, r.config,
			0, 0, 0, randr.RotationRotate0, nil).Reply()
		if err := configStatus(reply, err); err != nil {
			return fmt.Errorf("disable crtc %d: %w", crtc, err)
		}
	}

	mmW := uint32(float64(plan.width) * 25.4 / defaultDPI)
	mmH := uint32(float64(plan.height) * 25.4 / defaultDPI)
	if err := randr.SetScreenSizeChecked(conn, s.Root, plan.width, plan.height, mmW, mmH).Check(); err != nil {
		return fmt.Errorf("set screen size %dx%d: %w", plan.width, plan.height, err)
	}

	for _, a := range plan.assignments {
		reply, err := randr.SetCrtcConfig(conn, a.crtc, xproto.TimeCurrentTime, r.config,
			a.x, a.y, a.mode, a.rotation, a.outputs).Reply()
		if err := configStatus(reply, err); err != nil {
			return fmt.Errorf("configure crtc %d: %w", a.crtc, err)
		}
	}

	if plan.primary != 0 {
		if err := randr.SetOutputPrimaryChecked(conn, s.Root, plan.primary).Check(); err != nil {
			return fmt.Errorf("set primary output: %w", err)
		}
	}

	for _, out := range plan.underscan {
		if err := s.setUnderscan(out); err != nil {
			s.logger.Warn("failed to enable underscan", "output", out, "error", err)
		}
	}

	s.logger.Debug("applied randr layout",
		"method", req.Method.String(),
		"size", fmt.Sprintf("%dx%d", plan.width, plan.height),
		"crtcs", len(plan.assignments))
	return nil
}

func (s *Service) setUnderscan(out randr.Output) error {
	prop, err := xprop.Atm(s.XUtil, "underscan")
	if err != nil {
		return err
	}
	on, err := xprop.Atm(s.XUtil, "on")
	if err != nil {
		return err
	}
	data := make([]byte, 4)
	xgb.Put32(data, uint32(on))
	return randr.ChangeOutputPropertyChecked(s.XUtil.Conn(), out, prop, xproto.AtomAtom,
		32, xproto.PropModeReplace, 1, data).Check()
}

func configStatus(reply *randr.SetCrtcConfigReply, err error) error {
	if err != nil {
		return err
	}
	if reply.Status != randr.SetConfigSuccess {
		return fmt.Errorf("randr status %d", reply.Status)
	}
	return nil
}
