package display

import (
	"cmp"
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/cespare/xxhash/v2"
)

// Canonicalize turns a raw snapshot into a DisplayState in canonical order.
// Logical monitor assignments are rebuilt from the outputs' current modes so
// the result reflects the just-fetched state rather than the compositor's
// logical monitor record.
func Canonicalize(raw *RawSnapshot) (*DisplayState, error) {
	if raw == nil {
		return nil, fmt.Errorf("canonicalize: nil snapshot")
	}

	displays := make([]PhysicalDisplay, 0, len(raw.Outputs))
	for _, out := range raw.Outputs {
		pd, err := physicalDisplay(out)
		if err != nil {
			return nil, err
		}
		for _, seen := range displays {
			if seen.Identity.Matches(pd.Identity) {
				return nil, &IdentityError{Identity: pd.Identity, Reason: "duplicate output in snapshot"}
			}
		}
		displays = append(displays, pd)
	}

	monitors := make([]LogicalMonitor, 0, len(raw.LogicalMonitors))
	for _, rlm := range raw.LogicalMonitors {
		lm := LogicalMonitor{
			X:         rlm.X,
			Y:         rlm.Y,
			Scale:     rlm.Scale,
			Transform: Transform(rlm.Transform),
			Primary:   rlm.Primary,
		}
		if !lm.Transform.Valid() {
			return nil, fmt.Errorf("logical monitor at %d,%d: invalid transform %d", rlm.X, rlm.Y, rlm.Transform)
		}
		if len(rlm.Monitors) == 0 {
			return nil, fmt.Errorf("logical monitor at %d,%d: no outputs", rlm.X, rlm.Y)
		}
		for _, id := range rlm.Monitors {
			pd, ok := findDisplay(displays, id)
			if !ok {
				return nil, &IdentityError{Identity: id, Reason: "referenced by a logical monitor but not connected"}
			}
			lm.Monitors = append(lm.Monitors, MonitorAssignment{
				Identity:   pd.Identity,
				ModeID:     pd.CurrentModeID,
				Properties: pd.Properties.Clone(),
			})
		}
		monitors = append(monitors, lm)
	}

	supportsLayoutMode, _ := raw.Properties["supports-changing-layout-mode"].(bool)
	state := &DisplayState{
		Serial:             raw.Serial,
		PhysicalDisplays:   displays,
		LogicalMonitors:    monitors,
		Properties:         globalProperties(raw.Properties),
		SupportsLayoutMode: supportsLayoutMode,
	}
	sortState(state)
	return state, nil
}

func physicalDisplay(out RawOutput) (PhysicalDisplay, error) {
	if out.Identity.Connector == "" {
		return PhysicalDisplay{}, &IdentityError{Identity: out.Identity, Reason: "missing connector"}
	}
	var current []RawMode
	for _, m := range out.Modes {
		if m.IsCurrent() {
			current = append(current, m)
		}
	}
	if len(current) != 1 {
		return PhysicalDisplay{}, &IdentityError{
			Identity: out.Identity,
			Reason:   fmt.Sprintf("expected exactly one current mode, found %d", len(current)),
		}
	}
	return PhysicalDisplay{
		Identity:      out.Identity,
		CurrentModeID: current[0].ID,
		Properties:    monitorProperties(out.Properties),
	}, nil
}

func findDisplay(displays []PhysicalDisplay, id Identity) (PhysicalDisplay, bool) {
	for _, pd := range displays {
		if pd.Identity.Matches(id) {
			return pd, true
		}
	}
	return PhysicalDisplay{}, false
}

// Projection returns the state as a SavedConfiguration named name.
func (s *DisplayState) Projection(name string) SavedConfiguration {
	ids := make([]Identity, len(s.PhysicalDisplays))
	for i, pd := range s.PhysicalDisplays {
		ids[i] = pd.Identity
	}
	cfg := SavedConfiguration{
		Name:             name,
		LogicalMonitors:  cloneLogicalMonitors(s.LogicalMonitors),
		Properties:       s.Properties.Clone(),
		PhysicalDisplays: ids,
	}
	cfg.Hash = Hash(cfg.LogicalMonitors, cfg.Properties, cfg.PhysicalDisplays)
	return cfg
}

// Hash returns the identity hash of the state. Serial is not part of it.
func (s *DisplayState) Hash() uint64 {
	ids := make([]Identity, len(s.PhysicalDisplays))
	for i, pd := range s.PhysicalDisplays {
		ids[i] = pd.Identity
	}
	return Hash(s.LogicalMonitors, s.Properties, ids)
}

// Hash computes the xxhash64 of the canonical encoding. Inputs are expected
// to be in canonical order already.
func Hash(monitors []LogicalMonitor, props Properties, ids []Identity) uint64 {
	return xxhash.Sum64(Encode(monitors, props, ids))
}

// Encode returns the deterministic line-oriented serialization the hash is
// computed over.
func Encode(monitors []LogicalMonitor, props Properties, ids []Identity) []byte {
	var b strings.Builder
	for _, lm := range monitors {
		b.WriteString("lm ")
		b.WriteString(strconv.Itoa(lm.X))
		b.WriteByte(' ')
		b.WriteString(strconv.Itoa(lm.Y))
		b.WriteByte(' ')
		b.WriteString(strconv.FormatFloat(lm.Scale, 'g', -1, 64))
		b.WriteByte(' ')
		b.WriteString(strconv.FormatUint(uint64(lm.Transform), 10))
		b.WriteByte(' ')
		b.WriteString(strconv.FormatBool(lm.Primary))
		b.WriteByte('\n')
		for _, m := range lm.Monitors {
			b.WriteString(" mon ")
			writeIdentity(&b, m.Identity)
			b.WriteByte(' ')
			b.WriteString(strconv.Quote(m.ModeID))
			b.WriteByte(' ')
			b.WriteString(m.Properties.canonical())
			b.WriteByte('\n')
		}
	}
	b.WriteString("props ")
	b.WriteString(props.canonical())
	b.WriteByte('\n')
	for _, id := range ids {
		b.WriteString("display ")
		writeIdentity(&b, id)
		b.WriteByte('\n')
	}
	return []byte(b.String())
}

func writeIdentity(b *strings.Builder, id Identity) {
	p := id.parts()
	for i, s := range p {
		if i > 0 {
			b.WriteByte('|')
		}
		b.WriteString(strconv.Quote(s))
	}
}

func sortState(s *DisplayState) {
	for i := range s.LogicalMonitors {
		slices.SortStableFunc(s.LogicalMonitors[i].Monitors, compareAssignment)
	}
	slices.SortStableFunc(s.LogicalMonitors, compareLogicalMonitor)
	slices.SortStableFunc(s.PhysicalDisplays, func(a, b PhysicalDisplay) int {
		return cmp.Or(
			compareIdentity(a.Identity, b.Identity),
			strings.Compare(a.CurrentModeID, b.CurrentModeID),
			strings.Compare(a.Properties.canonical(), b.Properties.canonical()),
		)
	})
}

func compareAssignment(a, b MonitorAssignment) int {
	return cmp.Or(
		compareIdentity(a.Identity, b.Identity),
		strings.Compare(a.ModeID, b.ModeID),
		strings.Compare(a.Properties.canonical(), b.Properties.canonical()),
	)
}

func compareLogicalMonitor(a, b LogicalMonitor) int {
	if c := cmp.Or(
		cmp.Compare(a.X, b.X),
		cmp.Compare(a.Y, b.Y),
		cmp.Compare(a.Scale, b.Scale),
		cmp.Compare(a.Transform, b.Transform),
		compareBool(a.Primary, b.Primary),
	); c != 0 {
		return c
	}
	return slices.CompareFunc(a.Monitors, b.Monitors, compareAssignment)
}

func compareBool(a, b bool) int {
	switch {
	case a == b:
		return 0
	case !a:
		return -1
	default:
		return 1
	}
}

func cloneLogicalMonitors(in []LogicalMonitor) []LogicalMonitor {
	out := make([]LogicalMonitor, len(in))
	for i, lm := range in {
		out[i] = lm
		out[i].Monitors = make([]MonitorAssignment, len(lm.Monitors))
		for j, m := range lm.Monitors {
			out[i].Monitors[j] = m
			out[i].Monitors[j].Properties = m.Properties.Clone()
		}
	}
	return out
}
