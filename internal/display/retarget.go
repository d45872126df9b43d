package display

// RetargetResult is a layout rewritten against the live displays.
type RetargetResult struct {
	LogicalMonitors []LogicalMonitor
	// Gaps lists saved identities that had no live match and were dropped.
	Gaps []Identity
}

// Retarget rewrites saved logical monitors so their outputs carry the live
// displays' current mode and properties. Geometry is kept as saved. An
// assignment without a live match is dropped; a logical monitor left with no
// outputs is an error, since the caller should have filtered with
// IsApplicable first.
func Retarget(saved []LogicalMonitor, live []PhysicalDisplay) (RetargetResult, error) {
	var res RetargetResult
	claimed := make([]bool, len(live))

	for i, lm := range saved {
		out := LogicalMonitor{
			X:         lm.X,
			Y:         lm.Y,
			Scale:     lm.Scale,
			Transform: lm.Transform,
			Primary:   lm.Primary,
		}
		var missing []Identity
		for _, m := range lm.Monitors {
			j := matchUnclaimed(live, claimed, m.Identity)
			if j < 0 {
				missing = append(missing, m.Identity)
				continue
			}
			claimed[j] = true
			pd := live[j]
			out.Monitors = append(out.Monitors, MonitorAssignment{
				Identity:   pd.Identity,
				ModeID:     pd.CurrentModeID,
				Properties: pd.Properties.Clone(),
			})
		}
		res.Gaps = append(res.Gaps, missing...)
		if len(out.Monitors) == 0 {
			return RetargetResult{}, &RetargetError{Index: i, Missing: missing}
		}
		res.LogicalMonitors = append(res.LogicalMonitors, out)
	}
	return res, nil
}

func matchUnclaimed(live []PhysicalDisplay, claimed []bool, id Identity) int {
	for j, pd := range live {
		if !claimed[j] && pd.Identity.Matches(id) {
			return j
		}
	}
	return -1
}

// RetargetProperties returns the global properties to send with an apply.
// The layout mode can only be changed when the compositor allows it.
func RetargetProperties(saved Properties, live *DisplayState) Properties {
	out := Properties{}
	if v, ok := saved[PropLayoutMode]; ok && live != nil && live.SupportsLayoutMode {
		out[PropLayoutMode] = v
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// BuildApplyRequest retargets cfg onto state and returns the request to send,
// stamped with the state's serial.
func BuildApplyRequest(cfg SavedConfiguration, state *DisplayState, method ApplyMethod) (ApplyRequest, []Identity, error) {
	res, err := Retarget(cfg.LogicalMonitors, state.PhysicalDisplays)
	if err != nil {
		return ApplyRequest{}, nil, err
	}
	return ApplyRequest{
		Serial:          state.Serial,
		Method:          method,
		LogicalMonitors: res.LogicalMonitors,
		Properties:      RetargetProperties(cfg.Properties, state),
	}, res.Gaps, nil
}
