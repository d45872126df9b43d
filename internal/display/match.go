package display

// ReferencedIdentities returns every identity the configuration's logical
// monitors map outputs to, in layout order.
func (c SavedConfiguration) ReferencedIdentities() []Identity {
	var ids []Identity
	for _, lm := range c.LogicalMonitors {
		for _, m := range lm.Monitors {
			ids = append(ids, m.Identity)
		}
	}
	return ids
}

// IsApplicable reports whether every display the configuration references has
// a prefix-equal match among the live displays. Extra live displays are
// ignored.
func IsApplicable(cfg SavedConfiguration, live []PhysicalDisplay) bool {
	ids := cfg.ReferencedIdentities()
	if len(ids) == 0 {
		return false
	}
	for _, id := range ids {
		if _, ok := findDisplay(live, id); !ok {
			return false
		}
	}
	return true
}

// FilterApplicable returns the applicable configurations in stored order.
func FilterApplicable(configs []SavedConfiguration, live []PhysicalDisplay) []SavedConfiguration {
	var out []SavedConfiguration
	for _, cfg := range configs {
		if IsApplicable(cfg, live) {
			out = append(out, cfg)
		}
	}
	return out
}

// ActiveIndex returns the index of the first configuration whose hash equals
// hash, or -1.
func ActiveIndex(configs []SavedConfiguration, hash uint64) int {
	for i, cfg := range configs {
		if cfg.Hash == hash {
			return i
		}
	}
	return -1
}

// Next picks the configuration to switch to when cycling: the first one when
// none is active, otherwise the one after the active configuration, wrapping
// around. It returns false when configs is empty.
func Next(configs []SavedConfiguration, activeHash uint64) (SavedConfiguration, bool) {
	if len(configs) == 0 {
		return SavedConfiguration{}, false
	}
	i := ActiveIndex(configs, activeHash)
	if i < 0 {
		return configs[0], true
	}
	return configs[(i+1)%len(configs)], true
}
