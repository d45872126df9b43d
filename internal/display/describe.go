package display

import (
	"fmt"
	"strings"
)

// Describe renders a human-readable summary of a saved configuration.
func Describe(cfg SavedConfiguration) string {
	var b strings.Builder

	b.WriteString("Logical monitors:\n")
	for i, lm := range cfg.LogicalMonitors {
		fmt.Fprintf(&b, "%d)\t(x, y) = (%d, %d)\n", i+1, lm.X, lm.Y)
		fmt.Fprintf(&b, "\tscale = %g\n", lm.Scale)
		fmt.Fprintf(&b, "\ttransform = %d\n", lm.Transform)
		fmt.Fprintf(&b, "\tprimary = %t\n", lm.Primary)
		b.WriteString("\tmonitors:\n")
		for j, m := range lm.Monitors {
			fmt.Fprintf(&b, "\t%d)\t- connector = %s\n", j+1, m.Identity.Connector)
			fmt.Fprintf(&b, "\t\t- monitor mode ID = %s\n", m.ModeID)
			if v, ok := m.Properties[PropUnderscanning]; ok {
				u, _ := v.AsBool()
				fmt.Fprintf(&b, "\t\t- underscanning = %t\n", u)
			}
		}
	}

	b.WriteString("Properties:\n")
	if v, ok := cfg.Properties[PropLayoutMode]; ok {
		mode, _ := v.AsUint32()
		fmt.Fprintf(&b, "\tlayout-mode = %d\n", mode)
	}

	b.WriteString("Physical displays:\n")
	for i, id := range cfg.PhysicalDisplays {
		fmt.Fprintf(&b, "%d)\t- connector = %s\n", i+1, id.Connector)
		fmt.Fprintf(&b, "\t- vendor = %s\n", id.Vendor)
		fmt.Fprintf(&b, "\t- product = %s\n", id.Product)
		fmt.Fprintf(&b, "\t- serial = %s\n", id.Serial)
	}

	fmt.Fprintf(&b, "Config hash: %d\n", cfg.Hash)
	return b.String()
}
