package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"

	"github.com/1broseidon/dispswitch/internal/engine"
	"github.com/1broseidon/dispswitch/internal/ipc"
)

var (
	activeStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("10"))
	inactiveStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
)

// isTerminal reports whether w is an interactive terminal.
func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// formatEntries renders one line per configuration. The active entry is
// marked with "*"; styled output also bolds it and dims inapplicable ones.
func formatEntries(entries []engine.Entry, styled bool) string {
	if len(entries) == 0 {
		return "No saved configurations\n"
	}
	width := 0
	for _, e := range entries {
		width = max(width, len(e.Name))
	}

	var b strings.Builder
	for i, e := range entries {
		mark := " "
		if e.Active {
			mark = "*"
		}
		ids := make([]string, 0, len(e.PhysicalDisplays))
		for _, id := range e.PhysicalDisplays {
			ids = append(ids, id.String())
		}
		line := fmt.Sprintf("%s %2d  %-*s  %s  %s", mark, i, width, e.Name, ipc.FormatHash(e.Hash), strings.Join(ids, ", "))
		if !e.Applicable {
			line += "  (not connected)"
		}
		if styled {
			switch {
			case e.Active:
				line = activeStyle.Render(line)
			case !e.Applicable:
				line = inactiveStyle.Render(line)
			}
		}
		b.WriteString(line)
		b.WriteByte('\n')
	}
	return b.String()
}

func printApplyResult(w io.Writer, res *engine.ApplyResult) {
	fmt.Fprintf(w, "applied %q (%s, serial %d)\n", res.Name, res.Method, res.Serial)
	for _, id := range res.Gaps {
		fmt.Fprintf(w, "  skipped %s: not connected\n", id)
	}
}

// resolveMethod maps the --persistent/--temporary pair to a method name.
// Empty means the daemon's default_method.
func resolveMethod(persistent, temporary bool) (string, error) {
	switch {
	case persistent && temporary:
		return "", fmt.Errorf("--persistent and --temporary are mutually exclusive")
	case persistent:
		return "persistent", nil
	case temporary:
		return "temporary", nil
	default:
		return "", nil
	}
}
