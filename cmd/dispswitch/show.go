package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/1broseidon/dispswitch/internal/display"
)

var showJSON bool

func init() {
	cmdShow.Flags().BoolVar(&showJSON, "json", false, "Print JSON")
	rootCmd.AddCommand(cmdShow)
}

var cmdShow = &cobra.Command{
	Use:   "show <name>",
	Short: "Show a saved configuration",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		entry, err := newClient().Show(args[0])
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if showJSON {
			return writeJSON(out, entry)
		}
		fmt.Fprintf(out, "Name: %s\n", entry.Name)
		fmt.Fprintf(out, "Applicable: %t\n", entry.Applicable)
		fmt.Fprintf(out, "Active: %t\n", entry.Active)
		fmt.Fprint(out, display.Describe(entry.SavedConfiguration))
		return nil
	},
}
