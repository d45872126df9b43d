package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/1broseidon/dispswitch/internal/display"
	"github.com/1broseidon/dispswitch/internal/ipc"
)

var stateJSON bool

func init() {
	cmdState.Flags().BoolVar(&stateJSON, "json", false, "Print the canonical state as JSON")
	rootCmd.AddCommand(cmdState)
}

var cmdState = &cobra.Command{
	Use:   "state",
	Short: "Show the live display state cached by the daemon",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := newClient().GetState()
		if err != nil {
			return err
		}
		return printState(cmd, data, stateJSON)
	},
}

func printState(cmd *cobra.Command, data *ipc.StateData, asJSON bool) error {
	out := cmd.OutOrStdout()
	if asJSON {
		return writeJSON(out, data)
	}
	if data.State == nil {
		return fmt.Errorf("daemon returned no state")
	}
	fmt.Fprintf(out, "serial: %d\n", data.State.Serial)
	fmt.Fprintf(out, "hash:   %s\n", data.Hash)
	if data.Active != "" {
		fmt.Fprintf(out, "active: %s\n", data.Active)
	}
	fmt.Fprint(out, display.Describe(data.State.Projection("live")))
	return nil
}
