package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var refreshJSON bool

func init() {
	cmdRefresh.Flags().BoolVar(&refreshJSON, "json", false, "Print the refreshed state as JSON")
	rootCmd.AddCommand(cmdRefresh, cmdReload)
}

var cmdRefresh = &cobra.Command{
	Use:   "refresh",
	Short: "Fetch the live display state now",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := newClient().Refresh()
		if err != nil {
			return err
		}
		return printState(cmd, data, refreshJSON)
	},
}

var cmdReload = &cobra.Command{
	Use:   "reload",
	Short: "Reload the daemon configuration and saved configurations",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := newClient().Reload(); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "reloaded")
		return nil
	},
}
