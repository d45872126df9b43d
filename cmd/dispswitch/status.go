package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(cmdStatus)
}

var cmdStatus = &cobra.Command{
	Use:   "status",
	Short: "Show daemon status",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		status, err := newClient().GetStatus()
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "daemon_running: %v\n", status.DaemonRunning)
		fmt.Fprintf(out, "backend:        %s\n", status.Backend)
		if status.HasState {
			fmt.Fprintf(out, "serial:         %d\n", status.Serial)
			fmt.Fprintf(out, "state_hash:     %s\n", status.StateHash)
			fmt.Fprintf(out, "last_updated:   %s\n", status.LastUpdated.Format(time.RFC3339))
		} else {
			fmt.Fprintln(out, "serial:         (no state yet)")
		}
		if status.LastError != "" {
			fmt.Fprintf(out, "last_error:     %s\n", status.LastError)
		}
		active := status.Active
		if active == "" {
			active = "-"
		}
		fmt.Fprintf(out, "active:         %s\n", active)
		fmt.Fprintf(out, "configurations: %d (%d applicable)\n", status.Configurations, status.Applicable)
		fmt.Fprintf(out, "auto_apply:     %v\n", status.AutoApply)
		fmt.Fprintf(out, "uptime_seconds: %d\n", status.UptimeSeconds)
		return nil
	},
}
