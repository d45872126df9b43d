package main

import (
	"github.com/spf13/cobra"

	"github.com/1broseidon/dispswitch/internal/daemon"
)

func init() {
	rootCmd.AddCommand(cmdDaemon)
}

var cmdDaemon = &cobra.Command{
	Use:   "daemon",
	Short: "Run the dispswitch daemon in the foreground",
	Long: `Connects to the display service (Mutter over D-Bus, or X11 RandR),
keeps the live display state cached and serves the other commands.
SIGHUP reloads the configuration; SIGINT and SIGTERM stop the daemon.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return daemon.Run(cmd.Context(), daemon.Options{
			ConfigPath: configPath,
			SocketPath: socketPath,
			LogOutput:  cmd.ErrOrStderr(),
		})
	},
}
