package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/1broseidon/dispswitch/internal/ipc"
)

var (
	socketPath string
	configPath string
)

var rootCmd = &cobra.Command{
	Use:   "dispswitch [command]",
	Short: "dispswitch: save and restore display arrangements",
	Long: `dispswitch remembers named display arrangements and reapplies them when
the same physical displays are connected again. Run "dispswitch daemon" in
your session; every other command talks to it over a Unix socket.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&socketPath, "socket", "", "IPC socket path (default: $XDG_RUNTIME_DIR/dispswitch.sock)")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file path (default: ~/.config/dispswitch/config.yaml)")
}

func newClient() *ipc.Client {
	if socketPath != "" {
		return ipc.NewClientWithSocket(socketPath)
	}
	return ipc.NewClient()
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "dispswitch:", err)
		os.Exit(1)
	}
}
