package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/1broseidon/dispswitch/internal/ipc"
)

func init() {
	rootCmd.AddCommand(cmdSave)
}

var cmdSave = &cobra.Command{
	Use:   "save <name>",
	Short: "Save the current display arrangement",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := newClient().Save(args[0])
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "saved %q (%s)\n", cfg.Name, ipc.FormatHash(cfg.Hash))
		return nil
	},
}
