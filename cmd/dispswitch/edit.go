package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(cmdRename, cmdRemove, cmdMove, cmdReorder)
}

var cmdRename = &cobra.Command{
	Use:   "rename <old> <new>",
	Short: "Rename a saved configuration",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := newClient().Rename(args[0], args[1]); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "renamed %q to %q\n", args[0], args[1])
		return nil
	},
}

var cmdRemove = &cobra.Command{
	Use:     "remove <name>",
	Aliases: []string{"rm"},
	Short:   "Remove a saved configuration",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := newClient().Remove(args[0]); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "removed %q\n", args[0])
		return nil
	},
}

var cmdMove = &cobra.Command{
	Use:   "move <name> <index>",
	Short: "Move a saved configuration to a position in the list",
	Long:  `Moves a configuration to the zero-based index. Out-of-range indexes are clamped.`,
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		index, err := strconv.Atoi(args[1])
		if err != nil {
			return fmt.Errorf("index must be an integer: %w", err)
		}
		return newClient().Move(args[0], index)
	},
}

var cmdReorder = &cobra.Command{
	Use:   "reorder <name>...",
	Short: "Replace the order of saved configurations",
	Long:  `Sets the stored order. Every saved configuration must be named exactly once.`,
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return newClient().Reorder(args)
	},
}
