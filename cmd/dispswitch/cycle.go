package main

import (
	"github.com/spf13/cobra"
)

var (
	cyclePersistent bool
	cycleTemporary  bool
)

func init() {
	cmdCycle.Flags().BoolVar(&cyclePersistent, "persistent", false, "Apply and persist")
	cmdCycle.Flags().BoolVar(&cycleTemporary, "temporary", false, "Apply without persisting")
	cmdCycle.MarkFlagsMutuallyExclusive("persistent", "temporary")
	rootCmd.AddCommand(cmdCycle)
}

var cmdCycle = &cobra.Command{
	Use:   "cycle",
	Short: "Apply the next applicable configuration",
	Long: `Applies the applicable configuration after the active one, wrapping to
the first. When no configuration is active the first applicable one is
applied.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		method, err := resolveMethod(cyclePersistent, cycleTemporary)
		if err != nil {
			return err
		}
		res, err := newClient().Cycle(method)
		if err != nil {
			return err
		}
		printApplyResult(cmd.OutOrStdout(), res)
		return nil
	},
}
