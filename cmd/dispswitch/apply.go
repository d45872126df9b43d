package main

import (
	"github.com/spf13/cobra"
)

var (
	applyPersistent bool
	applyTemporary  bool
)

func init() {
	cmdApply.Flags().BoolVar(&applyPersistent, "persistent", false, "Apply and persist; the compositor asks for confirmation")
	cmdApply.Flags().BoolVar(&applyTemporary, "temporary", false, "Apply without persisting")
	cmdApply.MarkFlagsMutuallyExclusive("persistent", "temporary")
	rootCmd.AddCommand(cmdApply)
}

var cmdApply = &cobra.Command{
	Use:   "apply <name>",
	Short: "Apply a saved configuration",
	Long: `Applies a saved configuration to the connected displays. Saved outputs
that are not connected are skipped; the apply is refused when a logical
monitor would be left without any output.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		method, err := resolveMethod(applyPersistent, applyTemporary)
		if err != nil {
			return err
		}
		res, err := newClient().Apply(args[0], method)
		if err != nil {
			return err
		}
		printApplyResult(cmd.OutOrStdout(), res)
		return nil
	},
}
