package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var (
	listAll  bool
	listJSON bool
)

func init() {
	cmdList.Flags().BoolVarP(&listAll, "all", "a", false, "Include configurations whose displays are not connected")
	cmdList.Flags().BoolVar(&listJSON, "json", false, "Print JSON")
	rootCmd.AddCommand(cmdList)
}

var cmdList = &cobra.Command{
	Use:   "list",
	Short: "List saved configurations that match the connected displays",
	Long: `Lists saved configurations in stored order. Only configurations whose
displays are all connected are shown unless --all is given. The active
configuration is marked with "*".`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		entries, err := newClient().List(listAll)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if listJSON {
			return writeJSON(out, entries)
		}
		fmt.Fprint(out, formatEntries(entries, isTerminal(out)))
		return nil
	},
}
