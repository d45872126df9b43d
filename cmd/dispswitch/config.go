package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/1broseidon/dispswitch/internal/config"
)

var configDefaults bool

func init() {
	cmdConfigPrint.Flags().BoolVar(&configDefaults, "defaults", false, "Print built-in defaults (no files)")
	cmdConfig.AddCommand(cmdConfigPath, cmdConfigValidate, cmdConfigPrint, cmdConfigExplain)
	rootCmd.AddCommand(cmdConfig)
}

func loadConfig() (*config.LoadResult, error) {
	if configPath != "" {
		return config.LoadFromPath(configPath)
	}
	return config.LoadWithSources()
}

var cmdConfig = &cobra.Command{
	Use:   "config",
	Short: "Inspect the dispswitch configuration",
}

var cmdConfigPath = &cobra.Command{
	Use:   "path",
	Short: "Print the configuration file path",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		p := configPath
		if p == "" {
			var err error
			if p, err = config.ConfigPath(); err != nil {
				return err
			}
		}
		fmt.Fprintln(cmd.OutOrStdout(), p)
		return nil
	},
}

var cmdConfigValidate = &cobra.Command{
	Use:   "validate",
	Short: "Validate the configuration file and its includes",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if _, err := loadConfig(); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "config: ok")
		return nil
	},
}

var cmdConfigPrint = &cobra.Command{
	Use:   "print",
	Short: "Print the effective configuration",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.DefaultConfig()
		if !configDefaults {
			res, err := loadConfig()
			if err != nil {
				return err
			}
			cfg = res.Config
		}
		data, err := yaml.Marshal(cfg)
		if err != nil {
			return err
		}
		fmt.Fprint(cmd.OutOrStdout(), string(data))
		return nil
	},
}

var cmdConfigExplain = &cobra.Command{
	Use:       "explain <key>",
	Short:     "Show the effective value of a key and where it was set",
	Args:      cobra.ExactArgs(1),
	ValidArgs: config.Keys,
	RunE: func(cmd *cobra.Command, args []string) error {
		res, err := loadConfig()
		if err != nil {
			return err
		}
		value, src, err := config.Explain(res, args[0])
		if err != nil {
			return err
		}
		out, err := yaml.Marshal(value)
		if err != nil {
			return err
		}
		w := cmd.OutOrStdout()
		fmt.Fprintf(w, "path: %s\n", args[0])
		fmt.Fprintf(w, "source: %s\n", config.FormatSource(src))
		fmt.Fprintf(w, "value: %s", string(out))
		return nil
	},
}
