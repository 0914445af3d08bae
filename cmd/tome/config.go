package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tomehq/tome/internal/api"
	"github.com/tomehq/tome/internal/config"
	"github.com/tomehq/tome/internal/home"
)

var configForce bool

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage local configuration",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a default config file",
	Long: `Write the default configuration to ~/.tome/config.yaml.

Secrets are written as ${ENV_VAR} references so the file stays safe
to commit; set the referenced variables in your shell.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		h, err := home.New(homePath)
		if err != nil {
			return err
		}
		if err := h.EnsureExists(); err != nil {
			return fmt.Errorf("failed to create home directory: %w", err)
		}

		path := h.ConfigPath()
		if h.ConfigExists() && !configForce {
			return fmt.Errorf("config already exists at %s (use --force to overwrite)", path)
		}

		if err := config.WriteDefault(path); err != nil {
			return fmt.Errorf("failed to write config: %w", err)
		}

		fmt.Printf("Wrote default config to %s\n", path)
		return nil
	},
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the resolved configuration",
	Long: `Show the configuration after defaults, the config file, and
TOME_* environment overrides have been merged. ${ENV_VAR} references
are printed as written, not expanded.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cm, err := config.NewManager(cfgFile)
		if err != nil {
			return err
		}
		return api.Output(cm.Get())
	},
}

func init() {
	configInitCmd.Flags().BoolVar(&configForce, "force", false, "Overwrite an existing config file")

	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configShowCmd)
	rootCmd.AddCommand(configCmd)
}
