package main

import (
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/parcelfolio/parcelfolio/internal/config"
)

var configForce bool

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a starter config.yaml with default values",
	RunE: func(_ *cobra.Command, _ []string) error {
		const path = "config.yaml"

		if !configForce {
			if _, err := os.Stat(path); err == nil {
				return eris.New("config: config.yaml already exists, use --force to overwrite")
			}
		}

		data, err := yaml.Marshal(config.Default())
		if err != nil {
			return eris.Wrap(err, "config: marshal defaults")
		}

		if err := os.WriteFile(path, data, 0o644); err != nil {
			return eris.Wrap(err, "config: write file")
		}
		return nil
	},
}

func init() {
	configInitCmd.Flags().BoolVar(&configForce, "force", false, "overwrite an existing config.yaml")
	configCmd.AddCommand(configInitCmd)
	rootCmd.AddCommand(configCmd)
}
