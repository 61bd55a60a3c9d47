// Package config implements the "offlinekit config" subcommands.
package config

import (
	"github.com/spf13/cobra"

	"github.com/marmos91/offlinekit/pkg/config"
)

// Cmd groups the configuration subcommands.
var Cmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect and validate the configuration",
	Long: `Inspect and validate the offlinekit configuration.

Use 'offlinekit init' to create a configuration file first.`,
}

func init() {
	Cmd.AddCommand(validateCmd, showCmd, schemaCmd)
}

// load reads the file named by the inherited --config flag, or the default
// location, with environment overrides applied.
func load(cmd *cobra.Command) (*config.Config, string, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.MustLoad(path)
	if err != nil {
		return nil, "", err
	}
	if path == "" {
		path = config.GetDefaultConfigPath()
	}
	return cfg, path, nil
}
