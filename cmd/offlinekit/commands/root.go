// Package commands implements the offlinekit daemon command tree.
package commands

import (
	"github.com/spf13/cobra"

	"github.com/marmos91/offlinekit/cmd/offlinekit/commands/config"
	"github.com/marmos91/offlinekit/internal/buildinfo"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "offlinekit",
	Short: "Offline map region manager",
	Long: `offlinekit downloads map styles, tiles, glyphs and sprites for
user-defined geographic regions so they can be rendered without a network
connection. Resources shared by several regions are stored once and
reclaimed when no region needs them anymore.

The daemon exposes a control API used by offlinectl to create, activate,
pause and delete regions.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the command selected by the process arguments.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: $XDG_CONFIG_HOME/offlinekit/config.yaml)")

	rootCmd.AddCommand(
		buildinfo.Command("offlinekit"),
		startCmd,
		initCmd,
		config.Cmd,
	)
}

// GetConfigFile returns the --config value.
func GetConfigFile() string {
	return cfgFile
}
