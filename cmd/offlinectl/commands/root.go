// Package commands implements the offlinectl command tree.
package commands

import (
	"github.com/spf13/cobra"

	"github.com/marmos91/offlinekit/cmd/offlinectl/cmdutil"
	limitcmd "github.com/marmos91/offlinekit/cmd/offlinectl/commands/limit"
	networkcmd "github.com/marmos91/offlinekit/cmd/offlinectl/commands/network"
	regioncmd "github.com/marmos91/offlinekit/cmd/offlinectl/commands/region"
	"github.com/marmos91/offlinekit/internal/buildinfo"
)

var rootCmd = &cobra.Command{
	Use:   "offlinectl",
	Short: "Control a running offlinekit daemon",
	Long: `offlinectl is the command-line client for a running offlinekit daemon.

Use it to create offline regions, start or pause their downloads, follow
their progress and delete them, through the offlinekit control API.

The server defaults to ` + cmdutil.DefaultServerURL + `. Override it with --server
or the ` + cmdutil.EnvServerURL + ` environment variable.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		f := cmd.Flags()
		cmdutil.Flags.ServerURL, _ = f.GetString("server")
		cmdutil.Flags.Output, _ = f.GetString("output")
		cmdutil.Flags.NoColor, _ = f.GetBool("no-color")
		cmdutil.Flags.Timeout, _ = f.GetDuration("timeout")
		cmdutil.Flags.NoRetry, _ = f.GetBool("no-retry")
	},
}

// Execute runs the command selected by the process arguments.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.String("server", "", "Server URL (default: $"+cmdutil.EnvServerURL+" or "+cmdutil.DefaultServerURL+")")
	pf.StringP("output", "o", "table", "Output format (table|json|yaml)")
	pf.Bool("no-color", false, "Disable colored output")
	pf.Duration("timeout", 0, "Per-request timeout (default 30s)")
	pf.Bool("no-retry", false, "Fail on the first unreachable or unavailable answer")

	rootCmd.AddCommand(
		buildinfo.Command("offlinectl"),
		statusCmd,
		regioncmd.Cmd,
		limitcmd.Cmd,
		networkcmd.Cmd,
	)
}
