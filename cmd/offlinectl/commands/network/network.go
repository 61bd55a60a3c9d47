// Package network implements connectivity commands for offlinectl.
package network

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/marmos91/offlinekit/cmd/offlinectl/cmdutil"
)

// Cmd is the parent command for connectivity notices.
var Cmd = &cobra.Command{
	Use:   "network",
	Short: "Connectivity notices",
	Long: `Tell the daemon about connectivity changes.

Examples:
  # Retry failed downloads now that the network is back
  offlinectl network reachable`,
}

func init() {
	Cmd.AddCommand(reachableCmd)
}

var reachableCmd = &cobra.Command{
	Use:   "reachable",
	Short: "Report that the network is reachable",
	Long: `Report that the network is reachable again. Active regions retry the
resources that failed while offline without waiting for their backoff.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cmdutil.GetClient().NetworkReachable(); err != nil {
			return fmt.Errorf("failed to notify server: %w", err)
		}
		cmdutil.PrintSuccess("Network reachability reported")
		return nil
	},
}
