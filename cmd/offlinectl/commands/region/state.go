package region

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/marmos91/offlinekit/cmd/offlinectl/cmdutil"
	"github.com/marmos91/offlinekit/pkg/region"
)

var activateCmd = &cobra.Command{
	Use:   "activate <id>",
	Short: "Start downloading a region",
	Long: `Set a region's download state to active. Resources already stored are
reused; missing ones are fetched.

Examples:
  offlinectl region activate 1`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return setState(args[0], region.Active)
	},
}

var pauseCmd = &cobra.Command{
	Use:   "pause <id>",
	Short: "Pause a region's downloads",
	Long: `Set a region's download state to inactive. Requests already in flight
are allowed to finish.

Examples:
  offlinectl region pause 1`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return setState(args[0], region.Inactive)
	},
}

func setState(arg string, state region.DownloadState) error {
	id, err := cmdutil.ParseRegionID(arg)
	if err != nil {
		return err
	}

	r, err := cmdutil.GetClient().SetDownloadState(id, state)
	if err != nil {
		return fmt.Errorf("failed to set region %d %s: %w", id, state, err)
	}

	return cmdutil.PrintResourceWithSuccess(os.Stdout, r, fmt.Sprintf("Region %d is now %s", id, r.State))
}
