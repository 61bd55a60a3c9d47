package region

import (
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/marmos91/offlinekit/cmd/offlinectl/cmdutil"
	"github.com/marmos91/offlinekit/pkg/apiclient"
	"github.com/marmos91/offlinekit/pkg/region"
)

var (
	listState string
	listQuiet bool
)

var listCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List regions",
	Long: `List offline regions with their download progress.

Examples:
  offlinectl region list
  offlinectl region list --state active -o json
  offlinectl region list -q | xargs offlinectl region pause`,
	Args: cobra.NoArgs,
	RunE: runList,
}

func init() {
	listCmd.Flags().StringVar(&listState, "state", "", "Only list regions in this state (active|inactive)")
	listCmd.Flags().BoolVarP(&listQuiet, "quiet", "q", false, "Print region ids only")
}

func runList(cmd *cobra.Command, args []string) error {
	var want *region.DownloadState
	if listState != "" {
		s, err := region.ParseDownloadState(listState)
		if err != nil {
			return err
		}
		want = &s
	}

	regions, err := cmdutil.GetClient().ListRegions()
	if err != nil {
		return fmt.Errorf("list regions: %w", err)
	}
	if want != nil {
		regions = filterState(regions, want.String())
	}

	if listQuiet {
		for _, r := range regions {
			fmt.Println(strconv.FormatInt(r.ID, 10))
		}
		return nil
	}

	rows := RegionList(regions)
	return cmdutil.PrintOutput(os.Stdout, regions, len(rows) == 0, "No regions found.", rows)
}

func filterState(regions []apiclient.Region, state string) []apiclient.Region {
	out := regions[:0]
	for _, r := range regions {
		if r.State == state {
			out = append(out, r)
		}
	}
	return out
}
