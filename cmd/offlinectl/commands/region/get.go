package region

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/marmos91/offlinekit/cmd/offlinectl/cmdutil"
	"github.com/marmos91/offlinekit/internal/cli/output"
	"github.com/marmos91/offlinekit/pkg/apiclient"
)

// showCommand builds a command that fetches one value for a region id and
// prints it, as a key-value table unless a structured format is requested.
func showCommand[T any](use, short, long, what string,
	fetch func(c *apiclient.Client, id int64) (*T, error),
	table func(*T) output.TableRenderer,
) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <id>",
		Short: short,
		Long:  long,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := cmdutil.ParseRegionID(args[0])
			if err != nil {
				return err
			}
			v, err := fetch(cmdutil.GetClient(), id)
			if err != nil {
				return fmt.Errorf("get %s of region %d: %w", what, id, err)
			}
			return cmdutil.PrintResource(os.Stdout, v, table(v))
		},
	}
}

var getCmd = showCommand("get", "Show a region",
	`Show the definition, metadata and progress of a region.

Examples:
  offlinectl region get 1
  offlinectl region get 1 -o yaml`,
	"details",
	(*apiclient.Client).GetRegion,
	func(r *apiclient.Region) output.TableRenderer { return regionDetail{r} })

var statusCmd = showCommand("status", "Show the download status of a region",
	`Show the latest download status snapshot of a region.

The required resource count grows while the style and its sources are
walked; a trailing "+" marks a count that is not final yet.

Examples:
  offlinectl region status 1
  offlinectl region status 1 -o json`,
	"status",
	(*apiclient.Client).RegionStatus,
	func(s *apiclient.Status) output.TableRenderer { return statusView{s} })
