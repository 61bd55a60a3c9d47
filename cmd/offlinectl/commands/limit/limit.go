// Package limit implements the Mapbox tile count limit commands.
package limit

import (
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/marmos91/offlinekit/cmd/offlinectl/cmdutil"
	"github.com/marmos91/offlinekit/internal/cli/output"
	"github.com/marmos91/offlinekit/pkg/apiclient"
)

// Cmd is the parent command for the tile count limit.
var Cmd = &cobra.Command{
	Use:   "limit",
	Short: "Mapbox tile count limit",
	Long: `Show or change the process-wide limit on stored Mapbox tiles.

Regions that reach the limit stop downloading Mapbox tiles. Raising the
limit resumes them.

Examples:
  offlinectl limit get
  offlinectl limit set 10000`,
}

func init() {
	Cmd.AddCommand(getCmd)
	Cmd.AddCommand(setCmd)
}

// limitView renders a tile limit as a table.
type limitView struct {
	*apiclient.TileLimit
}

// Headers implements TableRenderer.
func (v limitView) Headers() []string {
	return []string{"LIMIT", "USED", "REMAINING"}
}

// Rows implements TableRenderer.
func (v limitView) Rows() [][]string {
	remaining := uint64(0)
	if v.Limit > v.Used {
		remaining = v.Limit - v.Used
	}
	return [][]string{{
		strconv.FormatUint(v.Limit, 10),
		strconv.FormatUint(v.Used, 10),
		strconv.FormatUint(remaining, 10),
	}}
}

var _ output.TableRenderer = limitView{}

var getCmd = &cobra.Command{
	Use:   "get",
	Short: "Show the tile count limit",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, err := cmdutil.GetClient().GetTileLimit()
		if err != nil {
			return fmt.Errorf("failed to get tile limit: %w", err)
		}
		return cmdutil.PrintResource(os.Stdout, limit, limitView{limit})
	},
}

var setCmd = &cobra.Command{
	Use:   "set <limit>",
	Short: "Change the tile count limit",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		n, err := strconv.ParseUint(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid limit %q: must be a non-negative integer", args[0])
		}

		limit, err := cmdutil.GetClient().SetTileLimit(n)
		if err != nil {
			return fmt.Errorf("failed to set tile limit: %w", err)
		}
		return cmdutil.PrintResourceWithSuccess(os.Stdout, limit,
			fmt.Sprintf("Tile count limit set to %d (%d used)", limit.Limit, limit.Used))
	},
}
