package region

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/marmos91/offlinekit/cmd/offlinectl/cmdutil"
)

var metadataCmd = &cobra.Command{
	Use:   "metadata <id> [value]",
	Short: "Replace a region's client metadata",
	Long: `Replace the opaque client metadata of a region. The value is read from
standard input when omitted.

Examples:
  offlinectl region metadata 1 '{"name":"Downtown"}'
  cat meta.json | offlinectl region metadata 1`,
	Args: cobra.RangeArgs(1, 2),
	RunE: runMetadata,
}

func runMetadata(cmd *cobra.Command, args []string) error {
	id, err := cmdutil.ParseRegionID(args[0])
	if err != nil {
		return err
	}

	var metadata []byte
	if len(args) == 2 {
		metadata = []byte(args[1])
	} else {
		metadata, err = io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return fmt.Errorf("failed to read metadata: %w", err)
		}
	}

	r, err := cmdutil.GetClient().UpdateMetadata(id, metadata)
	if err != nil {
		return fmt.Errorf("failed to update metadata of region %d: %w", id, err)
	}

	return cmdutil.PrintResourceWithSuccess(os.Stdout, r, fmt.Sprintf("Region %d metadata updated", id))
}
