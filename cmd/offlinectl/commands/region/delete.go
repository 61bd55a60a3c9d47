package region

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/marmos91/offlinekit/cmd/offlinectl/cmdutil"
	"github.com/marmos91/offlinekit/pkg/apiclient"
)

var (
	deleteForce         bool
	deleteIgnoreMissing bool
)

var deleteCmd = &cobra.Command{
	Use:   "delete <id>...",
	Short: "Delete one or more regions",
	Long: `Delete regions. Their downloads stop and stored resources no other
region uses become eligible for removal.

The daemon answers once storage is reclaimed. If that takes longer than the
request timeout the deletion keeps running on the daemon.

Examples:
  offlinectl region delete 1
  offlinectl region delete 1 2 3 --force
  offlinectl region delete 4 --ignore-missing`,
	Args: cobra.MinimumNArgs(1),
	RunE: runDelete,
}

func init() {
	deleteCmd.Flags().BoolVarP(&deleteForce, "force", "f", false, "Skip the confirmation prompt")
	deleteCmd.Flags().BoolVar(&deleteIgnoreMissing, "ignore-missing", false, "Do not fail on regions that do not exist")
}

func runDelete(cmd *cobra.Command, args []string) error {
	ids, err := cmdutil.ParseRegionIDs(args)
	if err != nil {
		return err
	}

	ok, err := cmdutil.Confirm(deletePrompt(ids), deleteForce)
	if err != nil || !ok {
		return err
	}

	client := cmdutil.GetClient()
	var errs []error
	for _, id := range ids {
		err := client.DeleteRegion(id)
		var apiErr *apiclient.APIError
		switch {
		case err == nil:
			cmdutil.PrintSuccess(fmt.Sprintf("Region %d deleted", id))
		case deleteIgnoreMissing && errors.As(err, &apiErr) && apiErr.IsNotFound():
			cmdutil.PrintSuccess(fmt.Sprintf("Region %d does not exist", id))
		default:
			errs = append(errs, fmt.Errorf("delete region %d: %w", id, err))
		}
	}
	return errors.Join(errs...)
}

func deletePrompt(ids []int64) string {
	if len(ids) == 1 {
		return fmt.Sprintf("Delete region %d?", ids[0])
	}
	s := make([]string, len(ids))
	for i, id := range ids {
		s[i] = strconv.FormatInt(id, 10)
	}
	return fmt.Sprintf("Delete %d regions (%s)?", len(ids), strings.Join(s, ", "))
}
