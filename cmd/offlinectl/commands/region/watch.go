package region

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/marmos91/offlinekit/cmd/offlinectl/cmdutil"
	"github.com/marmos91/offlinekit/internal/cli/output"
	"github.com/marmos91/offlinekit/pkg/notify"
)

var watchFollow bool

var watchCmd = &cobra.Command{
	Use:   "watch [id]",
	Short: "Follow region events",
	Long: `Stream status updates, errors and tile limit notices as they happen.

With an id, the stream ends once that region is complete or deleted unless
--follow is given. Without an id, events of every region are streamed until
interrupted. JSON output prints one event per line.

Examples:
  # Follow a download to completion
  offlinectl region watch 1

  # Stream everything as JSON lines
  offlinectl region watch -o json`,
	Args: cobra.MaximumNArgs(1),
	RunE: runWatch,
}

func init() {
	watchCmd.Flags().BoolVar(&watchFollow, "follow", false, "Keep streaming after the region completes")
}

func runWatch(cmd *cobra.Command, args []string) error {
	var id int64
	if len(args) == 1 {
		var err error
		if id, err = cmdutil.ParseRegionID(args[0]); err != nil {
			return err
		}
	}

	format, err := cmdutil.GetOutputFormatParsed()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	events, err := cmdutil.GetClient().Events(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to stream events: %w", err)
	}

	lines := output.NewJSONLines(os.Stdout)
	for ev := range events {
		if !format.Structured() {
			printEvent(os.Stdout, ev)
		} else if err := lines.Write(ev); err != nil {
			return err
		}

		if id != 0 && !watchFollow && finished(ev) {
			return nil
		}
	}
	return nil
}

// finished reports whether ev ends a single-region watch.
func finished(ev notify.Event) bool {
	switch ev.Type {
	case notify.EventDeleted:
		return true
	case notify.EventStatus:
		return ev.Status != nil && ev.Status.IsComplete()
	}
	return false
}

func printEvent(w io.Writer, ev notify.Event) {
	ts := ev.Time.Local().Format("15:04:05")

	switch ev.Type {
	case notify.EventStatus:
		if ev.Status == nil {
			return
		}
		st := ev.Status
		_, _ = fmt.Fprintf(w, "%s  region %d  %-8s  %s  %s\n", ts, ev.RegionID,
			st.DownloadState,
			output.FormatProgress(st.CompletedResourceCount, st.RequiredResourceCount, st.RequiredResourceCountIsPrecise),
			output.FormatBytes(st.CompletedResourceSize))
	case notify.EventError:
		if ev.Error == nil {
			return
		}
		_, _ = fmt.Fprintf(w, "%s  region %d  error     %s: %s\n", ts, ev.RegionID, ev.Error.Reason, ev.Error.Message)
	case notify.EventTileLimit:
		_, _ = fmt.Fprintf(w, "%s  region %d  tile count limit of %d exceeded\n", ts, ev.RegionID, ev.Limit)
	case notify.EventDeleted:
		_, _ = fmt.Fprintf(w, "%s  region %d  deleted\n", ts, ev.RegionID)
	}
}
