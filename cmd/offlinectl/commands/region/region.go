// Package region implements offline region commands for offlinectl.
package region

import (
	"fmt"
	"math"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/marmos91/offlinekit/internal/cli/output"
	"github.com/marmos91/offlinekit/internal/cli/timeutil"
	"github.com/marmos91/offlinekit/pkg/apiclient"
	"github.com/marmos91/offlinekit/pkg/region"
)

// Cmd is the parent command for region management.
var Cmd = &cobra.Command{
	Use:   "region",
	Short: "Offline region management",
	Long: `Manage offline regions on the offlinekit daemon.

A region is a bounding box, a zoom range and a style URL. Once activated,
the daemon downloads every resource the style needs to render the region
offline. Regions start paused.

Examples:
  # List all regions
  offlinectl region list

  # Create and start downloading a region
  offlinectl region create --style mapbox://styles/mapbox/streets-v12 \
    --bounds 37.81,37.70,-122.35,-122.52 --min-zoom 10 --max-zoom 14 --activate

  # Follow the download
  offlinectl region watch 1

  # Pause and resume
  offlinectl region pause 1
  offlinectl region activate 1

  # Delete a region
  offlinectl region delete 1`,
}

func init() {
	Cmd.AddCommand(listCmd)
	Cmd.AddCommand(getCmd)
	Cmd.AddCommand(createCmd)
	Cmd.AddCommand(statusCmd)
	Cmd.AddCommand(activateCmd)
	Cmd.AddCommand(pauseCmd)
	Cmd.AddCommand(metadataCmd)
	Cmd.AddCommand(deleteCmd)
	Cmd.AddCommand(watchCmd)
}

// RegionList is a list of regions for table rendering.
type RegionList []apiclient.Region

// Headers implements TableRenderer.
func (rl RegionList) Headers() []string {
	return []string{"ID", "STYLE", "ZOOM", "STATE", "PROGRESS", "SIZE", "CREATED"}
}

// Rows implements TableRenderer.
func (rl RegionList) Rows() [][]string {
	rows := make([][]string, 0, len(rl))
	for _, r := range rl {
		progress, size := "-", "-"
		if r.Status != nil {
			progress = output.FormatProgress(r.Status.CompletedResourceCount,
				r.Status.RequiredResourceCount, r.Status.RequiredResourceCountIsPrecise)
			size = output.FormatBytes(r.Status.CompletedResourceSize)
		}
		rows = append(rows, []string{
			strconv.FormatInt(r.ID, 10),
			r.Definition.StyleURL,
			formatZoomRange(r.Definition),
			r.State,
			progress,
			size,
			timeutil.FormatAge(r.CreatedAt),
		})
	}
	return rows
}

// regionDetail renders a single region as a key-value table.
type regionDetail struct {
	*apiclient.Region
}

// Headers implements TableRenderer.
func (d regionDetail) Headers() []string {
	return []string{"FIELD", "VALUE"}
}

// Rows implements TableRenderer.
func (d regionDetail) Rows() [][]string {
	def := d.Definition
	rows := [][]string{
		{"ID", strconv.FormatInt(d.ID, 10)},
		{"Style", def.StyleURL},
		{"Bounds", fmt.Sprintf("N %g, S %g, E %g, W %g", def.Bounds.North, def.Bounds.South, def.Bounds.East, def.Bounds.West)},
		{"Zoom", formatZoomRange(def)},
		{"Pixel ratio", strconv.FormatFloat(float64(def.PixelRatio), 'g', -1, 32)},
		{"Ideographs", strconv.FormatBool(def.IncludeIdeographs)},
		{"State", d.State},
		{"Created", timeutil.FormatTime(d.CreatedAt)},
	}
	if len(d.Metadata) > 0 {
		rows = append(rows, []string{"Metadata", string(d.Metadata)})
	}
	if d.Status != nil {
		rows = append(rows, statusRows(*d.Status)...)
	}
	return rows
}

// statusView renders a status snapshot as a key-value table.
type statusView struct {
	*apiclient.Status
}

// Headers implements TableRenderer.
func (v statusView) Headers() []string {
	return []string{"FIELD", "VALUE"}
}

// Rows implements TableRenderer.
func (v statusView) Rows() [][]string {
	rows := [][]string{{"State", v.State}}
	rows = append(rows, statusRows(v.Status.Status)...)
	return append(rows, []string{"Complete", strconv.FormatBool(v.Complete)})
}

func statusRows(st region.Status) [][]string {
	rows := [][]string{
		{"Resources", output.FormatProgress(st.CompletedResourceCount, st.RequiredResourceCount, st.RequiredResourceCountIsPrecise)},
		{"Downloaded", output.FormatBytes(st.CompletedResourceSize)},
		{"Tiles", fmt.Sprintf("%d (%s)", st.CompletedTileCount, output.FormatBytes(st.CompletedTileSize))},
	}
	if st.ExpiredResourceCount > 0 {
		rows = append(rows, []string{"Expired", strconv.FormatUint(st.ExpiredResourceCount, 10)})
	}
	if st.TileCountLimitExceeded {
		rows = append(rows, []string{"Tile limit", "exceeded"})
	}
	return rows
}

func formatZoomRange(def region.Definition) string {
	if math.IsInf(def.MaxZoom, 1) {
		return fmt.Sprintf("%g-max", def.MinZoom)
	}
	return fmt.Sprintf("%g-%g", def.MinZoom, def.MaxZoom)
}
