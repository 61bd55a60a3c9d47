package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/marmos91/offlinekit/cmd/offlinectl/cmdutil"
	"github.com/marmos91/offlinekit/internal/cli/output"
	"github.com/marmos91/offlinekit/pkg/apiclient"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show daemon status",
	Long: `Check that the daemon is ready and report its store usage and the
Mapbox tile count limit. An unreachable daemon is reported, not treated as
an error; use the exit status of "offlinectl status -o json | jq -e .healthy"
in scripts.

Examples:
  offlinectl status
  offlinectl status --server http://10.0.0.5:8080 -o json`,
	Args: cobra.NoArgs,
	RunE: runStatus,
}

// ServerStatus is the report printed by the status command.
type ServerStatus struct {
	Server        string `json:"server" yaml:"server"`
	Healthy       bool   `json:"healthy" yaml:"healthy"`
	StoreSize     int64  `json:"store_size,omitempty" yaml:"store_size,omitempty"`
	HighWaterMark int64  `json:"high_water_mark,omitempty" yaml:"high_water_mark,omitempty"`
	TileLimit     uint64 `json:"tile_limit,omitempty" yaml:"tile_limit,omitempty"`
	TilesUsed     uint64 `json:"tiles_used,omitempty" yaml:"tiles_used,omitempty"`
	Error         string `json:"error,omitempty" yaml:"error,omitempty"`
}

// Headers implements output.TableRenderer.
func (s ServerStatus) Headers() []string {
	return []string{"FIELD", "VALUE"}
}

// Rows implements output.TableRenderer.
func (s ServerStatus) Rows() [][]string {
	rows := [][]string{
		{"Server", s.Server},
		{"Healthy", cmdutil.BoolToYesNo(s.Healthy)},
	}
	if s.Healthy {
		rows = append(rows,
			[]string{"Store size", output.FormatBytes(s.StoreSize)},
			[]string{"High-water mark", output.FormatBytes(s.HighWaterMark)},
			[]string{"Mapbox tiles", fmt.Sprintf("%d / %d", s.TilesUsed, s.TileLimit)},
		)
	}
	if s.Error != "" {
		rows = append(rows, []string{"Error", s.Error})
	}
	return rows
}

func runStatus(cmd *cobra.Command, args []string) error {
	status := probeServer(cmdutil.GetClient(), cmdutil.ServerURL())
	return cmdutil.PrintResource(os.Stdout, status, status)
}

// probeServer collects the report. Usage and limit are best effort once
// the readiness probe passed.
func probeServer(c *apiclient.Client, server string) ServerStatus {
	status := ServerStatus{Server: server}
	if err := c.Health(); err != nil {
		status.Error = err.Error()
		return status
	}
	status.Healthy = true

	if usage, err := c.StoreUsage(); err == nil {
		status.StoreSize = usage.Size
		status.HighWaterMark = usage.HighWaterMark
	}
	if limit, err := c.GetTileLimit(); err == nil {
		status.TileLimit = limit.Limit
		status.TilesUsed = limit.Used
	}
	return status
}
