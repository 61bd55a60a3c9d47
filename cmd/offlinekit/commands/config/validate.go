package config

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/marmos91/offlinekit/internal/cli/output"
	"github.com/marmos91/offlinekit/pkg/config"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate configuration file",
	Long: `Validate the offlinekit configuration file.

Checks for syntax errors, missing required fields, and invalid values,
then reports settings that are valid but likely unintended.

Examples:
  # Validate default config
  offlinekit config validate

  # Validate specific config file
  offlinekit config validate --config /etc/offlinekit/config.yaml`,
	RunE: runConfigValidate,
}

func runConfigValidate(cmd *cobra.Command, args []string) error {
	cfg, displayPath, err := load(cmd)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	_, _ = fmt.Fprintf(out, "Configuration file: %s\n", displayPath)
	_, _ = fmt.Fprintln(out, "Validation: OK")

	if warnings := configWarnings(cfg); len(warnings) > 0 {
		_, _ = fmt.Fprintln(out, "\nWarnings:")
		for _, w := range warnings {
			_, _ = fmt.Fprintf(out, "  - %s\n", w)
		}
	}

	_, _ = fmt.Fprintln(out, "\nSummary:")
	return output.SimpleTable(out, [][2]string{
		{"Store", cfg.Store.Type},
		{"High-water mark", output.FormatBytes(cfg.Store.HighWaterMark.Int64())},
		{"Tile limit", strconv.FormatUint(cfg.Download.MaxTileCount, 10)},
		{"API", apiSummary(cfg)},
		{"Log level", cfg.Logging.Level},
	})
}

func apiSummary(cfg *config.Config) string {
	if !cfg.API.IsEnabled() {
		return "disabled"
	}
	return cfg.API.ListenAddr()
}

// configWarnings lists settings that pass validation but are probably not
// what the operator wants.
func configWarnings(cfg *config.Config) []string {
	var warnings []string

	if cfg.Transport.MapboxAccessToken == "" {
		warnings = append(warnings, "Mapbox access token not configured - mapbox:// resources will fail to download")
	}
	if cfg.Store.Type == config.StoreTypeMemory {
		warnings = append(warnings, "Memory store selected - regions and resources are lost on restart")
	}
	if cfg.Download.MaxTileCount == 0 {
		warnings = append(warnings, "Tile count limit is 0 - no Mapbox tile can be downloaded")
	}
	if !cfg.API.IsEnabled() {
		warnings = append(warnings, "Control API disabled - regions cannot be managed while the daemon runs")
	}

	return warnings
}
