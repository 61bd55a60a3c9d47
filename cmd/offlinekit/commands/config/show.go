package config

import (
	"github.com/spf13/cobra"

	"github.com/marmos91/offlinekit/internal/cli/output"
	"github.com/marmos91/offlinekit/pkg/config"
)

const redactedValue = "<redacted>"

var (
	showOutput  string
	showSecrets bool
)

var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration",
	Long: `Print the configuration the daemon would run with: the file, then
environment overrides, then defaults. Access tokens and passwords are
redacted unless --show-secrets is given.

Examples:
  offlinekit config show
  offlinekit config show -o json --config /etc/offlinekit/config.yaml`,
	Args: cobra.NoArgs,
	RunE: runConfigShow,
}

func init() {
	showCmd.Flags().StringVarP(&showOutput, "output", "o", "yaml", "Output format (yaml|json)")
	showCmd.Flags().BoolVar(&showSecrets, "show-secrets", false, "Print credentials in clear")
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	format, err := output.ParseFormat(showOutput)
	if err != nil {
		return err
	}
	if format == output.FormatTable {
		format = output.FormatYAML
	}

	cfg, _, err := load(cmd)
	if err != nil {
		return err
	}
	if !showSecrets {
		cfg = redact(cfg)
	}
	return output.Write(cmd.OutOrStdout(), format, cfg)
}

// redact returns a copy of cfg with credentials masked. Unset credentials
// stay empty so the output shows what is configured.
func redact(cfg *config.Config) *config.Config {
	c := *cfg
	mask := func(s *string) {
		if *s != "" {
			*s = redactedValue
		}
	}
	mask(&c.Transport.MapboxAccessToken)
	mask(&c.Transport.S3.SecretAccessKey)
	mask(&c.Store.Postgres.Password)
	return &c
}
