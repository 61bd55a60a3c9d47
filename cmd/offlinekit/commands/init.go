package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/marmos91/offlinekit/pkg/config"
)

var (
	initForce  bool
	initStore  string
	initStdout bool
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a sample configuration file",
	Long: `Write a sample configuration with every default spelled out.

The file goes to --config, or to $XDG_CONFIG_HOME/offlinekit/config.yaml.

Examples:
  offlinekit init
  offlinekit init --store sqlite --config /etc/offlinekit/config.yaml
  offlinekit init --store postgres --stdout > config.yaml`,
	Args: cobra.NoArgs,
	RunE: runInit,
}

func init() {
	f := initCmd.Flags()
	f.BoolVar(&initForce, "force", false, "Overwrite an existing file")
	f.StringVar(&initStore, "store", config.StoreTypeBadger, "Store backend of the sample (memory|badger|sqlite|postgres)")
	f.BoolVar(&initStdout, "stdout", false, "Print the sample instead of writing it")
}

func runInit(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()

	if initStdout {
		data, err := config.Sample(initStore)
		if err != nil {
			return err
		}
		_, err = out.Write(data)
		return err
	}

	path, err := config.WriteSample(GetConfigFile(), initStore, initForce)
	if err != nil {
		return err
	}

	_, _ = fmt.Fprintf(out, "Wrote %s\n\n", path)
	_, _ = fmt.Fprintln(out, "Set transport.mapbox_access_token if your styles use mapbox:// URLs, then run:")
	if GetConfigFile() == "" {
		_, _ = fmt.Fprintln(out, "  offlinekit start")
	} else {
		_, _ = fmt.Fprintf(out, "  offlinekit start --config %s\n", path)
	}
	return nil
}
