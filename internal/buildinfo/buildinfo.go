// Package buildinfo holds the version stamped into both binaries at link
// time with -ldflags "-X github.com/marmos91/offlinekit/internal/buildinfo.Version=...".
package buildinfo

import (
	"fmt"
	"io"
	"runtime"

	"github.com/spf13/cobra"
)

var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

// Info describes a build.
type Info struct {
	Binary    string `json:"binary" yaml:"binary"`
	Version   string `json:"version" yaml:"version"`
	Commit    string `json:"commit" yaml:"commit"`
	Date      string `json:"date" yaml:"date"`
	GoVersion string `json:"go_version" yaml:"go_version"`
	Platform  string `json:"platform" yaml:"platform"`
}

// Get returns the build info of binary.
func Get(binary string) Info {
	return Info{
		Binary:    binary,
		Version:   Version,
		Commit:    Commit,
		Date:      Date,
		GoVersion: runtime.Version(),
		Platform:  runtime.GOOS + "/" + runtime.GOARCH,
	}
}

// Write prints i as an aligned block.
func (i Info) Write(w io.Writer) {
	_, _ = fmt.Fprintf(w, "%s %s\n", i.Binary, i.Version)
	_, _ = fmt.Fprintf(w, "  Commit:     %s\n", i.Commit)
	_, _ = fmt.Fprintf(w, "  Built:      %s\n", i.Date)
	_, _ = fmt.Fprintf(w, "  Go version: %s\n", i.GoVersion)
	_, _ = fmt.Fprintf(w, "  OS/Arch:    %s\n", i.Platform)
}

// Command returns the "version" subcommand of binary.
func Command(binary string) *cobra.Command {
	var short bool
	cmd := &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			if short {
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), Version)
				return
			}
			Get(binary).Write(cmd.OutOrStdout())
		},
	}
	cmd.Flags().BoolVar(&short, "short", false, "Show only the version number")
	return cmd
}
