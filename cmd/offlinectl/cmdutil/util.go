// Package cmdutil provides shared utilities for offlinectl commands.
package cmdutil

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/marmos91/offlinekit/internal/cli/output"
	"github.com/marmos91/offlinekit/internal/cli/prompt"
	"github.com/marmos91/offlinekit/pkg/apiclient"
)

// DefaultServerURL is used when neither --server nor OFFLINECTL_SERVER is set.
const DefaultServerURL = "http://localhost:8080"

// EnvServerURL names the environment variable holding the server URL.
const EnvServerURL = "OFFLINECTL_SERVER"

// Flags stores global flag values accessible by subcommands.
var Flags = &GlobalFlags{}

// GlobalFlags holds the global flag values.
type GlobalFlags struct {
	ServerURL string
	Output    string
	NoColor   bool
	Timeout   time.Duration
	NoRetry   bool
}

// ServerURL resolves the control API URL from the --server flag, the
// environment, then the default.
func ServerURL() string {
	if Flags.ServerURL != "" {
		return strings.TrimRight(Flags.ServerURL, "/")
	}
	if env := os.Getenv(EnvServerURL); env != "" {
		return strings.TrimRight(env, "/")
	}
	return DefaultServerURL
}

// GetClient returns an API client for the resolved server URL.
func GetClient() *apiclient.Client {
	var opts []apiclient.Option
	if Flags.Timeout > 0 {
		opts = append(opts, apiclient.WithTimeout(Flags.Timeout))
	}
	if Flags.NoRetry {
		opts = append(opts, apiclient.WithRetries(0))
	}
	return apiclient.New(ServerURL(), opts...)
}

// GetOutputFormatParsed returns the parsed output format.
func GetOutputFormatParsed() (output.Format, error) {
	return output.ParseFormat(Flags.Output)
}

// IsColorDisabled returns whether color output is disabled.
func IsColorDisabled() bool {
	return Flags.NoColor
}

// PrintOutput renders data in the --output format. Tables print emptyMsg
// instead of an empty table when isEmpty is set, and use table for the rows.
func PrintOutput(w io.Writer, data any, isEmpty bool, emptyMsg string, table output.TableRenderer) error {
	format, err := GetOutputFormatParsed()
	if err != nil {
		return err
	}
	if format.Structured() {
		return output.Write(w, format, data)
	}
	if isEmpty {
		_, err = fmt.Fprintln(w, emptyMsg)
		return err
	}
	return output.PrintTable(w, table)
}

// PrintResource renders a single resource.
func PrintResource(w io.Writer, data any, table output.TableRenderer) error {
	return PrintOutput(w, data, false, "", table)
}

// PrintSuccess prints msg in table mode only, so structured output stays
// parseable.
func PrintSuccess(msg string) {
	format, err := GetOutputFormatParsed()
	if err != nil || format.Structured() {
		return
	}
	output.Success(os.Stdout, msg, !IsColorDisabled())
}

// PrintResourceWithSuccess prints data for structured formats and msg for
// tables.
func PrintResourceWithSuccess(w io.Writer, data any, msg string) error {
	format, err := GetOutputFormatParsed()
	if err != nil {
		return err
	}
	if format.Structured() {
		return output.Write(w, format, data)
	}
	PrintSuccess(msg)
	return nil
}

// Confirm asks label unless force is set. It reports false without an
// error when the operator declines or presses Ctrl+C.
func Confirm(label string, force bool) (bool, error) {
	ok, err := prompt.ConfirmWithForce(label, force)
	switch {
	case prompt.IsAborted(err):
		fmt.Println()
		return false, nil
	case err != nil:
		return false, err
	case !ok:
		fmt.Println("Aborted.")
	}
	return ok, nil
}

// ParseRegionID parses a region id argument.
func ParseRegionID(arg string) (int64, error) {
	id, err := strconv.ParseInt(arg, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid region id %q: must be a positive integer", arg)
	}
	return id, nil
}

// ParseRegionIDs parses every argument with ParseRegionID, dropping
// duplicates and keeping the first-seen order.
func ParseRegionIDs(args []string) ([]int64, error) {
	ids := make([]int64, 0, len(args))
	seen := make(map[int64]bool, len(args))
	for _, arg := range args {
		id, err := ParseRegionID(arg)
		if err != nil {
			return nil, err
		}
		if !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}
	return ids, nil
}

// ParseCommaSeparatedList parses a comma-separated string into a slice of trimmed strings.
func ParseCommaSeparatedList(s string) []string {
	if s == "" {
		return nil
	}
	var result []string
	for _, item := range strings.Split(s, ",") {
		item = strings.TrimSpace(item)
		if item != "" {
			result = append(result, item)
		}
	}
	return result
}

// ParseFloatList parses a comma-separated list of exactly n numbers.
func ParseFloatList(s string, n int) ([]float64, error) {
	items := ParseCommaSeparatedList(s)
	if len(items) != n {
		return nil, fmt.Errorf("expected %d comma-separated numbers, got %d", n, len(items))
	}
	values := make([]float64, n)
	for i, item := range items {
		v, err := strconv.ParseFloat(item, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid number %q", item)
		}
		values[i] = v
	}
	return values, nil
}

// BoolToYesNo converts a boolean to "yes" or "no" string.
func BoolToYesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
