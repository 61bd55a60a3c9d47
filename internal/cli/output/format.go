// Package output renders offlinectl results as tables, JSON or YAML.
package output

import (
	"fmt"
	"io"
	"slices"
	"strings"
)

// Format selects how a command result is rendered.
type Format string

const (
	FormatTable Format = "table"
	FormatJSON  Format = "json"
	FormatYAML  Format = "yaml"
)

var aliases = map[string]Format{
	"":      FormatTable,
	"table": FormatTable,
	"json":  FormatJSON,
	"yaml":  FormatYAML,
	"yml":   FormatYAML,
}

// ParseFormat maps a --output value to a Format. Matching ignores case and
// surrounding blanks; the empty string selects the table.
func ParseFormat(s string) (Format, error) {
	if f, ok := aliases[strings.ToLower(strings.TrimSpace(s))]; ok {
		return f, nil
	}
	return "", fmt.Errorf("invalid output format %q (valid: %s)", s, strings.Join(Names(), ", "))
}

// Names lists the canonical format names.
func Names() []string {
	return []string{string(FormatTable), string(FormatJSON), string(FormatYAML)}
}

func (f Format) String() string {
	return string(f)
}

// Structured reports whether f is a machine-readable encoding.
func (f Format) Structured() bool {
	return slices.Contains([]Format{FormatJSON, FormatYAML}, f)
}

// Write renders data in format f. Tables need data to be a TableRenderer;
// anything else falls back to JSON.
func Write(w io.Writer, f Format, data any) error {
	switch f {
	case FormatJSON:
		return PrintJSON(w, data)
	case FormatYAML:
		return PrintYAML(w, data)
	case FormatTable:
		if tr, ok := data.(TableRenderer); ok {
			return PrintTable(w, tr)
		}
		return PrintJSON(w, data)
	}
	return fmt.Errorf("unsupported output format %q", f)
}
