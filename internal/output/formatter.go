// Package output renders forge resources for the terminal and provides the
// interactive terminal pieces used by commands: spinner, prompts, progress
// bars and the timeout watchdog.
package output

import (
	"fmt"

	"github.com/jbweber/forge/internal/rpc"
)

// Format represents an output format type.
type Format string

const (
	// FormatTable is a human-readable table format.
	FormatTable Format = "table"
	// FormatYAML is a YAML format.
	FormatYAML Format = "yaml"
	// FormatJSON is a JSON format for machine consumption.
	FormatJSON Format = "json"
	// FormatCSV is comma separated values with a header row.
	FormatCSV Format = "csv"
)

// Formatter formats forge resources for output.
type Formatter interface {
	// FormatBlockList formats the block devices known to the daemon.
	FormatBlockList(devs []rpc.BlockDevice) (string, error)

	// FormatInstances formats instance details.
	FormatInstances(details []rpc.InstanceDetails) (string, error)
}

// Options contains options for formatting output.
type Options struct {
	// Format specifies the output format.
	Format Format
	// NoHeaders omits headers in table and csv format.
	NoHeaders bool
}

// NewFormatter creates a new Formatter based on the specified format.
func NewFormatter(opts Options) (Formatter, error) {
	switch opts.Format {
	case FormatTable, "":
		return &TableFormatter{NoHeaders: opts.NoHeaders}, nil
	case FormatYAML:
		return &YAMLFormatter{}, nil
	case FormatJSON:
		return &JSONFormatter{}, nil
	case FormatCSV:
		return &CSVFormatter{NoHeaders: opts.NoHeaders}, nil
	default:
		return nil, fmt.Errorf("unsupported output format: %s (supported: table, yaml, json, csv)", opts.Format)
	}
}

// ValidateFormat checks if a format string is valid.
func ValidateFormat(format string) error {
	switch Format(format) {
	case FormatTable, FormatYAML, FormatJSON, FormatCSV:
		return nil
	default:
		return fmt.Errorf("invalid format: %s (valid formats: table, yaml, json, csv)", format)
	}
}

// orDash returns "-" for empty values.
func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
