package output

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strings"

	"github.com/jbweber/forge/internal/rpc"
)

// CSVFormatter formats resources as CSV.
type CSVFormatter struct {
	// NoHeaders omits the header row.
	NoHeaders bool
}

// FormatBlockList formats block devices as CSV.
func (f *CSVFormatter) FormatBlockList(devs []rpc.BlockDevice) (string, error) {
	rows := make([][]string, 0, len(devs)+1)
	if !f.NoHeaders {
		rows = append(rows, []string{"Name", "Size", "Attached to", "Path"})
	}
	for _, dev := range devs {
		rows = append(rows, []string{dev.Name, dev.Size, dev.AttachedTo, dev.Path})
	}
	return writeCSV(rows)
}

// FormatInstances formats instance details as CSV. Multiple addresses are
// separated by ';'.
func (f *CSVFormatter) FormatInstances(details []rpc.InstanceDetails) (string, error) {
	rows := make([][]string, 0, len(details)+1)
	if !f.NoHeaders {
		rows = append(rows, []string{"Name", "State", "IPv4", "Image"})
	}
	for _, d := range details {
		rows = append(rows, []string{d.Name, string(d.State), strings.Join(d.IPv4, ";"), d.Image})
	}
	return writeCSV(rows)
}

func writeCSV(rows [][]string) (string, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.WriteAll(rows); err != nil {
		return "", fmt.Errorf("failed to write CSV: %w", err)
	}
	return buf.String(), nil
}
