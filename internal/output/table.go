package output

import (
	"bytes"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/jbweber/forge/internal/rpc"
)

// TableFormatter formats resources as human-readable tables.
type TableFormatter struct {
	// NoHeaders omits the header row.
	NoHeaders bool
}

// FormatBlockList formats block devices as a table.
func (f *TableFormatter) FormatBlockList(devs []rpc.BlockDevice) (string, error) {
	if len(devs) == 0 {
		return "No block devices found\n", nil
	}

	var buf bytes.Buffer
	w := tabwriter.NewWriter(&buf, 0, 0, 2, ' ', 0)

	if !f.NoHeaders {
		_, _ = fmt.Fprintln(w, "NAME\tSIZE\tATTACHED TO\tPATH")
	}

	for _, dev := range devs {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
			dev.Name, orDash(dev.Size), orDash(dev.AttachedTo), orDash(dev.Path))
	}

	_ = w.Flush()
	return buf.String(), nil
}

// FormatInstances formats instance details as a table.
func (f *TableFormatter) FormatInstances(details []rpc.InstanceDetails) (string, error) {
	if len(details) == 0 {
		return "No instances found\n", nil
	}

	var buf bytes.Buffer
	w := tabwriter.NewWriter(&buf, 0, 0, 2, ' ', 0)

	if !f.NoHeaders {
		_, _ = fmt.Fprintln(w, "NAME\tSTATE\tIPV4\tIMAGE")
	}

	for _, d := range details {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
			d.Name, orDash(string(d.State)), orDash(strings.Join(d.IPv4, ",")), orDash(d.Image))
	}

	_ = w.Flush()
	return buf.String(), nil
}
