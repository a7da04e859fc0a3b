package output

import (
	"bytes"
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/jbweber/forge/internal/rpc"
)

// YAMLFormatter formats resources as YAML.
type YAMLFormatter struct{}

// FormatBlockList formats block devices as a YAML stream, one document per
// device.
func (f *YAMLFormatter) FormatBlockList(devs []rpc.BlockDevice) (string, error) {
	var buf bytes.Buffer

	for i, dev := range devs {
		data, err := yaml.Marshal(dev)
		if err != nil {
			return "", fmt.Errorf("failed to marshal block device %s to YAML: %w", dev.Name, err)
		}

		if i > 0 {
			buf.WriteString("---\n")
		}
		buf.Write(data)
	}

	return buf.String(), nil
}

// FormatInstances formats instance details as a YAML stream.
func (f *YAMLFormatter) FormatInstances(details []rpc.InstanceDetails) (string, error) {
	var buf bytes.Buffer

	for i, d := range details {
		data, err := yaml.Marshal(d)
		if err != nil {
			return "", fmt.Errorf("failed to marshal instance %s to YAML: %w", d.Name, err)
		}

		if i > 0 {
			buf.WriteString("---\n")
		}
		buf.Write(data)
	}

	return buf.String(), nil
}
