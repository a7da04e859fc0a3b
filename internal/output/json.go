package output

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/jbweber/forge/internal/rpc"
)

// JSONFormatter formats resources as JSON objects keyed by resource kind:
//
//	{
//	  "block_devices": [...]
//	}
type JSONFormatter struct{}

// FormatBlockList formats block devices as JSON.
func (f *JSONFormatter) FormatBlockList(devs []rpc.BlockDevice) (string, error) {
	if devs == nil {
		devs = []rpc.BlockDevice{}
	}
	return encodeJSON(map[string]any{"block_devices": devs})
}

// FormatInstances formats instance details as JSON.
func (f *JSONFormatter) FormatInstances(details []rpc.InstanceDetails) (string, error) {
	if details == nil {
		details = []rpc.InstanceDetails{}
	}
	return encodeJSON(map[string]any{"instances": details})
}

func encodeJSON(v any) (string, error) {
	var buf bytes.Buffer
	encoder := json.NewEncoder(&buf)
	encoder.SetIndent("", "  ")

	if err := encoder.Encode(v); err != nil {
		return "", fmt.Errorf("failed to marshal to JSON: %w", err)
	}

	return buf.String(), nil
}
