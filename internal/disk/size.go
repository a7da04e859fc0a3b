package disk

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"strings"

	"github.com/dustin/go-humanize"
)

const (
	// DefaultSize is used when add-disk is given an instance but no size.
	DefaultSize = "10G"
	// MinSize is the smallest block device the daemon will create.
	MinSize = "1G"
)

// SupportedFormats are the image file extensions accepted as a disk source.
var SupportedFormats = []string{"qcow2", "raw", "img", "vmdk", "vdi", "vhd", "vpc"}

// sizeRe accepts a number with an optional binary unit: "10G", "512M",
// "1.5GiB", "1073741824".
var sizeRe = regexp.MustCompile(`^(\d+(?:\.\d+)?)\s*(?:([KkMmGgTt])(?:[Ii]?[Bb])?|[Bb])?$`)

// LooksLikeSize reports whether s is shaped like a size rather than a path.
func LooksLikeSize(s string) bool {
	return sizeRe.MatchString(s)
}

// ParseSize converts a size such as "10G" to bytes. Single letter units are
// binary (G is GiB).
func ParseSize(s string) (uint64, error) {
	m := sizeRe.FindStringSubmatch(strings.TrimSpace(s))
	if m == nil {
		return 0, fmt.Errorf("invalid size %q: must be a positive number with an optional K, M, G or T suffix", s)
	}

	normalized := m[1]
	if m[2] != "" {
		normalized += " " + strings.ToUpper(m[2]) + "iB"
	}

	bytes, err := humanize.ParseBytes(normalized)
	if err != nil {
		return 0, fmt.Errorf("invalid size %q: %w", s, err)
	}
	if bytes == 0 {
		return 0, fmt.Errorf("invalid size %q: must be greater than zero", s)
	}
	return bytes, nil
}

// ValidateSize checks that s parses and is at least MinSize.
func ValidateSize(s string) error {
	bytes, err := ParseSize(s)
	if err != nil {
		return err
	}

	minBytes, _ := ParseSize(MinSize)
	if bytes < minBytes {
		return fmt.Errorf("disk size '%s' is too small, minimum size is %s", s, MinSize)
	}
	return nil
}

// FormatSize renders bytes the way sizes are shown in listings ("10 GiB").
func FormatSize(bytes uint64) string {
	return humanize.IBytes(bytes)
}

// ValidateImagePath checks that path is an existing regular file with a
// supported image extension and returns its absolute form.
func ValidateImagePath(path string) (string, error) {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("disk image file '%s' does not exist", path)
		}
		return "", fmt.Errorf("failed to stat disk image file '%s': %w", path, err)
	}
	if !info.Mode().IsRegular() {
		return "", fmt.Errorf("'%s' is not a regular file", path)
	}

	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(path), "."))
	if !slices.Contains(SupportedFormats, ext) {
		return "", fmt.Errorf("unsupported disk format for '%s', supported formats: %s",
			path, strings.Join(SupportedFormats, ", "))
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("failed to resolve path '%s': %w", path, err)
	}
	return abs, nil
}
