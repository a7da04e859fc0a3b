// Package naming provides the naming conventions for forge resources:
// generated block device names, user supplied names and the libvirt
// volume names backing instances.
package naming

import (
	"fmt"
	"math/rand/v2"
	"regexp"
	"strings"

	"github.com/google/uuid"
)

const (
	// 'g' is left out so a generated name never reads like a size ("disk-8g").
	diskLetters = "abcdefhijklmnopqrstuvwxyz"
	// Copies also drop 'l' and 'o', which are easily confused with 1 and 0.
	copyLetters = "abcdefhijkmnpqrstuvwxyz"
	digits      = "0123456789"

	// MaxAttempts is how many random suffixes are tried before falling back
	// to a UUID based suffix.
	MaxAttempts = 1000

	// DiskPrefix is the prefix of generated block device names.
	DiskPrefix = "disk"

	// InstancePrefix is the prefix of generated instance names.
	InstancePrefix = "vm"
)

var (
	customNameRe    = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]*$`)
	instanceNameRe  = regexp.MustCompile(`^[A-Za-z]([A-Za-z0-9-]*[A-Za-z0-9])?$`)
	generatedDiskRe = regexp.MustCompile(`^` + DiskPrefix + `-([a-z0-9]{2}|[0-9a-f]{8})$`)
)

// Overridden in tests.
var (
	intN    = rand.IntN
	newUUID = uuid.NewString
)

// GenerateDiskName returns an unused name of the form "disk-xy".
// taken holds the names already in use.
func GenerateDiskName(taken map[string]struct{}) string {
	return generate(DiskPrefix, diskLetters, taken)
}

// IsGeneratedDiskName reports whether name has the shape GenerateDiskName
// produces. The daemon renames such a device on collision instead of
// failing, since the client picked it without knowing the taken names.
func IsGeneratedDiskName(name string) bool {
	return generatedDiskRe.MatchString(name)
}

// GenerateInstanceName returns an unused instance name of the form "vm-xy".
func GenerateInstanceName(taken map[string]struct{}) string {
	return generate(InstancePrefix, diskLetters, taken)
}

// GenerateCopyName returns an unused name for a copy of source, of the form
// "<source>-copy-xy".
func GenerateCopyName(source string, taken map[string]struct{}) string {
	return generate(source+"-copy", copyLetters, taken)
}

// generate tries up to MaxAttempts two character suffixes, each containing
// at least one letter, then falls back to the first 8 characters of a UUID.
func generate(prefix, letters string, taken map[string]struct{}) string {
	alnum := letters + digits

	for range MaxAttempts {
		suffix := make([]byte, 2)
		pos := intN(2)
		suffix[pos] = letters[intN(len(letters))]
		suffix[1-pos] = alnum[intN(len(alnum))]

		name := prefix + "-" + string(suffix)
		if _, exists := taken[name]; !exists {
			return name
		}
	}

	return prefix + "-" + newUUID()[:8]
}

// ValidateCustomName checks a user supplied block device name.
func ValidateCustomName(name string) error {
	if name == "" {
		return fmt.Errorf("name must not be empty")
	}
	if strings.ContainsAny(name, `/\`) {
		return fmt.Errorf("name %q must not contain path separators", name)
	}
	if strings.Contains(name, "..") {
		return fmt.Errorf("name %q must not contain '..'", name)
	}
	if !customNameRe.MatchString(name) {
		return fmt.Errorf("name %q must start with a letter or digit and contain only letters, digits, '.', '_' and '-'", name)
	}
	return nil
}

// ValidInstanceName reports whether name could name an instance: a hostname
// label that starts with a letter, at most 63 characters.
func ValidInstanceName(name string) bool {
	return len(name) <= 63 && instanceNameRe.MatchString(name)
}

// VolumeNameBlock returns the volume name backing a block device.
// Format: {name}.qcow2
func VolumeNameBlock(name string) string {
	return name + ".qcow2"
}

// BlockNameFromVolume is the inverse of VolumeNameBlock.
func BlockNameFromVolume(volume string) string {
	return strings.TrimSuffix(volume, ".qcow2")
}

// VolumeNameBoot returns the volume name for an instance's boot disk.
// Format: {instance}_boot.qcow2
func VolumeNameBoot(instance string) string {
	return fmt.Sprintf("%s_boot.qcow2", instance)
}

// VolumeNameCloudInit returns the volume name for an instance's cloud-init ISO.
// Format: {instance}_cloudinit.iso
func VolumeNameCloudInit(instance string) string {
	return fmt.Sprintf("%s_cloudinit.iso", instance)
}
