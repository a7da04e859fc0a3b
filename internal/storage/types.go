package storage

import "fmt"

// VolumeFormat represents the disk format.
type VolumeFormat string

const (
	VolumeFormatQCOW2 VolumeFormat = "qcow2" // QCOW2 format
	VolumeFormatRaw   VolumeFormat = "raw"   // Raw format
)

// Pool names a directory-backed storage pool and where it lives.
type Pool struct {
	Name string
	Path string
}

// VolumeSpec specifies how to create a storage volume.
type VolumeSpec struct {
	Name     string       // Volume name (e.g., "disk-ab.qcow2", "primary_boot.qcow2")
	Format   VolumeFormat // Disk format (qcow2, raw)
	Capacity uint64       // Capacity in bytes

	// Optional qcow2 backing file, referenced by path.
	BackingPath   string
	BackingFormat VolumeFormat
}

// Validate checks if the volume spec is valid.
func (v *VolumeSpec) Validate() error {
	if v.Name == "" {
		return fmt.Errorf("volume name is required")
	}
	if v.Format != VolumeFormatQCOW2 && v.Format != VolumeFormatRaw {
		return fmt.Errorf("invalid volume format: %q (must be qcow2 or raw)", v.Format)
	}
	if v.Capacity == 0 {
		return fmt.Errorf("volume capacity must be greater than 0")
	}
	if v.BackingPath != "" && v.Format != VolumeFormatQCOW2 {
		return fmt.Errorf("backing files are only supported for qcow2 volumes")
	}
	return nil
}

// PoolInfo contains information about a storage pool.
type PoolInfo struct {
	Name       string // Pool name
	Path       string // Target directory
	State      string // running, inactive, ...
	Capacity   uint64 // Total capacity in bytes
	Allocation uint64 // Allocated space in bytes
	Available  uint64 // Available space in bytes
}

// VolumeInfo contains information about a storage volume.
type VolumeInfo struct {
	Name       string // Volume name
	Path       string // Full path to volume
	Pool       string // Pool name
	Capacity   uint64 // Capacity in bytes
	Allocation uint64 // Allocated space in bytes
}
