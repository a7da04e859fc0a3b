package libvirt

import (
	"fmt"

	"libvirt.org/go/libvirtxml"
)

// BootTarget is the target device of an instance's boot disk.
const BootTarget = "vda"

// Disk is one disk device of a domain.
type Disk struct {
	Target string // vda, vdb, sda ...
	Device string // disk or cdrom

	// File backed disks carry Path; volume backed ones Pool and Volume.
	Path   string
	Pool   string
	Volume string
}

// DomainDisks returns the disk devices of a domain definition.
func DomainDisks(domainXML string) ([]Disk, error) {
	var domain libvirtxml.Domain
	if err := domain.Unmarshal(domainXML); err != nil {
		return nil, fmt.Errorf("failed to parse domain XML: %w", err)
	}
	if domain.Devices == nil {
		return nil, nil
	}

	disks := make([]Disk, 0, len(domain.Devices.Disks))
	for _, d := range domain.Devices.Disks {
		disk := Disk{Device: d.Device}
		if d.Target != nil {
			disk.Target = d.Target.Dev
		}
		if d.Source != nil {
			switch {
			case d.Source.File != nil:
				disk.Path = d.Source.File.File
			case d.Source.Volume != nil:
				disk.Pool = d.Source.Volume.Pool
				disk.Volume = d.Source.Volume.Volume
			}
		}
		disks = append(disks, disk)
	}

	return disks, nil
}

// FindDisk returns the file backed disk whose source is path.
func FindDisk(disks []Disk, path string) (Disk, bool) {
	for _, d := range disks {
		if d.Path != "" && d.Path == path {
			return d, true
		}
	}
	return Disk{}, false
}

// NextDiskTarget returns the first virtio target after the boot disk that
// no disk uses.
func NextDiskTarget(disks []Disk) (string, error) {
	used := make(map[string]bool, len(disks))
	for _, d := range disks {
		used[d.Target] = true
	}

	for c := 'b'; c <= 'z'; c++ {
		target := "vd" + string(c)
		if !used[target] {
			return target, nil
		}
	}

	return "", fmt.Errorf("no free disk target left (vdb-vdz in use)")
}

// BlockDiskXML returns the device XML attaching the qcow2 file at path
// as target.
func BlockDiskXML(path, target string) (string, error) {
	disk := &libvirtxml.DomainDisk{
		Device: "disk",
		Driver: &libvirtxml.DomainDiskDriver{
			Name: "qemu",
			Type: "qcow2",
		},
		Source: &libvirtxml.DomainDiskSource{
			File: &libvirtxml.DomainDiskSourceFile{
				File: path,
			},
		},
		Target: &libvirtxml.DomainDiskTarget{
			Dev: target,
			Bus: "virtio",
		},
	}

	xml, err := disk.Marshal()
	if err != nil {
		return "", fmt.Errorf("failed to marshal disk XML: %w", err)
	}

	return xml, nil
}
