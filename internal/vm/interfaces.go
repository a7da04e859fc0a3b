package vm

import (
	"context"

	"github.com/digitalocean/go-libvirt"

	"github.com/jbweber/forge/internal/storage"
)

// libvirtClient defines the libvirt operations needed for instance management.
//
// In production, this is satisfied by *libvirt.Libvirt directly.
// In tests, this is satisfied by mock implementations.
type libvirtClient interface {
	// ConnectListAllDomains lists defined domains, running or not
	ConnectListAllDomains(NeedResults int32, Flags libvirt.ConnectListAllDomainsFlags) ([]libvirt.Domain, uint32, error)

	// DomainLookupByName looks up a domain by name
	DomainLookupByName(Name string) (libvirt.Domain, error)

	// DomainDefineXML defines a domain from XML
	DomainDefineXML(XML string) (libvirt.Domain, error)

	// DomainSetAutostart sets autostart for a domain
	DomainSetAutostart(Dom libvirt.Domain, Autostart int32) error

	// DomainCreate starts a domain
	DomainCreate(Dom libvirt.Domain) error

	// DomainGetState gets the state of a domain
	DomainGetState(Dom libvirt.Domain, Flags uint32) (rState int32, rReason int32, err error)

	// DomainGetInfo reports vCPU count and memory
	DomainGetInfo(Dom libvirt.Domain) (rState uint8, rMaxMem uint64, rMemory uint64, rNrVirtCPU uint16, rCPUTime uint64, err error)

	// DomainGetXMLDesc returns the domain definition
	DomainGetXMLDesc(Dom libvirt.Domain, Flags libvirt.DomainXMLFlags) (string, error)

	// DomainGetMetadata reads the forge launch record
	DomainGetMetadata(Dom libvirt.Domain, Type int32, URI libvirt.OptString, Flags libvirt.DomainModificationImpact) (string, error)

	// DomainInterfaceAddresses returns the addresses of a running domain
	DomainInterfaceAddresses(Dom libvirt.Domain, Source uint32, Flags uint32) ([]libvirt.DomainInterface, error)

	// DomainAttachDeviceFlags and DomainDetachDeviceFlags change disks
	DomainAttachDeviceFlags(Dom libvirt.Domain, XML string, Flags uint32) error
	DomainDetachDeviceFlags(Dom libvirt.Domain, XML string, Flags uint32) error

	// DomainDestroy force-stops a domain
	DomainDestroy(Dom libvirt.Domain) error

	// DomainUndefineFlags undefines a domain with flags (e.g., NVRAM cleanup)
	DomainUndefineFlags(Dom libvirt.Domain, Flags libvirt.DomainUndefineFlagsValues) error
}

// storageManager defines the storage operations needed for instance management.
//
// In production, this is satisfied by *storage.Manager.
// In tests, this is satisfied by mock implementations.
type storageManager interface {
	// VolumeExists checks if a volume exists in a pool
	VolumeExists(ctx context.Context, poolName, volumeName string) (bool, error)

	// CreateVolume creates a new volume in a pool
	CreateVolume(ctx context.Context, poolName string, spec storage.VolumeSpec) error

	// DeleteVolume deletes a volume from a pool
	DeleteVolume(ctx context.Context, poolName, volumeName string) error

	// GetVolumePath returns the filesystem path of a volume
	GetVolumePath(ctx context.Context, poolName, volumeName string) (string, error)

	// WriteVolumeData writes data to a volume (for cloud-init ISOs)
	WriteVolumeData(ctx context.Context, poolName, volumeName string, data []byte) error

	// ImportFile uploads a local image file into a new volume
	ImportFile(ctx context.Context, poolName, volumeName, filePath string, progress storage.ProgressFunc) (storage.VolumeFormat, error)
}
