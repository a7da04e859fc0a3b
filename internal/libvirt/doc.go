// Package libvirt connects to libvirtd and renders the XML forge hands it.
//
// Connection management:
//
//	client, err := libvirt.Connect(ctx, cfg.Libvirt.Socket, 0)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
// Domain XML:
//
// GenerateDomainXML renders an instance from an InstanceSpec: a kvm domain
// booting a qcow2 volume, an optional read-only cloud-init seed and one
// virtio NIC on a libvirt network.
//
// Block devices are attached as file backed virtio disks (BlockDiskXML).
// DomainDisks parses a domain definition back into its disks, which is how
// forge learns which instance a block device belongs to.
//
// Consumer-side interfaces:
//
// This package does not define interfaces. Consumers (internal/vm,
// internal/storage, internal/metadata) declare the calls they need and
// *libvirt.Libvirt from Client.Libvirt satisfies them.
package libvirt
