// Package storage manages the libvirt storage pools and volumes behind the
// libvirt transport.
//
// Forge keeps three directory pools (names and paths come from the client
// configuration, see config.LibvirtConfig):
//   - forge-blocks: one qcow2 volume per block device, named {device}.qcow2
//   - forge-images: base images instances boot from
//   - forge-instances: per-instance boot disks and cloud-init ISOs
//
// Volumes are created owned by the QEMU user (see GetQEMUUserGroup) so the
// hypervisor can open them without relabelling.
//
// Imported files are checked by magic bytes rather than extension:
//   - QCOW2: "QFI\xfb" at offset 0
//   - RAW: boot sector signature 0x55aa at offset 510
//
// The LibvirtClient interface lists only the calls this package makes;
// *libvirt.Libvirt satisfies it.
//
//	mgr := storage.NewManager(client.Libvirt())
//	if err := mgr.EnsurePools(ctx, storage.Pool{Name: "forge-blocks", Path: dir}); err != nil {
//	    return err
//	}
//	err := mgr.CreateVolume(ctx, "forge-blocks", storage.VolumeSpec{
//	    Name:     "disk-ab.qcow2",
//	    Format:   storage.VolumeFormatQCOW2,
//	    Capacity: 10 << 30,
//	})
package storage
