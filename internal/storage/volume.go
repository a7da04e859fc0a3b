package storage

import (
	"bytes"
	"context"
	"fmt"

	"github.com/digitalocean/go-libvirt"
	libvirtxml "libvirt.org/go/libvirtxml"
)

// CreateVolume creates a new volume in the specified pool.
func (m *Manager) CreateVolume(_ context.Context, poolName string, spec VolumeSpec) error {
	if err := spec.Validate(); err != nil {
		return fmt.Errorf("invalid volume spec: %w", err)
	}

	pool, err := m.client.StoragePoolLookupByName(poolName)
	if err != nil {
		return fmt.Errorf("pool not found: %w", err)
	}

	volumeXML, err := m.generateVolumeXML(spec)
	if err != nil {
		return fmt.Errorf("failed to generate volume XML: %w", err)
	}

	if _, err := m.client.StorageVolCreateXML(pool, volumeXML, 0); err != nil {
		return fmt.Errorf("failed to create volume: %w", err)
	}

	return nil
}

// CloneVolume creates target as a full copy of source in the same pool.
func (m *Manager) CloneVolume(_ context.Context, poolName, source, target string) error {
	pool, src, err := m.lookupVolume(poolName, source)
	if err != nil {
		return err
	}

	_, capacity, _, err := m.client.StorageVolGetInfo(src)
	if err != nil {
		return fmt.Errorf("failed to get info for volume %s: %w", source, err)
	}

	volumeXML, err := m.generateVolumeXML(VolumeSpec{
		Name:     target,
		Format:   VolumeFormatQCOW2,
		Capacity: capacity,
	})
	if err != nil {
		return fmt.Errorf("failed to generate volume XML: %w", err)
	}

	if _, err := m.client.StorageVolCreateXMLFrom(pool, volumeXML, src, 0); err != nil {
		return fmt.Errorf("failed to clone volume %s: %w", source, err)
	}

	return nil
}

// DeleteVolume deletes a volume from the specified pool.
func (m *Manager) DeleteVolume(_ context.Context, poolName, volumeName string) error {
	_, vol, err := m.lookupVolume(poolName, volumeName)
	if err != nil {
		return err
	}

	if err := m.client.StorageVolDelete(vol, 0); err != nil {
		return fmt.Errorf("failed to delete volume: %w", err)
	}

	return nil
}

// ListVolumes lists all volumes in the specified pool.
func (m *Manager) ListVolumes(_ context.Context, poolName string) ([]VolumeInfo, error) {
	pool, err := m.client.StoragePoolLookupByName(poolName)
	if err != nil {
		return nil, fmt.Errorf("pool not found: %w", err)
	}

	volumes, _, err := m.client.StoragePoolListAllVolumes(pool, 1, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to list volumes: %w", err)
	}

	volumeInfos := make([]VolumeInfo, 0, len(volumes))
	for _, vol := range volumes {
		// Volumes removed between listing and lookup are skipped.
		path, err := m.client.StorageVolGetPath(vol)
		if err != nil {
			continue
		}
		_, capacity, allocation, err := m.client.StorageVolGetInfo(vol)
		if err != nil {
			continue
		}

		volumeInfos = append(volumeInfos, VolumeInfo{
			Name:       vol.Name,
			Path:       path,
			Pool:       poolName,
			Capacity:   capacity,
			Allocation: allocation,
		})
	}

	return volumeInfos, nil
}

// GetVolumePath gets the full filesystem path for a volume.
func (m *Manager) GetVolumePath(_ context.Context, poolName, volumeName string) (string, error) {
	_, vol, err := m.lookupVolume(poolName, volumeName)
	if err != nil {
		return "", err
	}

	path, err := m.client.StorageVolGetPath(vol)
	if err != nil {
		return "", fmt.Errorf("failed to get volume path: %w", err)
	}

	return path, nil
}

// WriteVolumeData uploads data to a volume (used for cloud-init ISOs).
func (m *Manager) WriteVolumeData(_ context.Context, poolName, volumeName string, data []byte) error {
	_, vol, err := m.lookupVolume(poolName, volumeName)
	if err != nil {
		return err
	}

	if err := m.client.StorageVolUpload(vol, bytes.NewReader(data), 0, uint64(len(data)), 0); err != nil {
		return fmt.Errorf("failed to upload data to volume: %w", err)
	}

	return nil
}

// VolumeExists checks if a volume exists in the specified pool.
func (m *Manager) VolumeExists(_ context.Context, poolName, volumeName string) (bool, error) {
	pool, err := m.client.StoragePoolLookupByName(poolName)
	if err != nil {
		return false, fmt.Errorf("pool not found: %w", err)
	}

	if _, err := m.client.StorageVolLookupByName(pool, volumeName); err != nil {
		return false, nil
	}

	return true, nil
}

func (m *Manager) lookupVolume(poolName, volumeName string) (libvirt.StoragePool, libvirt.StorageVol, error) {
	pool, err := m.client.StoragePoolLookupByName(poolName)
	if err != nil {
		return libvirt.StoragePool{}, libvirt.StorageVol{}, fmt.Errorf("pool not found: %w", err)
	}

	vol, err := m.client.StorageVolLookupByName(pool, volumeName)
	if err != nil {
		return libvirt.StoragePool{}, libvirt.StorageVol{}, fmt.Errorf("volume %s not found: %w", volumeName, err)
	}

	return pool, vol, nil
}

// generateVolumeXML generates XML for a storage volume.
func (m *Manager) generateVolumeXML(spec VolumeSpec) (string, error) {
	uid, gid := m.ownership()

	vol := &libvirtxml.StorageVolume{
		Type: "file",
		Name: spec.Name,
		Capacity: &libvirtxml.StorageVolumeSize{
			Value: spec.Capacity,
			Unit:  "B",
		},
		Target: &libvirtxml.StorageVolumeTarget{
			Format: &libvirtxml.StorageVolumeTargetFormat{
				Type: string(spec.Format),
			},
			Permissions: &libvirtxml.StorageVolumeTargetPermissions{
				Owner: uid,
				Group: gid,
				Mode:  "0644",
			},
		},
	}

	if spec.BackingPath != "" {
		backingFormat := spec.BackingFormat
		if backingFormat == "" {
			backingFormat = VolumeFormatQCOW2
		}
		vol.BackingStore = &libvirtxml.StorageVolumeBackingStore{
			Path: spec.BackingPath,
			Format: &libvirtxml.StorageVolumeTargetFormat{
				Type: string(backingFormat),
			},
		}
	}

	doc, err := vol.Marshal()
	if err != nil {
		return "", err
	}

	return trimXMLHeader(doc), nil
}
