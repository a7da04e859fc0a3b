package vm

import (
	"context"
	"errors"
	"fmt"

	"github.com/digitalocean/go-libvirt"
	"github.com/rs/zerolog"

	forgelibvirt "github.com/jbweber/forge/internal/libvirt"
)

var (
	ErrAttached    = errors.New("block device is already attached")
	ErrNotAttached = errors.New("block device is not attached")
)

// Disk changes go to the persistent definition only; the instance is
// stopped whenever forge changes its disks.
const deviceModifyConfig = uint32(libvirt.DomainDeviceModifyConfig)

// definedDisks returns the disks of the persistent definition.
func (m *Manager) definedDisks(dom libvirt.Domain) ([]forgelibvirt.Disk, error) {
	xml, err := m.lv.DomainGetXMLDesc(dom, libvirt.DomainXMLInactive)
	if err != nil {
		return nil, fmt.Errorf("failed to get definition of %s: %w", dom.Name, err)
	}
	return forgelibvirt.DomainDisks(xml)
}

// Attachments maps the source path of every file backed disk to the
// instance that has it attached.
func (m *Manager) Attachments(ctx context.Context) (map[string]string, error) {
	domains, _, err := m.lv.ConnectListAllDomains(1, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to list domains: %w", err)
	}

	owners := make(map[string]string)
	for _, dom := range domains {
		disks, err := m.definedDisks(dom)
		if err != nil {
			zerolog.Ctx(ctx).Warn().Err(err).Str("instance", dom.Name).Msg("Cannot read disks of instance")
			continue
		}
		for _, d := range disks {
			if d.Path != "" {
				owners[d.Path] = dom.Name
			}
		}
	}

	return owners, nil
}

// stopped looks up an instance and fails with ErrRunning unless it is
// shut off.
func (m *Manager) stopped(name string) (libvirt.Domain, error) {
	dom, err := m.lookup(name)
	if err != nil {
		return libvirt.Domain{}, err
	}

	state, err := m.state(dom)
	if err != nil {
		return libvirt.Domain{}, err
	}
	if state.Active() {
		return libvirt.Domain{}, fmt.Errorf("%w: %s must be stopped first", ErrRunning, name)
	}

	return dom, nil
}

// AttachDisk attaches the qcow2 file at path to a stopped instance on the
// next free virtio target, which it returns.
func (m *Manager) AttachDisk(ctx context.Context, instance, path string) (string, error) {
	dom, err := m.stopped(instance)
	if err != nil {
		return "", err
	}

	disks, err := m.definedDisks(dom)
	if err != nil {
		return "", err
	}
	if d, ok := forgelibvirt.FindDisk(disks, path); ok {
		return "", fmt.Errorf("%w to %s as %s", ErrAttached, instance, d.Target)
	}

	target, err := forgelibvirt.NextDiskTarget(disks)
	if err != nil {
		return "", err
	}

	xml, err := forgelibvirt.BlockDiskXML(path, target)
	if err != nil {
		return "", err
	}

	zerolog.Ctx(ctx).Debug().Str("instance", instance).Str("path", path).Str("target", target).Msg("Attaching disk")
	if err := m.lv.DomainAttachDeviceFlags(dom, xml, deviceModifyConfig); err != nil {
		return "", fmt.Errorf("failed to attach disk: %w", err)
	}

	return target, nil
}

// DetachDisk detaches the file at path from a stopped instance.
func (m *Manager) DetachDisk(ctx context.Context, instance, path string) error {
	dom, err := m.stopped(instance)
	if err != nil {
		return err
	}

	disks, err := m.definedDisks(dom)
	if err != nil {
		return err
	}
	d, ok := forgelibvirt.FindDisk(disks, path)
	if !ok {
		return fmt.Errorf("%w to %s", ErrNotAttached, instance)
	}

	xml, err := forgelibvirt.BlockDiskXML(path, d.Target)
	if err != nil {
		return err
	}

	zerolog.Ctx(ctx).Debug().Str("instance", instance).Str("path", path).Str("target", d.Target).Msg("Detaching disk")
	if err := m.lv.DomainDetachDeviceFlags(dom, xml, deviceModifyConfig); err != nil {
		return fmt.Errorf("failed to detach disk: %w", err)
	}

	return nil
}
