package vm

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/digitalocean/go-libvirt"

	"github.com/jbweber/forge/internal/storage"
)

const stoppedDomainXML = `<domain type="kvm">
  <name>primary</name>
  <devices>
    <disk type="volume" device="disk">
      <source pool="forge-instances" volume="primary_boot.qcow2"/>
      <target dev="vda" bus="virtio"/>
    </disk>
  </devices>
</domain>`

// mockLibvirtClient is a mock implementation of the libvirtClient interface for testing.
type mockLibvirtClient struct {
	mu sync.Mutex

	// Configurable behavior
	connectListAllDomainsFunc    func(needResults int32, flags libvirt.ConnectListAllDomainsFlags) ([]libvirt.Domain, uint32, error)
	domainLookupByNameFunc       func(name string) (libvirt.Domain, error)
	domainDefineXMLFunc          func(xml string) (libvirt.Domain, error)
	domainSetAutostartFunc       func(dom libvirt.Domain, autostart int32) error
	domainCreateFunc             func(dom libvirt.Domain) error
	domainGetStateFunc           func(dom libvirt.Domain, flags uint32) (int32, int32, error)
	domainGetInfoFunc            func(dom libvirt.Domain) (uint8, uint64, uint64, uint16, uint64, error)
	domainGetXMLDescFunc         func(dom libvirt.Domain, flags libvirt.DomainXMLFlags) (string, error)
	domainGetMetadataFunc        func(dom libvirt.Domain) (string, error)
	domainInterfaceAddressesFunc func(dom libvirt.Domain) ([]libvirt.DomainInterface, error)
	domainAttachDeviceFlagsFunc  func(dom libvirt.Domain, xml string, flags uint32) error
	domainDetachDeviceFlagsFunc  func(dom libvirt.Domain, xml string, flags uint32) error
	domainDestroyFunc            func(dom libvirt.Domain) error
	domainUndefineFlagsFunc      func(dom libvirt.Domain, flags libvirt.DomainUndefineFlagsValues) error

	// Call tracking
	domainLookupByNameCalls       []string
	domainDefineXMLCalls          []string
	domainSetAutostartCalls       []libvirt.Domain
	domainCreateCalls             []libvirt.Domain
	domainInterfaceAddressesCalls int
	domainAttachDeviceFlagsCalls  []string
	domainDetachDeviceFlagsCalls  []string
	domainDestroyCalls            []libvirt.Domain
	domainUndefineFlagsCalls      []libvirt.Domain
}

// newMockLibvirtClient creates a new mock libvirt client with default behavior.
func newMockLibvirtClient() *mockLibvirtClient {
	m := &mockLibvirtClient{}

	m.connectListAllDomainsFunc = func(needResults int32, flags libvirt.ConnectListAllDomainsFlags) ([]libvirt.Domain, uint32, error) {
		return nil, 0, nil
	}

	// Default: domain does not exist until it is defined
	m.domainLookupByNameFunc = func(name string) (libvirt.Domain, error) {
		if len(m.domainDefineXMLCalls) > 0 {
			return libvirt.Domain{Name: name}, nil
		}
		return libvirt.Domain{}, fmt.Errorf("domain not found: %s", name)
	}

	m.domainDefineXMLFunc = func(xml string) (libvirt.Domain, error) {
		return libvirt.Domain{Name: "primary"}, nil
	}
	m.domainSetAutostartFunc = func(dom libvirt.Domain, autostart int32) error {
		return nil
	}
	m.domainCreateFunc = func(dom libvirt.Domain) error {
		return nil
	}

	// Default: domain is shut off
	m.domainGetStateFunc = func(dom libvirt.Domain, flags uint32) (int32, int32, error) {
		return 5, 0, nil // VIR_DOMAIN_SHUTOFF
	}

	m.domainGetInfoFunc = func(dom libvirt.Domain) (uint8, uint64, uint64, uint16, uint64, error) {
		return 5, 2 << 20, 2 << 20, 2, 0, nil
	}
	m.domainGetXMLDescFunc = func(dom libvirt.Domain, flags libvirt.DomainXMLFlags) (string, error) {
		return stoppedDomainXML, nil
	}
	m.domainGetMetadataFunc = func(dom libvirt.Domain) (string, error) {
		return "", fmt.Errorf("metadata not found")
	}
	m.domainInterfaceAddressesFunc = func(dom libvirt.Domain) ([]libvirt.DomainInterface, error) {
		return nil, nil
	}
	m.domainAttachDeviceFlagsFunc = func(dom libvirt.Domain, xml string, flags uint32) error {
		return nil
	}
	m.domainDetachDeviceFlagsFunc = func(dom libvirt.Domain, xml string, flags uint32) error {
		return nil
	}
	m.domainDestroyFunc = func(dom libvirt.Domain) error {
		return nil
	}
	m.domainUndefineFlagsFunc = func(dom libvirt.Domain, flags libvirt.DomainUndefineFlagsValues) error {
		return nil
	}

	return m
}

// withDomains makes names exist with the given virDomainState.
func (m *mockLibvirtClient) withDomains(states map[string]int32) *mockLibvirtClient {
	m.connectListAllDomainsFunc = func(needResults int32, flags libvirt.ConnectListAllDomainsFlags) ([]libvirt.Domain, uint32, error) {
		var domains []libvirt.Domain
		for name := range states {
			domains = append(domains, libvirt.Domain{Name: name})
		}
		return domains, uint32(len(domains)), nil
	}
	m.domainLookupByNameFunc = func(name string) (libvirt.Domain, error) {
		if _, ok := states[name]; ok {
			return libvirt.Domain{Name: name}, nil
		}
		return libvirt.Domain{}, fmt.Errorf("domain not found: %s", name)
	}
	m.domainGetStateFunc = func(dom libvirt.Domain, flags uint32) (int32, int32, error) {
		state, ok := states[dom.Name]
		if !ok {
			return 0, 0, fmt.Errorf("domain not found: %s", dom.Name)
		}
		return state, 1, nil
	}
	return m
}

func (m *mockLibvirtClient) ConnectListAllDomains(needResults int32, flags libvirt.ConnectListAllDomainsFlags) ([]libvirt.Domain, uint32, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.connectListAllDomainsFunc(needResults, flags)
}

func (m *mockLibvirtClient) DomainLookupByName(name string) (libvirt.Domain, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.domainLookupByNameCalls = append(m.domainLookupByNameCalls, name)
	return m.domainLookupByNameFunc(name)
}

func (m *mockLibvirtClient) DomainDefineXML(xml string) (libvirt.Domain, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.domainDefineXMLCalls = append(m.domainDefineXMLCalls, xml)
	return m.domainDefineXMLFunc(xml)
}

func (m *mockLibvirtClient) DomainSetAutostart(dom libvirt.Domain, autostart int32) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.domainSetAutostartCalls = append(m.domainSetAutostartCalls, dom)
	return m.domainSetAutostartFunc(dom, autostart)
}

func (m *mockLibvirtClient) DomainCreate(dom libvirt.Domain) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.domainCreateCalls = append(m.domainCreateCalls, dom)
	return m.domainCreateFunc(dom)
}

func (m *mockLibvirtClient) DomainGetState(dom libvirt.Domain, flags uint32) (int32, int32, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.domainGetStateFunc(dom, flags)
}

func (m *mockLibvirtClient) DomainGetInfo(dom libvirt.Domain) (uint8, uint64, uint64, uint16, uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.domainGetInfoFunc(dom)
}

func (m *mockLibvirtClient) DomainGetXMLDesc(dom libvirt.Domain, flags libvirt.DomainXMLFlags) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.domainGetXMLDescFunc(dom, flags)
}

func (m *mockLibvirtClient) DomainGetMetadata(dom libvirt.Domain, typ int32, uri libvirt.OptString, flags libvirt.DomainModificationImpact) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.domainGetMetadataFunc(dom)
}

func (m *mockLibvirtClient) DomainInterfaceAddresses(dom libvirt.Domain, source uint32, flags uint32) ([]libvirt.DomainInterface, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.domainInterfaceAddressesCalls++
	return m.domainInterfaceAddressesFunc(dom)
}

func (m *mockLibvirtClient) DomainAttachDeviceFlags(dom libvirt.Domain, xml string, flags uint32) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.domainAttachDeviceFlagsCalls = append(m.domainAttachDeviceFlagsCalls, xml)
	return m.domainAttachDeviceFlagsFunc(dom, xml, flags)
}

func (m *mockLibvirtClient) DomainDetachDeviceFlags(dom libvirt.Domain, xml string, flags uint32) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.domainDetachDeviceFlagsCalls = append(m.domainDetachDeviceFlagsCalls, xml)
	return m.domainDetachDeviceFlagsFunc(dom, xml, flags)
}

func (m *mockLibvirtClient) DomainDestroy(dom libvirt.Domain) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.domainDestroyCalls = append(m.domainDestroyCalls, dom)
	return m.domainDestroyFunc(dom)
}

func (m *mockLibvirtClient) DomainUndefineFlags(dom libvirt.Domain, flags libvirt.DomainUndefineFlagsValues) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.domainUndefineFlagsCalls = append(m.domainUndefineFlagsCalls, dom)
	return m.domainUndefineFlagsFunc(dom, flags)
}

// mockStorageManager is a mock implementation of the storageManager interface for testing.
type mockStorageManager struct {
	mu sync.Mutex

	// Configurable behavior
	volumeExistsFunc    func(ctx context.Context, poolName, volumeName string) (bool, error)
	createVolumeFunc    func(ctx context.Context, poolName string, spec storage.VolumeSpec) error
	deleteVolumeFunc    func(ctx context.Context, poolName, volumeName string) error
	getVolumePathFunc   func(ctx context.Context, poolName, volumeName string) (string, error)
	writeVolumeDataFunc func(ctx context.Context, poolName, volumeName string, data []byte) error
	importFileFunc      func(ctx context.Context, poolName, volumeName, filePath string, progress storage.ProgressFunc) (storage.VolumeFormat, error)

	// Call tracking
	volumeExistsCalls    []string // format: "pool/volume"
	createVolumeCalls    []storage.VolumeSpec
	deleteVolumeCalls    []string // format: "pool/volume"
	writeVolumeDataCalls []string // format: "pool/volume"
	importFileCalls      []string // format: "pool/volume"
}

// newMockStorageManager creates a new mock storage manager with default behavior.
func newMockStorageManager() *mockStorageManager {
	return &mockStorageManager{
		// Default: every volume exists (image lookups succeed)
		volumeExistsFunc: func(ctx context.Context, poolName, volumeName string) (bool, error) {
			return true, nil
		},
		createVolumeFunc: func(ctx context.Context, poolName string, spec storage.VolumeSpec) error {
			return nil
		},
		deleteVolumeFunc: func(ctx context.Context, poolName, volumeName string) error {
			return nil
		},
		getVolumePathFunc: func(ctx context.Context, poolName, volumeName string) (string, error) {
			return "/var/lib/libvirt/images/forge/" + poolName + "/" + volumeName, nil
		},
		writeVolumeDataFunc: func(ctx context.Context, poolName, volumeName string, data []byte) error {
			return nil
		},
		importFileFunc: func(ctx context.Context, poolName, volumeName, filePath string, progress storage.ProgressFunc) (storage.VolumeFormat, error) {
			if progress != nil {
				progress(50)
				progress(100)
			}
			return storage.VolumeFormatQCOW2, nil
		},
	}
}

func (m *mockStorageManager) VolumeExists(ctx context.Context, poolName, volumeName string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.volumeExistsCalls = append(m.volumeExistsCalls, poolName+"/"+volumeName)
	return m.volumeExistsFunc(ctx, poolName, volumeName)
}

func (m *mockStorageManager) CreateVolume(ctx context.Context, poolName string, spec storage.VolumeSpec) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.createVolumeCalls = append(m.createVolumeCalls, spec)
	return m.createVolumeFunc(ctx, poolName, spec)
}

func (m *mockStorageManager) DeleteVolume(ctx context.Context, poolName, volumeName string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deleteVolumeCalls = append(m.deleteVolumeCalls, poolName+"/"+volumeName)
	return m.deleteVolumeFunc(ctx, poolName, volumeName)
}

func (m *mockStorageManager) GetVolumePath(ctx context.Context, poolName, volumeName string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.getVolumePathFunc(ctx, poolName, volumeName)
}

func (m *mockStorageManager) WriteVolumeData(ctx context.Context, poolName, volumeName string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.writeVolumeDataCalls = append(m.writeVolumeDataCalls, poolName+"/"+volumeName)
	return m.writeVolumeDataFunc(ctx, poolName, volumeName, data)
}

func (m *mockStorageManager) ImportFile(ctx context.Context, poolName, volumeName, filePath string, progress storage.ProgressFunc) (storage.VolumeFormat, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.importFileCalls = append(m.importFileCalls, poolName+"/"+volumeName)
	return m.importFileFunc(ctx, poolName, volumeName, filePath, progress)
}

func testOptions() Options {
	return Options{
		ImagePool:    "forge-images",
		InstancePool: "forge-instances",
		Network:      "default",
		SSHUser:      "ubuntu",
	}
}

func newTestManager(lv *mockLibvirtClient, sm *mockStorageManager) *Manager {
	m := NewManager(lv, sm, testOptions())
	m.pollInterval = time.Millisecond
	return m
}
