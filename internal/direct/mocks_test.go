package direct

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/jbweber/forge/internal/config"
	"github.com/jbweber/forge/internal/storage"
	"github.com/jbweber/forge/internal/vm"
)

// mockVolumeStore is a mock implementation of the volumeStore interface for testing.
type mockVolumeStore struct {
	mu sync.Mutex

	// Configurable behavior
	createVolumeFunc func(ctx context.Context, pool string, spec storage.VolumeSpec) error
	cloneVolumeFunc  func(ctx context.Context, pool, source, target string) error
	importFileFunc   func(ctx context.Context, pool, volume, file string) (storage.VolumeFormat, error)
	deleteVolumeFunc func(ctx context.Context, pool, volume string) error
	listVolumesFunc  func(ctx context.Context, pool string) ([]storage.VolumeInfo, error)
	getPoolInfoFunc  func(ctx context.Context, pool string) (*storage.PoolInfo, error)

	// Call tracking
	createVolumeCalls []storage.VolumeSpec
	cloneVolumeCalls  []string // "source->target"
	importFileCalls   []string // "file->volume"
	deleteVolumeCalls []string
}

// newMockVolumeStore creates a block pool holding the given volumes, with
// 100 GiB free.
func newMockVolumeStore(vols ...storage.VolumeInfo) *mockVolumeStore {
	return &mockVolumeStore{
		listVolumesFunc: func(ctx context.Context, pool string) ([]storage.VolumeInfo, error) {
			return vols, nil
		},
		getPoolInfoFunc: func(ctx context.Context, pool string) (*storage.PoolInfo, error) {
			return &storage.PoolInfo{Name: pool, Available: 100 << 30}, nil
		},
	}
}

func blockVolume(name string, capacity uint64) storage.VolumeInfo {
	return storage.VolumeInfo{
		Name:     name + ".qcow2",
		Path:     "/var/lib/libvirt/images/forge/blocks/" + name + ".qcow2",
		Pool:     "forge-blocks",
		Capacity: capacity,
	}
}

func (m *mockVolumeStore) CreateVolume(ctx context.Context, pool string, spec storage.VolumeSpec) error {
	m.mu.Lock()
	m.createVolumeCalls = append(m.createVolumeCalls, spec)
	m.mu.Unlock()
	if m.createVolumeFunc != nil {
		return m.createVolumeFunc(ctx, pool, spec)
	}
	return nil
}

func (m *mockVolumeStore) CloneVolume(ctx context.Context, pool, source, target string) error {
	m.mu.Lock()
	m.cloneVolumeCalls = append(m.cloneVolumeCalls, source+"->"+target)
	m.mu.Unlock()
	if m.cloneVolumeFunc != nil {
		return m.cloneVolumeFunc(ctx, pool, source, target)
	}
	return nil
}

func (m *mockVolumeStore) ImportFile(ctx context.Context, pool, volume, file string, _ storage.ProgressFunc) (storage.VolumeFormat, error) {
	m.mu.Lock()
	m.importFileCalls = append(m.importFileCalls, file+"->"+volume)
	m.mu.Unlock()
	if m.importFileFunc != nil {
		return m.importFileFunc(ctx, pool, volume, file)
	}
	return storage.VolumeFormatQCOW2, nil
}

func (m *mockVolumeStore) DeleteVolume(ctx context.Context, pool, volume string) error {
	m.mu.Lock()
	m.deleteVolumeCalls = append(m.deleteVolumeCalls, volume)
	m.mu.Unlock()
	if m.deleteVolumeFunc != nil {
		return m.deleteVolumeFunc(ctx, pool, volume)
	}
	return nil
}

func (m *mockVolumeStore) ListVolumes(ctx context.Context, pool string) ([]storage.VolumeInfo, error) {
	return m.listVolumesFunc(ctx, pool)
}

func (m *mockVolumeStore) GetPoolInfo(ctx context.Context, pool string) (*storage.PoolInfo, error) {
	return m.getPoolInfoFunc(ctx, pool)
}

// mockInstanceManager is a mock implementation of the instanceManager interface for testing.
type mockInstanceManager struct {
	mu sync.Mutex

	// Instances by name. Get, List, Names and Exists answer from it unless
	// overridden.
	instances map[string]*vm.Instance
	attached  map[string]string

	// Configurable behavior
	getFunc         func(ctx context.Context, name string) (*vm.Instance, error)
	listFunc        func(ctx context.Context) ([]vm.Instance, error)
	addressFunc     func(ctx context.Context, name string) (string, error)
	startFunc       func(ctx context.Context, name string) (bool, error)
	waitForIPFunc   func(ctx context.Context, name string, timeout time.Duration) (string, error)
	launchFunc      func(ctx context.Context, spec vm.LaunchSpec, progress vm.Progress) error
	attachDiskFunc  func(ctx context.Context, instance, path string) (string, error)
	detachDiskFunc  func(ctx context.Context, instance, path string) error
	attachmentsFunc func(ctx context.Context) (map[string]string, error)

	// Call tracking
	startCalls      []string
	waitTimeouts    []time.Duration
	launchCalls     []vm.LaunchSpec
	attachDiskCalls []string // "instance:path"
	detachDiskCalls []string
}

func newMockInstanceManager(instances ...vm.Instance) *mockInstanceManager {
	m := &mockInstanceManager{instances: map[string]*vm.Instance{}, attached: map[string]string{}}
	for i := range instances {
		m.instances[instances[i].Name] = &instances[i]
	}
	return m
}

func (m *mockInstanceManager) Exists(name string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.instances[name]
	return ok
}

func (m *mockInstanceManager) Get(ctx context.Context, name string) (*vm.Instance, error) {
	if m.getFunc != nil {
		return m.getFunc(ctx, name)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	inst, ok := m.instances[name]
	if !ok {
		return nil, fmt.Errorf("%s: %w", name, vm.ErrNotFound)
	}
	return inst, nil
}

func (m *mockInstanceManager) List(ctx context.Context) ([]vm.Instance, error) {
	if m.listFunc != nil {
		return m.listFunc(ctx)
	}
	names, _ := m.Names(ctx)
	var out []vm.Instance
	for _, n := range names {
		out = append(out, *m.instances[n])
	}
	return out, nil
}

func (m *mockInstanceManager) Names(ctx context.Context) ([]string, error) {
	if m.listFunc != nil {
		instances, err := m.listFunc(ctx)
		if err != nil {
			return nil, err
		}
		var names []string
		for _, inst := range instances {
			names = append(names, inst.Name)
		}
		return names, nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var names []string
	for n := range m.instances {
		names = append(names, n)
	}
	slices.Sort(names)
	return names, nil
}

func (m *mockInstanceManager) Address(ctx context.Context, name string) (string, error) {
	if m.addressFunc != nil {
		return m.addressFunc(ctx, name)
	}
	return "192.168.122.10", nil
}

func (m *mockInstanceManager) Start(ctx context.Context, name string) (bool, error) {
	m.mu.Lock()
	m.startCalls = append(m.startCalls, name)
	m.mu.Unlock()
	if m.startFunc != nil {
		return m.startFunc(ctx, name)
	}
	return true, nil
}

func (m *mockInstanceManager) WaitForIP(ctx context.Context, name string, timeout time.Duration) (string, error) {
	m.mu.Lock()
	m.waitTimeouts = append(m.waitTimeouts, timeout)
	m.mu.Unlock()
	if m.waitForIPFunc != nil {
		return m.waitForIPFunc(ctx, name, timeout)
	}
	return "192.168.122.10", nil
}

func (m *mockInstanceManager) Launch(ctx context.Context, spec vm.LaunchSpec, progress vm.Progress) error {
	m.mu.Lock()
	m.launchCalls = append(m.launchCalls, spec)
	m.mu.Unlock()
	if m.launchFunc != nil {
		return m.launchFunc(ctx, spec, progress)
	}
	return nil
}

func (m *mockInstanceManager) Attachments(ctx context.Context) (map[string]string, error) {
	if m.attachmentsFunc != nil {
		return m.attachmentsFunc(ctx)
	}
	return m.attached, nil
}

func (m *mockInstanceManager) AttachDisk(ctx context.Context, instance, path string) (string, error) {
	m.mu.Lock()
	m.attachDiskCalls = append(m.attachDiskCalls, instance+":"+path)
	m.mu.Unlock()
	if m.attachDiskFunc != nil {
		return m.attachDiskFunc(ctx, instance, path)
	}
	return "vdb", nil
}

func (m *mockInstanceManager) DetachDisk(ctx context.Context, instance, path string) error {
	m.mu.Lock()
	m.detachDiskCalls = append(m.detachDiskCalls, instance+":"+path)
	m.mu.Unlock()
	if m.detachDiskFunc != nil {
		return m.detachDiskFunc(ctx, instance, path)
	}
	return nil
}

func testLibvirtConfig() config.LibvirtConfig {
	return config.Default().Libvirt
}

func newTestStub(vols *mockVolumeStore, vms *mockInstanceManager) *Stub {
	return newStub(vols, vms, testLibvirtConfig(), nil)
}
