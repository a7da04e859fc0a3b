package storage

import (
	"fmt"
	"io"

	"github.com/digitalocean/go-libvirt"
	libvirtxml "libvirt.org/go/libvirtxml"
)

// mockLibvirtClient is an in-memory LibvirtClient for testing.
type mockLibvirtClient struct {
	pools   map[string]*mockPool
	volumes map[string]map[string]*mockVolume // pool name -> volume name -> volume

	// Optional failure injection
	uploadErr error
	cloneErr  error

	// Call tracking
	volumeXML  []string
	undefined  []string
	refreshed  []string
	clonedFrom map[string]string // target -> source
}

type mockPool struct {
	name      string
	path      string
	state     libvirt.StoragePoolState
	capacity  uint64
	allocated uint64
	available uint64
	xmlDesc   string
}

type mockVolume struct {
	name      string
	path      string
	capacity  uint64
	allocated uint64
	data      []byte
}

func newMockLibvirtClient() *mockLibvirtClient {
	return &mockLibvirtClient{
		pools:      make(map[string]*mockPool),
		volumes:    make(map[string]map[string]*mockVolume),
		clonedFrom: make(map[string]string),
	}
}

// addPool registers a running pool.
func (m *mockLibvirtClient) addPool(name, path string) {
	m.pools[name] = &mockPool{
		name:      name,
		path:      path,
		state:     libvirt.StoragePoolRunning,
		capacity:  1 << 40,
		available: 1 << 40,
		xmlDesc:   fmt.Sprintf(`<pool type="dir"><name>%s</name><target><path>%s</path></target></pool>`, name, path),
	}
	m.volumes[name] = make(map[string]*mockVolume)
}

// addVolume registers a volume in an existing pool.
func (m *mockLibvirtClient) addVolume(pool, name string, capacity uint64) {
	m.volumes[pool][name] = &mockVolume{
		name:     name,
		path:     m.pools[pool].path + "/" + name,
		capacity: capacity,
	}
}

func (m *mockLibvirtClient) StoragePoolLookupByName(name string) (libvirt.StoragePool, error) {
	if _, ok := m.pools[name]; !ok {
		return libvirt.StoragePool{}, fmt.Errorf("storage pool not found: %s", name)
	}
	return libvirt.StoragePool{Name: name}, nil
}

func (m *mockLibvirtClient) StoragePoolDefineXML(xml string, flags uint32) (libvirt.StoragePool, error) {
	var def libvirtxml.StoragePool
	if err := def.Unmarshal(xml); err != nil {
		return libvirt.StoragePool{}, fmt.Errorf("invalid pool XML: %w", err)
	}
	if _, ok := m.pools[def.Name]; ok {
		return libvirt.StoragePool{}, fmt.Errorf("storage pool already exists: %s", def.Name)
	}

	m.pools[def.Name] = &mockPool{
		name:      def.Name,
		path:      def.Target.Path,
		state:     libvirt.StoragePoolInactive,
		capacity:  1 << 40,
		available: 1 << 40,
		xmlDesc:   xml,
	}
	m.volumes[def.Name] = make(map[string]*mockVolume)

	return libvirt.StoragePool{Name: def.Name}, nil
}

func (m *mockLibvirtClient) StoragePoolCreate(pool libvirt.StoragePool, flags libvirt.StoragePoolCreateFlags) error {
	p, ok := m.pools[pool.Name]
	if !ok {
		return fmt.Errorf("storage pool not found: %s", pool.Name)
	}
	p.state = libvirt.StoragePoolRunning
	return nil
}

func (m *mockLibvirtClient) StoragePoolBuild(pool libvirt.StoragePool, flags libvirt.StoragePoolBuildFlags) error {
	if _, ok := m.pools[pool.Name]; !ok {
		return fmt.Errorf("storage pool not found: %s", pool.Name)
	}
	return nil
}

func (m *mockLibvirtClient) StoragePoolSetAutostart(pool libvirt.StoragePool, autostart int32) error {
	if _, ok := m.pools[pool.Name]; !ok {
		return fmt.Errorf("storage pool not found: %s", pool.Name)
	}
	return nil
}

func (m *mockLibvirtClient) StoragePoolUndefine(pool libvirt.StoragePool) error {
	if _, ok := m.pools[pool.Name]; !ok {
		return fmt.Errorf("storage pool not found: %s", pool.Name)
	}
	delete(m.pools, pool.Name)
	delete(m.volumes, pool.Name)
	m.undefined = append(m.undefined, pool.Name)
	return nil
}

func (m *mockLibvirtClient) StoragePoolGetInfo(pool libvirt.StoragePool) (uint8, uint64, uint64, uint64, error) {
	p, ok := m.pools[pool.Name]
	if !ok {
		return 0, 0, 0, 0, fmt.Errorf("storage pool not found: %s", pool.Name)
	}
	return uint8(p.state), p.capacity, p.allocated, p.available, nil
}

func (m *mockLibvirtClient) StoragePoolGetXMLDesc(pool libvirt.StoragePool, flags libvirt.StorageXMLFlags) (string, error) {
	p, ok := m.pools[pool.Name]
	if !ok {
		return "", fmt.Errorf("storage pool not found: %s", pool.Name)
	}
	return p.xmlDesc, nil
}

func (m *mockLibvirtClient) StoragePoolListAllVolumes(pool libvirt.StoragePool, needResults int32, flags uint32) ([]libvirt.StorageVol, uint32, error) {
	vols, ok := m.volumes[pool.Name]
	if !ok {
		return nil, 0, fmt.Errorf("storage pool not found: %s", pool.Name)
	}

	var result []libvirt.StorageVol
	for name := range vols {
		result = append(result, libvirt.StorageVol{Pool: pool.Name, Name: name})
	}
	return result, uint32(len(result)), nil
}

func (m *mockLibvirtClient) StoragePoolRefresh(pool libvirt.StoragePool, flags uint32) error {
	if _, ok := m.pools[pool.Name]; !ok {
		return fmt.Errorf("storage pool not found: %s", pool.Name)
	}
	m.refreshed = append(m.refreshed, pool.Name)
	return nil
}

func (m *mockLibvirtClient) StorageVolLookupByName(pool libvirt.StoragePool, name string) (libvirt.StorageVol, error) {
	vols, ok := m.volumes[pool.Name]
	if !ok {
		return libvirt.StorageVol{}, fmt.Errorf("storage pool not found: %s", pool.Name)
	}
	if _, ok := vols[name]; !ok {
		return libvirt.StorageVol{}, fmt.Errorf("storage volume not found: %s", name)
	}
	return libvirt.StorageVol{Pool: pool.Name, Name: name}, nil
}

func (m *mockLibvirtClient) StorageVolCreateXML(pool libvirt.StoragePool, xml string, flags libvirt.StorageVolCreateFlags) (libvirt.StorageVol, error) {
	return m.createVolume(pool, xml)
}

func (m *mockLibvirtClient) StorageVolCreateXMLFrom(pool libvirt.StoragePool, xml string, clone libvirt.StorageVol, flags libvirt.StorageVolCreateFlags) (libvirt.StorageVol, error) {
	if m.cloneErr != nil {
		return libvirt.StorageVol{}, m.cloneErr
	}
	src, ok := m.volumes[clone.Pool][clone.Name]
	if !ok {
		return libvirt.StorageVol{}, fmt.Errorf("storage volume not found: %s", clone.Name)
	}

	vol, err := m.createVolume(pool, xml)
	if err != nil {
		return vol, err
	}
	m.volumes[pool.Name][vol.Name].data = append([]byte(nil), src.data...)
	m.clonedFrom[vol.Name] = clone.Name
	return vol, nil
}

func (m *mockLibvirtClient) createVolume(pool libvirt.StoragePool, xml string) (libvirt.StorageVol, error) {
	vols, ok := m.volumes[pool.Name]
	if !ok {
		return libvirt.StorageVol{}, fmt.Errorf("storage pool not found: %s", pool.Name)
	}

	var def libvirtxml.StorageVolume
	if err := def.Unmarshal(xml); err != nil {
		return libvirt.StorageVol{}, fmt.Errorf("invalid volume XML: %w", err)
	}
	if _, ok := vols[def.Name]; ok {
		return libvirt.StorageVol{}, fmt.Errorf("storage volume already exists: %s", def.Name)
	}

	var capacity uint64
	if def.Capacity != nil {
		capacity = def.Capacity.Value
	}
	vols[def.Name] = &mockVolume{
		name:     def.Name,
		path:     m.pools[pool.Name].path + "/" + def.Name,
		capacity: capacity,
	}
	m.volumeXML = append(m.volumeXML, xml)

	return libvirt.StorageVol{Pool: pool.Name, Name: def.Name}, nil
}

func (m *mockLibvirtClient) StorageVolDelete(vol libvirt.StorageVol, flags libvirt.StorageVolDeleteFlags) error {
	vols, ok := m.volumes[vol.Pool]
	if !ok {
		return fmt.Errorf("storage pool not found: %s", vol.Pool)
	}
	if _, ok := vols[vol.Name]; !ok {
		return fmt.Errorf("storage volume not found: %s", vol.Name)
	}
	delete(vols, vol.Name)
	return nil
}

func (m *mockLibvirtClient) StorageVolGetPath(vol libvirt.StorageVol) (string, error) {
	v, ok := m.volumes[vol.Pool][vol.Name]
	if !ok {
		return "", fmt.Errorf("storage volume not found: %s", vol.Name)
	}
	return v.path, nil
}

func (m *mockLibvirtClient) StorageVolGetInfo(vol libvirt.StorageVol) (int8, uint64, uint64, error) {
	v, ok := m.volumes[vol.Pool][vol.Name]
	if !ok {
		return 0, 0, 0, fmt.Errorf("storage volume not found: %s", vol.Name)
	}
	return 0, v.capacity, v.allocated, nil
}

func (m *mockLibvirtClient) StorageVolUpload(vol libvirt.StorageVol, reader io.Reader, offset uint64, length uint64, flags libvirt.StorageVolUploadFlags) error {
	if m.uploadErr != nil {
		return m.uploadErr
	}
	v, ok := m.volumes[vol.Pool][vol.Name]
	if !ok {
		return fmt.Errorf("storage volume not found: %s", vol.Name)
	}

	data, err := io.ReadAll(reader)
	if err != nil {
		return fmt.Errorf("failed to read data: %w", err)
	}
	v.data = data
	v.allocated = uint64(len(data))
	return nil
}

// newTestManager returns a manager on mock with fixed ownership.
func newTestManager(mock *mockLibvirtClient) *Manager {
	m := NewManager(mock)
	m.owner = func() (string, string, error) { return "64055", "108", nil }
	return m
}
