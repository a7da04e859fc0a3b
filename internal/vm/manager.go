package vm

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/digitalocean/go-libvirt"
	"github.com/rs/zerolog"

	"github.com/jbweber/forge/internal/metadata"
)

var (
	ErrNotFound   = errors.New("instance does not exist")
	ErrExists     = errors.New("instance already exists")
	ErrRunning    = errors.New("instance is running")
	ErrNotRunning = errors.New("instance is not running")
	ErrNoAddress  = errors.New("instance has no IPv4 address")
)

const (
	// DefaultWaitTimeout bounds WaitForIP when the caller gives no timeout.
	DefaultWaitTimeout = 5 * time.Minute

	defaultPollInterval = 2 * time.Second

	// VIR_IP_ADDR_TYPE_IPV4
	ipAddrTypeIPv4 = 0
)

// Options configures where a Manager puts instances.
type Options struct {
	ImagePool    string
	InstancePool string
	Network      string

	// Default user and keys written to the cloud-init seed.
	SSHUser string
	SSHKeys []string
}

// Manager manages instances on one libvirt connection.
type Manager struct {
	lv   libvirtClient
	sm   storageManager
	opts Options

	// Overridden in tests.
	pollInterval time.Duration
	now          func() time.Time
}

// NewManager creates a Manager. lv is usually *libvirt.Libvirt and sm a
// *storage.Manager on the same connection.
func NewManager(lv libvirtClient, sm storageManager, opts Options) *Manager {
	return &Manager{
		lv:           lv,
		sm:           sm,
		opts:         opts,
		pollInterval: defaultPollInterval,
		now:          time.Now,
	}
}

// State is the libvirt state of a domain.
type State string

const (
	StateNoState     State = "no state"
	StateRunning     State = "running"
	StateBlocked     State = "blocked"
	StatePaused      State = "paused"
	StateShutdown    State = "shutdown"
	StateShutoff     State = "shutoff"
	StateCrashed     State = "crashed"
	StatePMSuspended State = "pmsuspended"
	StateUnknown     State = "unknown"
)

// Active reports whether the domain has a running QEMU process. Disks can
// only be changed while it has not.
func (s State) Active() bool {
	return s != StateShutoff && s != StateCrashed
}

// stateFromLibvirt converts a virDomainState value.
func stateFromLibvirt(state int32) State {
	switch state {
	case 0:
		return StateNoState
	case 1:
		return StateRunning
	case 2:
		return StateBlocked
	case 3:
		return StatePaused
	case 4:
		return StateShutdown
	case 5:
		return StateShutoff
	case 6:
		return StateCrashed
	case 7:
		return StatePMSuspended
	default:
		return StateUnknown
	}
}

// Instance describes one defined domain.
type Instance struct {
	Name        string
	State       State
	CPUs        uint16
	MemoryBytes uint64

	// From the launch record; empty for domains forge did not launch.
	Image string

	// DHCP leases, only known while the instance runs.
	IPv4 []string
}

// lookup resolves a domain by name. Like DomainLookupByName, any lookup
// failure is taken to mean the domain is not defined.
func (m *Manager) lookup(name string) (libvirt.Domain, error) {
	dom, err := m.lv.DomainLookupByName(name)
	if err != nil {
		return libvirt.Domain{}, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	return dom, nil
}

func (m *Manager) state(dom libvirt.Domain) (State, error) {
	state, _, err := m.lv.DomainGetState(dom, 0)
	if err != nil {
		return StateUnknown, fmt.Errorf("failed to get state of %s: %w", dom.Name, err)
	}
	return stateFromLibvirt(state), nil
}

// Exists reports whether an instance is defined.
func (m *Manager) Exists(name string) bool {
	_, err := m.lookup(name)
	return err == nil
}

// Get returns details about one instance.
func (m *Manager) Get(ctx context.Context, name string) (*Instance, error) {
	dom, err := m.lookup(name)
	if err != nil {
		return nil, err
	}
	return m.describe(ctx, dom)
}

// List returns every defined domain. Domains that vanish while being
// described are skipped.
func (m *Manager) List(ctx context.Context) ([]Instance, error) {
	domains, _, err := m.lv.ConnectListAllDomains(1, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to list domains: %w", err)
	}

	instances := make([]Instance, 0, len(domains))
	for _, dom := range domains {
		inst, err := m.describe(ctx, dom)
		if err != nil {
			zerolog.Ctx(ctx).Warn().Err(err).Str("instance", dom.Name).Msg("Skipping instance")
			continue
		}
		instances = append(instances, *inst)
	}

	return instances, nil
}

// Names returns the names of all defined domains.
func (m *Manager) Names(_ context.Context) ([]string, error) {
	domains, _, err := m.lv.ConnectListAllDomains(1, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to list domains: %w", err)
	}

	names := make([]string, 0, len(domains))
	for _, dom := range domains {
		names = append(names, dom.Name)
	}
	return names, nil
}

func (m *Manager) describe(ctx context.Context, dom libvirt.Domain) (*Instance, error) {
	state, err := m.state(dom)
	if err != nil {
		return nil, err
	}

	_, _, memory, cpus, _, err := m.lv.DomainGetInfo(dom)
	if err != nil {
		return nil, fmt.Errorf("failed to get domain info: %w", err)
	}

	inst := &Instance{
		Name:        dom.Name,
		State:       state,
		CPUs:        cpus,
		MemoryBytes: memory * 1024, // KiB
	}

	if rec, err := metadata.Load(m.lv, dom); err == nil {
		inst.Image = rec.Image
	} else {
		zerolog.Ctx(ctx).Trace().Err(err).Str("instance", dom.Name).Msg("No launch record")
	}

	if state.Active() {
		inst.IPv4 = m.ipv4(dom)
	}

	return inst, nil
}

// ipv4 returns the leased IPv4 addresses of a domain. A domain that is not
// running, or whose lease is not known yet, has none.
func (m *Manager) ipv4(dom libvirt.Domain) []string {
	ifaces, err := m.lv.DomainInterfaceAddresses(dom, uint32(libvirt.DomainInterfaceAddressesSrcLease), 0)
	if err != nil {
		return nil
	}

	var addrs []string
	for _, iface := range ifaces {
		for _, addr := range iface.Addrs {
			if addr.Type == ipAddrTypeIPv4 && addr.Addr != "" {
				addrs = append(addrs, addr.Addr)
			}
		}
	}
	return addrs
}

// Address returns the first IPv4 address of a running instance.
func (m *Manager) Address(_ context.Context, name string) (string, error) {
	dom, err := m.lookup(name)
	if err != nil {
		return "", err
	}

	state, err := m.state(dom)
	if err != nil {
		return "", err
	}
	if state != StateRunning && state != StateBlocked {
		return "", fmt.Errorf("%w: %s is %s", ErrNotRunning, name, state)
	}

	addrs := m.ipv4(dom)
	if len(addrs) == 0 {
		return "", fmt.Errorf("%w yet: %s", ErrNoAddress, name)
	}
	return addrs[0], nil
}
