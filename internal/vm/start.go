package vm

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// Start boots a defined instance. Starting an instance that is already
// active is not an error; started reports whether it was booted now.
func (m *Manager) Start(ctx context.Context, name string) (started bool, err error) {
	log := zerolog.Ctx(ctx)

	dom, err := m.lookup(name)
	if err != nil {
		return false, err
	}

	state, err := m.state(dom)
	if err != nil {
		return false, err
	}
	if state.Active() {
		log.Debug().Str("instance", name).Str("state", string(state)).Msg("Instance already active")
		return false, nil
	}

	log.Debug().Str("instance", name).Msg("Starting instance")
	if err := m.lv.DomainCreate(dom); err != nil {
		return false, fmt.Errorf("failed to start instance %s: %w", name, err)
	}

	return true, nil
}

// WaitForIP polls the DHCP leases of an instance until it has an IPv4
// address or timeout elapses. A timeout of zero means DefaultWaitTimeout.
// The returned error wraps context.DeadlineExceeded on timeout.
func (m *Manager) WaitForIP(ctx context.Context, name string, timeout time.Duration) (string, error) {
	dom, err := m.lookup(name)
	if err != nil {
		return "", err
	}

	if timeout <= 0 {
		timeout = DefaultWaitTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(m.pollInterval)
	defer ticker.Stop()

	for {
		if addrs := m.ipv4(dom); len(addrs) > 0 {
			zerolog.Ctx(ctx).Debug().Str("instance", name).Str("ipv4", addrs[0]).Msg("Instance has an address")
			return addrs[0], nil
		}

		select {
		case <-ctx.Done():
			return "", fmt.Errorf("timed out waiting for %s to get an IPv4 address: %w", name, ctx.Err())
		case <-ticker.C:
		}
	}
}
