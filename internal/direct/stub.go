// Package direct serves the forge daemon operations in-process, straight
// from libvirtd. It backs the libvirt transport of the forge CLI and is a
// drop-in rpc.Stub: callers see the same replies and gRPC statuses they
// would get from forged.
package direct

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/rs/zerolog"

	"github.com/jbweber/forge/internal/config"
	forgelibvirt "github.com/jbweber/forge/internal/libvirt"
	"github.com/jbweber/forge/internal/rpc"
	"github.com/jbweber/forge/internal/storage"
	"github.com/jbweber/forge/internal/vm"
)

// Launch defaults for fields the request leaves empty.
const (
	DefaultCPUs   = 1
	DefaultMemory = "1G"
	DefaultDisk   = "5G"

	sshPort = 22
)

var _ rpc.Stub = (*Stub)(nil)

// Stub implements rpc.Stub on a libvirt connection.
type Stub struct {
	vols    volumeStore
	vms     instanceManager
	libvirt config.LibvirtConfig
	closer  io.Closer
}

// New connects to libvirtd, makes sure the forge storage pools exist and
// returns a Stub on that connection. The caller must Close it.
func New(ctx context.Context, cfg *config.Config) (*Stub, error) {
	log := zerolog.Ctx(ctx)
	lc := cfg.Libvirt

	log.Debug().Str("socket", lc.Socket).Msg("connecting to libvirt")
	client, err := forgelibvirt.Connect(ctx, lc.Socket, cfg.Daemon.DialTimeout)
	if err != nil {
		return nil, err
	}

	l := client.Libvirt()
	sm := storage.NewManager(l)
	err = sm.EnsurePools(ctx,
		storage.Pool{Name: lc.BlockPool, Path: lc.BlockPoolPath},
		storage.Pool{Name: lc.ImagePool, Path: lc.ImagePoolPath},
		storage.Pool{Name: lc.InstancePool, Path: lc.InstancePoolPath},
	)
	if err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to prepare storage pools: %w", err)
	}

	vms := vm.NewManager(l, sm, vm.Options{
		ImagePool:    lc.ImagePool,
		InstancePool: lc.InstancePool,
		Network:      lc.Network,
		SSHUser:      lc.SSHUser,
		SSHKeys:      cfg.SSHKeys,
	})
	return newStub(sm, vms, lc, client), nil
}

func newStub(vols volumeStore, vms instanceManager, lc config.LibvirtConfig, closer io.Closer) *Stub {
	return &Stub{vols: vols, vms: vms, libvirt: lc, closer: closer}
}

// Close closes the libvirt connection.
func (s *Stub) Close() error {
	if s.closer == nil {
		return nil
	}
	return s.closer.Close()
}

// waitTimeout converts a request timeout in seconds; zero means the default.
func waitTimeout(seconds int32) time.Duration {
	if seconds <= 0 {
		return vm.DefaultWaitTimeout
	}
	return time.Duration(seconds) * time.Second
}
