package direct

import (
	"context"
	"time"

	"github.com/jbweber/forge/internal/storage"
	"github.com/jbweber/forge/internal/vm"
)

// volumeStore defines the storage operations the block device calls need.
//
// In production, this is satisfied by *storage.Manager.
// In tests, this is satisfied by mock implementations.
type volumeStore interface {
	// CreateVolume creates an empty volume
	CreateVolume(ctx context.Context, poolName string, spec storage.VolumeSpec) error

	// CloneVolume copies a volume within a pool
	CloneVolume(ctx context.Context, poolName, source, target string) error

	// ImportFile uploads a local image file into a new volume
	ImportFile(ctx context.Context, poolName, volumeName, filePath string, progress storage.ProgressFunc) (storage.VolumeFormat, error)

	// DeleteVolume deletes a volume
	DeleteVolume(ctx context.Context, poolName, volumeName string) error

	// ListVolumes lists the volumes of a pool
	ListVolumes(ctx context.Context, poolName string) ([]storage.VolumeInfo, error)

	// GetPoolInfo reports capacity and free space of a pool
	GetPoolInfo(ctx context.Context, poolName string) (*storage.PoolInfo, error)
}

// instanceManager defines the instance operations the stub needs.
//
// In production, this is satisfied by *vm.Manager.
type instanceManager interface {
	Exists(name string) bool
	Get(ctx context.Context, name string) (*vm.Instance, error)
	List(ctx context.Context) ([]vm.Instance, error)
	Names(ctx context.Context) ([]string, error)
	Address(ctx context.Context, name string) (string, error)

	Start(ctx context.Context, name string) (bool, error)
	WaitForIP(ctx context.Context, name string, timeout time.Duration) (string, error)
	Launch(ctx context.Context, spec vm.LaunchSpec, progress vm.Progress) error

	// Attachments maps the path of every attached file disk to its instance
	Attachments(ctx context.Context) (map[string]string, error)
	AttachDisk(ctx context.Context, instance, path string) (string, error)
	DetachDisk(ctx context.Context, instance, path string) error
}
