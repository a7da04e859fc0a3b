package direct

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/rs/zerolog"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/jbweber/forge/internal/disk"
	"github.com/jbweber/forge/internal/naming"
	"github.com/jbweber/forge/internal/rpc"
	"github.com/jbweber/forge/internal/storage"
)

// blocks returns the block devices of the block pool by name.
func (s *Stub) blocks(ctx context.Context) (map[string]storage.VolumeInfo, error) {
	vols, err := s.vols.ListVolumes(ctx, s.libvirt.BlockPool)
	if err != nil {
		return nil, internal(fmt.Errorf("failed to list block devices: %w", err))
	}

	blocks := make(map[string]storage.VolumeInfo, len(vols))
	for _, v := range vols {
		if !strings.HasSuffix(v.Name, ".qcow2") {
			continue
		}
		blocks[naming.BlockNameFromVolume(v.Name)] = v
	}
	return blocks, nil
}

func (s *Stub) block(ctx context.Context, name string) (storage.VolumeInfo, error) {
	blocks, err := s.blocks(ctx)
	if err != nil {
		return storage.VolumeInfo{}, err
	}
	v, ok := blocks[name]
	if !ok {
		return storage.VolumeInfo{}, notFound(rpc.ResourceTypeBlock, name)
	}
	return v, nil
}

func (s *Stub) CreateBlock(ctx context.Context, req *rpc.CreateBlockRequest) (*rpc.CreateBlockReply, error) {
	log := zerolog.Ctx(ctx)

	if err := naming.ValidateCustomName(req.Name); err != nil {
		return nil, invalidArgument("%v", err)
	}
	switch {
	case req.Size != "" && req.SourcePath != "":
		return nil, invalidArgument("size and source path are mutually exclusive")
	case req.Size == "" && req.SourcePath == "":
		return nil, invalidArgument("either a size or a source path is required")
	}
	if req.InstanceName != "" && !s.vms.Exists(req.InstanceName) {
		return nil, notFound(rpc.ResourceTypeInstance, req.InstanceName)
	}

	blocks, err := s.blocks(ctx)
	if err != nil {
		return nil, err
	}

	name := req.Name
	if _, taken := blocks[name]; taken {
		if !naming.IsGeneratedDiskName(name) {
			return nil, status.Errorf(codes.AlreadyExists, "block device '%s' already exists", name)
		}
		used := make(map[string]struct{}, len(blocks))
		for n := range blocks {
			used[n] = struct{}{}
		}
		name = naming.GenerateDiskName(used)
		log.Debug().Str("requested", req.Name).Str("name", name).Msg("generated name taken, renaming block device")
	}
	volume := naming.VolumeNameBlock(name)

	if req.Size != "" {
		err = s.createEmpty(ctx, volume, req.Size)
	} else {
		err = s.createFrom(ctx, blocks, volume, req.SourcePath)
	}
	if err != nil {
		return nil, err
	}

	log.Debug().Str("block", name).Msg("block device created")
	return &rpc.CreateBlockReply{LogLine: fmt.Sprintf("Created block device '%s'", name)}, nil
}

func (s *Stub) createEmpty(ctx context.Context, volume, size string) error {
	bytes, err := disk.ParseSize(size)
	if err != nil {
		return invalidArgument("%v", err)
	}

	info, err := s.vols.GetPoolInfo(ctx, s.libvirt.BlockPool)
	if err != nil {
		return internal(fmt.Errorf("failed to get pool info: %w", err))
	}
	if info.Available < bytes {
		return status.Errorf(codes.ResourceExhausted,
			"not enough space in pool %s: %s requested, %s available",
			s.libvirt.BlockPool, humanize.IBytes(bytes), humanize.IBytes(info.Available))
	}

	spec := storage.VolumeSpec{Name: volume, Format: storage.VolumeFormatQCOW2, Capacity: bytes}
	if err := s.vols.CreateVolume(ctx, s.libvirt.BlockPool, spec); err != nil {
		return internal(fmt.Errorf("failed to create block device: %w", err))
	}
	return nil
}

// createFrom clones an existing block device when source is one, otherwise
// imports source as a local qcow2 file.
func (s *Stub) createFrom(ctx context.Context, blocks map[string]storage.VolumeInfo, volume, source string) error {
	for _, v := range blocks {
		if v.Path == source {
			if err := s.vols.CloneVolume(ctx, s.libvirt.BlockPool, v.Name, volume); err != nil {
				return internal(fmt.Errorf("failed to copy block device: %w", err))
			}
			return nil
		}
	}

	if !filepath.IsAbs(source) {
		return invalidArgument("source path '%s' is not absolute", source)
	}
	if _, err := os.Stat(source); err != nil {
		return invalidArgument("source file '%s' is not readable: %v", source, err)
	}
	format, err := storage.DetectImageFormat(source)
	if err != nil {
		return invalidArgument("'%s': %v", source, err)
	}
	if format != storage.VolumeFormatQCOW2 {
		return invalidArgument("'%s' is a %s image, block devices must be qcow2", source, format)
	}

	if _, err := s.vols.ImportFile(ctx, s.libvirt.BlockPool, volume, source, nil); err != nil {
		return internal(fmt.Errorf("failed to import '%s': %w", source, err))
	}
	return nil
}

func (s *Stub) AttachBlock(ctx context.Context, req *rpc.AttachBlockRequest) (*rpc.AttachBlockReply, error) {
	v, err := s.block(ctx, req.BlockName)
	if err != nil {
		return nil, err
	}
	if !s.vms.Exists(req.InstanceName) {
		return nil, notFound(rpc.ResourceTypeInstance, req.InstanceName)
	}

	owners, err := s.vms.Attachments(ctx)
	if err != nil {
		return nil, internal(err)
	}
	if owner, ok := owners[v.Path]; ok {
		return nil, status.Errorf(codes.FailedPrecondition,
			"block device '%s' is already attached to %s", req.BlockName, owner)
	}

	target, err := s.vms.AttachDisk(ctx, req.InstanceName, v.Path)
	if err != nil {
		return nil, statusFor(err, req.InstanceName)
	}

	zerolog.Ctx(ctx).Debug().Str("block", req.BlockName).Str("instance", req.InstanceName).
		Str("target", target).Msg("block device attached")
	return &rpc.AttachBlockReply{
		LogLine: fmt.Sprintf("Attached block device '%s' to %s as %s", req.BlockName, req.InstanceName, target),
	}, nil
}

func (s *Stub) DetachBlock(ctx context.Context, req *rpc.DetachBlockRequest) (*rpc.DetachBlockReply, error) {
	v, err := s.block(ctx, req.BlockName)
	if err != nil {
		return nil, err
	}
	if err := s.vms.DetachDisk(ctx, req.InstanceName, v.Path); err != nil {
		return nil, statusFor(err, req.InstanceName)
	}
	return &rpc.DetachBlockReply{
		LogLine: fmt.Sprintf("Detached block device '%s' from %s", req.BlockName, req.InstanceName),
	}, nil
}

func (s *Stub) DeleteBlock(ctx context.Context, req *rpc.DeleteBlockRequest) (*rpc.DeleteBlockReply, error) {
	v, err := s.block(ctx, req.Name)
	if err != nil {
		return nil, err
	}

	owners, err := s.vms.Attachments(ctx)
	if err != nil {
		return nil, internal(err)
	}
	if owner, ok := owners[v.Path]; ok {
		return nil, status.Errorf(codes.FailedPrecondition,
			"block device '%s' is attached to %s", req.Name, owner)
	}

	if err := s.vols.DeleteVolume(ctx, s.libvirt.BlockPool, v.Name); err != nil {
		return nil, internal(fmt.Errorf("failed to delete block device: %w", err))
	}
	return &rpc.DeleteBlockReply{LogLine: fmt.Sprintf("Deleted block device '%s'", req.Name)}, nil
}

func (s *Stub) ListBlocks(ctx context.Context, _ *rpc.ListBlocksRequest) (*rpc.ListBlocksReply, error) {
	blocks, err := s.blocks(ctx)
	if err != nil {
		return nil, err
	}
	owners, err := s.vms.Attachments(ctx)
	if err != nil {
		return nil, internal(err)
	}

	reply := &rpc.ListBlocksReply{BlockDevices: make([]rpc.BlockDevice, 0, len(blocks))}
	for name, v := range blocks {
		reply.BlockDevices = append(reply.BlockDevices, rpc.BlockDevice{
			Name:       name,
			Size:       humanize.IBytes(v.Capacity),
			Path:       v.Path,
			AttachedTo: owners[v.Path],
		})
	}
	sort.Slice(reply.BlockDevices, func(i, j int) bool {
		return reply.BlockDevices[i].Name < reply.BlockDevices[j].Name
	})
	return reply, nil
}
