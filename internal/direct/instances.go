package direct

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/rs/zerolog"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/jbweber/forge/internal/disk"
	"github.com/jbweber/forge/internal/naming"
	"github.com/jbweber/forge/internal/rpc"
	"github.com/jbweber/forge/internal/vm"
)

func stateOf(s vm.State) rpc.InstanceState {
	switch s {
	case vm.StateRunning, vm.StateBlocked:
		return rpc.InstanceRunning
	case vm.StatePaused, vm.StatePMSuspended:
		return rpc.InstanceSuspended
	case vm.StateShutdown, vm.StateShutoff, vm.StateCrashed:
		return rpc.InstanceStopped
	default:
		return rpc.InstanceUnknown
	}
}

func details(inst *vm.Instance) rpc.InstanceDetails {
	return rpc.InstanceDetails{
		Name:  inst.Name,
		State: stateOf(inst.State),
		Image: inst.Image,
		IPv4:  inst.IPv4,
		CPUs:  int32(inst.CPUs),
	}
}

// Info describes the named instances, or every instance when no names are
// given. Missing instances fail the whole call.
func (s *Stub) Info(ctx context.Context, req *rpc.InfoRequest) (*rpc.InfoReply, error) {
	reply := &rpc.InfoReply{}

	if len(req.InstanceNames) == 0 {
		instances, err := s.vms.List(ctx)
		if err != nil {
			return nil, internal(err)
		}
		for i := range instances {
			reply.Details = append(reply.Details, details(&instances[i]))
		}
		return reply, nil
	}

	var missing []string
	for _, name := range req.InstanceNames {
		inst, err := s.vms.Get(ctx, name)
		if errors.Is(err, vm.ErrNotFound) {
			missing = append(missing, name)
			continue
		}
		if err != nil {
			return nil, statusFor(err, name)
		}
		reply.Details = append(reply.Details, details(inst))
	}
	if len(missing) > 0 {
		return nil, notFound(rpc.ResourceTypeInstance, missing...)
	}
	return reply, nil
}

func (s *Stub) SSHInfo(ctx context.Context, req *rpc.SSHInfoRequest) (*rpc.SSHInfoReply, error) {
	if req.InstanceName == "" {
		return nil, invalidArgument("instance name is required")
	}

	addr, err := s.vms.Address(ctx, req.InstanceName)
	if err != nil {
		return nil, statusFor(err, req.InstanceName)
	}

	return &rpc.SSHInfoReply{SSHInfo: map[string]rpc.SSHInfo{
		req.InstanceName: {Host: addr, Port: sshPort, Username: s.libvirt.SSHUser},
	}}, nil
}

func (s *Stub) Start(ctx context.Context) (rpc.Stream[*rpc.StartRequest, *rpc.StartReply], error) {
	return serve(ctx, s.start), nil
}

// start boots the requested instances one after the other and waits for
// each to get an address. Nothing is started unless every instance exists.
func (s *Stub) start(ctx context.Context, req *rpc.StartRequest, send func(*rpc.StartReply) error) error {
	log := zerolog.Ctx(ctx)

	names := req.InstanceNames
	if len(names) == 0 {
		var err error
		if names, err = s.vms.Names(ctx); err != nil {
			return internal(err)
		}
	}

	var missing []string
	for _, name := range names {
		if !s.vms.Exists(name) {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return notFound(rpc.ResourceTypeInstance, missing...)
	}

	timeout := waitTimeout(req.Timeout)
	for _, name := range names {
		if err := send(&rpc.StartReply{ReplyMessage: "Starting " + name}); err != nil {
			return err
		}
		started, err := s.vms.Start(ctx, name)
		if err != nil {
			return statusFor(err, name)
		}
		log.Debug().Str("instance", name).Bool("started", started).Msg("instance active")

		if err := send(&rpc.StartReply{ReplyMessage: "Waiting for " + name}); err != nil {
			return err
		}
		ip, err := s.vms.WaitForIP(ctx, name, timeout)
		if err != nil {
			if errors.Is(err, context.DeadlineExceeded) {
				return status.Errorf(codes.DeadlineExceeded, "timed out waiting for %s to get an address", name)
			}
			return statusFor(err, name)
		}
		if err := send(&rpc.StartReply{LogLine: fmt.Sprintf("%s is up at %s", name, ip)}); err != nil {
			return err
		}
	}
	return nil
}

func (s *Stub) Launch(ctx context.Context) (rpc.Stream[*rpc.LaunchRequest, *rpc.LaunchReply], error) {
	return serve(ctx, s.launch), nil
}

// launchSpec fills in the defaults of a launch request and validates it.
func (s *Stub) launchSpec(ctx context.Context, req *rpc.LaunchRequest) (vm.LaunchSpec, error) {
	spec := vm.LaunchSpec{Name: req.InstanceName, CPUs: DefaultCPUs}

	if spec.Name == "" {
		names, err := s.vms.Names(ctx)
		if err != nil {
			return spec, internal(err)
		}
		taken := make(map[string]struct{}, len(names))
		for _, n := range names {
			taken[n] = struct{}{}
		}
		spec.Name = naming.GenerateInstanceName(taken)
	} else if !naming.ValidInstanceName(spec.Name) {
		return spec, invalidArgument("invalid instance name '%s'", spec.Name)
	}

	switch {
	case req.CPUs < 0:
		return spec, invalidArgument("number of CPUs must be positive, got %d", req.CPUs)
	case req.CPUs > 0:
		spec.CPUs = uint(req.CPUs)
	}

	memory := req.MemSize
	if memory == "" {
		memory = DefaultMemory
	}
	var err error
	if spec.MemoryBytes, err = disk.ParseSize(memory); err != nil {
		return spec, invalidArgument("invalid memory size: %v", err)
	}

	diskSpace := req.DiskSpace
	if diskSpace == "" {
		diskSpace = DefaultDisk
	}
	if err := disk.ValidateSize(diskSpace); err != nil {
		return spec, invalidArgument("invalid disk space: %v", err)
	}
	spec.DiskBytes, _ = disk.ParseSize(diskSpace)

	image := req.Image
	if image == "" {
		image = s.libvirt.Image
	}
	pool, volume, isFile, err := s.libvirt.ImageReference(image)
	if err != nil {
		return spec, invalidArgument("%v", err)
	}
	spec.Image = vm.ImageSource{Name: image, Pool: pool, Volume: volume}
	if isFile {
		if spec.Image.File, err = filepath.Abs(image); err != nil {
			return spec, invalidArgument("invalid image path '%s': %v", image, err)
		}
	}
	return spec, nil
}

// launch creates the instance, then waits for it to get an address. The
// final reply names the new instance.
func (s *Stub) launch(ctx context.Context, req *rpc.LaunchRequest, send func(*rpc.LaunchReply) error) error {
	spec, err := s.launchSpec(ctx, req)
	if err != nil {
		return err
	}
	zerolog.Ctx(ctx).Debug().Str("instance", spec.Name).Str("image", spec.Image.Name).Msg("launching instance")

	progress := vm.Progress{
		Step: func(msg string) {
			_ = send(&rpc.LaunchReply{ReplyMessage: msg})
		},
		Image: func(percent int) {
			_ = send(&rpc.LaunchReply{Progress: &rpc.LaunchProgress{
				Type:            rpc.ProgressImage,
				PercentComplete: int32(percent),
			}})
		},
	}
	if err := s.vms.Launch(ctx, spec, progress); err != nil {
		return statusFor(err, spec.Name)
	}

	if err := send(&rpc.LaunchReply{ReplyMessage: "Waiting for " + spec.Name}); err != nil {
		return err
	}
	ip, err := s.vms.WaitForIP(ctx, spec.Name, waitTimeout(req.Timeout))
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return status.Errorf(codes.DeadlineExceeded, "timed out waiting for %s to get an address", spec.Name)
		}
		return statusFor(err, spec.Name)
	}

	return send(&rpc.LaunchReply{
		LogLine:        fmt.Sprintf("%s is up at %s", spec.Name, ip),
		VMInstanceName: spec.Name,
	})
}
