package disk

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/jbweber/forge/internal/dispatch"
	"github.com/jbweber/forge/internal/naming"
	"github.com/jbweber/forge/internal/rpc"
)

// AddOptions holds the optional add-disk flags.
type AddOptions struct {
	// Name overrides the generated device name.
	Name string
}

// addState is the state of one add-disk invocation.
type addState struct {
	created  compensation
	fellBack bool
}

// AddDisk creates a block device and attaches it to an instance.
//
// With two arguments the first is a size ("5G") or an image path and the
// second the instance. With one argument it is first taken as an instance
// to receive a DefaultSize device; if that instance does not exist the
// argument is reinterpreted, once, as the size of a standalone device.
func (w *Workflows) AddDisk(ctx context.Context, args []string, opts AddOptions) error {
	if err := ValidateAddArgs(args, opts); err != nil {
		return err
	}

	state := &addState{}

	switch len(args) {
	case 2:
		req, err := sourceRequest(args[0])
		if err != nil {
			return err
		}
		req.Name = w.deviceName(opts.Name)
		req.InstanceName = args[1]
		return w.createAndAttach(ctx, state, req)

	case 1:
		return w.addSingle(ctx, state, args[0], opts)

	default:
		return addArgsError()
	}
}

// ValidateAddArgs checks add-disk arguments that can be judged without the
// daemon. A single argument that could name an instance is left for
// AddDisk to resolve.
func ValidateAddArgs(args []string, opts AddOptions) error {
	if opts.Name != "" {
		if err := naming.ValidateCustomName(opts.Name); err != nil {
			return dispatch.Errorf(dispatch.CommandLineError, "invalid block device name: %w", err)
		}
	}

	switch len(args) {
	case 2:
		_, err := sourceRequest(args[0])
		return err
	case 1:
		if naming.ValidInstanceName(args[0]) {
			return nil
		}
		if err := ValidateSize(args[0]); err != nil {
			return dispatch.Errorf(dispatch.CommandLineError, "invalid disk size '%s': %w", args[0], err)
		}
		return nil
	default:
		return addArgsError()
	}
}

func addArgsError() error {
	return dispatch.Errorf(dispatch.CommandLineError, "add-disk requires one or two arguments: [<size>|<path>] <instance>")
}

func (w *Workflows) addSingle(ctx context.Context, state *addState, arg string, opts AddOptions) error {
	log := zerolog.Ctx(ctx)

	if naming.ValidInstanceName(arg) {
		req := &rpc.CreateBlockRequest{
			Name:         w.deviceName(opts.Name),
			Size:         DefaultSize,
			InstanceName: arg,
		}

		err := w.createAndAttach(ctx, state, req)
		if err == nil || !instanceMissing(err) {
			return err
		}
		log.Debug().Str("argument", arg).Err(err).Msg("No such instance, treating argument as a size")
	}

	return w.addStandalone(ctx, state, arg, opts)
}

// addStandalone is the single-argument fallback: arg is a size and the
// device is not attached anywhere.
func (w *Workflows) addStandalone(ctx context.Context, state *addState, arg string, opts AddOptions) error {
	if state.fellBack {
		return dispatch.Errorf(dispatch.CommandFail, "add-disk fallback already attempted for '%s'", arg)
	}
	state.fellBack = true

	if err := ValidateSize(arg); err != nil {
		if naming.ValidInstanceName(arg) {
			return dispatch.Errorf(dispatch.CommandLineError,
				"invalid disk size '%s': it is not a size and no instance with that name exists", arg)
		}
		return dispatch.Errorf(dispatch.CommandLineError, "invalid disk size '%s': %w", arg, err)
	}

	req := &rpc.CreateBlockRequest{
		Name: w.deviceName(opts.Name),
		Size: arg,
	}
	_, err := w.CreateBlock(ctx, req)
	return err
}

// createAndAttach creates the device described by req and attaches it to
// req.InstanceName. If the attach fails the device is deleted again.
func (w *Workflows) createAndAttach(ctx context.Context, state *addState, req *rpc.CreateBlockRequest) (err error) {
	log := zerolog.Ctx(ctx)

	log.Debug().Str("block", req.Name).Str("instance", req.InstanceName).Msg("Creating block device")
	name, err := w.CreateBlock(ctx, req)
	if err != nil {
		return err
	}
	state.created.record(name)

	defer func() {
		if err != nil {
			err = w.compensate(ctx, &state.created, err)
		}
	}()

	log.Debug().Str("block", name).Str("instance", req.InstanceName).Msg("Attaching block device")
	if err = w.AttachBlock(ctx, name, req.InstanceName); err != nil {
		return err
	}
	state.created.discharge()

	return nil
}

// sourceRequest builds a create request from a size or an image path.
func sourceRequest(source string) (*rpc.CreateBlockRequest, error) {
	if LooksLikeSize(source) {
		if err := ValidateSize(source); err != nil {
			return nil, dispatch.WithCode(dispatch.CommandLineError, err)
		}
		return &rpc.CreateBlockRequest{Size: source}, nil
	}

	path, err := ValidateImagePath(source)
	if err != nil {
		return nil, dispatch.WithCode(dispatch.CommandLineError, err)
	}
	return &rpc.CreateBlockRequest{SourcePath: path}, nil
}

// deviceName returns custom when set, otherwise a generated name. The daemon
// resolves collisions with devices the client cannot see, so the generated
// name is not checked against a listing.
func (w *Workflows) deviceName(custom string) string {
	if custom != "" {
		return custom
	}
	return naming.GenerateDiskName(nil)
}
