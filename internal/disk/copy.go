package disk

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/jbweber/forge/internal/dispatch"
	"github.com/jbweber/forge/internal/naming"
	"github.com/jbweber/forge/internal/rpc"
)

// CopyOptions holds the optional copy-disk flags.
type CopyOptions struct {
	// Name of the copy. Generated as "<source>-copy-xy" when empty.
	Name string
}

// CopyDisk creates a new block device from the contents of source and
// returns the new device's name. A source attached to an active instance is
// refused.
func (w *Workflows) CopyDisk(ctx context.Context, source string, opts CopyOptions) (string, error) {
	log := zerolog.Ctx(ctx)

	if opts.Name != "" {
		if err := naming.ValidateCustomName(opts.Name); err != nil {
			return "", dispatch.Errorf(dispatch.CommandLineError, "invalid block device name: %w", err)
		}
	}

	dev, list, err := w.lookup(ctx, source)
	if err != nil {
		return "", err
	}

	if dev.AttachedTo != "" {
		log.Debug().Str("block", source).Str("instance", dev.AttachedTo).Msg("Checking state of owning instance")
		details, err := w.InstanceInfo(ctx, dev.AttachedTo)
		if err != nil {
			return "", err
		}
		if details.State.Active() {
			return "", dispatch.Errorf(dispatch.CommandFail,
				"cannot copy block device '%s': it is attached to running instance '%s', stop the instance first",
				source, dev.AttachedTo)
		}
	}

	taken := list.Names()
	name := opts.Name
	if name == "" {
		name = naming.GenerateCopyName(source, taken)
	} else if _, exists := taken[name]; exists {
		return "", dispatch.Errorf(dispatch.CommandFail, "block device '%s' already exists", name)
	}

	log.Debug().Str("source", source).Str("block", name).Msg("Copying block device")
	return w.CreateBlock(ctx, &rpc.CreateBlockRequest{Name: name, SourcePath: dev.Path})
}
