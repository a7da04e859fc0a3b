package disk

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
)

// MoveDisk attaches a block device to target, detaching it from its current
// instance first.
//
// If the attach fails after the detach succeeded, the device stays detached.
// It is not attached back to its previous owner.
func (w *Workflows) MoveDisk(ctx context.Context, name, target string) error {
	log := zerolog.Ctx(ctx)

	dev, _, err := w.lookup(ctx, name)
	if err != nil {
		return err
	}

	if dev.AttachedTo == target {
		fmt.Fprintf(w.report.Out, "Block device '%s' is already attached to instance '%s'\n", name, target)
		return nil
	}

	if owner := dev.AttachedTo; owner != "" {
		log.Debug().Str("block", name).Str("instance", owner).Msg("Detaching block device from current owner")
		if err := w.DetachBlock(ctx, name, owner); err != nil {
			return err
		}

		log.Debug().Str("block", name).Str("instance", target).Msg("Attaching block device to new owner")
		if err := w.AttachBlock(ctx, name, target); err != nil {
			return fmt.Errorf("%w (block device '%s' was detached from '%s' and remains detached)", err, name, owner)
		}

		fmt.Fprintf(w.report.Out, "Moved block device '%s' from instance '%s' to instance '%s'\n", name, owner, target)
		return nil
	}

	log.Debug().Str("block", name).Str("instance", target).Msg("Attaching unattached block device")
	if err := w.AttachBlock(ctx, name, target); err != nil {
		return err
	}

	fmt.Fprintf(w.report.Out, "Attached block device '%s' to instance '%s'\n", name, target)
	return nil
}
