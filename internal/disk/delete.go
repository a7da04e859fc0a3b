package disk

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/jbweber/forge/internal/dispatch"
)

// DeleteAllPrompt is shown before delete-disk --all removes anything.
const DeleteAllPrompt = "This will delete all unattached block devices. Are you sure you want to continue?"

// DeleteDisk deletes a block device, detaching it first when it is attached.
// If the detach fails nothing is deleted.
func (w *Workflows) DeleteDisk(ctx context.Context, name string) error {
	log := zerolog.Ctx(ctx)

	dev, _, err := w.lookup(ctx, name)
	if err != nil {
		return err
	}

	if dev.AttachedTo != "" {
		log.Debug().Str("block", name).Str("instance", dev.AttachedTo).Msg("Detaching block device before delete")
		if err := w.DetachBlock(ctx, name, dev.AttachedTo); err != nil {
			return err
		}
	}

	log.Debug().Str("block", name).Msg("Deleting block device")
	if err := w.DeleteBlock(ctx, name); err != nil {
		return err
	}

	fmt.Fprintf(w.report.Out, "Deleted block device '%s'\n", name)
	return nil
}

// DeleteAll deletes every unattached block device after confirm accepts
// DeleteAllPrompt. Attached devices are skipped. A declined confirmation is
// not an error.
func (w *Workflows) DeleteAll(ctx context.Context, confirm func(prompt string) (bool, error)) error {
	log := zerolog.Ctx(ctx)

	list, err := w.ListBlocks(ctx)
	if err != nil {
		return err
	}
	if len(list.GetBlockDevices()) == 0 {
		fmt.Fprintln(w.report.Out, "No block devices to delete")
		return nil
	}

	ok, err := confirm(DeleteAllPrompt)
	if err != nil {
		return dispatch.Errorf(dispatch.CommandFail,
			"unable to ask for confirmation, delete block devices individually with 'forge delete-disk <name>': %w", err)
	}
	if !ok {
		fmt.Fprintln(w.report.Out, "Aborted")
		return nil
	}

	var errs []error
	deleted := 0
	for _, dev := range list.GetBlockDevices() {
		if dev.AttachedTo != "" {
			fmt.Fprintf(w.report.Out, "Skipping block device '%s': attached to instance '%s'\n", dev.Name, dev.AttachedTo)
			continue
		}

		log.Debug().Str("block", dev.Name).Msg("Deleting block device")
		if err := w.DeleteBlock(ctx, dev.Name); err != nil {
			errs = append(errs, err)
			continue
		}
		deleted++
	}

	if err := errors.Join(errs...); err != nil {
		return err
	}

	fmt.Fprintf(w.report.Out, "Deleted %d block device(s)\n", deleted)
	return nil
}
