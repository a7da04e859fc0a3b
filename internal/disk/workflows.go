// Package disk implements the block device commands.
//
// The daemon offers only single-step block operations (create, attach,
// detach, delete, list). The workflows here compose them into the user
// facing commands and keep the device set consistent when a later step
// fails:
//
//   - AddDisk creates a device and attaches it; if the attach fails the
//     created device is deleted again
//   - MoveDisk detaches a device from its owner and attaches it elsewhere
//   - CopyDisk clones a device that is not in use by a running instance
//   - DeleteDisk detaches a device if needed and deletes it
//
// Every workflow returns at most one error. A failed compensating call is
// reported as a warning line and carried in a CompensationError; it never
// replaces the error that triggered it.
package disk

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/jbweber/forge/internal/dispatch"
	"github.com/jbweber/forge/internal/rpc"
)

// Reporter is where workflows write user-facing output.
type Reporter struct {
	Out io.Writer
	Err io.Writer
}

// StdReporter writes to the process's stdout and stderr.
func StdReporter() Reporter {
	return Reporter{Out: os.Stdout, Err: os.Stderr}
}

// Workflows runs block device commands against a daemon.
type Workflows struct {
	stub      blockStub
	report    Reporter
	verbosity int32
}

// NewWorkflows creates a Workflows. verbosity is forwarded to the daemon.
func NewWorkflows(stub blockStub, report Reporter, verbosity int) *Workflows {
	return &Workflows{stub: stub, report: report, verbosity: int32(verbosity)}
}

// CompensationError is returned when a workflow step failed and undoing an
// earlier step failed as well. Err is the failure reported to the user;
// Unwrap returns it so the return code is Err's.
type CompensationError struct {
	Err     error
	Cleanup error
}

func (e *CompensationError) Error() string {
	return e.Err.Error()
}

func (e *CompensationError) Unwrap() error {
	return e.Err
}

// compensation records a created device that has to be deleted again if the
// workflow does not complete.
type compensation struct {
	name    string
	pending bool
}

func (c *compensation) record(name string) {
	c.name = name
	c.pending = true
}

func (c *compensation) discharge() {
	c.pending = false
}

// compensationTimeout bounds a compensating call. It runs detached from the
// command's context, which is already cancelled after an interrupt.
const compensationTimeout = 30 * time.Second

// compensate deletes the recorded device and returns the error the workflow
// should report. It runs at most once per recorded device.
func (w *Workflows) compensate(ctx context.Context, c *compensation, primary error) error {
	if !c.pending {
		return primary
	}
	c.pending = false

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), compensationTimeout)
	defer cancel()

	log := zerolog.Ctx(ctx)
	log.Debug().Str("block", c.name).Msg("Deleting block device after failed workflow step")

	if err := w.deleteBlock(ctx, c.name); err != nil {
		fmt.Fprintf(w.report.Err, "Warning: failed to clean up block device '%s': %v\n", c.name, err)
		return &CompensationError{Err: primary, Cleanup: err}
	}

	log.Debug().Str("block", c.name).Msg("Block device cleaned up")
	return primary
}

// createdNameRe extracts the device name from "Created block device 'X'".
var createdNameRe = regexp.MustCompile(`[Cc]reated block device '([^']+)'`)

// createdName returns the authoritative name of a created device. The daemon
// may rename a device on collision and reports the final name in its log
// line.
func createdName(logLine, requested string) string {
	if m := createdNameRe.FindStringSubmatch(logLine); m != nil {
		return m[1]
	}
	return requested
}

// instanceMissing reports whether err says the target instance does not
// exist. A missing block device does not count: it can vanish between create
// and attach when another client deletes it. The daemon names the missing
// resource in ResourceInfo details; without them the message decides.
func instanceMissing(err error) bool {
	if err == nil {
		return false
	}
	root := cause(err)

	if st, ok := status.FromError(root); ok {
		named := false
		for _, d := range st.Details() {
			if info, ok := d.(*errdetails.ResourceInfo); ok {
				if info.GetResourceType() == rpc.ResourceTypeInstance {
					return true
				}
				named = true
			}
		}
		if named {
			return false
		}
	}

	msg := strings.ToLower(root.Error())
	if status.Code(root) != codes.NotFound && !strings.Contains(msg, "does not exist") && !strings.Contains(msg, "not found") {
		return false
	}
	return !strings.Contains(msg, rpc.ResourceTypeBlock)
}

// cause returns the innermost error of a wrap chain, which carries the
// daemon's own message rather than the workflow's context.
func cause(err error) error {
	for {
		next := errors.Unwrap(err)
		if next == nil {
			return err
		}
		err = next
	}
}

// printLogLine forwards a daemon log line to the user.
func (w *Workflows) printLogLine(line string) {
	line = strings.TrimRight(line, "\n")
	if line == "" {
		return
	}
	fmt.Fprintln(w.report.Out, line)
}

// appError turns a non-empty application error message into a command
// failure.
func appError(msg string) error {
	if msg == "" {
		return nil
	}
	return dispatch.WithCode(dispatch.CommandFail, errors.New(msg))
}

// CreateBlock creates a block device and returns its final name.
func (w *Workflows) CreateBlock(ctx context.Context, req *rpc.CreateBlockRequest) (string, error) {
	req.Verbosity = w.verbosity

	var name string
	err := dispatch.Unary(ctx, w.stub.CreateBlock, req, dispatch.Handlers[*rpc.CreateBlockReply]{
		Success: func(reply *rpc.CreateBlockReply) error {
			if err := appError(reply.GetErrorMessage()); err != nil {
				return err
			}
			name = createdName(reply.GetLogLine(), req.Name)
			w.printLogLine(reply.GetLogLine())
			return nil
		},
		Failure: dispatch.StatusErr,
	})
	if err != nil {
		return "", fmt.Errorf("failed to create block device: %w", err)
	}
	return name, nil
}

// AttachBlock attaches a block device to a stopped instance.
func (w *Workflows) AttachBlock(ctx context.Context, block, instance string) error {
	req := &rpc.AttachBlockRequest{BlockName: block, InstanceName: instance, Verbosity: w.verbosity}

	err := dispatch.Unary(ctx, w.stub.AttachBlock, req, dispatch.Handlers[*rpc.AttachBlockReply]{
		Success: func(reply *rpc.AttachBlockReply) error {
			if err := appError(reply.GetErrorMessage()); err != nil {
				return err
			}
			w.printLogLine(reply.GetLogLine())
			return nil
		},
		Failure: dispatch.StatusErr,
	})
	if err != nil {
		return fmt.Errorf("failed to attach block device '%s' to instance '%s': %w", block, instance, err)
	}
	return nil
}

// DetachBlock detaches a block device from an instance.
func (w *Workflows) DetachBlock(ctx context.Context, block, instance string) error {
	req := &rpc.DetachBlockRequest{BlockName: block, InstanceName: instance, Verbosity: w.verbosity}

	err := dispatch.Unary(ctx, w.stub.DetachBlock, req, dispatch.Handlers[*rpc.DetachBlockReply]{
		Success: func(reply *rpc.DetachBlockReply) error {
			if err := appError(reply.GetErrorMessage()); err != nil {
				return err
			}
			w.printLogLine(reply.GetLogLine())
			return nil
		},
		Failure: dispatch.StatusErr,
	})
	if err != nil {
		return fmt.Errorf("failed to detach block device '%s' from instance '%s': %w", block, instance, err)
	}
	return nil
}

// DeleteBlock deletes an unattached block device.
func (w *Workflows) DeleteBlock(ctx context.Context, name string) error {
	if err := w.deleteBlock(ctx, name); err != nil {
		return fmt.Errorf("failed to delete block device '%s': %w", name, err)
	}
	return nil
}

func (w *Workflows) deleteBlock(ctx context.Context, name string) error {
	req := &rpc.DeleteBlockRequest{Name: name, Verbosity: w.verbosity}

	return dispatch.Unary(ctx, w.stub.DeleteBlock, req, dispatch.Handlers[*rpc.DeleteBlockReply]{
		Success: func(reply *rpc.DeleteBlockReply) error {
			if err := appError(reply.GetErrorMessage()); err != nil {
				return err
			}
			w.printLogLine(reply.GetLogLine())
			return nil
		},
		Failure: dispatch.StatusErr,
	})
}

// ListBlocks returns every block device known to the daemon.
func (w *Workflows) ListBlocks(ctx context.Context) (*rpc.ListBlocksReply, error) {
	req := &rpc.ListBlocksRequest{Verbosity: w.verbosity}

	var list *rpc.ListBlocksReply
	err := dispatch.Unary(ctx, w.stub.ListBlocks, req, dispatch.Handlers[*rpc.ListBlocksReply]{
		Success: func(reply *rpc.ListBlocksReply) error {
			list = reply
			return nil
		},
		Failure: dispatch.StatusErr,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list block devices: %w", err)
	}
	if list == nil {
		list = &rpc.ListBlocksReply{}
	}
	return list, nil
}

// InstanceInfo returns the details of a single instance.
func (w *Workflows) InstanceInfo(ctx context.Context, instance string) (*rpc.InstanceDetails, error) {
	req := &rpc.InfoRequest{InstanceNames: []string{instance}, Verbosity: w.verbosity}

	var details *rpc.InstanceDetails
	err := dispatch.Unary(ctx, w.stub.Info, req, dispatch.Handlers[*rpc.InfoReply]{
		Success: func(reply *rpc.InfoReply) error {
			for _, d := range reply.GetDetails() {
				if d.Name == instance {
					details = &d
					return nil
				}
			}
			return dispatch.Errorf(dispatch.CommandFail, "instance '%s' does not exist", instance)
		},
		Failure: dispatch.StatusErr,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get status of instance '%s': %w", instance, err)
	}
	return details, nil
}

// lookup lists devices and returns the named one.
func (w *Workflows) lookup(ctx context.Context, name string) (rpc.BlockDevice, *rpc.ListBlocksReply, error) {
	list, err := w.ListBlocks(ctx)
	if err != nil {
		return rpc.BlockDevice{}, nil, err
	}

	dev, ok := list.Find(name)
	if !ok {
		return rpc.BlockDevice{}, nil, dispatch.Errorf(dispatch.CommandFail, "block device '%s' not found", name)
	}
	return dev, list, nil
}
