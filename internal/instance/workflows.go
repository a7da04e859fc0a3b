// Package instance implements the instance commands: start, launch, shell
// and info.
//
// start and shell recover from a missing or stopped instance on their own:
// the failure handler launches or starts it and asks the retry loop to issue
// the original call again.
package instance

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc/status"

	"github.com/jbweber/forge/internal/dispatch"
	"github.com/jbweber/forge/internal/output"
	"github.com/jbweber/forge/internal/rpc"
)

// instanceStub is the part of rpc.Stub the instance commands use.
type instanceStub interface {
	Start(ctx context.Context) (rpc.Stream[*rpc.StartRequest, *rpc.StartReply], error)
	Launch(ctx context.Context) (rpc.Stream[*rpc.LaunchRequest, *rpc.LaunchReply], error)
	Info(ctx context.Context, req *rpc.InfoRequest) (*rpc.InfoReply, error)
	SSHInfo(ctx context.Context, req *rpc.SSHInfoRequest) (*rpc.SSHInfoReply, error)
}

var _ instanceStub = (rpc.Stub)(nil)

// progressBar renders percentage progress of a launch phase.
type progressBar interface {
	Update(label string, percent int)
	Finish()
}

// Options configures Workflows.
type Options struct {
	// Primary is the instance that start and shell create on demand.
	Primary string

	Out      io.Writer
	Err      io.Writer
	Terminal dispatch.Terminal
	Spinner  dispatch.Progress
	Bar      progressBar

	// Exit ends the process when a --timeout expires. Defaults to os.Exit.
	Exit func(code int)

	// Verbosity is forwarded to the daemon.
	Verbosity int
}

// Workflows runs instance commands against a daemon.
type Workflows struct {
	stub      instanceStub
	primary   string
	out       io.Writer
	errOut    io.Writer
	term      dispatch.Terminal
	spinner   dispatch.Progress
	bar       progressBar
	exit      func(int)
	verbosity int32
}

// NewWorkflows creates a Workflows.
func NewWorkflows(stub instanceStub, opts Options) *Workflows {
	w := &Workflows{
		stub:      stub,
		primary:   opts.Primary,
		out:       opts.Out,
		errOut:    opts.Err,
		term:      opts.Terminal,
		spinner:   opts.Spinner,
		bar:       opts.Bar,
		exit:      opts.Exit,
		verbosity: int32(opts.Verbosity),
	}
	if w.out == nil {
		w.out = os.Stdout
	}
	if w.errOut == nil {
		w.errOut = os.Stderr
	}
	if w.spinner == nil {
		w.spinner = output.NewSpinner(w.errOut, false)
	}
	if w.bar == nil {
		w.bar = output.NewProgressBar(w.errOut)
	}
	if w.exit == nil {
		w.exit = os.Exit
	}
	return w
}

// watch arms the --timeout watchdog. The returned function disarms it.
func (w *Workflows) watch(timeout time.Duration) func() {
	wd := output.NewWatchdog(timeout,
		output.ExitOnTimeout(w.spinner, w.errOut, w.exit, int(dispatch.CommandFail)))
	return wd.Stop
}

// timeoutSeconds converts a --timeout to the request field.
func timeoutSeconds(d time.Duration) int32 {
	if d <= 0 {
		return 0
	}
	return int32((d + time.Second - 1) / time.Second)
}

// missingInstances returns the instances a NotFound status is about. The
// daemon names them in ResourceInfo details; without details a request for a
// single instance is assumed to be about that instance.
func missingInstances(st *status.Status, requested []string) []string {
	var missing []string
	for _, d := range st.Details() {
		if info, ok := d.(*errdetails.ResourceInfo); ok && info.GetResourceType() == rpc.ResourceTypeInstance {
			missing = append(missing, info.GetResourceName())
		}
	}
	if len(missing) == 0 && len(requested) == 1 {
		missing = requested
	}
	return missing
}

func describe(names []string) string {
	if len(names) == 0 {
		return "all instances"
	}
	return strings.Join(names, ", ")
}

func invalidName(name string) error {
	return dispatch.Errorf(dispatch.CommandLineError, "invalid instance name '%s'", name)
}

func printf(w io.Writer, format string, args ...any) {
	_, _ = fmt.Fprintf(w, format, args...)
}
