package instance

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"google.golang.org/grpc/status"

	"github.com/jbweber/forge/internal/disk"
	"github.com/jbweber/forge/internal/dispatch"
	"github.com/jbweber/forge/internal/naming"
	"github.com/jbweber/forge/internal/rpc"
)

// LaunchOptions are the arguments of launch. Empty fields are chosen by the
// daemon.
type LaunchOptions struct {
	Name    string
	Image   string
	CPUs    int
	Memory  string
	Disk    string
	Timeout time.Duration
}

// Validate checks the options before anything is sent.
func (o LaunchOptions) Validate() error {
	if o.Name != "" && !naming.ValidInstanceName(o.Name) {
		return invalidName(o.Name)
	}
	if o.CPUs < 0 {
		return dispatch.Errorf(dispatch.CommandLineError, "number of CPUs must be positive, got %d", o.CPUs)
	}
	if o.Memory != "" {
		if _, err := disk.ParseSize(o.Memory); err != nil {
			return dispatch.Errorf(dispatch.CommandLineError, "invalid memory size '%s': %w", o.Memory, err)
		}
	}
	if o.Disk != "" {
		if err := disk.ValidateSize(o.Disk); err != nil {
			return dispatch.Errorf(dispatch.CommandLineError, "invalid disk space '%s': %w", o.Disk, err)
		}
	}
	return nil
}

// Launch creates and starts a new instance.
func (w *Workflows) Launch(ctx context.Context, opts LaunchOptions) error {
	if err := opts.Validate(); err != nil {
		return err
	}
	defer w.watch(opts.Timeout)()
	return w.launch(ctx, opts)
}

var progressLabels = map[rpc.ProgressType]string{
	rpc.ProgressImage:   "Retrieving image",
	rpc.ProgressExtract: "Extracting image",
	rpc.ProgressVerify:  "Verifying image",
}

func (w *Workflows) launch(ctx context.Context, opts LaunchOptions) error {
	log := zerolog.Ctx(ctx)
	log.Debug().Str("instance", opts.Name).Str("image", opts.Image).Msg("launching instance")

	req := &rpc.LaunchRequest{
		InstanceName: opts.Name,
		Image:        opts.Image,
		CPUs:         int32(opts.CPUs),
		MemSize:      opts.Memory,
		DiskSpace:    opts.Disk,
		Timeout:      timeoutSeconds(opts.Timeout),
		Verbosity:    w.verbosity,
	}

	if opts.Name != "" {
		w.spinner.Start("Launching " + opts.Name)
	} else {
		w.spinner.Start("Launching instance")
	}

	interactive := dispatch.Interactive[*rpc.LaunchRequest, *rpc.LaunchReply](
		w.term, w.spinner, w.out,
		func() *rpc.LaunchRequest { return &rpc.LaunchRequest{} },
		log,
	)
	callback := func(reply *rpc.LaunchReply, wr dispatch.Writer[*rpc.LaunchRequest]) {
		if p := reply.GetProgress(); p != nil {
			w.showProgress(p)
			return
		}
		if reply.GetReplyMessage() != "" || reply.GetPasswordRequested() || reply.GetConfirmation() != nil {
			w.bar.Finish()
		}
		interactive(reply, wr)
	}

	return dispatch.Streaming(ctx, w.stub.Launch, req, dispatch.Handlers[*rpc.LaunchReply]{
		Command: "launch",
		Success: func(reply *rpc.LaunchReply) error {
			w.bar.Finish()
			w.spinner.Stop()
			if !reply.IsFinal() {
				return dispatch.Errorf(dispatch.CommandFail, "launch ended without naming the new instance")
			}
			printf(w.out, "Launched: %s\n", reply.VMInstanceName)
			return nil
		},
		Failure: func(st *status.Status) error {
			w.bar.Finish()
			w.spinner.Stop()
			return dispatch.FailureFor("launch", st)
		},
	}, callback)
}

// showProgress renders a percentage with the bar, or with the spinner when
// the daemon cannot measure the phase.
func (w *Workflows) showProgress(p *rpc.LaunchProgress) {
	label, ok := progressLabels[p.Type]
	if !ok {
		label = fmt.Sprintf("Preparing (%s)", p.Type)
	}

	if p.PercentComplete < 0 {
		w.bar.Finish()
		w.spinner.Stop()
		w.spinner.Start(label)
		return
	}

	w.spinner.Stop()
	w.bar.Update(label, int(p.PercentComplete))
}
