package instance

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/jbweber/forge/internal/dispatch"
	"github.com/jbweber/forge/internal/naming"
	"github.com/jbweber/forge/internal/rpc"
)

// StartOptions are the arguments of start.
type StartOptions struct {
	// Names of the instances to start. Empty means the primary instance,
	// unless All is set.
	Names   []string
	All     bool
	Timeout time.Duration
}

// Start starts instances. If the only missing instance is the primary one
// it is launched and the start is issued again.
func (w *Workflows) Start(ctx context.Context, opts StartOptions) error {
	names := opts.Names
	switch {
	case opts.All && len(names) > 0:
		return dispatch.Errorf(dispatch.CommandLineError, "cannot specify instance names together with --all")
	case opts.All:
		names = nil
	case len(names) == 0:
		names = []string{w.primary}
	}
	for _, name := range names {
		if !naming.ValidInstanceName(name) {
			return invalidName(name)
		}
	}

	defer w.watch(opts.Timeout)()

	req := &rpc.StartRequest{
		InstanceNames: names,
		Timeout:       timeoutSeconds(opts.Timeout),
		Verbosity:     w.verbosity,
	}

	return dispatch.RetryLoop(ctx, func(ctx context.Context) error {
		return w.startOnce(ctx, req, opts.Timeout)
	})
}

func (w *Workflows) startOnce(ctx context.Context, req *rpc.StartRequest, timeout time.Duration) error {
	zerolog.Ctx(ctx).Debug().Strs("instances", req.InstanceNames).Msg("starting instances")

	w.spinner.Start("Starting " + describe(req.InstanceNames))

	callback := dispatch.Interactive[*rpc.StartRequest, *rpc.StartReply](
		w.term, w.spinner, w.out,
		func() *rpc.StartRequest { return &rpc.StartRequest{} },
		zerolog.Ctx(ctx),
	)

	return dispatch.Streaming(ctx, w.stub.Start, req, dispatch.Handlers[*rpc.StartReply]{
		Command: "start",
		Success: func(*rpc.StartReply) error {
			w.spinner.Stop()
			printf(w.out, "Started %s\n", describe(req.InstanceNames))
			return nil
		},
		Failure: func(st *status.Status) error {
			w.spinner.Stop()
			return w.startFailure(ctx, st, req.InstanceNames, timeout)
		},
	}, callback)
}

func (w *Workflows) startFailure(ctx context.Context, st *status.Status, requested []string, timeout time.Duration) error {
	if st.Code() == codes.NotFound {
		missing := missingInstances(st, requested)
		if len(missing) == 1 && missing[0] == w.primary {
			if err := w.launch(ctx, LaunchOptions{Name: w.primary, Timeout: timeout}); err != nil {
				return err
			}
			return dispatch.RetryAfter("launched " + w.primary)
		}
	}
	return dispatch.FailureFor("start", st)
}
