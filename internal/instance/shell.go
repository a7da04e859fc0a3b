package instance

import (
	"context"
	"time"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/jbweber/forge/internal/dispatch"
	"github.com/jbweber/forge/internal/naming"
	"github.com/jbweber/forge/internal/rpc"
)

// ShellOptions are the arguments of shell.
type ShellOptions struct {
	// Name defaults to the primary instance.
	Name    string
	Timeout time.Duration
}

// Shell prints the SSH target of an instance as user@host:port. A missing
// primary instance is launched and a stopped instance is started first.
func (w *Workflows) Shell(ctx context.Context, opts ShellOptions) error {
	name := opts.Name
	if name == "" {
		name = w.primary
	}
	if !naming.ValidInstanceName(name) {
		return invalidName(name)
	}

	req := &rpc.SSHInfoRequest{InstanceName: name, Verbosity: w.verbosity}

	return dispatch.RetryLoop(ctx, func(ctx context.Context) error {
		return dispatch.Unary(ctx, w.stub.SSHInfo, req, dispatch.Handlers[*rpc.SSHInfoReply]{
			Command: "shell",
			Success: func(reply *rpc.SSHInfoReply) error {
				info, ok := reply.GetSSHInfo()[name]
				if !ok {
					return dispatch.Errorf(dispatch.CommandFail, "no SSH information for instance '%s'", name)
				}
				printf(w.out, "%s@%s:%d\n", info.Username, info.Host, info.Port)
				return nil
			},
			Failure: func(st *status.Status) error {
				return w.shellFailure(ctx, st, name, opts.Timeout)
			},
		})
	})
}

func (w *Workflows) shellFailure(ctx context.Context, st *status.Status, name string, timeout time.Duration) error {
	switch st.Code() {
	case codes.NotFound:
		if name != w.primary {
			break
		}
		if err := w.Launch(ctx, LaunchOptions{Name: name, Timeout: timeout}); err != nil {
			return err
		}
		return dispatch.RetryAfter("launched " + name)

	case codes.Aborted, codes.FailedPrecondition:
		if err := w.Start(ctx, StartOptions{Names: []string{name}, Timeout: timeout}); err != nil {
			return err
		}
		return dispatch.RetryAfter("started " + name)
	}

	return dispatch.FailureFor("shell", st)
}
