package instance

import (
	"context"

	"github.com/jbweber/forge/internal/dispatch"
	"github.com/jbweber/forge/internal/output"
	"github.com/jbweber/forge/internal/rpc"
)

// Info prints the state of instances with f. No names means every instance.
func (w *Workflows) Info(ctx context.Context, names []string, f output.Formatter) error {
	req := &rpc.InfoRequest{InstanceNames: names, Verbosity: w.verbosity}

	return dispatch.Unary(ctx, w.stub.Info, req, dispatch.Handlers[*rpc.InfoReply]{
		Command: "info",
		Success: func(reply *rpc.InfoReply) error {
			text, err := f.FormatInstances(reply.GetDetails())
			if err != nil {
				return dispatch.WithCode(dispatch.CommandFail, err)
			}
			printf(w.out, "%s", text)
			return nil
		},
	})
}
