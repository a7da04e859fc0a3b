// Package dispatch invokes remote operations and routes their outcome to
// typed handlers.
//
// Every remote call ends in exactly one of Handler.OnSuccess (with the reply)
// or Handler.OnFailure (with the final status). Handlers return an error
// whose return code (see CodeOf) tells the caller what happened; a handler
// that has fixed the cause of a failure returns RetryAfter, and RetryLoop
// issues the call again.
//
// Streaming calls additionally hand every intermediate reply to a
// StreamCallback, which may answer the daemon once per reply through the
// Writer it is given. Interactive builds the standard callback that prints
// log lines, drives the spinner and asks the user for passwords and
// confirmations.
package dispatch

import (
	"context"
	"errors"
	"io"

	"github.com/rs/zerolog"
	"google.golang.org/grpc/status"

	"github.com/jbweber/forge/internal/rpc"
)

// Handler receives the outcome of one remote call.
type Handler[Rep any] interface {
	OnSuccess(reply Rep) error
	OnFailure(st *status.Status) error
}

// Handlers adapts plain functions to Handler. A nil Success accepts the
// reply; a nil Failure falls back to FailureFor(Command, st).
type Handlers[Rep any] struct {
	Command string
	Success func(reply Rep) error
	Failure func(st *status.Status) error
}

func (h Handlers[Rep]) OnSuccess(reply Rep) error {
	if h.Success == nil {
		return nil
	}
	return h.Success(reply)
}

func (h Handlers[Rep]) OnFailure(st *status.Status) error {
	if h.Failure == nil {
		return FailureFor(h.Command, st)
	}
	return h.Failure(st)
}

// Writer sends a follow-up request on an open stream.
type Writer[Req any] interface {
	Write(req Req) error
}

// StreamCallback is invoked synchronously for each intermediate reply of a
// streaming call.
type StreamCallback[Req, Rep any] func(reply Rep, w Writer[Req])

// ErrSecondWrite is returned when a callback writes more than once for a
// single reply.
var ErrSecondWrite = errors.New("only one follow-up request may be written per reply")

// Unary issues a single request and routes the outcome to h.
func Unary[Req, Rep any](
	ctx context.Context,
	call func(ctx context.Context, req Req) (Rep, error),
	req Req,
	h Handler[Rep],
) error {
	reply, err := call(ctx, req)
	if err != nil {
		return h.OnFailure(ToStatus(err))
	}
	return h.OnSuccess(reply)
}

// Streaming opens a bidirectional stream, sends req and reads replies until
// the daemon closes the stream. Each reply that is not terminal (see
// rpc.Terminal) is handed to onItem; onItem may be nil. The last reply read
// goes to h.OnSuccess when the stream ends cleanly, otherwise the final
// status goes to h.OnFailure.
func Streaming[Req, Rep any](
	ctx context.Context,
	open func(ctx context.Context) (rpc.Stream[Req, Rep], error),
	req Req,
	h Handler[Rep],
	onItem StreamCallback[Req, Rep],
) error {
	log := zerolog.Ctx(ctx)

	stream, err := open(ctx)
	if err != nil {
		return h.OnFailure(ToStatus(err))
	}

	// io.EOF from Send means the daemon already ended the call; the real
	// status is reported by Recv.
	if err := stream.Send(req); err != nil && !errors.Is(err, io.EOF) {
		return h.OnFailure(ToStatus(err))
	}

	var last Rep
	for n := 0; ; n++ {
		reply, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			log.Trace().Int("replies", n).Msg("stream closed by daemon")
			break
		}
		if err != nil {
			return h.OnFailure(ToStatus(err))
		}

		last = reply
		if isTerminal(reply) || onItem == nil {
			continue
		}
		onItem(reply, &onceWriter[Req]{send: stream.Send})
	}

	return h.OnSuccess(last)
}

func isTerminal(reply any) bool {
	t, ok := reply.(rpc.Terminal)
	return ok && t.IsFinal()
}

type onceWriter[Req any] struct {
	send    func(Req) error
	written bool
}

func (w *onceWriter[Req]) Write(req Req) error {
	if w.written {
		return ErrSecondWrite
	}
	w.written = true
	return w.send(req)
}
