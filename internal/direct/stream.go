package direct

import (
	"context"
	"io"
	"sync"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// handler serves one streaming call: it receives the initial request and
// sends replies until it returns. A nil return ends the stream cleanly.
type handler[Req, Rep any] func(ctx context.Context, req Req, send func(Rep) error) error

// stream runs a handler in its own goroutine and exposes it as an
// rpc.Stream. Follow-up requests are accepted but the handlers here never
// ask for any.
type stream[Req, Rep any] struct {
	ctx  context.Context
	reqs chan Req
	reps chan Rep

	closeSend sync.Once
	sendDone  chan struct{}

	done chan struct{}
	err  error // valid once done is closed
}

func serve[Req, Rep any](ctx context.Context, h handler[Req, Rep]) *stream[Req, Rep] {
	s := &stream[Req, Rep]{
		ctx:      ctx,
		reqs:     make(chan Req, 4),
		reps:     make(chan Rep),
		sendDone: make(chan struct{}),
		done:     make(chan struct{}),
	}
	go s.run(h)
	return s
}

func (s *stream[Req, Rep]) run(h handler[Req, Rep]) {
	defer close(s.done)

	var req Req
	select {
	case req = <-s.reqs:
	case <-s.sendDone:
		s.err = status.Error(codes.InvalidArgument, "stream closed before a request was sent")
		return
	case <-s.ctx.Done():
		s.err = status.FromContextError(s.ctx.Err()).Err()
		return
	}

	if err := h(s.ctx, req, s.send); err != nil {
		s.err = internal(err)
	}
}

func (s *stream[Req, Rep]) send(rep Rep) error {
	select {
	case s.reps <- rep:
		return nil
	case <-s.ctx.Done():
		return status.FromContextError(s.ctx.Err()).Err()
	}
}

// Send queues a request for the handler. It returns io.EOF once the call
// has ended.
func (s *stream[Req, Rep]) Send(req Req) error {
	select {
	case <-s.sendDone:
		return status.Error(codes.FailedPrecondition, "send on a closed stream")
	default:
	}
	select {
	case <-s.done:
		return io.EOF
	default:
	}

	select {
	case s.reqs <- req:
		return nil
	case <-s.done:
		return io.EOF
	case <-s.ctx.Done():
		return status.FromContextError(s.ctx.Err()).Err()
	}
}

// Recv returns the next reply, io.EOF after a clean end, or the final status.
func (s *stream[Req, Rep]) Recv() (Rep, error) {
	var zero Rep
	select {
	case rep := <-s.reps:
		return rep, nil
	case <-s.done:
		if s.err != nil {
			return zero, s.err
		}
		return zero, io.EOF
	}
}

func (s *stream[Req, Rep]) CloseSend() error {
	s.closeSend.Do(func() { close(s.sendDone) })
	return nil
}
