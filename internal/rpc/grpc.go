package rpc

import (
	"context"
	"fmt"
	"strings"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/backoff"
	"google.golang.org/grpc/credentials/insecure"
)

// DefaultAddress is where forged listens unless configured otherwise.
const DefaultAddress = "unix:///run/forge/forged.sock"

// GRPCStub implements Stub over a gRPC connection to forged.
type GRPCStub struct {
	conn *grpc.ClientConn
}

var _ Stub = (*GRPCStub)(nil)

// Dial creates a stub for the daemon at address.
//
// address may be a gRPC target ("unix:///path", "dns:///host:port"), a bare
// socket path ("/run/forge/forged.sock") or "host:port". If timeout is zero,
// defaults to 5 seconds.
//
// The connection is established lazily: an unreachable daemon surfaces as a
// codes.Unavailable status on the first call, not as an error here.
func Dial(address string, timeout time.Duration, opts ...grpc.DialOption) (*GRPCStub, error) {
	if address == "" {
		address = DefaultAddress
	}
	if timeout == 0 {
		timeout = 5 * time.Second
	}

	target := address
	if strings.HasPrefix(address, "/") {
		target = "unix://" + address
	}

	dialOpts := []grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithConnectParams(grpc.ConnectParams{
			Backoff:           backoff.DefaultConfig,
			MinConnectTimeout: timeout,
		}),
	}
	dialOpts = append(dialOpts, opts...)

	return NewGRPCStub(target, dialOpts...)
}

// NewGRPCStub creates a stub for an arbitrary gRPC target. Callers are
// responsible for transport credentials.
func NewGRPCStub(target string, opts ...grpc.DialOption) (*GRPCStub, error) {
	opts = append(opts, grpc.WithDefaultCallOptions(grpc.CallContentSubtype(CodecName)))

	conn, err := grpc.NewClient(target, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create client for %s: %w", target, err)
	}

	return &GRPCStub{conn: conn}, nil
}

// Close releases the underlying connection.
func (s *GRPCStub) Close() error {
	if s.conn == nil {
		return nil
	}
	return s.conn.Close()
}

func (s *GRPCStub) CreateBlock(ctx context.Context, req *CreateBlockRequest) (*CreateBlockReply, error) {
	return invoke[CreateBlockReply](ctx, s.conn, MethodCreateBlock, req)
}

func (s *GRPCStub) AttachBlock(ctx context.Context, req *AttachBlockRequest) (*AttachBlockReply, error) {
	return invoke[AttachBlockReply](ctx, s.conn, MethodAttachBlock, req)
}

func (s *GRPCStub) DetachBlock(ctx context.Context, req *DetachBlockRequest) (*DetachBlockReply, error) {
	return invoke[DetachBlockReply](ctx, s.conn, MethodDetachBlock, req)
}

func (s *GRPCStub) DeleteBlock(ctx context.Context, req *DeleteBlockRequest) (*DeleteBlockReply, error) {
	return invoke[DeleteBlockReply](ctx, s.conn, MethodDeleteBlock, req)
}

func (s *GRPCStub) ListBlocks(ctx context.Context, req *ListBlocksRequest) (*ListBlocksReply, error) {
	return invoke[ListBlocksReply](ctx, s.conn, MethodListBlocks, req)
}

func (s *GRPCStub) Info(ctx context.Context, req *InfoRequest) (*InfoReply, error) {
	return invoke[InfoReply](ctx, s.conn, MethodInfo, req)
}

func (s *GRPCStub) SSHInfo(ctx context.Context, req *SSHInfoRequest) (*SSHInfoReply, error) {
	return invoke[SSHInfoReply](ctx, s.conn, MethodSSHInfo, req)
}

func (s *GRPCStub) Start(ctx context.Context) (Stream[*StartRequest, *StartReply], error) {
	return openStream[StartRequest, StartReply](ctx, s.conn, MethodStart)
}

func (s *GRPCStub) Launch(ctx context.Context) (Stream[*LaunchRequest, *LaunchReply], error) {
	return openStream[LaunchRequest, LaunchReply](ctx, s.conn, MethodLaunch)
}

func invoke[Rep any](ctx context.Context, conn *grpc.ClientConn, method string, req any) (*Rep, error) {
	reply := new(Rep)
	if err := conn.Invoke(ctx, method, req, reply); err != nil {
		return nil, err
	}
	return reply, nil
}

var bidiStreamDesc = &grpc.StreamDesc{
	ServerStreams: true,
	ClientStreams: true,
}

func openStream[Req, Rep any](ctx context.Context, conn *grpc.ClientConn, method string) (Stream[*Req, *Rep], error) {
	cs, err := conn.NewStream(ctx, bidiStreamDesc, method)
	if err != nil {
		return nil, err
	}
	return &clientStream[Req, Rep]{cs: cs}, nil
}

// clientStream adapts a grpc.ClientStream to the typed Stream interface.
type clientStream[Req, Rep any] struct {
	cs grpc.ClientStream
}

func (s *clientStream[Req, Rep]) Send(req *Req) error {
	return s.cs.SendMsg(req)
}

func (s *clientStream[Req, Rep]) Recv() (*Rep, error) {
	reply := new(Rep)
	if err := s.cs.RecvMsg(reply); err != nil {
		return nil, err
	}
	return reply, nil
}

func (s *clientStream[Req, Rep]) CloseSend() error {
	return s.cs.CloseSend()
}
