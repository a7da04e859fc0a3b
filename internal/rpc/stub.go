// Package rpc defines the remote operations the forge daemon exposes and the
// transports that reach it.
//
// Stub is the client-side view of the daemon: one method per remote
// operation. Unary methods return the reply or an error; streaming methods
// open a bidirectional Stream on which the client sends the initial request
// and may send follow-up requests (a password, a confirmation answer) while
// the daemon is still producing replies.
//
// Errors returned by a Stub are gRPC statuses (see google.golang.org/grpc/status),
// regardless of the transport behind it. Application-level failures are not
// errors: they arrive inside a successful reply as a non-empty ErrorMessage.
//
// Two Stub implementations exist:
//   - GRPCStub (this package) talks to forged over gRPC
//   - direct.Stub (internal/direct) serves the same operations from libvirtd
package rpc

import "context"

// Stream is one bidirectional remote call.
//
// Recv returns io.EOF once the daemon has closed the stream successfully;
// any other error is the final status of the call.
type Stream[Req, Rep any] interface {
	Send(req Req) error
	Recv() (Rep, error)
	CloseSend() error
}

// Terminal is implemented by streaming replies that can recognise
// themselves as the concluding reply of a call.
type Terminal interface {
	IsFinal() bool
}

// Stub exposes every remote operation used by the client.
type Stub interface {
	CreateBlock(ctx context.Context, req *CreateBlockRequest) (*CreateBlockReply, error)
	AttachBlock(ctx context.Context, req *AttachBlockRequest) (*AttachBlockReply, error)
	DetachBlock(ctx context.Context, req *DetachBlockRequest) (*DetachBlockReply, error)
	DeleteBlock(ctx context.Context, req *DeleteBlockRequest) (*DeleteBlockReply, error)
	ListBlocks(ctx context.Context, req *ListBlocksRequest) (*ListBlocksReply, error)
	Info(ctx context.Context, req *InfoRequest) (*InfoReply, error)
	SSHInfo(ctx context.Context, req *SSHInfoRequest) (*SSHInfoReply, error)

	Start(ctx context.Context) (Stream[*StartRequest, *StartReply], error)
	Launch(ctx context.Context) (Stream[*LaunchRequest, *LaunchReply], error)

	Close() error
}

// Full gRPC method names of the forge service.
const (
	ServiceName = "forge.Rpc"

	MethodCreateBlock = "/" + ServiceName + "/CreateBlock"
	MethodAttachBlock = "/" + ServiceName + "/AttachBlock"
	MethodDetachBlock = "/" + ServiceName + "/DetachBlock"
	MethodDeleteBlock = "/" + ServiceName + "/DeleteBlock"
	MethodListBlocks  = "/" + ServiceName + "/ListBlocks"
	MethodInfo        = "/" + ServiceName + "/Info"
	MethodSSHInfo     = "/" + ServiceName + "/SSHInfo"
	MethodStart       = "/" + ServiceName + "/Start"
	MethodLaunch      = "/" + ServiceName + "/Launch"
)
