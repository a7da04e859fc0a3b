package disk

import (
	"context"

	"github.com/jbweber/forge/internal/rpc"
)

// blockStub defines the remote operations the disk workflows need.
// Satisfied by rpc.Stub (both the gRPC and the libvirt transport).
type blockStub interface {
	CreateBlock(ctx context.Context, req *rpc.CreateBlockRequest) (*rpc.CreateBlockReply, error)
	AttachBlock(ctx context.Context, req *rpc.AttachBlockRequest) (*rpc.AttachBlockReply, error)
	DetachBlock(ctx context.Context, req *rpc.DetachBlockRequest) (*rpc.DetachBlockReply, error)
	DeleteBlock(ctx context.Context, req *rpc.DeleteBlockRequest) (*rpc.DeleteBlockReply, error)
	ListBlocks(ctx context.Context, req *rpc.ListBlocksRequest) (*rpc.ListBlocksReply, error)
	Info(ctx context.Context, req *rpc.InfoRequest) (*rpc.InfoReply, error)
}

// Compile-time check that rpc.Stub implements blockStub.
var _ blockStub = (rpc.Stub)(nil)
