package disk

import (
	"bytes"
	"context"
	"fmt"
	"sync"

	"google.golang.org/grpc/status"

	"github.com/jbweber/forge/internal/rpc"
)

// mockBlockStub is a mock implementation of the blockStub interface for testing.
type mockBlockStub struct {
	mu sync.Mutex

	// Configurable behavior
	createBlockFunc func(req *rpc.CreateBlockRequest) (*rpc.CreateBlockReply, error)
	attachBlockFunc func(req *rpc.AttachBlockRequest) (*rpc.AttachBlockReply, error)
	detachBlockFunc func(req *rpc.DetachBlockRequest) (*rpc.DetachBlockReply, error)
	deleteBlockFunc func(req *rpc.DeleteBlockRequest) (*rpc.DeleteBlockReply, error)
	listBlocksFunc  func() (*rpc.ListBlocksReply, error)
	infoFunc        func(req *rpc.InfoRequest) (*rpc.InfoReply, error)

	// Call tracking
	createBlockCalls []*rpc.CreateBlockRequest
	attachBlockCalls []*rpc.AttachBlockRequest
	detachBlockCalls []*rpc.DetachBlockRequest
	deleteBlockCalls []*rpc.DeleteBlockRequest
	listBlocksCalls  int
	infoCalls        []*rpc.InfoRequest

	// Every call in order, e.g. "attach disk-ab myvm".
	sequence []string
}

// newMockBlockStub creates a mock where every call succeeds and no devices
// exist. Created devices keep their requested name.
func newMockBlockStub() *mockBlockStub {
	m := &mockBlockStub{}

	m.createBlockFunc = func(req *rpc.CreateBlockRequest) (*rpc.CreateBlockReply, error) {
		return &rpc.CreateBlockReply{LogLine: fmt.Sprintf("Created block device '%s'\n", req.Name)}, nil
	}
	m.attachBlockFunc = func(req *rpc.AttachBlockRequest) (*rpc.AttachBlockReply, error) {
		return &rpc.AttachBlockReply{}, nil
	}
	m.detachBlockFunc = func(req *rpc.DetachBlockRequest) (*rpc.DetachBlockReply, error) {
		return &rpc.DetachBlockReply{}, nil
	}
	m.deleteBlockFunc = func(req *rpc.DeleteBlockRequest) (*rpc.DeleteBlockReply, error) {
		return &rpc.DeleteBlockReply{}, nil
	}
	m.listBlocksFunc = func() (*rpc.ListBlocksReply, error) {
		return &rpc.ListBlocksReply{}, nil
	}
	m.infoFunc = func(req *rpc.InfoRequest) (*rpc.InfoReply, error) {
		reply := &rpc.InfoReply{}
		for _, name := range req.InstanceNames {
			reply.Details = append(reply.Details, rpc.InstanceDetails{Name: name, State: rpc.InstanceStopped})
		}
		return reply, nil
	}

	return m
}

// withDevices makes ListBlocks return devs.
func (m *mockBlockStub) withDevices(devs ...rpc.BlockDevice) *mockBlockStub {
	m.listBlocksFunc = func() (*rpc.ListBlocksReply, error) {
		return &rpc.ListBlocksReply{BlockDevices: devs}, nil
	}
	return m
}

func (m *mockBlockStub) CreateBlock(ctx context.Context, req *rpc.CreateBlockRequest) (*rpc.CreateBlockReply, error) {
	if err := ctx.Err(); err != nil {
		return nil, status.FromContextError(err).Err()
	}
	m.mu.Lock()
	m.createBlockCalls = append(m.createBlockCalls, req)
	m.sequence = append(m.sequence, fmt.Sprintf("create %s %s", req.Name, req.InstanceName))
	m.mu.Unlock()
	return m.createBlockFunc(req)
}

func (m *mockBlockStub) AttachBlock(ctx context.Context, req *rpc.AttachBlockRequest) (*rpc.AttachBlockReply, error) {
	if err := ctx.Err(); err != nil {
		return nil, status.FromContextError(err).Err()
	}
	m.mu.Lock()
	m.attachBlockCalls = append(m.attachBlockCalls, req)
	m.sequence = append(m.sequence, fmt.Sprintf("attach %s %s", req.BlockName, req.InstanceName))
	m.mu.Unlock()
	return m.attachBlockFunc(req)
}

func (m *mockBlockStub) DetachBlock(ctx context.Context, req *rpc.DetachBlockRequest) (*rpc.DetachBlockReply, error) {
	if err := ctx.Err(); err != nil {
		return nil, status.FromContextError(err).Err()
	}
	m.mu.Lock()
	m.detachBlockCalls = append(m.detachBlockCalls, req)
	m.sequence = append(m.sequence, fmt.Sprintf("detach %s %s", req.BlockName, req.InstanceName))
	m.mu.Unlock()
	return m.detachBlockFunc(req)
}

func (m *mockBlockStub) DeleteBlock(ctx context.Context, req *rpc.DeleteBlockRequest) (*rpc.DeleteBlockReply, error) {
	if err := ctx.Err(); err != nil {
		return nil, status.FromContextError(err).Err()
	}
	m.mu.Lock()
	m.deleteBlockCalls = append(m.deleteBlockCalls, req)
	m.sequence = append(m.sequence, "delete "+req.Name)
	m.mu.Unlock()
	return m.deleteBlockFunc(req)
}

func (m *mockBlockStub) ListBlocks(_ context.Context, _ *rpc.ListBlocksRequest) (*rpc.ListBlocksReply, error) {
	m.mu.Lock()
	m.listBlocksCalls++
	m.sequence = append(m.sequence, "list")
	m.mu.Unlock()
	return m.listBlocksFunc()
}

func (m *mockBlockStub) Info(_ context.Context, req *rpc.InfoRequest) (*rpc.InfoReply, error) {
	m.mu.Lock()
	m.infoCalls = append(m.infoCalls, req)
	m.sequence = append(m.sequence, "info")
	m.mu.Unlock()
	return m.infoFunc(req)
}

// newTestWorkflows returns workflows over stub with captured output.
func newTestWorkflows(stub *mockBlockStub) (*Workflows, *bytes.Buffer, *bytes.Buffer) {
	var out, errOut bytes.Buffer
	return NewWorkflows(stub, Reporter{Out: &out, Err: &errOut}, 0), &out, &errOut
}
