package instance

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/jbweber/forge/internal/rpc"
)

// fakeStream replays a fixed list of replies and records every request sent.
// When block is set, Recv waits for it to be closed before the first reply.
type fakeStream[Req, Rep any] struct {
	mu       sync.Mutex
	replies  []Rep
	finalErr error
	block    <-chan struct{}

	sent []Req
}

func (s *fakeStream[Req, Rep]) Send(req Req) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, req)
	return nil
}

func (s *fakeStream[Req, Rep]) Recv() (Rep, error) {
	if s.block != nil {
		<-s.block
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	var zero Rep
	if len(s.replies) == 0 {
		if s.finalErr != nil {
			return zero, s.finalErr
		}
		return zero, io.EOF
	}
	reply := s.replies[0]
	s.replies = s.replies[1:]
	return reply, nil
}

func (s *fakeStream[Req, Rep]) CloseSend() error { return nil }

func (s *fakeStream[Req, Rep]) requests() []Req {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Req(nil), s.sent...)
}

type (
	startStream  = fakeStream[*rpc.StartRequest, *rpc.StartReply]
	launchStream = fakeStream[*rpc.LaunchRequest, *rpc.LaunchReply]
)

// mockInstanceStub is a mock implementation of the instanceStub interface.
// The stream funcs receive the 1-based number of the call.
type mockInstanceStub struct {
	mu sync.Mutex

	// Configurable behavior
	startFunc   func(call int) *startStream
	launchFunc  func(call int) *launchStream
	infoFunc    func(req *rpc.InfoRequest) (*rpc.InfoReply, error)
	sshInfoFunc func(call int, req *rpc.SSHInfoRequest) (*rpc.SSHInfoReply, error)

	// Call tracking
	startStreams  []*startStream
	launchStreams []*launchStream
	infoCalls     []*rpc.InfoRequest
	sshInfoCalls  []*rpc.SSHInfoRequest

	// Every call in order: "start", "launch", "info", "ssh_info".
	sequence []string
}

// newMockInstanceStub creates a mock where start succeeds without replies,
// launch creates an instance named after the request (or "launched") and
// ssh_info answers for every requested instance.
func newMockInstanceStub() *mockInstanceStub {
	m := &mockInstanceStub{}

	m.startFunc = func(int) *startStream { return &startStream{} }
	m.launchFunc = func(int) *launchStream {
		return &launchStream{replies: []*rpc.LaunchReply{{VMInstanceName: "launched"}}}
	}
	m.infoFunc = func(req *rpc.InfoRequest) (*rpc.InfoReply, error) {
		reply := &rpc.InfoReply{}
		for _, name := range req.InstanceNames {
			reply.Details = append(reply.Details, rpc.InstanceDetails{Name: name, State: rpc.InstanceRunning})
		}
		return reply, nil
	}
	m.sshInfoFunc = func(_ int, req *rpc.SSHInfoRequest) (*rpc.SSHInfoReply, error) {
		return &rpc.SSHInfoReply{SSHInfo: map[string]rpc.SSHInfo{
			req.InstanceName: {Host: "10.0.0.5", Port: 22, Username: "ubuntu"},
		}}, nil
	}

	return m
}

func (m *mockInstanceStub) Start(context.Context) (rpc.Stream[*rpc.StartRequest, *rpc.StartReply], error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := m.startFunc(len(m.startStreams) + 1)
	m.startStreams = append(m.startStreams, s)
	m.sequence = append(m.sequence, "start")
	return s, nil
}

func (m *mockInstanceStub) Launch(context.Context) (rpc.Stream[*rpc.LaunchRequest, *rpc.LaunchReply], error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := m.launchFunc(len(m.launchStreams) + 1)
	m.launchStreams = append(m.launchStreams, s)
	m.sequence = append(m.sequence, "launch")
	return s, nil
}

func (m *mockInstanceStub) Info(_ context.Context, req *rpc.InfoRequest) (*rpc.InfoReply, error) {
	m.mu.Lock()
	m.infoCalls = append(m.infoCalls, req)
	m.sequence = append(m.sequence, "info")
	m.mu.Unlock()
	return m.infoFunc(req)
}

func (m *mockInstanceStub) SSHInfo(_ context.Context, req *rpc.SSHInfoRequest) (*rpc.SSHInfoReply, error) {
	m.mu.Lock()
	m.sshInfoCalls = append(m.sshInfoCalls, req)
	m.sequence = append(m.sequence, "ssh_info")
	call := len(m.sshInfoCalls)
	m.mu.Unlock()
	return m.sshInfoFunc(call, req)
}

func (m *mockInstanceStub) calls() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return strings.Join(m.sequence, ",")
}

// fakeProgress records indicator transitions as "start:<msg>", "stop" and
// "pause".
type fakeProgress struct {
	mu     sync.Mutex
	events []string
}

func (p *fakeProgress) Start(message string) {
	p.mu.Lock()
	p.events = append(p.events, "start:"+message)
	p.mu.Unlock()
}

func (p *fakeProgress) Stop() {
	p.mu.Lock()
	p.events = append(p.events, "stop")
	p.mu.Unlock()
}

func (p *fakeProgress) Pause(fn func()) {
	p.mu.Lock()
	p.events = append(p.events, "pause")
	p.mu.Unlock()
	fn()
}

func (p *fakeProgress) has(event string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, e := range p.events {
		if e == event {
			return true
		}
	}
	return false
}

// fakeBar records "update:<label>:<percent>" and "finish".
type fakeBar struct {
	mu     sync.Mutex
	events []string
}

func (b *fakeBar) Update(label string, percent int) {
	b.mu.Lock()
	b.events = append(b.events, fmt.Sprintf("update:%s:%d", label, percent))
	b.mu.Unlock()
}

func (b *fakeBar) Finish() {
	b.mu.Lock()
	b.events = append(b.events, "finish")
	b.mu.Unlock()
}

func (b *fakeBar) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return strings.Join(b.events, ",")
}

type fakeTerminal struct {
	password string
}

func (t *fakeTerminal) Password(string) (string, error) { return t.password, nil }
func (t *fakeTerminal) Confirm(string) (bool, error)    { return true, nil }

type testEnv struct {
	w        *Workflows
	stub     *mockInstanceStub
	out      *bytes.Buffer
	errOut   *bytes.Buffer
	spinner  *fakeProgress
	bar      *fakeBar
	term     *fakeTerminal
	exitCode int
}

func newTestEnv(stub *mockInstanceStub) *testEnv {
	env := &testEnv{
		stub:     stub,
		out:      &bytes.Buffer{},
		errOut:   &bytes.Buffer{},
		spinner:  &fakeProgress{},
		bar:      &fakeBar{},
		term:     &fakeTerminal{},
		exitCode: -1,
	}
	env.w = NewWorkflows(stub, Options{
		Primary:  "primary",
		Out:      env.out,
		Err:      env.errOut,
		Terminal: env.term,
		Spinner:  env.spinner,
		Bar:      env.bar,
		Exit:     func(code int) { env.exitCode = code },
	})
	return env
}

// notFound returns a NotFound status naming the missing instances.
func notFound(names ...string) error {
	st := status.New(codes.NotFound, fmt.Sprintf("instance(s) %s do not exist", strings.Join(names, ", ")))
	for _, name := range names {
		st, _ = st.WithDetails(&errdetails.ResourceInfo{
			ResourceType: rpc.ResourceTypeInstance,
			ResourceName: name,
		})
	}
	return st.Err()
}
