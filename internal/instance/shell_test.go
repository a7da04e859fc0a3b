package instance

import (
	"context"
	"testing"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/jbweber/forge/internal/dispatch"
	"github.com/jbweber/forge/internal/rpc"
)

func TestShell_Success(t *testing.T) {
	stub := newMockInstanceStub()
	env := newTestEnv(stub)

	if err := env.w.Shell(context.Background(), ShellOptions{Name: "web"}); err != nil {
		t.Fatalf("Shell failed: %v", err)
	}

	if env.out.String() != "ubuntu@10.0.0.5:22\n" {
		t.Errorf("output = %q", env.out.String())
	}
	if stub.sshInfoCalls[0].InstanceName != "web" {
		t.Errorf("requested %q", stub.sshInfoCalls[0].InstanceName)
	}
}

func TestShell_LaunchesMissingPrimary(t *testing.T) {
	stub := newMockInstanceStub()
	ok := stub.sshInfoFunc
	stub.sshInfoFunc = func(call int, req *rpc.SSHInfoRequest) (*rpc.SSHInfoReply, error) {
		if call == 1 {
			return nil, notFound("primary")
		}
		return ok(call, req)
	}
	env := newTestEnv(stub)

	if err := env.w.Shell(context.Background(), ShellOptions{}); err != nil {
		t.Fatalf("Shell failed: %v", err)
	}

	if got := stub.calls(); got != "ssh_info,launch,ssh_info" {
		t.Errorf("calls = %q", got)
	}
	if stub.launchStreams[0].requests()[0].InstanceName != "primary" {
		t.Error("expected the primary instance to be launched")
	}
}

func TestShell_MissingOtherInstance(t *testing.T) {
	stub := newMockInstanceStub()
	stub.sshInfoFunc = func(int, *rpc.SSHInfoRequest) (*rpc.SSHInfoReply, error) {
		return nil, notFound("web")
	}
	env := newTestEnv(stub)

	err := env.w.Shell(context.Background(), ShellOptions{Name: "web"})
	if dispatch.CodeOf(err) != dispatch.CommandFail {
		t.Errorf("expected CommandFail, got %v", dispatch.CodeOf(err))
	}
	if got := stub.calls(); got != "ssh_info" {
		t.Errorf("calls = %q", got)
	}
}

func TestShell_StartsStoppedInstance(t *testing.T) {
	for _, code := range []codes.Code{codes.Aborted, codes.FailedPrecondition} {
		t.Run(code.String(), func(t *testing.T) {
			stub := newMockInstanceStub()
			ok := stub.sshInfoFunc
			stub.sshInfoFunc = func(call int, req *rpc.SSHInfoRequest) (*rpc.SSHInfoReply, error) {
				if call == 1 {
					return nil, status.Error(code, "instance is not running")
				}
				return ok(call, req)
			}
			env := newTestEnv(stub)

			if err := env.w.Shell(context.Background(), ShellOptions{Name: "web"}); err != nil {
				t.Fatalf("Shell failed: %v", err)
			}

			if got := stub.calls(); got != "ssh_info,start,ssh_info" {
				t.Errorf("calls = %q", got)
			}
			started := stub.startStreams[0].requests()[0]
			if len(started.InstanceNames) != 1 || started.InstanceNames[0] != "web" {
				t.Errorf("started %v, want [web]", started.InstanceNames)
			}
		})
	}
}

func TestShell_Failures(t *testing.T) {
	tests := []struct {
		name     string
		reply    *rpc.SSHInfoReply
		err      error
		wantCode dispatch.ReturnCode
	}{
		{name: "daemon error", err: status.Error(codes.Internal, "boom"), wantCode: dispatch.DaemonFail},
		{name: "no entry for instance", reply: &rpc.SSHInfoReply{}, wantCode: dispatch.CommandFail},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stub := newMockInstanceStub()
			stub.sshInfoFunc = func(int, *rpc.SSHInfoRequest) (*rpc.SSHInfoReply, error) {
				return tt.reply, tt.err
			}
			env := newTestEnv(stub)

			err := env.w.Shell(context.Background(), ShellOptions{Name: "web"})
			if dispatch.CodeOf(err) != tt.wantCode {
				t.Errorf("expected %v, got %v (%v)", tt.wantCode, dispatch.CodeOf(err), err)
			}
			if len(stub.sshInfoCalls) != 1 {
				t.Errorf("expected one ssh_info call, got %d", len(stub.sshInfoCalls))
			}
		})
	}
}
