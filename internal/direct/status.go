package direct

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/jbweber/forge/internal/rpc"
	"github.com/jbweber/forge/internal/vm"
)

// notFound reports missing resources of one type. Each name is carried as a
// ResourceInfo detail so the client can tell which of several were missing.
func notFound(resourceType string, names ...string) error {
	msg := fmt.Sprintf("%s '%s' does not exist", resourceType, strings.Join(names, "', '"))
	if len(names) > 1 {
		msg = fmt.Sprintf("%ss '%s' do not exist", resourceType, strings.Join(names, "', '"))
	}

	st := status.New(codes.NotFound, msg)
	for _, name := range names {
		withDetail, err := st.WithDetails(&errdetails.ResourceInfo{ResourceType: resourceType, ResourceName: name})
		if err != nil {
			break
		}
		st = withDetail
	}
	return st.Err()
}

// statusFor converts an instance manager error into the status the daemon
// would return for it.
func statusFor(err error, instance string) error {
	if _, ok := status.FromError(err); ok {
		return err
	}

	var code codes.Code
	switch {
	case errors.Is(err, vm.ErrNotFound):
		return notFound(rpc.ResourceTypeInstance, instance)
	case errors.Is(err, vm.ErrExists):
		code = codes.AlreadyExists
	case errors.Is(err, vm.ErrRunning),
		errors.Is(err, vm.ErrAttached),
		errors.Is(err, vm.ErrNotAttached),
		errors.Is(err, vm.ErrNoAddress):
		code = codes.FailedPrecondition
	case errors.Is(err, vm.ErrNotRunning):
		code = codes.Aborted
	case errors.Is(err, context.DeadlineExceeded):
		code = codes.DeadlineExceeded
	case errors.Is(err, context.Canceled):
		code = codes.Canceled
	default:
		code = codes.Internal
	}
	return status.Error(code, err.Error())
}

func invalidArgument(format string, args ...any) error {
	return status.Errorf(codes.InvalidArgument, format, args...)
}

func internal(err error) error {
	if _, ok := status.FromError(err); ok {
		return err
	}
	return status.Error(codes.Internal, err.Error())
}
