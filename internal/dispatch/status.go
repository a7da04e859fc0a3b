package dispatch

import (
	"errors"
	"io"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// ToStatus converts a transport error into a status. Errors that already
// carry a status keep it, context errors map to Canceled/DeadlineExceeded
// and everything else becomes codes.Unknown. io.EOF and nil are OK.
func ToStatus(err error) *status.Status {
	if err == nil || errors.Is(err, io.EOF) {
		return status.New(codes.OK, "")
	}
	if st, ok := status.FromError(err); ok {
		return st
	}
	return status.FromContextError(err)
}

// StatusError carries a failed call's status together with the message
// shown to the user. status.Code and status.FromError see through it.
type StatusError struct {
	msg    string
	status *status.Status
}

func (e *StatusError) Error() string {
	return e.msg
}

func (e *StatusError) GRPCStatus() *status.Status {
	return e.status
}

// FailureFor is the standard failure handler. It turns the status of a
// failed call made on behalf of command into an error with a return code:
//
//	Unavailable                  failed to connect to daemon: <msg>  CommandFail
//	InvalidArgument              <msg>                               CommandLineError
//	Internal, Unknown, DataLoss  <command> failed: <msg>             DaemonFail
//	anything else                <command> failed: <msg>             CommandFail
func FailureFor(command string, st *status.Status) error {
	return failure(command+" failed: ", st)
}

// StatusErr maps st to a return code like FailureFor but keeps the bare
// status message, for callers that wrap it with their own context.
func StatusErr(st *status.Status) error {
	return failure("", st)
}

func failure(prefix string, st *status.Status) error {
	if st == nil || st.Code() == codes.OK {
		return nil
	}

	msg := st.Message()
	code := CommandFail
	switch st.Code() {
	case codes.Unavailable:
		msg = "failed to connect to daemon: " + msg
	case codes.InvalidArgument:
		code = CommandLineError
	case codes.Internal, codes.Unknown, codes.DataLoss:
		code = DaemonFail
		msg = prefix + msg
	default:
		msg = prefix + msg
	}

	return &Error{Code: code, Err: &StatusError{msg: msg, status: st}}
}
