package dispatch

import (
	"errors"
	"fmt"
)

// ReturnCode is the outcome of a command and, except for Retry, the process
// exit status.
type ReturnCode int

const (
	Ok ReturnCode = iota
	CommandLineError
	CommandFail
	DaemonFail
	// Retry asks the retry controller to run the attempt again. It never
	// reaches the process exit status.
	Retry
)

func (c ReturnCode) String() string {
	switch c {
	case Ok:
		return "Ok"
	case CommandLineError:
		return "CommandLineError"
	case CommandFail:
		return "CommandFail"
	case DaemonFail:
		return "DaemonFail"
	case Retry:
		return "Retry"
	default:
		return fmt.Sprintf("ReturnCode(%d)", int(c))
	}
}

// Error is a command failure carrying its return code.
type Error struct {
	Code ReturnCode
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return e.Code.String()
	}
	return e.Err.Error()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Errorf formats an error carrying code. %w verbs are honoured.
func Errorf(code ReturnCode, format string, args ...any) error {
	return &Error{Code: code, Err: fmt.Errorf(format, args...)}
}

// WithCode attaches code to err. A nil err stays nil.
func WithCode(code ReturnCode, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Code: code, Err: err}
}

// CodeOf maps an error returned by a handler or workflow to its return code.
//
// nil is Ok, a retry request is Retry, an *Error yields its code and
// anything else is CommandFail.
func CodeOf(err error) ReturnCode {
	if err == nil {
		return Ok
	}

	var retry *RetryRequest
	if errors.As(err, &retry) {
		return Retry
	}

	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}

	return CommandFail
}

// ExitCode is CodeOf restricted to process exit statuses. A retry request
// that escaped the retry controller is reported as CommandFail.
func ExitCode(err error) int {
	code := CodeOf(err)
	if code == Retry {
		return int(CommandFail)
	}
	return int(code)
}
