package output

import (
	"fmt"
	"io"
	"time"
)

// TimeoutMessage is printed when an instance operation exceeds --timeout.
const TimeoutMessage = "Timed out waiting for instance to start."

// Watchdog fires once after a wall-clock timeout unless stopped first.
// It does not cancel the operation it guards.
type Watchdog struct {
	timer *time.Timer
}

// NewWatchdog arms a watchdog. A zero or negative timeout never fires.
func NewWatchdog(timeout time.Duration, onTimeout func()) *Watchdog {
	if timeout <= 0 {
		return &Watchdog{}
	}
	return &Watchdog{timer: time.AfterFunc(timeout, onTimeout)}
}

// Stop disarms the watchdog.
func (w *Watchdog) Stop() {
	if w == nil || w.timer == nil {
		return
	}
	w.timer.Stop()
}

// ExitOnTimeout returns a watchdog action that stops the spinner, prints
// TimeoutMessage to errOut and ends the process with code.
func ExitOnTimeout(spinner interface{ Stop() }, errOut io.Writer, exit func(int), code int) func() {
	return func() {
		if spinner != nil {
			spinner.Stop()
		}
		fmt.Fprintln(errOut, TimeoutMessage)
		exit(code)
	}
}
