// Package logging builds the diagnostic logger of the forge client.
//
// Diagnostics go to stderr and are separate from command output. Their
// amount is controlled by the -v flag count.
package logging

import (
	"io"
	"time"

	"github.com/rs/zerolog"
)

// Level maps a -v count to a log level: warnings only by default, then
// info, debug and trace.
func Level(verbosity int) zerolog.Level {
	switch {
	case verbosity <= 0:
		return zerolog.WarnLevel
	case verbosity == 1:
		return zerolog.InfoLevel
	case verbosity == 2:
		return zerolog.DebugLevel
	default:
		return zerolog.TraceLevel
	}
}

// New returns a console logger writing to w.
func New(w io.Writer, verbosity int) zerolog.Logger {
	out := zerolog.ConsoleWriter{
		Out:        w,
		TimeFormat: time.TimeOnly,
		NoColor:    !isTerminal(w),
	}
	return zerolog.New(out).Level(Level(verbosity)).With().Timestamp().Logger()
}
