package dispatch

import (
	"fmt"
	"io"

	"github.com/rs/zerolog"

	"github.com/jbweber/forge/internal/rpc"
)

// Terminal asks the user for input.
type Terminal interface {
	Password(prompt string) (string, error)
	Confirm(prompt string) (bool, error)
}

// Progress is the activity indicator shown while a stream is open.
type Progress interface {
	// Start shows message, replacing any previous one.
	Start(message string)
	Stop()
	// Pause hides the indicator while fn writes to the terminal.
	Pause(fn func())
}

// InteractiveReply is a streaming reply that can carry user-facing content.
type InteractiveReply interface {
	GetLogLine() string
	GetReplyMessage() string
	GetPasswordRequested() bool
	GetConfirmation() *rpc.ConfirmationRequest
}

// InteractiveRequest is a streaming request that can answer the daemon.
type InteractiveRequest interface {
	SetPassword(password string)
	SetConfirmation(answer *rpc.ConfirmationAnswer)
}

const passwordPrompt = "Please enter the forge admin password:"

// Interactive returns the standard callback for streaming commands. For each
// reply a non-empty log line is printed to out; then the first of these
// applies: a password request is answered, a reply message restarts the
// progress indicator, a confirmation request is answered.
//
// Prompt failures are logged and nothing is written back.
func Interactive[Req InteractiveRequest, Rep InteractiveReply](
	term Terminal,
	progress Progress,
	out io.Writer,
	newReq func() Req,
	log *zerolog.Logger,
) StreamCallback[Req, Rep] {
	if log == nil {
		log = zerolog.DefaultContextLogger
	}
	if log == nil {
		nop := zerolog.Nop()
		log = &nop
	}

	return func(reply Rep, w Writer[Req]) {
		if line := reply.GetLogLine(); line != "" {
			progress.Pause(func() {
				fmt.Fprint(out, line)
			})
		}

		switch {
		case reply.GetPasswordRequested():
			progress.Stop()
			password, err := term.Password(passwordPrompt)
			if err != nil {
				log.Warn().Err(err).Msg("failed to read password")
				return
			}
			req := newReq()
			req.SetPassword(password)
			if err := w.Write(req); err != nil {
				log.Warn().Err(err).Msg("failed to send password")
			}

		case reply.GetReplyMessage() != "":
			progress.Stop()
			progress.Start(reply.GetReplyMessage())

		case reply.GetConfirmation() != nil:
			confirm := reply.GetConfirmation()
			progress.Stop()
			accepted, err := term.Confirm(confirm.Prompt)
			if err != nil {
				log.Warn().Err(err).Str("key", confirm.Key).Msg("failed to read confirmation")
				return
			}
			req := newReq()
			req.SetConfirmation(&rpc.ConfirmationAnswer{Key: confirm.Key, Accepted: accepted})
			if err := w.Write(req); err != nil {
				log.Warn().Err(err).Str("key", confirm.Key).Msg("failed to send confirmation")
			}
		}
	}
}
