package output

import (
	"errors"
	"io"
	"os"

	"github.com/AlecAivazis/survey/v2"
	"github.com/AlecAivazis/survey/v2/terminal"
	"golang.org/x/term"
)

// ErrNotInteractive is returned by Prompter when stdin or stdout is not a
// terminal.
var ErrNotInteractive = errors.New("not running in an interactive terminal")

// Prompter asks the user for passwords and yes/no answers on the terminal.
type Prompter struct {
	in     terminal.FileReader
	out    terminal.FileWriter
	errOut io.Writer
	live   bool
}

// NewPrompter creates a Prompter on the process's standard streams.
func NewPrompter() *Prompter {
	return &Prompter{
		in:     os.Stdin,
		out:    os.Stdout,
		errOut: os.Stderr,
		live:   IsTerminal(os.Stdin) && IsTerminal(os.Stdout),
	}
}

// Password reads a secret without echo.
func (p *Prompter) Password(prompt string) (string, error) {
	if !p.live {
		return "", ErrNotInteractive
	}

	var answer string
	if err := survey.AskOne(&survey.Password{Message: prompt}, &answer, p.stdio()); err != nil {
		return "", err
	}
	return answer, nil
}

// Confirm asks a yes/no question. The default answer is no.
func (p *Prompter) Confirm(prompt string) (bool, error) {
	if !p.live {
		return false, ErrNotInteractive
	}

	var answer bool
	if err := survey.AskOne(&survey.Confirm{Message: prompt, Default: false}, &answer, p.stdio()); err != nil {
		return false, err
	}
	return answer, nil
}

func (p *Prompter) stdio() survey.AskOpt {
	return survey.WithStdio(p.in, p.out, p.errOut)
}

// IsTerminal reports whether f is connected to a terminal.
func IsTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}
