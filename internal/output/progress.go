package output

import (
	"io"

	"github.com/schollz/progressbar/v3"
)

// ProgressBar shows percentage progress for one labelled phase at a time.
// Switching to a new label finishes the current bar and starts a new one.
type ProgressBar struct {
	out   io.Writer
	bar   *progressbar.ProgressBar
	label string
}

// NewProgressBar creates a progress bar writing to out.
func NewProgressBar(out io.Writer) *ProgressBar {
	return &ProgressBar{out: out}
}

// Update sets the progress of phase label to percent (0-100).
func (p *ProgressBar) Update(label string, percent int) {
	if p.bar == nil || label != p.label {
		p.Finish()
		p.label = label
		p.bar = progressbar.NewOptions(100,
			progressbar.OptionSetWriter(p.out),
			progressbar.OptionSetDescription(label),
			progressbar.OptionSetWidth(30),
			progressbar.OptionShowCount(),
			progressbar.OptionSetRenderBlankState(true),
			progressbar.OptionOnCompletion(func() {
				_, _ = io.WriteString(p.out, "\n")
			}),
		)
	}

	percent = min(max(percent, 0), 100)
	_ = p.bar.Set(percent)
}

// Active reports whether a bar is currently shown.
func (p *ProgressBar) Active() bool {
	return p.bar != nil
}

// Finish completes the current bar, if any.
func (p *ProgressBar) Finish() {
	if p.bar == nil {
		return
	}
	if !p.bar.IsFinished() {
		_ = p.bar.Finish()
	}
	p.bar = nil
	p.label = ""
}
