package output

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/fatih/color"
)

var spinnerFrames = []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}

// Spinner is an animated activity indicator with a message.
//
// One background goroutine draws frames while the spinner runs. Start,
// Stop and Pause may be called from any goroutine; Stop returns only after
// the line has been cleared, so output written afterwards is not interleaved
// with frames.
type Spinner struct {
	out      io.Writer
	interval time.Duration
	enabled  bool
	frame    func(string) string

	mu      sync.Mutex
	cond    *sync.Cond
	running bool
	gen     uint64
	message string
	done    chan struct{}
}

// NewSpinner creates a spinner writing to out. When live is false (out is
// not a terminal) the spinner never draws.
func NewSpinner(out io.Writer, live bool) *Spinner {
	cyan := color.New(color.FgCyan)
	s := &Spinner{
		out:      out,
		interval: 100 * time.Millisecond,
		enabled:  live,
		frame:    func(f string) string { return cyan.Sprint(f) },
	}
	s.cond = sync.NewCond(&s.mu)
	return s
}

// Start shows message. A running spinner keeps running with the new message.
func (s *Spinner) Start(message string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.message = message
	if !s.enabled || s.running {
		return
	}

	s.running = true
	s.gen++
	s.done = make(chan struct{})
	go s.draw(s.gen, s.done)
}

// Stop halts the animation and clears the line.
func (s *Spinner) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	done := s.done
	s.cond.Broadcast()
	s.mu.Unlock()

	<-done
}

// Pause stops a running spinner while fn runs and restarts it afterwards
// with the same message.
func (s *Spinner) Pause(fn func()) {
	s.mu.Lock()
	wasRunning := s.running
	message := s.message
	s.mu.Unlock()

	if wasRunning {
		s.Stop()
	}
	fn()
	if wasRunning {
		s.Start(message)
	}
}

// Running reports whether the spinner is animating.
func (s *Spinner) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

func (s *Spinner) draw(gen uint64, done chan struct{}) {
	defer close(done)

	s.mu.Lock()
	defer s.mu.Unlock()

	for i := 0; s.running && s.gen == gen; i++ {
		fmt.Fprintf(s.out, "\r%s %s", s.frame(spinnerFrames[i%len(spinnerFrames)]), s.message)

		tick := time.AfterFunc(s.interval, func() {
			s.mu.Lock()
			s.cond.Broadcast()
			s.mu.Unlock()
		})
		s.cond.Wait()
		tick.Stop()
	}

	fmt.Fprint(s.out, "\r\033[K")
}
