package dispatch

import (
	"context"
	"io"
	"strings"
	"sync"

	"github.com/jbweber/forge/internal/rpc"
)

// fakeStream replays a fixed list of replies and records every request sent.
type fakeStream[Req, Rep any] struct {
	mu       sync.Mutex
	replies  []Rep
	finalErr error
	sendErr  error

	sent       []Req
	closedSend bool
}

func (s *fakeStream[Req, Rep]) Send(req Req) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sendErr != nil {
		return s.sendErr
	}
	s.sent = append(s.sent, req)
	return nil
}

func (s *fakeStream[Req, Rep]) Recv() (Rep, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var zero Rep
	if len(s.replies) == 0 {
		if s.finalErr != nil {
			return zero, s.finalErr
		}
		return zero, io.EOF
	}
	reply := s.replies[0]
	s.replies = s.replies[1:]
	return reply, nil
}

func (s *fakeStream[Req, Rep]) CloseSend() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closedSend = true
	return nil
}

func (s *fakeStream[Req, Rep]) open() func(context.Context) (rpc.Stream[Req, Rep], error) {
	return func(context.Context) (rpc.Stream[Req, Rep], error) { return s, nil }
}

// fakeProgress records indicator transitions as "start:<msg>", "stop" and
// "pause".
type fakeProgress struct {
	mu     sync.Mutex
	events []string
}

func (p *fakeProgress) Start(message string) {
	p.mu.Lock()
	p.events = append(p.events, "start:"+message)
	p.mu.Unlock()
}

func (p *fakeProgress) Stop() {
	p.mu.Lock()
	p.events = append(p.events, "stop")
	p.mu.Unlock()
}

func (p *fakeProgress) Pause(fn func()) {
	p.mu.Lock()
	p.events = append(p.events, "pause")
	p.mu.Unlock()
	fn()
}

func (p *fakeProgress) String() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return strings.Join(p.events, ",")
}

type fakeTerminal struct {
	passwordFunc func(prompt string) (string, error)
	confirmFunc  func(prompt string) (bool, error)

	mu      sync.Mutex
	prompts []string
}

func (t *fakeTerminal) Password(prompt string) (string, error) {
	t.mu.Lock()
	t.prompts = append(t.prompts, prompt)
	t.mu.Unlock()
	if t.passwordFunc != nil {
		return t.passwordFunc(prompt)
	}
	return "", nil
}

func (t *fakeTerminal) Confirm(prompt string) (bool, error) {
	t.mu.Lock()
	t.prompts = append(t.prompts, prompt)
	t.mu.Unlock()
	if t.confirmFunc != nil {
		return t.confirmFunc(prompt)
	}
	return false, nil
}
