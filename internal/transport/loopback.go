package transport

import (
	"context"
	"errors"
	"sync"
)

// ErrNoResponse is returned by in-process links when a query produced no
// output, the equivalent of a read timeout on a real link.
var ErrNoResponse = errors.New("no response")

// ErrClosed is returned after Close.
var ErrClosed = errors.New("link closed")

// Handler executes one program message and returns its output, if any.
type Handler interface {
	Handle(ctx context.Context, line string) (resp string, ok bool)
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, line string) (string, bool)

func (f HandlerFunc) Handle(ctx context.Context, line string) (string, bool) {
	return f(ctx, line)
}

// Loopback connects directly to an in-process Handler. Output produced by
// a write is buffered and returned by the next query, as an instrument's
// output queue would be.
type Loopback struct {
	mu      sync.Mutex
	h       Handler
	pending []string
	closed  bool
}

// NewLoopback returns a link to h.
func NewLoopback(h Handler) *Loopback {
	return &Loopback{h: h}
}

func (l *Loopback) Write(ctx context.Context, cmd string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.send(ctx, cmd)
}

func (l *Loopback) Query(ctx context.Context, cmd string) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.send(ctx, cmd); err != nil {
		return "", err
	}
	if len(l.pending) == 0 {
		return "", ErrNoResponse
	}
	resp := l.pending[0]
	l.pending = l.pending[1:]
	return resp, nil
}

func (l *Loopback) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.closed = true
	l.pending = nil
	return nil
}

func (l *Loopback) send(ctx context.Context, cmd string) error {
	if l.closed {
		return ErrClosed
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if resp, ok := l.h.Handle(ctx, cmd); ok {
		l.pending = append(l.pending, resp)
	}
	return nil
}
